package transform

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/siphon-data/siphon/helper"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/stream"
)

// Result is the transformed record set plus the source fields the mapping
// dropped, recorded as a skip note on lineage.
type Result struct {
	Data          *stream.RecordSet
	SkippedFields []string
}

// SkipNote renders the dropped source fields for the lineage event, or ""
// when nothing was dropped.
func (r Result) SkipNote() string {
	if len(r.SkippedFields) == 0 {
		return ""
	}
	return "skipped unmapped source fields: " + strings.Join(r.SkippedFields, ", ")
}

// Transformer applies one mapping table to raw record sets.
type Transformer struct {
	Log     logger.Logger
	Mapping Mapping
}

// NewTransformer resolves the mapping for the tuple and returns a transformer.
func NewTransformer(log logger.Logger, erpType, dataType string) (*Transformer, error) {
	m, err := ResolveMapping(erpType, dataType)
	if err != nil {
		return nil, err
	}
	return &Transformer{Log: log, Mapping: m}, nil
}

// Transform maps each raw record onto the standard schema. Unmapped source
// fields are dropped and reported; required standard fields missing from the
// source are left absent for the validator to flag. Values that resist
// coercion are passed through unchanged for the same reason.
func (t *Transformer) Transform(raw *stream.RecordSet) (Result, error) {
	out := stream.NewRecordSet(t.Mapping.StandardSchema())
	bySource := make(map[string]FieldMapping, len(t.Mapping.Fields))
	for _, f := range t.Mapping.Fields {
		bySource[f.Source] = f
	}
	skipped := make(map[string]struct{})
	for _, rec := range raw.Records() {
		mapped := stream.NewRecord()
		for _, name := range rec.FieldNames() {
			f, ok := bySource[name]
			if !ok {
				skipped[name] = struct{}{}
				continue
			}
			v, _ := rec.Get(name)
			mapped.Set(f.Standard, t.coerce(f, v))
		}
		out.Append(mapped)
	}
	names := make([]string, 0, len(skipped))
	for name := range skipped {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		t.Log.Debug("dropped ", len(names), " unmapped source fields for ", t.Mapping.ErpType, "/", t.Mapping.DataType, ": ", strings.Join(names, ", "))
	}
	return Result{Data: out, SkippedFields: names}, nil
}

// coerce applies the field's coercion rule, returning the original value when
// the rule cannot apply cleanly.
func (t *Transformer) coerce(f FieldMapping, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch f.Coerce {
	case CoerceTimestamp:
		if ts, ok := coerceTimestamp(v); ok {
			return ts
		}
	case CoerceBoolean:
		if b, err := helper.ParseBool(helper.ValueToString(v)); err == nil {
			return b
		}
	case CoerceDecimal:
		if d, ok := coerceDecimal(v); ok {
			return d
		}
	case CoerceInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(helper.ValueToString(v)), 10, 64); err == nil {
			return n
		}
	}
	return v
}

// timestampLayouts are the source formats seen across ERP payloads, tried in
// order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// coerceTimestamp normalizes a timestamp value to UTC.
func coerceTimestamp(v interface{}) (time.Time, bool) {
	if ts, ok := v.(time.Time); ok {
		return ts.UTC(), true
	}
	s := strings.TrimSpace(helper.ValueToString(v))
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// coerceDecimal normalizes numeric values to a dot-decimal string, keeping
// exact precision rather than forcing float64.
func coerceDecimal(v interface{}) (string, bool) {
	switch v.(type) {
	case float32, float64, int, int32, int64:
		return helper.ValueToString(v), true
	}
	normalized := helper.NormalizeDecimal(helper.ValueToString(v))
	if _, err := strconv.ParseFloat(normalized, 64); err != nil {
		return "", false
	}
	return normalized, true
}
