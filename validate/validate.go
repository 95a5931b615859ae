// Package validate checks transformed record sets against the standard
// schema and per-data-type business rules, classifying findings by severity.
package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/stream"
	"github.com/siphon-data/siphon/transform"
)

// Severity classifies a validation finding. Warnings are recorded and never
// block upload; a single Critical halts the pipeline before upload.
type Severity string

const (
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// Issue is one failed rule, aggregated across the record set.
type Issue struct {
	Field       string
	Rule        string
	Severity    Severity
	Message     string
	RecordCount int // how many records failed this rule on this field.
}

// Result is the outcome of validating one record set.
type Result struct {
	Issues []Issue
}

// IsValid reports whether the record set may proceed to upload: false iff at
// least one Critical issue exists.
func (r Result) IsValid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			return false
		}
	}
	return true
}

// Criticals returns only the Critical issues.
func (r Result) Criticals() []Issue {
	return r.filter(SeverityCritical)
}

// Warnings returns only the Warning issues.
func (r Result) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r Result) filter(s Severity) []Issue {
	out := make([]Issue, 0)
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// Summary renders a short lineage/log line, e.g. "2 critical, 1 warning".
func (r Result) Summary() string {
	return fmt.Sprintf("%v critical, %v warning", len(r.Criticals()), len(r.Warnings()))
}

// Validator runs schema checks derived from the field mapping plus the
// registered business rules for the tuple.
type Validator struct {
	Log      logger.Logger
	Schema   *stream.Schema
	Required []string
	Rules    []Rule
}

// NewValidator resolves the standard schema, required fields and business
// rules for the (erpType, dataType) tuple.
func NewValidator(log logger.Logger, erpType, dataType string) (*Validator, error) {
	mapping, err := transform.ResolveMapping(erpType, dataType)
	if err != nil {
		return nil, err
	}
	return &Validator{
		Log:      log,
		Schema:   mapping.StandardSchema(),
		Required: mapping.RequiredFields(),
		Rules:    ResolveRules(erpType, dataType),
	}, nil
}

// Validate checks every record. Findings are aggregated per (field, rule) so
// one structural problem reports once with a record count, not once per row.
// An empty record set is valid.
func (v *Validator) Validate(data *stream.RecordSet) Result {
	hits := make(map[string]*Issue)
	record := func(field, rule string, severity Severity, message string) {
		key := field + "\x00" + rule
		if issue, ok := hits[key]; ok {
			issue.RecordCount++
			return
		}
		hits[key] = &Issue{Field: field, Rule: rule, Severity: severity, Message: message, RecordCount: 1}
	}
	for _, rec := range data.Records() {
		for _, field := range v.Required {
			value, ok := rec.Get(field)
			if !ok || value == nil {
				record(field, "required", SeverityCritical, fmt.Sprintf("required field %q is missing", field))
			}
		}
		for _, field := range v.Schema.FieldNames() {
			value, ok := rec.Get(field)
			if !ok || value == nil {
				continue // absence is the required rule's concern.
			}
			fieldType, _ := v.Schema.TypeOf(field)
			if !typeConforms(fieldType, value) {
				record(field, "type", SeverityCritical, fmt.Sprintf("field %q does not conform to type %v", field, fieldType))
			}
		}
		for _, rule := range v.Rules {
			if msg, ok := rule.Check(rec); !ok {
				record(rule.Field, rule.Name, rule.Severity, msg)
			}
		}
	}
	issues := make([]Issue, 0, len(hits))
	for _, issue := range hits {
		issues = append(issues, *issue)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Field != issues[j].Field {
			return issues[i].Field < issues[j].Field
		}
		return issues[i].Rule < issues[j].Rule
	})
	result := Result{Issues: issues}
	if len(issues) > 0 {
		v.Log.Info("validation found ", result.Summary(), " issue kinds over ", data.Count(), " records")
	}
	return result
}

// typeConforms checks a value against the semantic field type. Decimal
// accepts normalized numeric strings since exact precision is kept as text.
func typeConforms(t stream.FieldType, v interface{}) bool {
	switch t {
	case stream.FieldString:
		_, ok := v.(string)
		return ok
	case stream.FieldInteger:
		switch v.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case stream.FieldDecimal:
		switch n := v.(type) {
		case float32, float64, int, int32, int64:
			return true
		case string:
			return decimalPattern(n)
		}
		return false
	case stream.FieldBoolean:
		_, ok := v.(bool)
		return ok
	case stream.FieldTimestamp:
		_, ok := v.(time.Time)
		return ok
	}
	return true
}

// decimalPattern accepts an optional sign, digits and at most one dot.
func decimalPattern(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	dots := 0
	digits := 0
	for _, c := range s {
		switch {
		case c == '.':
			dots++
		case c >= '0' && c <= '9':
			digits++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
