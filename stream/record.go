package stream

import (
	"github.com/siphon-data/siphon/helper"
)

// Record is one row of extracted or transformed data. Values may be nil to
// represent database NULLs. Records travel by value; the map inside is shared
// intentionally so components can enrich a record in place.
type Record struct {
	data map[string]interface{}
}

// NewRecord creates an empty Record.
func NewRecord() Record {
	return Record{data: make(map[string]interface{})}
}

// NewRecordFromMap wraps an existing map without copying it.
func NewRecordFromMap(m map[string]interface{}) Record {
	if m == nil {
		m = make(map[string]interface{})
	}
	return Record{data: m}
}

// IsNil reports whether the record was never initialised.
func (r Record) IsNil() bool {
	return r.data == nil
}

// Set stores a field value.
func (r Record) Set(name string, value interface{}) {
	r.data[name] = value
}

// Get fetches a field value; ok is false when the field is absent.
func (r Record) Get(name string) (interface{}, bool) {
	v, ok := r.data[name]
	return v, ok
}

// GetString renders the named field as a string, times in UTC.
// Absent fields render as empty strings.
func (r Record) GetString(name string) string {
	v, ok := r.data[name]
	if !ok {
		return ""
	}
	return helper.ValueToString(v)
}

// Len returns the number of fields in the record.
func (r Record) Len() int {
	return len(r.data)
}

// FieldNames returns the record's field names in map order (unordered).
// Use the RecordSet schema when ordering matters.
func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.data))
	for k := range r.data {
		names = append(names, k)
	}
	return names
}

// Copy returns a record with its own backing map.
func (r Record) Copy() Record {
	out := NewRecord()
	for k, v := range r.data {
		out.data[k] = v
	}
	return out
}

// Project returns a record containing only the named fields. Missing fields
// are carried as explicit nils so columnar writers see every column.
func (r Record) Project(names []string) Record {
	out := NewRecord()
	for _, name := range names {
		v := r.data[name]
		out.data[name] = v
	}
	return out
}
