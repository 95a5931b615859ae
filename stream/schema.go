package stream

import (
	om "github.com/cevaris/ordered_map"
)

// FieldType is the semantic type of a schema field.
type FieldType string

const (
	FieldString    FieldType = "string"
	FieldInteger   FieldType = "integer"
	FieldDecimal   FieldType = "decimal"
	FieldBoolean   FieldType = "boolean"
	FieldTimestamp FieldType = "timestamp"
)

// Schema is an ordered mapping of field name to semantic type.
// Field order is significant: columnar writers emit columns in schema order.
type Schema struct {
	fields *om.OrderedMap
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: om.NewOrderedMap()}
}

// WithField appends a field and returns the schema for fluent construction.
// Re-adding an existing field updates its type but keeps its position.
func (s *Schema) WithField(name string, t FieldType) *Schema {
	s.fields.Set(name, t)
	return s
}

// TypeOf returns the type of the named field.
func (s *Schema) TypeOf(name string) (FieldType, bool) {
	v, ok := s.fields.Get(name)
	if !ok {
		return "", false
	}
	return v.(FieldType), true
}

// FieldNames returns field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, s.fields.Len())
	iter := s.fields.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		names = append(names, kv.Key.(string))
	}
	return names
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return s.fields.Len()
}

// Equal compares two schemas by field order, name and type.
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || s.Len() != other.Len() {
		return false
	}
	a := s.FieldNames()
	b := other.FieldNames()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
		ta, _ := s.TypeOf(a[i])
		tb, _ := other.TypeOf(b[i])
		if ta != tb {
			return false
		}
	}
	return true
}
