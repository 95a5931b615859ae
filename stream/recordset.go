package stream

// RecordSet is an ordered, fully-materialised sequence of records with an
// associated schema. The count is always known before upload; nothing in the
// pipeline persists an unbounded stream.
type RecordSet struct {
	schema  *Schema
	records []Record
}

// NewRecordSet creates an empty record set with the given schema.
func NewRecordSet(schema *Schema) *RecordSet {
	if schema == nil {
		schema = NewSchema()
	}
	return &RecordSet{schema: schema, records: make([]Record, 0)}
}

// Append adds a record to the set.
func (rs *RecordSet) Append(r Record) {
	rs.records = append(rs.records, r)
}

// Count returns the number of records.
func (rs *RecordSet) Count() int {
	return len(rs.records)
}

// Records returns the backing slice. Callers must treat it as read-only.
func (rs *RecordSet) Records() []Record {
	return rs.records
}

// Schema returns the record set's schema.
func (rs *RecordSet) Schema() *Schema {
	return rs.schema
}

// ContentEqual compares two record sets by schema and row content, rendering
// values to strings per field so time zones and numeric widths don't produce
// false mismatches. Used to assert idempotence of repeated full extracts.
func (rs *RecordSet) ContentEqual(other *RecordSet) bool {
	if other == nil || rs.Count() != other.Count() || !rs.schema.Equal(other.schema) {
		return false
	}
	names := rs.schema.FieldNames()
	for i := range rs.records {
		for _, name := range names {
			if rs.records[i].GetString(name) != other.records[i].GetString(name) {
				return false
			}
		}
	}
	return true
}
