// Package transform maps raw ERP record sets onto the standard schema using
// static per-(erpType, dataType) field mappings with type coercion.
package transform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/stream"
)

// Coercion names the type-coercion rule applied to a mapped field.
type Coercion string

const (
	CoerceNone      Coercion = "none"
	CoerceTimestamp Coercion = "timestamp" // normalize to UTC RFC3339.
	CoerceBoolean   Coercion = "boolean"   // canonicalize Y/N/T/F/1/0 to true/false.
	CoerceDecimal   Coercion = "decimal"   // normalize locale separators to a dot decimal.
	CoerceInteger   Coercion = "integer"
)

// FieldMapping maps one source field onto one standard field.
type FieldMapping struct {
	Source   string
	Standard string
	Type     stream.FieldType
	Coerce   Coercion
	Required bool // missing required fields surface downstream as validation issues.
}

// Mapping is the static mapping table for one (erpType, dataType) tuple.
type Mapping struct {
	ErpType  string
	DataType string
	Fields   []FieldMapping
}

// StandardSchema returns the ordered standard schema this mapping produces.
func (m Mapping) StandardSchema() *stream.Schema {
	schema := stream.NewSchema()
	for _, f := range m.Fields {
		schema.WithField(f.Standard, f.Type)
	}
	return schema
}

// RequiredFields lists the standard fields the validator must see populated.
func (m Mapping) RequiredFields() []string {
	names := make([]string, 0)
	for _, f := range m.Fields {
		if f.Required {
			names = append(names, f.Standard)
		}
	}
	return names
}

func mappingKey(erpType, dataType string) string {
	return fmt.Sprintf("%v/%v", erpType, dataType)
}

var (
	mappingsMu sync.Mutex
	mappings   = make(map[string]Mapping)
)

// RegisterMapping adds a mapping table at startup. Duplicates panic early.
func RegisterMapping(m Mapping) {
	mappingsMu.Lock()
	defer mappingsMu.Unlock()
	key := mappingKey(m.ErpType, m.DataType)
	if _, exists := mappings[key]; exists {
		panic(fmt.Sprintf("mapping %q registered twice", key))
	}
	mappings[key] = m
}

// ResolveMapping finds the mapping table for the tuple.
func ResolveMapping(erpType, dataType string) (Mapping, error) {
	mappingsMu.Lock()
	defer mappingsMu.Unlock()
	m, ok := mappings[mappingKey(erpType, dataType)]
	if !ok {
		return Mapping{}, errkind.Newf(errkind.KindConfiguration, "no field mapping registered for %v/%v (registered: %v)", erpType, dataType, registeredMappingKeysLocked())
	}
	return m, nil
}

func registeredMappingKeysLocked() []string {
	keys := make([]string, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
