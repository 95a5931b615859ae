package erp

import (
	"fmt"
	"strings"

	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/helper"
)

// BuiltQuery is a fully-specified SQL query with bind arguments.
type BuiltQuery struct {
	SQL  string
	Args []interface{}
}

// QueryBuilder accumulates the parts of an extraction query and validates
// them all at Build time. Identifiers are quoted; values always bind.
type QueryBuilder struct {
	dbType           string
	connectionString string
	schema           string
	table            string
	columns          []string
	defaultFilter    string
	watermarkColumn  string
	lastWatermark    string
	incremental      bool
	orderBy          string
}

// NewQueryBuilder creates a builder for the given database type, which
// selects the bind-placeholder style.
func NewQueryBuilder(dbType string) *QueryBuilder {
	return &QueryBuilder{dbType: dbType}
}

// WithConnection records the connection string (validated, not embedded).
func (b *QueryBuilder) WithConnection(connectionString string) *QueryBuilder {
	b.connectionString = connectionString
	return b
}

// WithTable sets the schema-qualified source table.
func (b *QueryBuilder) WithTable(schema, table string) *QueryBuilder {
	b.schema = schema
	b.table = table
	return b
}

// WithColumns restricts the select list; empty means all columns.
func (b *QueryBuilder) WithColumns(columns []string) *QueryBuilder {
	b.columns = columns
	return b
}

// WithDefaultFilter sets the full-extract filter, e.g. "is_processed = 0".
func (b *QueryBuilder) WithDefaultFilter(filter string) *QueryBuilder {
	b.defaultFilter = filter
	return b
}

// WithWatermark enables the incremental filter watermarkColumn > lastWatermark.
func (b *QueryBuilder) WithWatermark(column string, lastWatermark string) *QueryBuilder {
	b.watermarkColumn = column
	b.lastWatermark = lastWatermark
	b.incremental = true
	return b
}

// WithOrderBy sets a deterministic ordering column.
func (b *QueryBuilder) WithOrderBy(column string) *QueryBuilder {
	b.orderBy = column
	return b
}

// placeholder returns the bind placeholder for 1-indexed position n.
func (b *QueryBuilder) placeholder(n int) string {
	switch b.dbType {
	case constants.ConnectionTypeSqlServer:
		return fmt.Sprintf("@p%d", n)
	default: // postgres and the mock use numbered dollar placeholders.
		return fmt.Sprintf("$%d", n)
	}
}

// quoteIdent quotes an identifier, doubling embedded quotes.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Build validates all required parts and assembles the query.
func (b *QueryBuilder) Build() (*BuiltQuery, error) {
	missing := make([]string, 0)
	if b.connectionString == "" {
		missing = append(missing, "connection string")
	}
	if b.schema == "" {
		missing = append(missing, "schema")
	}
	if b.table == "" {
		missing = append(missing, "table")
	}
	if b.incremental && b.watermarkColumn == "" {
		missing = append(missing, "watermark column")
	}
	if len(missing) > 0 {
		return nil, errkind.Newf(errkind.KindConfiguration, "incomplete query: missing %v", helper.StringsToCsv(missing))
	}
	selectList := "*"
	if len(b.columns) > 0 {
		quoted := make([]string, len(b.columns))
		for i, c := range b.columns {
			quoted[i] = quoteIdent(c)
		}
		selectList = strings.Join(quoted, ", ")
	}
	sb := strings.Builder{}
	args := make([]interface{}, 0, 1)
	fmt.Fprintf(&sb, "SELECT %v FROM %v.%v", selectList, quoteIdent(b.schema), quoteIdent(b.table))
	if b.incremental {
		fmt.Fprintf(&sb, " WHERE %v > %v", quoteIdent(b.watermarkColumn), b.placeholder(1))
		args = append(args, b.lastWatermark)
	} else if b.defaultFilter != "" {
		fmt.Fprintf(&sb, " WHERE %v", b.defaultFilter)
	}
	if b.orderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY %v", quoteIdent(b.orderBy))
	}
	return &BuiltQuery{SQL: sb.String(), Args: args}, nil
}
