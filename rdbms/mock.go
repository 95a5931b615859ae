package rdbms

import (
	"context"
	"io"

	"github.com/siphon-data/siphon/constants"
)

// MockConnector serves canned rows for tests and the mock ERP connection type.
type MockConnector struct {
	Cols     []string
	RowData  [][]interface{}
	QueryErr error
	// Queries records every SQL text executed, for assertions.
	Queries []string
	Args    [][]interface{}
	closed  bool
}

// NewMockConnector creates a mock serving the given columns and rows.
func NewMockConnector(cols []string, rowData [][]interface{}) *MockConnector {
	return &MockConnector{Cols: cols, RowData: rowData}
}

func (m *MockConnector) Type() string {
	return constants.ConnectionTypeMock
}

func (m *MockConnector) Close() error {
	m.closed = true
	return nil
}

func (m *MockConnector) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	m.Queries = append(m.Queries, query)
	m.Args = append(m.Args, args)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return &mockRows{cols: m.Cols, data: m.RowData, idx: -1}, nil
}

type mockRows struct {
	cols []string
	data [][]interface{}
	idx  int
}

func (r *mockRows) Columns() ([]string, error) {
	return r.cols, nil
}

func (r *mockRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...interface{}) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.idx]
	for i := range dest {
		p, ok := dest[i].(*interface{})
		if !ok {
			continue
		}
		*p = row[i]
	}
	return nil
}

func (r *mockRows) Err() error {
	return nil
}

func (r *mockRows) Close() error {
	return nil
}
