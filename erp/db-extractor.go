package erp

import (
	"context"
	"sort"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
	"github.com/siphon-data/siphon/rdbms"
	"github.com/siphon-data/siphon/resilience"
	"github.com/siphon-data/siphon/stream"
)

// DbExtractor executes a built query against the ERP database, streaming rows
// in bounded batches into a RecordSet. Connection acquisition runs inside the
// resilience policy (so the bulkhead bounds pool pressure), and a transient
// failure retries the whole query rather than resuming mid-stream.
type DbExtractor struct {
	Log    logger.Logger
	Policy *resilience.Policy
	// OpenFn opens the pooled connection; tests substitute a mock.
	OpenFn func(log logger.Logger, connectionString string) (rdbms.Connector, error)
}

// ExtractFromDatabase runs the query and materialises the result.
func (e *DbExtractor) ExtractFromDatabase(ctx context.Context, connectionString string, query *BuiltQuery, cfg ExtractConfig) (*stream.RecordSet, error) {
	openFn := e.OpenFn
	if openFn == nil {
		openFn = rdbms.OpenDbConnection
	}
	var recordSet *stream.RecordSet
	err := e.Policy.Execute(ctx, func(ctx context.Context) error {
		// Command timeout from configuration bounds the whole statement.
		queryCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			queryCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		db, err := openFn(e.Log, connectionString)
		if err != nil {
			return err
		}
		defer func() {
			_ = db.Close()
		}()
		handler := &recordSetHandler{}
		if err := rdbms.SqlQueryBatched(queryCtx, e.Log, db, query.SQL, query.Args, cfg.BatchSize, handler); err != nil {
			return err
		}
		recordSet = handler.recordSet()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.Log.Info("database extraction complete for ", cfg.ErpType, "/", cfg.DataType, " with ", recordSet.Count(), " records (", cfg.Mode(), ")")
	return recordSet, nil
}

// recordSetHandler accumulates streamed batches into a RecordSet.
type recordSetHandler struct {
	cols []string
	rs   *stream.RecordSet
}

func (h *recordSetHandler) HandleColumns(cols []string) error {
	h.cols = cols
	schema := stream.NewSchema()
	sorted := append([]string(nil), cols...)
	sort.Strings(sorted)
	for _, c := range sorted {
		schema.WithField(c, stream.FieldString)
	}
	h.rs = stream.NewRecordSet(schema)
	return nil
}

func (h *recordSetHandler) HandleBatch(rows [][]interface{}) error {
	for _, row := range rows {
		if len(row) != len(h.cols) {
			return errkind.Newf(errkind.KindPersistent, "row width %v does not match %v columns", len(row), len(h.cols))
		}
		rec := stream.NewRecord()
		for i, col := range h.cols {
			rec.Set(col, row[i])
		}
		h.rs.Append(rec)
	}
	return nil
}

func (h *recordSetHandler) recordSet() *stream.RecordSet {
	if h.rs == nil { // a query that never returned columns still yields an empty set.
		h.rs = stream.NewRecordSet(nil)
	}
	return h.rs
}
