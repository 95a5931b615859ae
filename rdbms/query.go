package rdbms

import (
	"context"

	"github.com/siphon-data/siphon/logger"
)

// BatchHandler receives column names once, then row batches in order.
type BatchHandler interface {
	HandleColumns(cols []string) error
	HandleBatch(rows [][]interface{}) error
}

// SqlQueryBatched executes the query and streams rows to the handler in
// batches of batchSize to bound memory. Cancellation is checked per batch;
// an in-flight Scan is allowed to finish.
func SqlQueryBatched(ctx context.Context, log logger.Logger, db Connector, query string, args []interface{}, batchSize int, handler BatchHandler) error {
	if batchSize <= 0 {
		batchSize = 1
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()
	cols, err := rows.Columns()
	if err != nil {
		return ClassifyDbError(err)
	}
	if err := handler.HandleColumns(cols); err != nil {
		return err
	}
	numCols := len(cols)
	batch := make([][]interface{}, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := handler.HandleBatch(batch); err != nil {
			return err
		}
		batch = make([][]interface{}, 0, batchSize)
		return nil
	}
	scanPtrs := make([]interface{}, numCols)
	scanVals := make([]interface{}, numCols)
	for idx := range scanVals {
		scanPtrs[idx] = &scanVals[idx]
	}
	rowCount := 0
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			return ClassifyDbError(err)
		}
		row := make([]interface{}, numCols)
		copy(row, scanVals)
		batch = append(batch, row)
		rowCount++
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
			// Check the context at each batch boundary. A command timeout
			// classifies transient; an explicit cancel classifies cancelled.
			select {
			case <-ctx.Done():
				return ClassifyDbError(ctx.Err())
			default:
			}
		}
	}
	if err := rows.Err(); err != nil {
		return ClassifyDbError(err)
	}
	if err := flush(); err != nil {
		return err
	}
	log.Debug("query streamed ", rowCount, " rows in batches of ", batchSize)
	return nil
}
