package rdbms

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
)

type collectingHandler struct {
	cols    []string
	batches [][][]interface{}
	rows    int
}

func (h *collectingHandler) HandleColumns(cols []string) error {
	h.cols = cols
	return nil
}

func (h *collectingHandler) HandleBatch(rows [][]interface{}) error {
	h.batches = append(h.batches, rows)
	h.rows += len(rows)
	return nil
}

func TestSqlQueryBatched(t *testing.T) {
	log := logger.NewLogger("siphon-test", "error", false)
	// Test 1, rows arrive in batches of batchSize with a final partial batch.
	data := make([][]interface{}, 0, 25)
	for i := 0; i < 25; i++ {
		data = append(data, []interface{}{i, fmt.Sprintf("name-%d", i)})
	}
	db := NewMockConnector([]string{"id", "name"}, data)
	h := &collectingHandler{}
	err := SqlQueryBatched(context.Background(), log, db, "select id, name from t", nil, 10, h)
	if err != nil {
		t.Fatal(err)
	}
	if h.rows != 25 {
		t.Fatalf("expected 25 rows; got %v", h.rows)
	}
	if len(h.batches) != 3 {
		t.Fatalf("expected 3 batches (10/10/5); got %v", len(h.batches))
	}
	if len(h.batches[2]) != 5 {
		t.Fatalf("expected final batch of 5; got %v", len(h.batches[2]))
	}
	if h.cols[1] != "name" {
		t.Fatalf("unexpected columns %v", h.cols)
	}
	// Test 2, zero matching rows is a valid result: columns delivered, no batches.
	db2 := NewMockConnector([]string{"id"}, nil)
	h2 := &collectingHandler{}
	err = SqlQueryBatched(context.Background(), log, db2, "select id from t where isProcessed = 0", nil, 10, h2)
	if err != nil {
		t.Fatal(err)
	}
	if h2.rows != 0 || len(h2.batches) != 0 {
		t.Fatal("expected no rows and no batches")
	}
	if len(h2.cols) != 1 {
		t.Fatal("expected columns even for an empty result")
	}
}

func TestSqlQueryBatchedCancellation(t *testing.T) {
	log := logger.NewLogger("siphon-test", "error", false)
	data := make([][]interface{}, 0, 100)
	for i := 0; i < 100; i++ {
		data = append(data, []interface{}{i})
	}
	db := NewMockConnector([]string{"id"}, data)
	ctx, cancel := context.WithCancel(context.Background())
	h := &cancellingHandler{cancel: cancel}
	err := SqlQueryBatched(ctx, log, db, "select id from t", nil, 10, h)
	if errkind.KindOf(err) != errkind.KindCancelled {
		t.Fatalf("expected cancelled; got %v", err)
	}
	if h.batches != 1 {
		t.Fatalf("expected exactly one batch before cancellation took effect; got %v", h.batches)
	}
}

func TestSqlQueryBatchedCommandTimeoutIsTransient(t *testing.T) {
	log := logger.NewLogger("siphon-test", "error", false)
	data := [][]interface{}{{1}, {2}}
	db := NewMockConnector([]string{"id"}, data)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	h := &slowHandler{delay: 50 * time.Millisecond}
	err := SqlQueryBatched(ctx, log, db, "select id from t", nil, 1, h)
	if errkind.KindOf(err) != errkind.KindTransient {
		t.Fatalf("expected a command timeout to be transient; got %v", err)
	}
}

type cancellingHandler struct {
	cancel  context.CancelFunc
	batches int
}

func (h *cancellingHandler) HandleColumns(cols []string) error { return nil }

func (h *cancellingHandler) HandleBatch(rows [][]interface{}) error {
	h.batches++
	h.cancel()
	return nil
}

type slowHandler struct {
	delay time.Duration
}

func (h *slowHandler) HandleColumns(cols []string) error { return nil }

func (h *slowHandler) HandleBatch(rows [][]interface{}) error {
	time.Sleep(h.delay)
	return nil
}

func TestClassifyDbError(t *testing.T) {
	cases := map[string]errkind.Kind{
		"Incorrect syntax near 'SELEC'":      errkind.KindPersistent,
		"permission denied for table orders": errkind.KindPersistent,
		"dial tcp: connection refused":       errkind.KindTransient,
		"deadlock victim":                    errkind.KindTransient,
		"read tcp: i/o timeout":              errkind.KindTransient,
		"something novel happened":           errkind.KindPersistent,
	}
	for msg, expected := range cases {
		got := errkind.KindOf(ClassifyDbError(fmt.Errorf("%s", msg)))
		if got != expected {
			t.Fatalf("%q: expected %v; got %v", msg, expected, got)
		}
	}
	if ClassifyDbError(nil) != nil {
		t.Fatal("nil must classify to nil")
	}
	if got := errkind.KindOf(ClassifyDbError(context.DeadlineExceeded)); got != errkind.KindTransient {
		t.Fatalf("expected deadline to be transient; got %v", got)
	}
	if got := errkind.KindOf(ClassifyDbError(context.Canceled)); got != errkind.KindCancelled {
		t.Fatalf("expected cancel to stay cancelled; got %v", got)
	}
	already := errkind.New(errkind.KindDataQuality, "tagged upstream")
	if ClassifyDbError(already) != already {
		t.Fatal("already-tagged errors must pass through unchanged")
	}
}
