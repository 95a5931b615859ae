// Package lineage records the provenance of every extraction run: source,
// transformations applied, destination and final status.
package lineage

import (
	"time"

	"github.com/rs/xid"

	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
)

// Status is the lifecycle state of a lineage record.
type Status string

const (
	StatusInProgress Status = "InProgress"
	StatusSucceeded  Status = "Succeeded"
	StatusFailed     Status = "Failed"
)

// Transformation is one recorded processing event, in application order.
type Transformation struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Record is the full provenance of one extraction run.
type Record struct {
	Id                    string           `json:"id"`
	ErpType               string           `json:"erpType"`
	ClientId              string           `json:"clientId"`
	DataType              string           `json:"dataType"`
	StartedAt             time.Time        `json:"startedAt"`
	CompletedAt           *time.Time       `json:"completedAt,omitempty"`
	Transformations       []Transformation `json:"transformations"`
	SourceDescriptor      string           `json:"sourceDescriptor"`
	DestinationDescriptor string           `json:"destinationDescriptor,omitempty"`
	Status                Status           `json:"status"`
	ErrorKind             string           `json:"errorKind,omitempty"`
	ErrorMessage          string           `json:"errorMessage,omitempty"`
}

// Store persists lineage records.
type Store interface {
	Save(record Record) error
	Get(id string) (Record, error)
}

// Tracker opens lineage records and hands back a scoped handle per run.
type Tracker struct {
	Log   logger.Logger
	Store Store
	Now   func() time.Time // defaults to time.Now.
}

func NewTracker(log logger.Logger, store Store) *Tracker {
	return &Tracker{Log: log, Store: store, Now: time.Now}
}

// Start opens a lineage record before any external call is made. The handle
// must be completed exactly once; the run owns it for its whole lifetime.
func (t *Tracker) Start(erpType, clientId, dataType string) (*Handle, error) {
	record := Record{
		Id:              xid.New().String(),
		ErpType:         erpType,
		ClientId:        clientId,
		DataType:        dataType,
		StartedAt:       t.Now().UTC(),
		Transformations: make([]Transformation, 0),
		Status:          StatusInProgress,
	}
	if err := t.Store.Save(record); err != nil {
		return nil, errkind.Wrapf(errkind.KindPersistent, err, "opening lineage record")
	}
	t.Log.Debug("opened lineage record ", record.Id, " for ", erpType, "/", clientId, "/", dataType)
	return &Handle{tracker: t, record: record}, nil
}

// Handle is the single writer for one run's lineage record.
type Handle struct {
	tracker   *Tracker
	record    Record
	completed bool
}

// Id returns the lineage record id for cross-referencing.
func (h *Handle) Id() string {
	return h.record.Id
}

// SetSource records the source descriptor once extraction parameters are known.
func (h *Handle) SetSource(descriptor string) {
	h.record.SourceDescriptor = descriptor
}

// RecordTransformation appends a processing event. Events persist when the
// record completes; an in-progress crash leaves the record InProgress with
// the events captured so far unsaved, which is detectable.
func (h *Handle) RecordTransformation(name, description string) {
	h.record.Transformations = append(h.record.Transformations, Transformation{
		Name:        name,
		Description: description,
		Timestamp:   h.tracker.Now().UTC(),
	})
}

// Complete closes the record with its final status and destination. Exactly
// one Complete per Start: a second call is a programming error and is
// rejected without touching the stored record.
func (h *Handle) Complete(destination string, status Status, runErr error) error {
	if h.completed {
		return errkind.Newf(errkind.KindPersistent, "lineage record %v completed twice", h.record.Id)
	}
	h.completed = true
	now := h.tracker.Now().UTC()
	h.record.CompletedAt = &now
	h.record.DestinationDescriptor = destination
	h.record.Status = status
	if runErr != nil {
		h.record.ErrorKind = errkind.KindOf(runErr).String()
		h.record.ErrorMessage = runErr.Error()
	}
	if err := h.tracker.Store.Save(h.record); err != nil {
		return errkind.Wrapf(errkind.KindPersistent, err, "closing lineage record %v", h.record.Id)
	}
	h.tracker.Log.Debug("closed lineage record ", h.record.Id, " with status ", status)
	return nil
}

// Completed reports whether the handle has been closed.
func (h *Handle) Completed() bool {
	return h.completed
}

// Snapshot returns a copy of the record as currently accumulated.
func (h *Handle) Snapshot() Record {
	rec := h.record
	rec.Transformations = append([]Transformation(nil), h.record.Transformations...)
	return rec
}
