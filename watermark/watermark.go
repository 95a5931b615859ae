// Package watermark persists the incremental-extraction boundary per
// (erpType, clientId, dataType) tuple. Values only ever move forward.
package watermark

import (
	"fmt"
	"strconv"
	"time"

	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/errkind"
	"github.com/siphon-data/siphon/logger"
)

// Kind says how watermark values compare: as timestamps or as sequences.
type Kind string

const (
	KindTimestamp Kind = "timestamp"
	KindSequence  Kind = "sequence"
)

// Entry is one stored watermark.
type Entry struct {
	Value     string `json:"value"`
	Kind      Kind   `json:"kind"`
	UpdatedAt string `json:"updatedAt"`
}

// Store reads and advances watermarks.
type Store interface {
	Get(erpType, clientId, dataType string) (Entry, bool, error)
	Advance(erpType, clientId, dataType string, kind Kind, value string) (bool, error)
}

// FileStore keeps watermarks in a YAML document under the tool home dir.
type FileStore struct {
	Log  logger.Logger
	File *config.File
	Now  func() time.Time
}

func NewFileStore(log logger.Logger) *FileStore {
	return &FileStore{
		Log:  log,
		File: config.NewFile(config.MustGetHomeDir(), constants.WatermarksFileName),
		Now:  time.Now,
	}
}

func key(erpType, clientId, dataType string) string {
	return fmt.Sprintf("%v/%v/%v", erpType, clientId, dataType)
}

// Get returns the stored watermark for the tuple, with found=false when no
// prior successful incremental run exists.
func (s *FileStore) Get(erpType, clientId, dataType string) (Entry, bool, error) {
	var entry Entry
	err := s.File.Get(key(erpType, clientId, dataType), &entry)
	if err != nil {
		switch err.(type) {
		case config.KeyNotFoundError, config.FileNotFoundError:
			return Entry{}, false, nil
		}
		return Entry{}, false, errkind.Wrapf(errkind.KindPersistent, err, "reading watermark for %v", key(erpType, clientId, dataType))
	}
	return entry, true, nil
}

// Advance persists the new value only if it is greater than the stored one,
// keeping the watermark monotonically non-decreasing across runs. It reports
// whether the value moved.
func (s *FileStore) Advance(erpType, clientId, dataType string, kind Kind, value string) (bool, error) {
	if value == "" {
		return false, nil // an empty extract observes no new boundary.
	}
	current, found, err := s.Get(erpType, clientId, dataType)
	if err != nil {
		return false, err
	}
	if found {
		if kind != current.Kind {
			return false, errkind.Newf(errkind.KindPersistent, "watermark for %v is kind %v; refusing to advance it as %v", key(erpType, clientId, dataType), current.Kind, kind)
		}
		newer, err := isNewer(kind, value, current.Value)
		if err != nil {
			return false, err
		}
		if !newer {
			s.Log.Debug("watermark for ", key(erpType, clientId, dataType), " unchanged: ", value, " <= ", current.Value)
			return false, nil
		}
	}
	entry := Entry{Value: value, Kind: kind, UpdatedAt: s.Now().UTC().Format(time.RFC3339)}
	if err := s.File.Set(key(erpType, clientId, dataType), entry); err != nil {
		return false, errkind.Wrapf(errkind.KindPersistent, err, "writing watermark for %v", key(erpType, clientId, dataType))
	}
	s.Log.Info("advanced watermark for ", key(erpType, clientId, dataType), " to ", value)
	return true, nil
}

// isNewer compares candidate against current per the watermark kind.
func isNewer(kind Kind, candidate, current string) (bool, error) {
	switch kind {
	case KindSequence:
		a, err := strconv.ParseInt(candidate, 10, 64)
		if err != nil {
			return false, errkind.Wrapf(errkind.KindPersistent, err, "parsing sequence watermark %q", candidate)
		}
		b, err := strconv.ParseInt(current, 10, 64)
		if err != nil {
			return false, errkind.Wrapf(errkind.KindPersistent, err, "parsing stored sequence watermark %q", current)
		}
		return a > b, nil
	default:
		a, err := parseWatermarkTime(candidate)
		if err != nil {
			return false, err
		}
		b, err := parseWatermarkTime(current)
		if err != nil {
			return false, err
		}
		return a.After(b), nil
	}
}

// KindForValue guesses the comparison kind from a sample value: anything
// that parses as an integer is a sequence, everything else a timestamp.
func KindForValue(value string) Kind {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return KindSequence
	}
	return KindTimestamp
}

// Max returns the greater of the two values per the kind. Empty values lose.
func Max(kind Kind, a, b string) (string, error) {
	if a == "" {
		return b, nil
	}
	if b == "" {
		return a, nil
	}
	newer, err := isNewer(kind, a, b)
	if err != nil {
		return "", err
	}
	if newer {
		return a, nil
	}
	return b, nil
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseWatermarkTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errkind.Newf(errkind.KindPersistent, "unparseable timestamp watermark %q", s)
}
