package lineage

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/siphon-data/siphon/errkind"
)

// FileStore persists one JSON document per lineage record under a directory,
// by default ~/.siphon/lineage.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating lineage directory %v", dir)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

// Save writes the record to a temp file and renames it into place so a crash
// mid-write never leaves a truncated document.
func (s *FileStore) Save(record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding lineage record %v", record.Id)
	}
	tmp := s.path(record.Id) + ".tmp"
	if err := ioutil.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, "writing lineage record %v", record.Id)
	}
	return os.Rename(tmp, s.path(record.Id))
}

// Get loads one record by id.
func (s *FileStore) Get(id string) (Record, error) {
	data, err := ioutil.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errkind.Newf(errkind.KindPersistent, "lineage record %v not found", id)
		}
		return Record{}, errors.Wrapf(err, "reading lineage record %v", id)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, errors.Wrapf(err, "decoding lineage record %v", id)
	}
	return record, nil
}

// List returns the ids of all stored records, for the admin surface.
func (s *FileStore) List() ([]string, error) {
	entries, err := ioutil.ReadDir(s.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing lineage directory %v", s.Dir)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".json" {
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}
	return ids, nil
}
