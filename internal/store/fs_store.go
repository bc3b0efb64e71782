package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// FSStore keeps one JSON file per run under <baseDir>/runs/<id>.json.
// Writes go to a temporary file that is renamed into place, so readers never
// see a partial record and no locking is needed.
type FSStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewFSStore creates the store, creating baseDir if needed. A nil logger
// disables logging.
func NewFSStore(baseDir string, logger *zap.Logger) (*FSStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "runs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FSStore{
		baseDir: baseDir,
		logger:  logger.Named("store"),
	}, nil
}

func (fs *FSStore) runPath(id string) string {
	return filepath.Join(fs.baseDir, "runs", id+".json")
}

func validID(id string) error {
	if id == "" {
		return errors.New("run id cannot be empty")
	}
	if filepath.Base(id) != id || id == "." || id == ".." {
		return fmt.Errorf("invalid run id %q", id)
	}
	return nil
}

// Save atomically writes the record.
func (fs *FSStore) Save(record *RunRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := validID(record.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	finalPath := fs.runPath(record.ID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	fs.logger.Debug("run saved", zap.String("id", record.ID), zap.String("path", finalPath))
	return nil
}

// Load reads the record with the given ID.
func (fs *FSStore) Load(id string) (*RunRecord, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.runPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize run %s: %w", id, err)
	}
	return &record, nil
}

// List returns summaries of all readable records, newest first. Corrupt
// files are logged and skipped.
func (fs *FSStore) List() ([]RunInfo, error) {
	entries, err := os.ReadDir(filepath.Join(fs.baseDir, "runs"))
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}

		id := name[:len(name)-len(".json")]
		record, err := fs.Load(id)
		if err != nil {
			fs.logger.Warn("skipping unreadable run", zap.String("id", id), zap.Error(err))
			continue
		}
		infos = append(infos, record.Info())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// Delete removes the record with the given ID.
func (fs *FSStore) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}

	err := os.Remove(fs.runPath(id))
	if os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to remove run file: %w", err)
	}

	fs.logger.Debug("run deleted", zap.String("id", id))
	return nil
}
