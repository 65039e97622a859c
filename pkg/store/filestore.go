package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pagechat/internal/models"
)

var (
	// ErrNotFound means no record exists under the requested identifier.
	ErrNotFound = errors.New("record not found")
	// ErrEmptyStore means Latest was called before any record was saved.
	ErrEmptyStore = errors.New("no records in store")
	// ErrCorruptRecord means a stored file could not be parsed as a ScrapeRecord.
	ErrCorruptRecord = errors.New("corrupt record")
)

type FileStoreConfig struct {
	Dir string
}

// FileStore persists ScrapeRecords as pretty-printed JSON files, one per
// record, in a single directory. Identifiers are the file names, derived
// from the capture time at nanosecond resolution.
type FileStore struct {
	config FileStoreConfig
}

func NewWithConfig(config FileStoreConfig) *FileStore {
	if config.Dir == "" {
		config.Dir = "scraped_data"
	}
	return &FileStore{config: config}
}

func New(dir string) *FileStore {
	return NewWithConfig(FileStoreConfig{Dir: dir})
}

// Dir returns the directory records are stored in.
func (fs *FileStore) Dir() string {
	return fs.config.Dir
}

// Save writes the record under a fresh time-derived identifier and returns
// that identifier. The storage directory is created on first use.
func (fs *FileStore) Save(rec models.ScrapeRecord) (string, error) {
	if err := os.MkdirAll(fs.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create store directory: %w", err)
	}

	id := fmt.Sprintf("page_%s.json", time.Now().UTC().Format("20060102T150405.000000000"))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	if err := os.WriteFile(filepath.Join(fs.config.Dir, id), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write record %s: %w", id, err)
	}

	return id, nil
}

// Read loads one record by identifier. A missing file is ErrNotFound; a file
// that exists but does not parse is ErrCorruptRecord, never an empty record.
func (fs *FileStore) Read(id string) (models.ScrapeRecord, error) {
	var rec models.ScrapeRecord

	// Identifiers are bare file names; anything path-like is rejected so a
	// caller-supplied identifier cannot escape the store directory.
	if id == "" || id != filepath.Base(id) {
		return rec, ErrNotFound
	}

	data, err := os.ReadFile(filepath.Join(fs.config.Dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return rec, ErrNotFound
		}
		return rec, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, id, err)
	}

	return rec, nil
}

// Latest returns the record with the most recent modification time along
// with its identifier. The whole directory is stat'ed on every call; fine
// for the occasional manual query this store is meant for.
func (fs *FileStore) Latest() (models.ScrapeRecord, string, error) {
	entries, err := os.ReadDir(fs.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return models.ScrapeRecord{}, "", ErrEmptyStore
		}
		return models.ScrapeRecord{}, "", fmt.Errorf("failed to list store directory: %w", err)
	}

	var (
		latestID string
		latestAt time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestID == "" || info.ModTime().After(latestAt) {
			latestID = entry.Name()
			latestAt = info.ModTime()
		}
	}

	if latestID == "" {
		return models.ScrapeRecord{}, "", ErrEmptyStore
	}

	rec, err := fs.Read(latestID)
	if err != nil {
		return models.ScrapeRecord{}, "", err
	}
	return rec, latestID, nil
}

// List returns all record identifiers, newest first. Identifiers embed the
// capture timestamp, so reverse lexicographic order is chronological.
func (fs *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
