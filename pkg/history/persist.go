package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore saves and loads a Store as a single JSON document keyed by symbol
// then metric. Writes land in a temp file first and are renamed into place,
// so readers never observe a partial document.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (f *FileStore) Path() string { return f.path }

type persistedSample struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// Save writes a snapshot of every non-empty series.
func (f *FileStore) Save(s *Store) error {
	if s == nil {
		return errors.New("history: nil store")
	}
	doc := make(map[string]map[string][]persistedSample)
	for key, samples := range s.Snapshot() {
		if len(samples) == 0 {
			continue
		}
		metrics := doc[key.Symbol]
		if metrics == nil {
			metrics = make(map[string][]persistedSample)
			doc[key.Symbol] = metrics
		}
		out := make([]persistedSample, 0, len(samples))
		for _, sample := range samples {
			out = append(out, persistedSample{
				Value:     sample.Value,
				Timestamp: sample.At.UTC().Format(time.RFC3339Nano),
			})
		}
		metrics[string(key.Metric)] = out
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode store: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".metrics-*.json")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: replace %s: %w", f.path, err)
	}
	return nil
}

// Load reads the store back from disk. A missing file yields an empty store
// and no error (cold start). A corrupt file yields an empty store and the
// parse error so callers can log it and carry on; it is never fatal.
// Malformed entries are dropped, well-formed ones kept.
func (f *FileStore) Load(opts ...Option) (*Store, error) {
	store := NewStore(opts...)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return store, fmt.Errorf("history: read %s: %w", f.path, err)
	}
	var doc map[string]map[string][]persistedSample
	if err := json.Unmarshal(data, &doc); err != nil {
		return store, fmt.Errorf("history: parse %s: %w", f.path, err)
	}
	for symbol, metrics := range doc {
		for metric, samples := range metrics {
			kind := Kind(metric)
			if !kind.Valid() {
				continue
			}
			for _, sample := range samples {
				at, err := time.Parse(time.RFC3339Nano, sample.Timestamp)
				if err != nil {
					continue
				}
				store.Insert(symbol, kind, sample.Value, at)
			}
		}
	}
	return store, nil
}
