package index

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// documentVersion is the layout version of the index file. The key scheme
// has its own version embedded in every key.
const documentVersion = 1

// record is one persisted entry.
type record struct {
	OutputPath string    `json:"output_path"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// document is the on-disk layout of the index file.
type document struct {
	Version int               `json:"version"`
	Entries map[string]record `json:"entries"`
}

// readIndex loads the index file at path. A missing file is an empty index.
// Any other failure is a *CorruptError.
func readIndex(path string) (map[string]record, error) {
	data, err := os.ReadFile(path) // #nosec G304 - index path comes from configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]record), nil
		}
		return nil, &CorruptError{Path: path, Message: "reading index file", Cause: err}
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return make(map[string]record), nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptError{Path: path, Message: "decoding index file", Cause: err}
	}

	entries := make(map[string]record)
	if body, ok := raw["entries"]; ok {
		// Current layout: {"version": N, "entries": {...}}
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, &CorruptError{Path: path, Message: "decoding index entries", Cause: err}
		}
	} else {
		// Bare layout: {"<KEY>": {...}, ...}
		for key, body := range raw {
			var rec record
			if err := json.Unmarshal(body, &rec); err != nil {
				return nil, &CorruptError{Path: path, Message: "decoding entry " + key, Cause: err}
			}
			entries[key] = rec
		}
	}

	records := make(map[string]record, len(entries))
	for key, rec := range entries {
		k := normalizeKey(key)
		if k == "" || rec.OutputPath == "" {
			continue
		}
		// Two spellings of the same key: keep the most recently used one.
		if prev, ok := records[k]; ok && prev.LastUsedAt.After(rec.LastUsedAt) {
			continue
		}
		records[k] = rec
	}
	return records, nil
}

// writeIndex replaces the index file at path with records. The document is
// written to a temporary file in the same directory, synced and renamed over
// the previous file, so readers only ever see a complete document.
func writeIndex(path string, records map[string]record, renameAttempts uint) (err error) {
	data, err := json.MarshalIndent(document{Version: documentVersion, Entries: records}, "", "  ")
	if err != nil {
		return &PersistError{Path: path, Message: "encoding index", Cause: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistError{Path: path, Message: "creating index directory", Cause: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &PersistError{Path: path, Message: "creating temporary file", Cause: err}
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return &PersistError{Path: path, Message: "writing temporary file", Cause: err}
	}
	if err = tmp.Sync(); err != nil {
		return &PersistError{Path: path, Message: "syncing temporary file", Cause: err}
	}
	if err = tmp.Close(); err != nil {
		return &PersistError{Path: path, Message: "closing temporary file", Cause: err}
	}

	if renameAttempts == 0 {
		renameAttempts = 1
	}
	err = retry.Do(
		func() error { return os.Rename(tmpPath, path) },
		retry.Attempts(renameAttempts),
		retry.Delay(10*time.Millisecond),
		retry.MaxDelay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return &PersistError{Path: path, Message: "replacing index file", Cause: err}
	}
	return nil
}

// normalizeKey returns the canonical (uppercase, trimmed) form of key.
func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// outputExists reports whether path names a readable regular file.
func outputExists(path string) bool {
	f, err := os.Open(path) // #nosec G304 - path was registered by the cache owner
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
