// Package index provides the persisted key to output index used to skip
// translation jobs whose result is already on disk.
//
// A Store owns one JSON index file. Every operation runs under a single
// Locker and sees the whole index; mutations rewrite the file as a unit.
// Entries whose output file has disappeared are dropped on the next lookup.
package index

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultFileName is the index file name used inside a data directory.
const DefaultFileName = "index.json"

// Entry is a copy of one index record.
type Entry struct {
	Key        string    `json:"key" yaml:"key"`
	OutputPath string    `json:"output_path" yaml:"output_path"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	LastUsedAt time.Time `json:"last_used_at" yaml:"last_used_at"`
}

// Store is a lock-serialized, file-backed index of translation outputs.
type Store struct {
	path           string
	lock           Locker
	log            logrus.FieldLogger
	now            func() time.Time
	renameAttempts uint

	// guarded by lock
	loaded  bool
	records map[string]record
}

// Option configures a Store.
type Option func(*Store)

// WithLocker replaces the default one-permit semaphore.
func WithLocker(l Locker) Option {
	return func(s *Store) {
		s.lock = l
	}
}

// WithLogger sets the logger used for recovered errors and evictions.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithClock sets the time source for CreatedAt and LastUsedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithPersistRetry sets how many times replacing the index file is attempted
// before a write fails.
func WithPersistRetry(attempts uint) Option {
	return func(s *Store) {
		s.renameAttempts = attempts
	}
}

// New creates a Store backed by the file at path. The file is not touched
// until the first operation.
func New(path string, opts ...Option) *Store {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	s := &Store{
		path:           path,
		lock:           NewSemaphoreLocker(),
		log:            logrus.StandardLogger(),
		now:            time.Now,
		renameAttempts: 3,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.path
}

// TryGetOutput returns the output path registered for key.
//
// A hit is only reported when the output file still exists; its LastUsedAt
// is refreshed and persisted. An entry whose file is gone is removed and
// reported as a miss. The returned error is either the context error (the
// lock was never taken) or a *PersistError. When refreshing a valid hit fails
// to persist, the path is still returned with ok set.
func (s *Store) TryGetOutput(ctx context.Context, key string) (string, bool, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return "", false, err
	}
	defer s.lock.Unlock()

	s.ensureLoaded()

	k := normalizeKey(key)
	rec, ok := s.records[k]
	if !ok {
		s.log.WithField("key", k).Debug("index miss")
		return "", false, nil
	}

	if !outputExists(rec.OutputPath) {
		s.log.WithFields(logrus.Fields{"key": k, "path": rec.OutputPath}).Info("evicting dangling index entry")
		err := s.apply(func(records map[string]record) {
			delete(records, k)
		})
		return "", false, err
	}

	now := s.now()
	err := s.apply(func(records map[string]record) {
		rec.LastUsedAt = now
		records[k] = rec
	})
	s.log.WithFields(logrus.Fields{"key": k, "path": rec.OutputPath}).Debug("index hit")
	return rec.OutputPath, true, err
}

// RegisterOutput records outputPath as the result for key and persists the
// index. Re-registering the same path keeps the original CreatedAt; a
// different path replaces the entry with a fresh one.
func (s *Store) RegisterOutput(ctx context.Context, key, outputPath string) error {
	k := normalizeKey(key)
	if k == "" {
		return errors.New("index: empty key")
	}
	if outputPath == "" {
		return errors.New("index: empty output path")
	}
	abs, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("index: resolving output path: %w", err)
	}

	if err := s.lock.Lock(ctx); err != nil {
		return err
	}
	defer s.lock.Unlock()

	s.ensureLoaded()

	now := s.now()
	rec := record{OutputPath: abs, CreatedAt: now, LastUsedAt: now}
	if prev, ok := s.records[k]; ok && prev.OutputPath == abs {
		rec.CreatedAt = prev.CreatedAt
	}

	if err := s.apply(func(records map[string]record) {
		records[k] = rec
	}); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"key": k, "path": abs}).Debug("index entry registered")
	return nil
}

// Evict removes the entry for key. It reports whether an entry was removed.
func (s *Store) Evict(ctx context.Context, key string) (bool, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return false, err
	}
	defer s.lock.Unlock()

	s.ensureLoaded()

	k := normalizeKey(key)
	if _, ok := s.records[k]; !ok {
		return false, nil
	}

	if err := s.apply(func(records map[string]record) {
		delete(records, k)
	}); err != nil {
		return false, err
	}
	return true, nil
}

// Prune removes every entry whose output file no longer exists and returns
// how many were removed. The file is only rewritten when something changed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return 0, err
	}
	defer s.lock.Unlock()

	s.ensureLoaded()

	var dangling []string
	for k, rec := range s.records {
		if !outputExists(rec.OutputPath) {
			dangling = append(dangling, k)
		}
	}
	if len(dangling) == 0 {
		return 0, nil
	}

	if err := s.apply(func(records map[string]record) {
		for _, k := range dangling {
			delete(records, k)
		}
	}); err != nil {
		return 0, err
	}

	s.log.WithField("entries", len(dangling)).Info("pruned dangling index entries")
	return len(dangling), nil
}

// Entries returns a copy of every entry, sorted by key. Entries are not
// validated against the filesystem.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer s.lock.Unlock()

	s.ensureLoaded()

	entries := make([]Entry, 0, len(s.records))
	for k, rec := range s.records {
		entries = append(entries, Entry{
			Key:        k,
			OutputPath: rec.OutputPath,
			CreatedAt:  rec.CreatedAt,
			LastUsedAt: rec.LastUsedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

// Len returns the number of entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.lock.Lock(ctx); err != nil {
		return 0, err
	}
	defer s.lock.Unlock()

	s.ensureLoaded()
	return len(s.records), nil
}

// ensureLoaded reads the index file on first use (must be called with lock
// held). An unreadable file is logged and treated as empty.
func (s *Store) ensureLoaded() {
	if s.loaded {
		return
	}
	s.loaded = true

	records, err := readIndex(s.path)
	if err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("ignoring unreadable index, starting empty")
		records = make(map[string]record)
	}
	s.records = records
}

// apply runs fn on a copy of the index and persists the result (must be
// called with lock held). The resident index is only replaced once the new
// document is on disk.
func (s *Store) apply(fn func(records map[string]record)) error {
	next := maps.Clone(s.records)
	if next == nil {
		next = make(map[string]record)
	}
	fn(next)

	if err := writeIndex(s.path, next, s.renameAttempts); err != nil {
		s.log.WithError(err).WithField("path", s.path).Error("failed to persist index")
		return err
	}

	s.records = next
	return nil
}
