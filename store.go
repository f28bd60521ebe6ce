// Package docstore provides durable, concurrency-safe persistence of one
// JSON document per collection, backed by a single file.
//
// Every write goes through a temp-file + fsync + atomic-rename sequence, so
// a reader observes either the old complete document or the new complete
// document, never a mixture. All operations additionally serialize through
// an in-process mutex and a cooperative advisory file lock, which makes the
// store safe both across goroutines and across processes sharing the same
// file. Compound read-modify-write sequences must run inside [Store.Update]
// so the lock covers the full span; issuing a separate [Store.Read] and
// [Store.Write] reproduces the classic lost-update race.
package docstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"docstore/internal/fs"
)

// tmpSuffix is appended to the collection path for the temporary file used
// by the write path. The temp file lives in the same directory as the
// target so the rename stays on one filesystem and therefore atomic.
const tmpSuffix = ".tmp"

// filePerms is the mode for collection files.
const filePerms = 0o644

// Store mediates all reads and writes of one collection file.
//
// Construct one Store per collection at process start and pass it by handle
// to every consumer; fresh unshared instances pointed at temporary files
// give isolated unit tests the same behavior.
type Store struct {
	path     string
	defaults Document
	cfg      Config
	log      *zap.Logger
	fsys     fs.FS

	// mu serializes all store operations in-process and is held for the
	// full read-modify-write span of Update.
	mu          sync.Mutex
	initialized bool
}

// Option configures a [Store].
type Option func(*Store)

// WithConfig sets the retry/locking policy. Defaults to [DefaultConfig].
func WithConfig(cfg Config) Option {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// withFS swaps the filesystem implementation. Used by tests to inject
// deterministic failures into individual write-path steps.
func withFS(fsys fs.FS) Option {
	return func(s *Store) {
		s.fsys = fsys
	}
}

// New returns a store for the collection file at path.
//
// defaults is the document seeded on first use; its top-level keys are the
// collection's declared keys and are backfilled on load when missing from
// an older file. The defaults are deep-copied on every seed, so the caller
// may reuse the value freely.
func New(path string, defaults Document, opts ...Option) *Store {
	s := &Store{
		path:     path,
		defaults: defaults,
		cfg:      DefaultConfig(),
		log:      zap.NewNop(),
		fsys:     fs.NewReal(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Path returns the collection file path.
func (s *Store) Path() string {
	return s.path
}

// Initialize creates the collection file with the default document if it
// does not exist, or loads it and persists a schema-backfilled copy if any
// declared key is missing. Calling it again on an up-to-date file is a
// no-op on content.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockFile()
	if err != nil {
		return err
	}
	defer unlock()

	return s.initializeLocked()
}

// Read returns the current document.
//
// Fails with [ErrNotFound] if the file is absent and the store was never
// initialized, and with [ErrDocumentCorrupt] if the contents are not a
// valid JSON object after the retry budget is exhausted.
func (s *Store) Read() (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockFile()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.readLocked()
}

// Write durably persists doc, fully replacing the prior contents.
//
// On return without error the data has been flushed to stable storage and
// atomically renamed into place; a concurrent or subsequent reader sees
// either the previous complete document or doc, never a mixture. Fails with
// [ErrStorage] after the retry budget is exhausted.
func (s *Store) Write(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockFile()
	if err != nil {
		return err
	}
	defer unlock()

	return s.writeLocked(doc)
}

// Update runs fn on the current document and persists the result, holding
// both the in-process mutex and the advisory file lock for the whole
// read-modify-write span. This is the only lost-update-safe way to perform
// compound operations such as "compute next id, append, persist".
//
// If fn returns an error, nothing is written and the error is returned
// unchanged.
func (s *Store) Update(fn func(Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockFile()
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	return s.writeLocked(doc)
}

// lockFile acquires the cross-process advisory lock for the collection.
// Callers must already hold s.mu.
func (s *Store) lockFile() (func(), error) {
	lock, err := s.fsys.Lock(s.path, s.cfg.LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: locking %s: %w", ErrStorage, s.path, err)
	}

	return func() { _ = lock.Close() }, nil
}

// initializeLocked implements Initialize. Callers hold both locks.
func (s *Store) initializeLocked() error {
	exists, err := s.fsys.Exists(s.path)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrStorage, s.path, err)
	}

	if !exists {
		if _, err := s.seedLocked(); err != nil {
			return err
		}

		s.log.Info("seeded collection", zap.String("path", s.path))
	} else {
		// Loading backfills missing declared keys and persists the result.
		if _, err := s.readLocked(); err != nil {
			return err
		}
	}

	s.initialized = true

	return nil
}

// seedLocked writes a fresh copy of the default document and returns it.
func (s *Store) seedLocked() (Document, error) {
	doc, err := s.defaults.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := s.writeLocked(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// readLocked implements the read path: bounded retries with linear backoff,
// first-attempt recovery, schema backfill. Callers hold both locks.
func (s *Store) readLocked() (Document, error) {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: attempt n waits n-1 backoff units.
			time.Sleep(time.Duration(attempt-1) * s.cfg.RetryDelay)
		}

		raw, err := s.fsys.ReadFile(s.path)
		if os.IsNotExist(err) {
			if !s.initialized {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
			}

			// File deleted out from under an initialized store. Re-seed on
			// the first attempt only. The seeded document is returned
			// directly: recovery must not consume the retry budget, or a
			// single-attempt store would re-seed the file and still error.
			if attempt == 1 && s.cfg.RecoverMissing {
				seeded, seedErr := s.seedLocked()
				if seedErr != nil {
					return nil, seedErr
				}

				s.log.Warn("collection file missing, re-seeded defaults",
					zap.String("path", s.path))

				return seeded, nil
			}

			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}

		if err != nil {
			lastErr = err
			s.log.Warn("read failed, retrying",
				zap.String("path", s.path),
				zap.Int("attempt", attempt),
				zap.Error(err))

			continue
		}

		var doc Document

		if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
			if err == nil {
				err = errNotObject
			}

			// A concurrent writer on a platform without atomic rename, or an
			// interrupted prior write, can make the file transiently appear
			// truncated. Retry before surfacing corruption.
			if attempt == 1 && s.cfg.RecoverCorrupt {
				seeded, seedErr := s.seedLocked()
				if seedErr != nil {
					return nil, seedErr
				}

				s.log.Warn("collection file unparseable, re-seeded defaults",
					zap.String("path", s.path),
					zap.Error(err))

				return seeded, nil
			}

			if attempt == s.cfg.MaxAttempts {
				return nil, fmt.Errorf("%w: %s: %w", ErrDocumentCorrupt, s.path, err)
			}

			lastErr = err
			s.log.Warn("parse failed, retrying",
				zap.String("path", s.path),
				zap.Int("attempt", attempt),
				zap.Error(err))

			continue
		}

		changed, err := s.backfill(doc)
		if err != nil {
			return nil, err
		}

		if changed {
			if err := s.writeLocked(doc); err != nil {
				return nil, err
			}

			s.log.Info("backfilled missing collection keys",
				zap.String("path", s.path))
		}

		s.initialized = true

		return doc, nil
	}

	return nil, fmt.Errorf("%w: reading %s: %w", ErrStorage, s.path, lastErr)
}

// backfill adds any declared-but-missing top-level key to doc with a deep
// copy of its default value. Reports whether doc was modified.
func (s *Store) backfill(doc Document) (bool, error) {
	changed := false

	for key, def := range s.defaults {
		if _, ok := doc[key]; ok {
			continue
		}

		var value any

		if err := roundTrip(def, &value); err != nil {
			return false, fmt.Errorf("%w: default for key %q: %w", ErrStorage, key, err)
		}

		doc[key] = value
		changed = true
	}

	return changed, nil
}

// writeLocked implements the write path: serialize, write temp file, fsync,
// atomic rename, with bounded retries and best-effort temp cleanup on
// failure. Callers hold both locks.
func (s *Store) writeLocked(doc Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrStorage)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		// Not transient, so not worth the retry budget.
		return fmt.Errorf("%w: encoding document: %w", ErrStorage, err)
	}

	raw = append(raw, '\n')
	tmp := s.path + tmpSuffix

	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(attempt-1) * s.cfg.RetryDelay)
		}

		err := s.replaceFile(tmp, raw)
		if err == nil {
			s.initialized = true

			return nil
		}

		lastErr = err

		// Best-effort cleanup so a failed attempt never leaves a temp
		// file behind.
		if exists, existsErr := s.fsys.Exists(tmp); existsErr == nil && exists {
			_ = s.fsys.Remove(tmp)
		}

		s.log.Warn("write failed, retrying",
			zap.String("path", s.path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return fmt.Errorf("%w: writing %s: %w", ErrStorage, s.path, lastErr)
}

// replaceFile performs one temp-write/fsync/rename sequence.
func (s *Store) replaceFile(tmp string, raw []byte) error {
	f, err := s.fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerms)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := f.Write(raw); err != nil {
		_ = f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	// No write is durable until it reaches stable storage.
	if err := f.Sync(); err != nil {
		_ = f.Close()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	// The rename is what makes the replacement atomic: a reader sees the
	// old file or the new file, never a partial write.
	if err := s.fsys.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing collection file: %w", err)
	}

	return nil
}
