// Package searchlog records usernames that were searched but not found, so
// an operator can review demand and promote entries to real records.
package searchlog

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"docstore"
)

// keyEntries is the declared top-level key of the log collection.
const keyEntries = "searched_usernames"

// StatusNotFound marks an entry whose search produced no result.
const StatusNotFound = "not_found"

// noMobileNumber is the display placeholder for legacy entries recorded
// before the mobile_number field existed.
const noMobileNumber = "Not Available"

// Entry is one logged search.
type Entry struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	SearchedBy   string    `json:"searched_by"`
	SearchedAt   time.Time `json:"searched_at"`
	Status       string    `json:"status"`
	MobileNumber string    `json:"mobile_number,omitempty"`
}

// DefaultDocument returns the log collection's declared keys and defaults.
func DefaultDocument() docstore.Document {
	return docstore.Document{
		keyEntries: []any{},
	}
}

// Manager is the typed surface over the search-log collection.
type Manager struct {
	store *docstore.Store
	log   *zap.Logger
	now   func() time.Time
}

// Option configures a [Manager].
type Option func(*Manager)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// withClock overrides the timestamp source. Used by tests.
func withClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager returns a manager over store. The store should be built with
// [DefaultDocument] as its defaults.
func NewManager(store *docstore.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Add logs a username that produced no search result, attributed to the
// user hash that searched it. Usernames are deduplicated case-insensitively;
// logging an already-recorded username is a no-op.
func (m *Manager) Add(username, searchedBy string) error {
	return m.store.Update(func(doc docstore.Document) error {
		var entries []Entry

		if err := doc.Decode(keyEntries, &entries); err != nil {
			return err
		}

		for _, e := range entries {
			if strings.EqualFold(e.Username, username) {
				return nil
			}
		}

		id, err := doc.NextID(keyEntries)
		if err != nil {
			return err
		}

		entry := Entry{
			ID:         id,
			Username:   username,
			SearchedBy: searchedBy,
			SearchedAt: m.now().UTC(),
			Status:     StatusNotFound,
		}

		m.log.Info("logged unmatched search",
			zap.String("username", username))

		return doc.Set(keyEntries, append(entries, entry))
	})
}

// Entries returns all logged searches. Entries recorded without a mobile
// number get the display placeholder.
func (m *Manager) Entries() ([]Entry, error) {
	doc, err := m.store.Read()
	if err != nil {
		return nil, err
	}

	var entries []Entry

	if err := doc.Decode(keyEntries, &entries); err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].MobileNumber == "" {
			entries[i].MobileNumber = noMobileNumber
		}
	}

	return entries, nil
}

// Delete removes the entry with the given id. Deleting an unknown id is a
// no-op, matching the tolerant semantics of the admin review surface.
func (m *Manager) Delete(id int64) error {
	return m.store.Update(func(doc docstore.Document) error {
		var entries []Entry

		if err := doc.Decode(keyEntries, &entries); err != nil {
			return err
		}

		kept := entries[:0]

		for _, e := range entries {
			if e.ID != id {
				kept = append(kept, e)
			}
		}

		return doc.Set(keyEntries, kept)
	})
}
