// Package admin manages the admin collection: panel users, searchable demo
// usernames, valid UTRs, and the custom not-found message.
//
// Every mutation runs inside a single [docstore.Store.Update] transaction so
// identifier assignment and appends are safe against lost updates.
package admin

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"docstore"
)

// Declared top-level keys of the admin collection.
const (
	keyUsers     = "users"
	keyUsernames = "demo_usernames"
	keyUTRs      = "valid_utrs"
	keyMessage   = "custom_message"
)

// DefaultMessage is shown to end users when a search finds nothing.
const DefaultMessage = "No details available in the database, but we are working on it. Your search has been logged."

// Errors returned by admin operations.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameNotFound = errors.New("demo username not found")
	ErrUTRNotFound      = errors.New("UTR not found")
	ErrHashExhausted    = errors.New("no unique hash code after repeated attempts")
)

// User is a panel user identified by a hash code.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	HashCode  string    `json:"hash_code"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// MobileDetails holds the record shown for a demo username.
type MobileDetails struct {
	FullName       string   `json:"full_name"`
	FatherName     string   `json:"father_name"`
	DocumentNumber string   `json:"document_number"`
	Region         string   `json:"region"`
	Addresses      []string `json:"addresses"`
	PhoneNumbers   []string `json:"phone_numbers"`
}

// DemoUsername is a username the search surface resolves to a canned record.
type DemoUsername struct {
	ID            int64         `json:"id"`
	Username      string        `json:"username"`
	MobileNumber  string        `json:"mobile_number"`
	MobileDetails MobileDetails `json:"mobile_details"`
	Active        bool          `json:"active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// UTR is a transaction reference accepted for demo deposits.
type UTR struct {
	ID          int64     `json:"id"`
	UTR         string    `json:"utr"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats summarizes the collection.
type Stats struct {
	Users     int `json:"users"`
	Usernames int `json:"usernames"`
	UTRs      int `json:"utrs"`
}

// DefaultDocument returns the admin collection's declared keys and defaults.
func DefaultDocument() docstore.Document {
	return docstore.Document{
		keyUsers:     []any{},
		keyUsernames: []any{},
		keyUTRs:      []any{},
		keyMessage:   DefaultMessage,
	}
}

// Manager is the typed CRUD surface over the admin collection.
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

// --- Users ---

// CreateUser adds a user with a freshly generated unique hash code and a
// zero balance.
func (m *Manager) CreateUser(name string) (User, error) {
	var created User

	err := m.store.Update(func(doc docstore.Document) error {
		var users []User

		if err := doc.Decode(keyUsers, &users); err != nil {
			return err
		}

		code, err := uniqueHashCode(users)
		if err != nil {
			return err
		}

		id, err := doc.NextID(keyUsers)
		if err != nil {
			return err
		}

		created = User{
			ID:        id,
			Name:      name,
			HashCode:  code,
			Balance:   0,
			CreatedAt: m.now().UTC(),
		}

		return doc.Set(keyUsers, append(users, created))
	})
	if err != nil {
		return User{}, err
	}

	m.log.Info("created user",
		zap.Int64("id", created.ID),
		zap.String("name", created.Name))

	return created, nil
}

// Users returns all users.
func (m *Manager) Users() ([]User, error) {
	doc, err := m.store.Read()
	if err != nil {
		return nil, err
	}

	var users []User

	if err := doc.Decode(keyUsers, &users); err != nil {
		return nil, err
	}

	return users, nil
}

// UserByHash returns the user with the given hash code.
func (m *Manager) UserByHash(hashCode string) (User, error) {
	users, err := m.Users()
	if err != nil {
		return User{}, err
	}

	for _, u := range users {
		if u.HashCode == hashCode {
			return u, nil
		}
	}

	return User{}, ErrUserNotFound
}

// UpdateBalance sets the balance of the user with the given hash code.
func (m *Manager) UpdateBalance(hashCode string, balance int64) error {
	return m.store.Update(func(doc docstore.Document) error {
		var users []User

		if err := doc.Decode(keyUsers, &users); err != nil {
			return err
		}

		for i := range users {
			if users[i].HashCode == hashCode {
				users[i].Balance = balance

				return doc.Set(keyUsers, users)
			}
		}

		return ErrUserNotFound
	})
}

// DeleteUser removes the user with the given id.
func (m *Manager) DeleteUser(id int64) error {
	return m.store.Update(func(doc docstore.Document) error {
		var users []User

		if err := doc.Decode(keyUsers, &users); err != nil {
			return err
		}

		kept := users[:0]

		for _, u := range users {
			if u.ID != id {
				kept = append(kept, u)
			}
		}

		if len(kept) == len(users) {
			return ErrUserNotFound
		}

		return doc.Set(keyUsers, kept)
	})
}

// --- Demo usernames ---

// Usernames returns all searchable demo usernames.
func (m *Manager) Usernames() ([]DemoUsername, error) {
	doc, err := m.store.Read()
	if err != nil {
		return nil, err
	}

	var usernames []DemoUsername

	if err := doc.Decode(keyUsernames, &usernames); err != nil {
		return nil, err
	}

	return usernames, nil
}

// AddUsername adds a searchable demo username.
func (m *Manager) AddUsername(username, mobileNumber string, details MobileDetails) (DemoUsername, error) {
	var created DemoUsername

	err := m.store.Update(func(doc docstore.Document) error {
		var usernames []DemoUsername

		if err := doc.Decode(keyUsernames, &usernames); err != nil {
			return err
		}

		id, err := doc.NextID(keyUsernames)
		if err != nil {
			return err
		}

		created = DemoUsername{
			ID:            id,
			Username:      username,
			MobileNumber:  mobileNumber,
			MobileDetails: details,
			Active:        true,
			CreatedAt:     m.now().UTC(),
		}

		return doc.Set(keyUsernames, append(usernames, created))
	})
	if err != nil {
		return DemoUsername{}, err
	}

	return created, nil
}

// UpdateUsername replaces the username, mobile number, and details of an
// existing record.
func (m *Manager) UpdateUsername(id int64, username, mobileNumber string, details MobileDetails) error {
	return m.store.Update(func(doc docstore.Document) error {
		var usernames []DemoUsername

		if err := doc.Decode(keyUsernames, &usernames); err != nil {
			return err
		}

		for i := range usernames {
			if usernames[i].ID == id {
				usernames[i].Username = username
				usernames[i].MobileNumber = mobileNumber
				usernames[i].MobileDetails = details

				return doc.Set(keyUsernames, usernames)
			}
		}

		return ErrUsernameNotFound
	})
}

// DeleteUsername removes the record with the given id.
func (m *Manager) DeleteUsername(id int64) error {
	return m.store.Update(func(doc docstore.Document) error {
		var usernames []DemoUsername

		if err := doc.Decode(keyUsernames, &usernames); err != nil {
			return err
		}

		kept := usernames[:0]

		for _, u := range usernames {
			if u.ID != id {
				kept = append(kept, u)
			}
		}

		if len(kept) == len(usernames) {
			return ErrUsernameNotFound
		}

		return doc.Set(keyUsernames, kept)
	})
}

// --- UTRs ---

// UTRs returns all valid UTRs.
func (m *Manager) UTRs() ([]UTR, error) {
	doc, err := m.store.Read()
	if err != nil {
		return nil, err
	}

	var utrs []UTR

	if err := doc.Decode(keyUTRs, &utrs); err != nil {
		return nil, err
	}

	return utrs, nil
}

// AddUTR adds a valid UTR.
func (m *Manager) AddUTR(utr, description string) (UTR, error) {
	var created UTR

	err := m.store.Update(func(doc docstore.Document) error {
		var utrs []UTR

		if err := doc.Decode(keyUTRs, &utrs); err != nil {
			return err
		}

		id, err := doc.NextID(keyUTRs)
		if err != nil {
			return err
		}

		created = UTR{
			ID:          id,
			UTR:         utr,
			Description: description,
			Active:      true,
			CreatedAt:   m.now().UTC(),
		}

		return doc.Set(keyUTRs, append(utrs, created))
	})
	if err != nil {
		return UTR{}, err
	}

	return created, nil
}

// DeleteUTR removes the UTR with the given id.
func (m *Manager) DeleteUTR(id int64) error {
	return m.store.Update(func(doc docstore.Document) error {
		var utrs []UTR

		if err := doc.Decode(keyUTRs, &utrs); err != nil {
			return err
		}

		kept := utrs[:0]

		for _, u := range utrs {
			if u.ID != id {
				kept = append(kept, u)
			}
		}

		if len(kept) == len(utrs) {
			return ErrUTRNotFound
		}

		return doc.Set(keyUTRs, kept)
	})
}

// --- Message and statistics ---

// CustomMessage returns the configured not-found message.
func (m *Manager) CustomMessage() (string, error) {
	doc, err := m.store.Read()
	if err != nil {
		return "", err
	}

	msg := DefaultMessage

	if err := doc.Decode(keyMessage, &msg); err != nil {
		return "", err
	}

	return msg, nil
}

// SetCustomMessage replaces the not-found message. Leading and trailing
// whitespace is trimmed.
func (m *Manager) SetCustomMessage(message string) error {
	return m.store.Update(func(doc docstore.Document) error {
		return doc.Set(keyMessage, strings.TrimSpace(message))
	})
}

// Stats returns record counts per key.
func (m *Manager) Stats() (Stats, error) {
	doc, err := m.store.Read()
	if err != nil {
		return Stats{}, err
	}

	var (
		users     []User
		usernames []DemoUsername
		utrs      []UTR
	)

	if err := doc.Decode(keyUsers, &users); err != nil {
		return Stats{}, err
	}

	if err := doc.Decode(keyUsernames, &usernames); err != nil {
		return Stats{}, err
	}

	if err := doc.Decode(keyUTRs, &utrs); err != nil {
		return Stats{}, err
	}

	return Stats{
		Users:     len(users),
		Usernames: len(usernames),
		UTRs:      len(utrs),
	}, nil
}
