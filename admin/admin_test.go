package admin

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docstore"
)

var testTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *docstore.Store) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "admin.json")
	store := docstore.New(path, DefaultDocument())

	require.NoError(t, store.Initialize())

	m := NewManager(store, withClock(func() time.Time { return testTime }))

	return m, store
}

// --- Users ---

func TestManager_CreateUser(t *testing.T) {
	m, _ := newTestManager(t)

	user, err := m.CreateUser("Admin User")
	require.NoError(t, err)

	require.Equal(t, int64(1), user.ID)
	require.Equal(t, "Admin User", user.Name)
	require.Equal(t, int64(0), user.Balance)
	require.Equal(t, testTime, user.CreatedAt)

	require.Len(t, user.HashCode, 12)

	for _, c := range user.HashCode {
		require.Contains(t, hashCodeCharset, string(c))
	}

	second, err := m.CreateUser("Second User")
	require.NoError(t, err)
	require.Equal(t, int64(2), second.ID)
	require.NotEqual(t, user.HashCode, second.HashCode)
}

func TestManager_UserByHash(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateUser("Lookup Target")
	require.NoError(t, err)

	found, err := m.UserByHash(created.HashCode)
	require.NoError(t, err)
	require.Equal(t, created, found)

	_, err = m.UserByHash("NOSUCHHASH00")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestManager_UpdateBalance(t *testing.T) {
	m, _ := newTestManager(t)

	user, err := m.CreateUser("Funded User")
	require.NoError(t, err)

	require.NoError(t, m.UpdateBalance(user.HashCode, 9999))

	found, err := m.UserByHash(user.HashCode)
	require.NoError(t, err)
	require.Equal(t, int64(9999), found.Balance)

	require.ErrorIs(t, m.UpdateBalance("NOSUCHHASH00", 1), ErrUserNotFound)
}

func TestManager_DeleteUser(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.CreateUser("Keep")
	require.NoError(t, err)

	b, err := m.CreateUser("Drop")
	require.NoError(t, err)

	require.NoError(t, m.DeleteUser(b.ID))

	users, err := m.Users()
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, a.ID, users[0].ID)

	require.ErrorIs(t, m.DeleteUser(b.ID), ErrUserNotFound)
}

// --- Demo usernames ---

func TestManager_UsernameLifecycle(t *testing.T) {
	m, _ := newTestManager(t)

	details := MobileDetails{
		FullName:       "Example Person",
		FatherName:     "Example Parent",
		DocumentNumber: "000000000000",
		Region:         "Example Region",
		Addresses:      []string{"First Street 1", "Second Street 2"},
		PhoneNumbers:   []string{"910000000001", "910000000002"},
	}

	created, err := m.AddUsername("demo_one", "9100000000", details)
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
	require.True(t, created.Active)
	require.Equal(t, details, created.MobileDetails)

	require.NoError(t, m.UpdateUsername(created.ID, "demo_renamed", "9200000000", details))

	usernames, err := m.Usernames()
	require.NoError(t, err)
	require.Len(t, usernames, 1)
	require.Equal(t, "demo_renamed", usernames[0].Username)
	require.Equal(t, "9200000000", usernames[0].MobileNumber)

	require.NoError(t, m.DeleteUsername(created.ID))

	usernames, err = m.Usernames()
	require.NoError(t, err)
	require.Empty(t, usernames)

	require.ErrorIs(t, m.UpdateUsername(99, "x", "y", details), ErrUsernameNotFound)
	require.ErrorIs(t, m.DeleteUsername(99), ErrUsernameNotFound)
}

// --- UTRs ---

func TestManager_UTRLifecycle(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.AddUTR("453983442711", "Valid UTR for demo deposits")
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
	require.True(t, created.Active)

	utrs, err := m.UTRs()
	require.NoError(t, err)
	require.Len(t, utrs, 1)
	require.Equal(t, "453983442711", utrs[0].UTR)

	require.NoError(t, m.DeleteUTR(created.ID))
	require.ErrorIs(t, m.DeleteUTR(created.ID), ErrUTRNotFound)
}

// --- Message and statistics ---

func TestManager_CustomMessage(t *testing.T) {
	m, _ := newTestManager(t)

	msg, err := m.CustomMessage()
	require.NoError(t, err)
	require.Equal(t, DefaultMessage, msg)

	require.NoError(t, m.SetCustomMessage("  check back soon  "))

	msg, err = m.CustomMessage()
	require.NoError(t, err)
	require.Equal(t, "check back soon", msg)
}

// TestManager_CustomMessage_BackfilledOnOldDocument verifies a document
// written before the custom_message key existed still yields the default.
func TestManager_CustomMessage_BackfilledOnOldDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.json")

	// Simulate an older shape by seeding through a store that doesn't
	// declare the message key.
	old := docstore.New(path, docstore.Document{"users": []any{}})
	require.NoError(t, old.Initialize())

	store := docstore.New(path, DefaultDocument())
	require.NoError(t, store.Initialize())

	m := NewManager(store)

	msg, err := m.CustomMessage()
	require.NoError(t, err)
	require.Equal(t, DefaultMessage, msg)
}

func TestManager_Stats(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.CreateUser("One")
	require.NoError(t, err)

	_, err = m.CreateUser("Two")
	require.NoError(t, err)

	_, err = m.AddUTR("111122223333", "first")
	require.NoError(t, err)

	stats, err := m.Stats()
	require.NoError(t, err)
	require.Equal(t, Stats{Users: 2, Usernames: 0, UTRs: 1}, stats)
}

// TestManager_PersistsAcrossReopen verifies collaborator data survives a new
// store handle over the same file.
func TestManager_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.json")

	store1 := docstore.New(path, DefaultDocument())
	require.NoError(t, store1.Initialize())

	m1 := NewManager(store1)

	created, err := m1.CreateUser("Durable User")
	require.NoError(t, err)

	store2 := docstore.New(path, DefaultDocument())
	m2 := NewManager(store2)

	found, err := m2.UserByHash(created.HashCode)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "Durable User", found.Name)
}

// --- Hash codes ---

func TestGenerateHashCode_Shape(t *testing.T) {
	code, err := generateHashCode()
	require.NoError(t, err)
	require.Len(t, code, hashCodeLength)
	require.Equal(t, strings.ToUpper(code), code)
}

func TestUniqueHashCode_AvoidsTaken(t *testing.T) {
	// Seed a user set and verify many generated codes never collide with it.
	users := []User{{HashCode: "AAAAAAAAAAAA"}, {HashCode: "BBBBBBBBBBBB"}}

	for i := 0; i < 50; i++ {
		code, err := uniqueHashCode(users)
		require.NoError(t, err)

		for _, u := range users {
			require.NotEqual(t, u.HashCode, code)
		}
	}
}

// TestManager_ErrorsPropagate verifies store failures reach the caller
// instead of being swallowed.
func TestManager_ErrorsPropagate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.json")
	store := docstore.New(path, DefaultDocument())

	// Never initialized and no file: reads must fail with the store's
	// not-found sentinel.
	m := NewManager(store)

	_, err := m.Users()
	require.True(t, errors.Is(err, docstore.ErrNotFound))
}
