package admin

import (
	"crypto/rand"
	"fmt"
)

// Hash code shape: 12 uppercase-alphanumeric characters.
const (
	hashCodeLength  = 12
	hashCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxHashAttempts bounds the uniqueness loop. With a 36^12 space the
	// limit exists only to turn a broken random source into an error
	// instead of a hang.
	maxHashAttempts = 100
)

// generateHashCode returns a random 12-character uppercase-alphanumeric code.
func generateHashCode() (string, error) {
	buf := make([]byte, hashCodeLength)

	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = hashCodeCharset[int(b)%len(hashCodeCharset)]
	}

	return string(buf), nil
}

// uniqueHashCode generates a hash code not used by any existing user.
// Must be called inside the same Update transaction that appends the user,
// or two concurrent creates could both pick the same code.
func uniqueHashCode(users []User) (string, error) {
	taken := make(map[string]struct{}, len(users))

	for _, u := range users {
		taken[u.HashCode] = struct{}{}
	}

	for attempt := 0; attempt < maxHashAttempts; attempt++ {
		code, err := generateHashCode()
		if err != nil {
			return "", err
		}

		if _, ok := taken[code]; !ok {
			return code, nil
		}
	}

	return "", ErrHashExhausted
}
