package authstub

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var errCodeMismatch = errors.New("code does not match")

// generateCode returns a 16 hex character code.
func generateCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashCode(code string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	return string(h), err
}

// compareCode matches case-insensitively since codes are hex.
func compareCode(code, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(lowerHex(code))); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errCodeMismatch
		}
		return err
	}
	return nil
}

func lowerHex(code string) string {
	b := []byte(code)
	for i, c := range b {
		if c >= 'A' && c <= 'F' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// isOutsideWindow reports whether t is older than ttl relative to now.
func isOutsideWindow(t, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return !t.After(now.Add(-ttl))
}
