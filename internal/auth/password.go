// Package auth hashes and verifies account passwords.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// ErrUnknownHashFormat is returned for stored hashes that are neither bcrypt nor Werkzeug PBKDF2.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

const (
	legacyPrefix            = "pbkdf2:sha256"
	legacyDefaultIterations = 260000
)

// PasswordHasher hashes new passwords with bcrypt and verifies both bcrypt and legacy
// Werkzeug "pbkdf2:sha256:<iterations>$<salt>$<hex>" hashes.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of raw.
func (h *PasswordHasher) Hash(raw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether raw matches hash. needsRehash is set for matches that should be
// stored again with the current algorithm and cost.
func (h *PasswordHasher) Verify(hash, raw string) (ok bool, needsRehash bool, err error) {
	if strings.HasPrefix(hash, legacyPrefix) {
		ok, err = verifyLegacy(hash, raw)
		return ok, ok, err
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, false, ErrUnknownHashFormat
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, cost < h.cost, nil
}

func verifyLegacy(hash, raw string) (bool, error) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 {
		return false, ErrUnknownHashFormat
	}
	method, salt, expectedHex := parts[0], parts[1], parts[2]

	iterations := legacyDefaultIterations
	if rest := strings.TrimPrefix(method, legacyPrefix); rest != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(rest, ":"))
		if err != nil || n <= 0 || !strings.HasPrefix(rest, ":") {
			return false, ErrUnknownHashFormat
		}
		iterations = n
	}

	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		return false, ErrUnknownHashFormat
	}

	derived := pbkdf2.Key([]byte(raw), []byte(salt), iterations, sha256.Size, sha256.New)
	return subtle.ConstantTimeCompare(derived, expected) == 1, nil
}
