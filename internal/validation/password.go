// Package validation provides input validation utilities
package validation

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

var (
	digitRegex   = regexp.MustCompile(`[0-9]`)
	specialRegex = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
)

// ValidatePassword checks a password against the strict complexity rules.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	if n > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}
	return checkCharacterClasses(password)
}

func checkCharacterClasses(password string) error {
	hasUpper, hasLower := false, false
	for _, r := range password {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !digitRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one digit")
	}
	if !specialRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one special character (!@#$%%^&*)")
	}
	return nil
}

// PasswordPolicy is the configurable password rule set applied at registration.
type PasswordPolicy struct {
	MinLength         int
	RequireComplexity bool
}

// Check returns a user-facing error when password does not satisfy the policy.
func (p PasswordPolicy) Check(password string) error {
	minLength := p.MinLength
	if minLength < 1 {
		minLength = 1
	}
	if utf8.RuneCountInString(password) < minLength {
		return fmt.Errorf("password must be at least %d characters long", minLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}
	if p.RequireComplexity {
		return checkCharacterClasses(password)
	}
	return nil
}
