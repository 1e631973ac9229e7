// Package validation holds the credential format checks applied before any
// store access: email grammar and password strength.
package validation

import (
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength is counted in runes.
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// ValidateEmail reports whether s is a well-formed address with a dotted
// domain, e.g. "test@gmail.com". "test", "test@" and "test@gmail" fail.
func ValidateEmail(s string) bool {
	if err := get().Var(s, "required,email"); err != nil {
		return false
	}

	at := strings.LastIndexByte(s, '@')
	if at <= 0 {
		return false
	}
	domain := s[at+1:]
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && !strings.HasSuffix(domain, ".")
}

// ValidatePassword reports whether s is at least MinPasswordLength runes
// long, fits in MaxPasswordBytes and contains a character that is neither a
// letter nor a digit. "test123!" passes; "test" and "test1234" fail.
func ValidatePassword(s string) bool {
	if len(s) > MaxPasswordBytes {
		return false
	}
	if err := get().Var(s, "min=8"); err != nil {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
