package validation

import (
	"errors"
	"strings"
)

var commonPasswordFragments = []string{
	"password", "123456", "qwerty", "letmein", "welcome", "parallel",
}

// ValidatePassword enforces a 10 character minimum and the 72 byte bcrypt maximum.
func ValidatePassword(password string) error {
	if len(password) < 10 {
		return errors.New("password must be at least 10 characters")
	}
	if len(password) > 72 {
		return errors.New("password must not exceed 72 bytes")
	}

	lower := strings.ToLower(password)
	for _, fragment := range commonPasswordFragments {
		if strings.Contains(lower, fragment) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}
	return nil
}
