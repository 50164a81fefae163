package library

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

const minPasswordLength = 8

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool { return strings.TrimSpace(s) == "" }

// IsValidEmail checks the loose local@domain shape accepted at registration.
func IsValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// IsStrongPassword requires at least eight characters including an ASCII
// digit, lowercase and uppercase letter.
func IsStrongPassword(password string) bool {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return false
	}
	var digit, lower, upper bool
	for _, r := range password {
		switch {
		case '0' <= r && r <= '9':
			digit = true
		case 'a' <= r && r <= 'z':
			lower = true
		case 'A' <= r && r <= 'Z':
			upper = true
		}
	}
	return digit && lower && upper
}

func requireFields(values ...string) error {
	for _, v := range values {
		if IsBlank(v) {
			return ErrRequiredField
		}
	}
	return nil
}

func validateEmail(email string) error {
	if !IsValidEmail(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if !IsStrongPassword(password) {
		return ErrWeakPassword
	}
	return nil
}
