package accounts

import (
	"fmt"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func ValidateName(name string) error {
	if len(strings.TrimSpace(name)) < 3 {
		return validationErr("name", "must be at least 3 characters")
	}
	return nil
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)

	if email == "" {
		return validationErr("email", "is required")
	}

	if !emailPattern.MatchString(email) {
		return validationErr("email", "invalid email format")
	}

	return nil
}

func ValidatePassword(password string, minLength int) error {
	if password == "" {
		return validationErr("password", "is required")
	}

	if len(password) < minLength {
		return validationErr("password", fmt.Sprintf("must be at least %d characters", minLength))
	}

	return nil
}

func PasswordsMatch(password, confirm string) error {
	if password != confirm {
		return validationErr("confirmPassword", "passwords do not match")
	}
	return nil
}
