package models

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	dErrors "kycgate/pkg/domain-errors"
)

const minPasswordLength = 6

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Normalize trims surrounding whitespace from email and phone. The password
// is a credential and is kept byte for byte.
func (r *RegisterRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

// Validate checks presence, then email, phone and password syntax, stopping
// at the first failure.
func (r *RegisterRequest) Validate() error {
	if r == nil || r.Email == "" || r.Password == "" || r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "Email, password, and phone number are required")
	}
	if !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "Invalid email format")
	}
	if !phonePattern.MatchString(r.Phone) {
		return dErrors.New(dErrors.CodeValidation, "Invalid phone number format")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "Password must be at least 6 characters long")
	}
	return nil
}
