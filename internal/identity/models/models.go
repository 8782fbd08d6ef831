package models

import (
	"strings"
	"time"

	id "kycgate/pkg/domain"
)

// User is a registered identity.
//
// Invariants:
//   - Email and Phone are unique across all users (email case-insensitively)
//   - KycVerifiedAt is set iff KycStatus is valid
//   - KycStatus and KycVerifiedAt change only through the verification state machine
//   - Users are never deleted
type User struct {
	ID            id.UserID
	Email         string
	Phone         string
	PasswordHash  string
	CreatedAt     time.Time
	KycStatus     id.KycStatus
	KycVerifiedAt *time.Time
}

// NewUser builds a freshly registered user with no verification history.
func NewUser(userID id.UserID, email, phone, passwordHash string, now time.Time) *User {
	return &User{
		ID:           userID,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		KycStatus:    id.KycStatusNoDocuments,
	}
}

// EmailKey is the value the email uniqueness index is keyed by.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.KycVerifiedAt != nil {
		t := *u.KycVerifiedAt
		c.KycVerifiedAt = &t
	}
	return &c
}
