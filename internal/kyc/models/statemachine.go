package models

import (
	"errors"
	"fmt"
	"time"

	identity "kycgate/internal/identity/models"
	id "kycgate/pkg/domain"
)

var (
	// ErrAlreadyVerified means the user reached valid and accepts no new documents.
	ErrAlreadyVerified = errors.New("kyc already verified")
	// ErrInvalidTransition means the requested transition is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid kyc transition")
)

// Transitions:
//
//	no_documents -> validating
//	validating   -> valid | invalid
//	invalid      -> validating
//
// valid is terminal. kycVerifiedAt is set exactly when entering valid.

// CanAcceptUpload reports whether a user in status may submit a new document.
func CanAcceptUpload(status id.KycStatus) bool {
	return status != id.KycStatusValid
}

// StartVerification moves the user into validating.
func StartVerification(user *identity.User, now time.Time) (*identity.User, error) {
	if !CanAcceptUpload(user.KycStatus) {
		return nil, ErrAlreadyVerified
	}
	next := user.Clone()
	next.KycStatus = id.KycStatusValidating
	next.KycVerifiedAt = nil
	return next, nil
}

// CompleteVerification applies a classification outcome. Only legal from
// validating, and only towards valid or invalid.
func CompleteVerification(user *identity.User, outcome id.KycStatus, now time.Time) (*identity.User, error) {
	if user.KycStatus != id.KycStatusValidating {
		return nil, fmt.Errorf("%w: complete from %s", ErrInvalidTransition, user.KycStatus)
	}
	next := user.Clone()
	switch outcome {
	case id.KycStatusValid:
		next.KycStatus = id.KycStatusValid
		verifiedAt := now
		next.KycVerifiedAt = &verifiedAt
	case id.KycStatusInvalid:
		next.KycStatus = id.KycStatusInvalid
		next.KycVerifiedAt = nil
	default:
		return nil, fmt.Errorf("%w: outcome %s", ErrInvalidTransition, outcome)
	}
	return next, nil
}
