package domain

import dErrors "kycgate/pkg/domain-errors"

// KycStatus is a user's verification state and the status snapshot recorded
// on each document.
//
// Usage: construct via ParseKycStatus when reading persisted or external
// values; direct casting bypasses validation.
type KycStatus string

const (
	KycStatusNoDocuments KycStatus = "no_documents"
	KycStatusValidating  KycStatus = "validating"
	KycStatusValid       KycStatus = "valid"
	KycStatusInvalid     KycStatus = "invalid"
)

var validKycStatuses = map[KycStatus]bool{
	KycStatusNoDocuments: true,
	KycStatusValidating:  true,
	KycStatusValid:       true,
	KycStatusInvalid:     true,
}

// ParseKycStatus constructs a KycStatus from its wire form.
//
// Errors: returns CodeValidation when the value is empty or unknown.
func ParseKycStatus(s string) (KycStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "kyc status cannot be empty")
	}
	st := KycStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid kyc status")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported values.
func (s KycStatus) IsValid() bool {
	return validKycStatuses[s]
}

// IsTerminal reports whether a classification outcome has been recorded.
func (s KycStatus) IsTerminal() bool {
	return s == KycStatusValid || s == KycStatusInvalid
}

func (s KycStatus) String() string {
	return string(s)
}
