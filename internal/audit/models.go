package audit

import (
	"time"

	id "kycgate/pkg/domain"
)

// EventCategory classifies audit events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance:
	// registrations and verification outcomes.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine pipeline activity.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventUserRegistered           AuditEvent = "user_registered"
	EventKycDocumentUploaded      AuditEvent = "kyc_document_uploaded"
	EventKycVerified              AuditEvent = "kyc_verified"
	EventKycRejected              AuditEvent = "kyc_rejected"
	EventKycVerificationRecovered AuditEvent = "kyc_verification_recovered"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered:           CategoryCompliance,
	EventKycVerified:              CategoryCompliance,
	EventKycRejected:              CategoryCompliance,
	EventKycVerificationRecovered: CategoryCompliance,
	EventKycDocumentUploaded:      CategoryOperations,
}

// Category returns the category of an action, defaulting to operations.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
	UserID     id.UserID     `json:"user_id"`
	DocumentID string        `json:"document_id,omitempty"`
	Action     AuditEvent    `json:"action"`
	Decision   string        `json:"decision,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Email      string        `json:"email,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
}
