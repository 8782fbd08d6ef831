package models

import (
	"path/filepath"
	"strings"
	"time"

	id "kycgate/pkg/domain"
)

// Reasons recorded on documents classified invalid.
const (
	ReasonRejected              = "document_rejected"
	ReasonUnreadable            = "document_unreadable"
	ReasonClassificationFailed  = "classification_failed"
	ReasonClassificationTimeout = "classification_timeout"
	ReasonInterrupted           = "verification_interrupted"
)

// Document is one uploaded verification attempt.
//
// Invariants:
//   - Status is validating until classification completes, then valid or invalid
//   - Once classified the document is never modified again
//   - Filename is server-generated and unique; OriginalName is kept for audit only
type Document struct {
	ID           id.DocumentID
	UserID       id.UserID
	Filename     string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	Status       id.KycStatus
	Reason       string
	UploadedAt   time.Time
	ClassifiedAt *time.Time
}

// NewDocument records a freshly uploaded document awaiting classification.
// The storage name keeps the client's extension.
func NewDocument(docID id.DocumentID, userID id.UserID, upload Upload, now time.Time) *Document {
	return &Document{
		ID:           docID,
		UserID:       userID,
		Filename:     StorageName(docID, upload.OriginalName),
		OriginalName: upload.OriginalName,
		ContentType:  upload.ContentType,
		SizeBytes:    int64(len(upload.Content)),
		Status:       id.KycStatusValidating,
		UploadedAt:   now,
	}
}

// StorageName derives the blob name for a document.
func StorageName(docID id.DocumentID, originalName string) string {
	return docID.String() + strings.ToLower(filepath.Ext(originalName))
}

// IsClassified reports whether the document reached a terminal status.
func (d *Document) IsClassified() bool {
	return d.Status.IsTerminal()
}

// ApplyOutcome snapshots the classification result onto the document.
func (d *Document) ApplyOutcome(outcome Outcome, now time.Time) {
	d.Status = outcome.Status
	d.Reason = outcome.Reason
	d.ClassifiedAt = &now
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.ClassifiedAt != nil {
		t := *d.ClassifiedAt
		c.ClassifiedAt = &t
	}
	return &c
}

// Upload is a document as received from a client.
type Upload struct {
	Content      []byte
	OriginalName string
	ContentType  string
}

// Outcome is the classifier's verdict for one document.
type Outcome struct {
	Status id.KycStatus
	Reason string
}

// Valid and Invalid build outcomes.
func Valid() Outcome { return Outcome{Status: id.KycStatusValid} }

func Invalid(reason string) Outcome {
	return Outcome{Status: id.KycStatusInvalid, Reason: reason}
}

// Status is the read model served to polling clients.
type Status struct {
	KycStatus     id.KycStatus
	KycVerifiedAt *time.Time
	Documents     []*Document
}
