package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "kycgate/internal/identity/models"
	id "kycgate/pkg/domain"
)

func userIn(status id.KycStatus) *identity.User {
	u := identity.NewUser(id.NewUserID(), "jane@example.com", "+15551234567", "hash", time.Now())
	u.KycStatus = status
	if status == id.KycStatusValid {
		t := time.Now()
		u.KycVerifiedAt = &t
	}
	return u
}

func TestCanAcceptUpload(t *testing.T) {
	assert.True(t, CanAcceptUpload(id.KycStatusNoDocuments))
	assert.True(t, CanAcceptUpload(id.KycStatusValidating))
	assert.True(t, CanAcceptUpload(id.KycStatusInvalid))
	assert.False(t, CanAcceptUpload(id.KycStatusValid))
}

func TestStartVerification(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for _, from := range []id.KycStatus{id.KycStatusNoDocuments, id.KycStatusInvalid} {
		t.Run("from "+from.String(), func(t *testing.T) {
			user := userIn(from)
			next, err := StartVerification(user, now)
			require.NoError(t, err)
			assert.Equal(t, id.KycStatusValidating, next.KycStatus)
			assert.Nil(t, next.KycVerifiedAt)
			assert.Equal(t, from, user.KycStatus, "input must not be mutated")
		})
	}

	t.Run("rejects verified users", func(t *testing.T) {
		_, err := StartVerification(userIn(id.KycStatusValid), now)
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})
}

func TestCompleteVerification(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 30, 0, time.UTC)

	t.Run("valid sets verification time", func(t *testing.T) {
		next, err := CompleteVerification(userIn(id.KycStatusValidating), id.KycStatusValid, now)
		require.NoError(t, err)
		assert.Equal(t, id.KycStatusValid, next.KycStatus)
		require.NotNil(t, next.KycVerifiedAt)
		assert.Equal(t, now, *next.KycVerifiedAt)
	})

	t.Run("invalid leaves verification time empty", func(t *testing.T) {
		next, err := CompleteVerification(userIn(id.KycStatusValidating), id.KycStatusInvalid, now)
		require.NoError(t, err)
		assert.Equal(t, id.KycStatusInvalid, next.KycStatus)
		assert.Nil(t, next.KycVerifiedAt)
	})

	t.Run("only legal from validating", func(t *testing.T) {
		for _, from := range []id.KycStatus{id.KycStatusNoDocuments, id.KycStatusValid, id.KycStatusInvalid} {
			_, err := CompleteVerification(userIn(from), id.KycStatusValid, now)
			assert.ErrorIs(t, err, ErrInvalidTransition, from.String())
		}
	})

	t.Run("rejects non-terminal outcomes", func(t *testing.T) {
		for _, outcome := range []id.KycStatus{id.KycStatusValidating, id.KycStatusNoDocuments, ""} {
			_, err := CompleteVerification(userIn(id.KycStatusValidating), outcome, now)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	})
}

func TestVerifiedAtInvariantAcrossRetries(t *testing.T) {
	now := time.Now()
	user := userIn(id.KycStatusNoDocuments)

	user, err := StartVerification(user, now)
	require.NoError(t, err)
	user, err = CompleteVerification(user, id.KycStatusInvalid, now)
	require.NoError(t, err)
	assert.Nil(t, user.KycVerifiedAt)

	user, err = StartVerification(user, now)
	require.NoError(t, err)
	user, err = CompleteVerification(user, id.KycStatusValid, now)
	require.NoError(t, err)
	assert.NotNil(t, user.KycVerifiedAt)

	_, err = StartVerification(user, now)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestNewDocument(t *testing.T) {
	docID := id.NewDocumentID()
	userID := id.NewUserID()
	now := time.Now()

	doc := NewDocument(docID, userID, Upload{Content: []byte("%PDF-1.4"), OriginalName: "Passport.PDF", ContentType: "application/pdf"}, now)

	assert.Equal(t, docID.String()+".pdf", doc.Filename)
	assert.Equal(t, "Passport.PDF", doc.OriginalName)
	assert.Equal(t, int64(8), doc.SizeBytes)
	assert.Equal(t, id.KycStatusValidating, doc.Status)
	assert.False(t, doc.IsClassified())

	doc.ApplyOutcome(Invalid(ReasonRejected), now)
	assert.True(t, doc.IsClassified())
	assert.Equal(t, ReasonRejected, doc.Reason)
	require.NotNil(t, doc.ClassifiedAt)
}
