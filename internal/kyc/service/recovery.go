package service

import (
	"context"
	"errors"
	"time"

	"kycgate/internal/audit"
	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// RecoverInterrupted finalizes verifications a previous process accepted but
// never completed. Their documents become invalid with reason
// verification_interrupted and the owners move to invalid so they can retry.
// Users whose lease is held elsewhere are skipped. Returns the number of
// users recovered.
func (s *Service) RecoverInterrupted(ctx context.Context) (int, error) {
	pending, err := s.documents.ListByStatus(ctx, id.KycStatusValidating)
	if err != nil {
		return 0, err
	}

	byUser := make(map[id.UserID][]id.DocumentID)
	var order []id.UserID
	for _, doc := range pending {
		if _, seen := byUser[doc.UserID]; !seen {
			order = append(order, doc.UserID)
		}
		byUser[doc.UserID] = append(byUser[doc.UserID], doc.ID)
	}

	recovered := 0
	for _, userID := range order {
		ok, err := s.recoverUser(ctx, userID, byUser[userID])
		if err != nil {
			return recovered, err
		}
		if ok {
			recovered++
		}
	}
	if recovered > 0 {
		s.logger.InfoContext(ctx, "recovered interrupted kyc verifications", "users", recovered)
	}
	return recovered, nil
}

func (s *Service) recoverUser(ctx context.Context, userID id.UserID, docIDs []id.DocumentID) (bool, error) {
	lease, err := s.locker.TryAcquire(ctx, userID)
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer s.release(ctx, lease, userID)

	if err := s.interruptUser(ctx, userID, docIDs, time.Now().UTC()); err != nil {
		return false, err
	}
	s.emitRecovered(ctx, userID, docIDs)
	return true, nil
}

// settleStranded finalizes a verification whose lease lapsed before it
// recorded an outcome. Callers must hold the user's lease.
func (s *Service) settleStranded(ctx context.Context, userID id.UserID) error {
	docs, err := s.documents.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	var docIDs []id.DocumentID
	for _, doc := range docs {
		if !doc.IsClassified() {
			docIDs = append(docIDs, doc.ID)
		}
	}
	if err := s.interruptUser(ctx, userID, docIDs, requestcontext.Now(ctx).UTC()); err != nil {
		return err
	}
	s.emitRecovered(ctx, userID, docIDs)
	s.logger.WarnContext(ctx, "settled stranded kyc verification",
		"user_id", userID.String(),
		"documents", len(docIDs),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// interruptUser moves the user out of validating and finalizes docIDs as
// interrupted in one transaction. The user write is undone if the documents
// cannot be marked.
func (s *Service) interruptUser(ctx context.Context, userID id.UserID, docIDs []id.DocumentID, now time.Time) error {
	return s.tx.RunInTx(withTxUser(ctx, userID), func(ctx context.Context) error {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		moved := user.KycStatus == id.KycStatusValidating
		if moved {
			next, err := models.CompleteVerification(user, id.KycStatusInvalid, now)
			if err != nil {
				return err
			}
			if err := s.users.UpdateKycState(ctx, next); err != nil {
				return err
			}
		}
		if _, err := s.documents.MarkInvalid(ctx, docIDs, models.ReasonInterrupted, now); err != nil {
			if moved {
				return s.restoreUser(ctx, user, err)
			}
			return err
		}
		return nil
	})
}

func (s *Service) emitRecovered(ctx context.Context, userID id.UserID, docIDs []id.DocumentID) {
	for _, docID := range docIDs {
		s.emit(ctx, audit.Event{
			UserID:     userID,
			DocumentID: docID.String(),
			Action:     audit.EventKycVerificationRecovered,
			Decision:   id.KycStatusInvalid.String(),
			Reason:     models.ReasonInterrupted,
		})
	}
}
