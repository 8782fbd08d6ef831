package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycgate/internal/audit"
	"kycgate/internal/kyc/lock"
	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

// UploadDocument accepts a document for verification and returns as soon as
// the user is durably in validating. Classification continues in the
// background and holds the user's verification lock until it completes.
func (s *Service) UploadDocument(ctx context.Context, rawUserID string, upload models.Upload) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "kyc.upload")
	defer span.End()

	doc, err := s.upload(ctx, rawUserID, upload)
	if err != nil {
		s.metrics.IncrementUpload(uploadResult(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload rejected")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("kyc.user_id", doc.UserID.String()),
		attribute.String("kyc.document_id", doc.ID.String()),
	)
	s.metrics.IncrementUpload("accepted")
	return doc, nil
}

func (s *Service) upload(ctx context.Context, rawUserID string, upload models.Upload) (*models.Document, error) {
	user, err := s.loadUser(ctx, rawUserID)
	if err != nil {
		return nil, err
	}
	if !models.CanAcceptUpload(user.KycStatus) {
		return nil, dErrors.New(dErrors.CodeStateConflict, msgAlreadyVerified)
	}

	lease, err := s.acquire(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	handedOff := false
	defer func() {
		if !handedOff {
			s.release(ctx, lease, user.ID)
		}
	}()

	// A classification may have finished between the first read and the lock.
	user, err = s.findUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if user.KycStatus == id.KycStatusValidating {
		// Validating without a live lease: the previous verification lost its
		// lease or gave up persisting. Settle it before starting a new one.
		if err := s.settleStranded(ctx, user.ID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to settle previous verification")
		}
		if user, err = s.findUser(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	next, err := models.StartVerification(user, requestcontext.Now(ctx).UTC())
	if err != nil {
		return nil, dErrors.New(dErrors.CodeStateConflict, msgAlreadyVerified)
	}

	doc := models.NewDocument(id.NewDocumentID(), user.ID, upload, requestcontext.Now(ctx).UTC())
	if err := s.blobs.Put(ctx, doc.Filename, upload.Content, upload.ContentType); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	err = s.tx.RunInTx(withTxUser(ctx, user.ID), func(ctx context.Context) error {
		if err := s.documents.Create(ctx, doc); err != nil {
			return err
		}
		return s.users.UpdateKycState(ctx, next)
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), doc.Filename); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned document",
				"filename", doc.Filename,
				"error", delErr,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record document")
	}

	s.emit(ctx, audit.Event{
		UserID:     user.ID,
		DocumentID: doc.ID.String(),
		Action:     audit.EventKycDocumentUploaded,
	})
	s.metrics.VerificationStarted()

	job := verificationJob{
		userID:    user.ID,
		doc:       doc.Clone(),
		lease:     lease,
		requestID: requestcontext.RequestID(ctx),
		link:      trace.LinkFromContext(ctx),
	}
	if err := s.pool.submit(func(poolCtx context.Context) { s.runVerification(poolCtx, job) }); err != nil {
		// Shutting down: finalize now so the user is not left validating.
		handedOff = true
		s.runVerification(context.WithoutCancel(ctx), job.interrupted())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verification pipeline is shutting down")
	}
	handedOff = true

	s.logger.InfoContext(ctx, "kyc document accepted",
		"user_id", user.ID.String(),
		"document_id", doc.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return doc, nil
}

// acquire takes the user's verification lease and keeps it refreshed until
// released. A held lease normally means a verification is in flight and fails
// fast. When the user has already left validating the holder is only
// finishing up: the worker releases its lease right after the outcome
// transaction commits, so the lock frees within milliseconds and acquire
// polls briefly instead of reporting a conflict.
func (s *Service) acquire(ctx context.Context, userID id.UserID) (lock.Lease, error) {
	deadline := time.Now().Add(lockSettleTimeout)
	for {
		lease, err := s.locker.TryAcquire(ctx, userID)
		if err == nil {
			return s.hold(lease, userID), nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire verification lock")
		}

		user, err := s.findUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		switch {
		case !models.CanAcceptUpload(user.KycStatus):
			return nil, dErrors.New(dErrors.CodeStateConflict, msgAlreadyVerified)
		case user.KycStatus == id.KycStatusValidating || time.Now().After(deadline):
			return nil, dErrors.New(dErrors.CodeStateConflict, msgVerificationActive)
		}

		select {
		case <-ctx.Done():
			return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request cancelled")
		case <-time.After(lockSettleInterval):
		}
	}
}

func (s *Service) release(ctx context.Context, lease lock.Lease, userID id.UserID) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to release verification lock",
			"user_id", userID.String(),
			"error", err,
		)
	}
}

func uploadResult(err error) string {
	de, ok := dErrors.As(err)
	if !ok {
		return "error"
	}
	switch {
	case de.Code == dErrors.CodeNotFound:
		return "not_found"
	case de.Message == msgVerificationActive:
		return "in_progress"
	case de.Code == dErrors.CodeStateConflict:
		return "already_verified"
	default:
		return "error"
	}
}
