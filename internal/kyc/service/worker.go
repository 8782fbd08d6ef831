package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycgate/internal/audit"
	identity "kycgate/internal/identity/models"
	"kycgate/internal/kyc/lock"
	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// errSuperseded means the document was finalized by someone else, typically
// settled as interrupted after this job's lease lapsed.
var errSuperseded = errors.New("verification superseded")

// verificationJob is one accepted document awaiting classification. The job
// owns the user's lease and releases it when done.
type verificationJob struct {
	userID    id.UserID
	doc       *models.Document
	lease     lock.Lease
	requestID string
	link      trace.Link
	forced    *models.Outcome
}

// interrupted returns a copy of the job that skips classification.
func (j verificationJob) interrupted() verificationJob {
	out := models.Invalid(models.ReasonInterrupted)
	j.forced = &out
	return j
}

// runVerification classifies the document and persists the outcome. It always
// moves the user out of validating unless persistence keeps failing for the
// whole persist window, in which case user and document both stay validating
// and the next upload settles them.
func (s *Service) runVerification(ctx context.Context, job verificationJob) {
	ctx, span := s.tracer.Start(ctx, "kyc.classify",
		trace.WithLinks(job.link),
		trace.WithAttributes(
			attribute.String("kyc.user_id", job.userID.String()),
			attribute.String("kyc.document_id", job.doc.ID.String()),
		),
	)
	defer span.End()
	defer s.metrics.VerificationFinished()
	defer s.release(ctx, job.lease, job.userID)

	outcome := s.classifyDocument(ctx, job)
	span.SetAttributes(
		attribute.String("kyc.outcome", outcome.Status.String()),
		attribute.String("kyc.reason", outcome.Reason),
	)

	err := s.persistOutcome(ctx, job, outcome)
	switch {
	case err == nil:
	case errors.Is(err, errSuperseded), errors.Is(err, models.ErrInvalidTransition):
		s.logger.WarnContext(ctx, "kyc outcome discarded, verification already settled",
			"user_id", job.userID.String(),
			"document_id", job.doc.ID.String(),
			"status", outcome.Status.String(),
			"request_id", job.requestID,
		)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist outcome")
		s.logger.ErrorContext(ctx, "failed to record kyc outcome",
			"user_id", job.userID.String(),
			"document_id", job.doc.ID.String(),
			"request_id", job.requestID,
			"error", err,
		)
	}
}

// persistOutcome retries complete with exponential backoff until it succeeds,
// the verification turns out to be settled already, or the persist window
// closes. The lease is held throughout.
func (s *Service) persistOutcome(ctx context.Context, job verificationJob, outcome models.Outcome) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = persistRetryInitial
	b.MaxInterval = persistRetryMax
	b.MaxElapsedTime = 0

	var lastErr error
	err := backoff.RetryNotify(func() error {
		err := s.complete(ctx, job, outcome)
		if errors.Is(err, errSuperseded) || errors.Is(err, models.ErrInvalidTransition) {
			return backoff.Permanent(err)
		}
		if err != nil {
			lastErr = err
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		s.logger.WarnContext(ctx, "retrying kyc outcome persistence",
			"user_id", job.userID.String(),
			"document_id", job.doc.ID.String(),
			"wait", wait.String(),
			"error", err,
		)
	})
	if err != nil && lastErr != nil && !errors.Is(err, lastErr) {
		return fmt.Errorf("%w (last attempt: %w)", err, lastErr)
	}
	return err
}

// classifyDocument never fails: errors and timeouts become invalid outcomes
// with a reason describing what went wrong.
func (s *Service) classifyDocument(ctx context.Context, job verificationJob) models.Outcome {
	if job.forced != nil {
		return *job.forced
	}
	if ctx.Err() != nil {
		return models.Invalid(models.ReasonInterrupted)
	}

	content, err := s.blobs.Get(ctx, job.doc.Filename)
	if err != nil {
		if ctx.Err() != nil {
			return models.Invalid(models.ReasonInterrupted)
		}
		s.logger.ErrorContext(ctx, "failed to read document for classification",
			"document_id", job.doc.ID.String(),
			"request_id", job.requestID,
			"error", err,
		)
		return models.Invalid(models.ReasonClassificationFailed)
	}

	classifyCtx, cancel := context.WithTimeout(ctx, s.classifyTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := s.classifier.Classify(classifyCtx, models.Upload{
		Content:      content,
		OriginalName: job.doc.OriginalName,
		ContentType:  job.doc.ContentType,
	})
	s.metrics.ObserveClassifyLatency(time.Since(start))

	switch {
	case err == nil && outcome.Status.IsTerminal():
		return outcome
	case err == nil:
		s.logger.ErrorContext(ctx, "classifier returned non-terminal status",
			"document_id", job.doc.ID.String(),
			"status", outcome.Status.String(),
		)
		return models.Invalid(models.ReasonClassificationFailed)
	case ctx.Err() != nil:
		return models.Invalid(models.ReasonInterrupted)
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(ctx, "document classification timed out",
			"document_id", job.doc.ID.String(),
			"timeout", s.classifyTimeout.String(),
		)
		return models.Invalid(models.ReasonClassificationTimeout)
	default:
		s.logger.ErrorContext(ctx, "document classification failed",
			"document_id", job.doc.ID.String(),
			"request_id", job.requestID,
			"error", err,
		)
		return models.Invalid(models.ReasonClassificationFailed)
	}
}

// complete applies the outcome to the user and the document in one
// transaction, then reports it. The user is written first and restored if the
// document write fails, so stores without rollback never end up half applied.
func (s *Service) complete(ctx context.Context, job verificationJob, outcome models.Outcome) error {
	now := time.Now().UTC()
	doc := job.doc.Clone()
	doc.ApplyOutcome(outcome, now)

	err := s.tx.RunInTx(withTxUser(ctx, job.userID), func(ctx context.Context) error {
		current, err := s.documents.FindByID(ctx, doc.ID)
		if err != nil {
			return err
		}
		if current.IsClassified() {
			return errSuperseded
		}
		user, err := s.users.FindByID(ctx, job.userID)
		if err != nil {
			return err
		}
		next, err := models.CompleteVerification(user, outcome.Status, now)
		if err != nil {
			return err
		}
		if err := s.users.UpdateKycState(ctx, next); err != nil {
			return err
		}
		if err := s.documents.Update(ctx, doc); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				err = errSuperseded
			}
			return s.restoreUser(ctx, user, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	action := audit.EventKycRejected
	if outcome.Status == id.KycStatusValid {
		action = audit.EventKycVerified
	}
	s.emit(ctx, audit.Event{
		UserID:     job.userID,
		DocumentID: doc.ID.String(),
		Action:     action,
		Decision:   outcome.Status.String(),
		Reason:     outcome.Reason,
		RequestID:  job.requestID,
	})
	s.metrics.IncrementOutcome(outcome.Status.String(), outcome.Reason)
	s.logger.InfoContext(ctx, "kyc verification completed",
		"user_id", job.userID.String(),
		"document_id", doc.ID.String(),
		"status", outcome.Status.String(),
		"reason", outcome.Reason,
		"request_id", job.requestID,
	)
	return nil
}

// restoreUser puts back the user state read at the start of a transaction
// and returns cause.
func (s *Service) restoreUser(ctx context.Context, prev *identity.User, cause error) error {
	if err := s.users.UpdateKycState(context.WithoutCancel(ctx), prev); err != nil {
		return fmt.Errorf("%w (restoring user state: %v)", cause, err)
	}
	return cause
}
