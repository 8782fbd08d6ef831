package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"kycgate/internal/audit"
	identity "kycgate/internal/identity/models"
	"kycgate/internal/kyc/lock"
	"kycgate/internal/kyc/metrics"
	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

const (
	msgUserNotFound       = "User not found"
	msgAlreadyVerified    = "KYC is already completed for this user"
	msgVerificationActive = "KYC verification is already in progress for this user"
)

const (
	defaultClassifyTimeout = 20 * time.Second
	defaultWorkers         = 8
	defaultPersistTimeout  = 5 * time.Second
	defaultLeaseRefresh    = 5 * time.Second
	persistRetryInitial    = 50 * time.Millisecond
	persistRetryMax        = time.Second
	lockSettleTimeout      = 500 * time.Millisecond
	lockSettleInterval     = 10 * time.Millisecond
)

// UserStore is the slice of the identity store the pipeline mutates.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*identity.User, error)
	UpdateKycState(ctx context.Context, user *identity.User) error
}

// DocumentStore persists verification attempts.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Document, error)
	ListByStatus(ctx context.Context, status id.KycStatus) ([]*models.Document, error)
	MarkInvalid(ctx context.Context, docIDs []id.DocumentID, reason string, now time.Time) (int, error)
}

// BlobStore holds document bytes.
type BlobStore interface {
	Put(ctx context.Context, name string, content []byte, contentType string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

// Classifier judges a document.
type Classifier interface {
	Classify(ctx context.Context, upload models.Upload) (models.Outcome, error)
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the verification pipeline: intake, background classification,
// status queries and startup recovery.
type Service struct {
	users           UserStore
	documents       DocumentStore
	blobs           BlobStore
	classifier      Classifier
	locker          lock.Locker
	tx              StoreTx
	auditor         AuditPublisher
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	classifyTimeout time.Duration
	persistTimeout  time.Duration
	leaseRefresh    time.Duration
	workers         int
	pool            *pool
}

// Option configures the Service.
type Option func(*Service)

// WithStoreTx sets the transaction boundary. Defaults to the in-memory sharded tx.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClassifyTimeout bounds a single classification.
func WithClassifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.classifyTimeout = d
		}
	}
}

// WithPersistTimeout bounds how long a finished classification keeps retrying
// to record its outcome before giving up and leaving the user validating.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithLeaseRefresh sets how often a held verification lease is extended. It
// must be well under the locker's ttl.
func WithLeaseRefresh(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.leaseRefresh = d
		}
	}
}

// WithWorkers bounds concurrent classifications.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(users UserStore, documents DocumentStore, blobs BlobStore, classifier Classifier, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		users:           users,
		documents:       documents,
		blobs:           blobs,
		classifier:      classifier,
		locker:          locker,
		logger:          slog.Default(),
		tracer:          otel.Tracer("kycgate/kyc"),
		classifyTimeout: defaultClassifyTimeout,
		persistTimeout:  defaultPersistTimeout,
		leaseRefresh:    defaultLeaseRefresh,
		workers:         defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx()
	}
	s.pool = newPool(s.workers)
	return s
}

// Shutdown stops accepting uploads and waits for in-flight classifications.
// Jobs still running when ctx expires are finalized as interrupted.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.pool.shutdown(ctx)
}

// loadUser resolves an external identifier. Malformed identifiers are
// reported as not found.
func (s *Service) loadUser(ctx context.Context, rawUserID string) (*identity.User, error) {
	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, msgUserNotFound)
	}
	return s.findUser(ctx, userID)
}

func (s *Service) findUser(ctx context.Context, userID id.UserID) (*identity.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, msgUserNotFound)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"user_id", event.UserID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}
