package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kycgate/internal/audit"
	"kycgate/internal/identity/models"
	"kycgate/internal/platform/metrics"
	id "kycgate/pkg/domain"
	dErrors "kycgate/pkg/domain-errors"
	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/requestcontext"
)

const (
	msgEmailTaken   = "User with this email already exists"
	msgPhoneTaken   = "Phone number is already registered by another user"
	msgUserNotFound = "User not found"
)

// UserStore persists users. Create must reject duplicates atomically with
// models.ErrEmailTaken or models.ErrPhoneTaken.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
}

// AuditPublisher records audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns user registration and lookup.
type Service struct {
	users      UserStore
	auditor    AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	bcryptCost int
}

// Option configures the Service.
type Option func(*Service)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBcryptCost overrides the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func New(users UserStore, opts ...Option) *Service {
	s := &Service{
		users:      users,
		logger:     slog.Default(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the request, enforces email then phone uniqueness and
// creates a user with no verification history.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.metrics.IncrementRegistrationFailure("validation")
		return nil, err
	}

	if err := s.checkAvailability(ctx, req.Email, req.Phone); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := models.NewUser(id.NewUserID(), req.Email, req.Phone, string(hash), requestcontext.Now(ctx).UTC())
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.translateCreateError(err)
	}

	s.metrics.IncrementUsersRegistered()
	s.emit(ctx, audit.Event{
		UserID: user.ID,
		Action: audit.EventUserRegistered,
		Email:  user.Email,
	})
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return user, nil
}

// GetByID resolves a user from an external identifier. Malformed identifiers
// are reported as not found.
func (s *Service) GetByID(ctx context.Context, rawID string) (*models.User, error) {
	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, msgUserNotFound)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, msgUserNotFound)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// checkAvailability gives the common case a precise answer before hashing.
// The store's atomic check still decides concurrent races.
func (s *Service) checkAvailability(ctx context.Context, email, phone string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.metrics.IncrementRegistrationFailure("email_taken")
		return dErrors.New(dErrors.CodeConflict, msgEmailTaken)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if _, err := s.users.FindByPhone(ctx, phone); err == nil {
		s.metrics.IncrementRegistrationFailure("phone_taken")
		return dErrors.New(dErrors.CodeConflict, msgPhoneTaken)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check phone")
	}
	return nil
}

func (s *Service) translateCreateError(err error) error {
	switch {
	case errors.Is(err, models.ErrEmailTaken):
		s.metrics.IncrementRegistrationFailure("email_taken")
		return dErrors.New(dErrors.CodeConflict, msgEmailTaken)
	case errors.Is(err, models.ErrPhoneTaken):
		s.metrics.IncrementRegistrationFailure("phone_taken")
		return dErrors.New(dErrors.CodeConflict, msgPhoneTaken)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
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
