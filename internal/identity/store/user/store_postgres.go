package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kycgate/internal/identity/models"
	"kycgate/internal/platform/postgres"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
	txcontext "kycgate/pkg/platform/tx"
)

const (
	emailConstraint = "users_email_key_unique"
	phoneConstraint = "users_phone_unique"
)

// PostgresStore persists users in PostgreSQL. Uniqueness is enforced by the
// users_email_key_unique and users_phone_unique constraints.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, phone, password_hash, created_at, kyc_status, kyc_verified_at`

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, email_key, phone, password_hash, kyc_status, kyc_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Email,
		models.EmailKey(user.Email),
		user.Phone,
		user.PasswordHash,
		user.KycStatus.String(),
		nullTime(user.KycVerifiedAt),
		user.CreatedAt,
	)
	if err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok {
			switch constraint {
			case emailConstraint:
				return models.ErrEmailTaken
			case phoneConstraint:
				return models.ErrPhoneTaken
			default:
				return fmt.Errorf("create user: %w", sentinel.ErrConflict)
			}
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.findOne(ctx, "find user by id", query, uuid.UUID(userID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email_key = $1`
	return s.findOne(ctx, "find user by email", query, models.EmailKey(email))
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return s.findOne(ctx, "find user by phone", query, phone)
}

// UpdateKycState persists the verification fields of an existing user.
func (s *PostgresStore) UpdateKycState(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET kyc_status = $2, kyc_verified_at = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.KycStatus.String(),
		nullTime(user.KycVerifiedAt),
	)
	if err != nil {
		return fmt.Errorf("update user kyc state: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user kyc state rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, arg any) (*models.User, error) {
	var (
		rawID      uuid.UUID
		status     string
		verifiedAt sql.NullTime
		u          models.User
	)
	err := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&rawID, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt, &status, &verifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsed, err := id.ParseKycStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.ID = id.UserID(rawID)
	u.KycStatus = parsed
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.KycVerifiedAt = &t
	}
	return &u, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
