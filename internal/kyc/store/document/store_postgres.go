package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kycgate/internal/kyc/models"
	"kycgate/internal/platform/postgres"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
	txcontext "kycgate/pkg/platform/tx"
)

// PostgresStore persists documents in the kyc_documents table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, user_id, filename, original_name, content_type, size_bytes, status, reason, uploaded_at, classified_at`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO kyc_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.UserID),
		doc.Filename,
		doc.OriginalName,
		doc.ContentType,
		doc.SizeBytes,
		doc.Status.String(),
		doc.Reason,
		doc.UploadedAt,
		nullTime(doc.ClassifiedAt),
	)
	if err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return fmt.Errorf("create document: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Update records a classification result. The status guard keeps classified
// documents immutable.
func (s *PostgresStore) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE kyc_documents
		SET status = $2, reason = $3, classified_at = $4
		WHERE id = $1 AND status = 'validating'
	`
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		doc.Status.String(),
		doc.Reason,
		nullTime(doc.ClassifiedAt),
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows: %w", err)
	}
	if rows == 0 {
		if _, err := s.FindByID(ctx, doc.ID); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM kyc_documents WHERE id = $1`
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(docID))
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM kyc_documents WHERE user_id = $1 ORDER BY uploaded_at ASC, id ASC`
	return s.list(ctx, "list documents by user", query, uuid.UUID(userID))
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status id.KycStatus) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM kyc_documents WHERE status = $1 ORDER BY uploaded_at ASC`
	return s.list(ctx, "list documents by status", query, status.String())
}

// MarkInvalid finalizes unclassified documents as invalid in one statement.
func (s *PostgresStore) MarkInvalid(ctx context.Context, docIDs []id.DocumentID, reason string, now time.Time) (int, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	raw := make([]string, 0, len(docIDs))
	for _, docID := range docIDs {
		raw = append(raw, docID.String())
	}
	query := `
		UPDATE kyc_documents
		SET status = 'invalid', reason = $2, classified_at = $3
		WHERE id = ANY($1::uuid[]) AND status = 'validating'
	`
	res, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, pq.Array(raw), reason, now)
	if err != nil {
		return 0, fmt.Errorf("mark documents invalid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark documents invalid rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) list(ctx context.Context, op, query string, arg any) ([]*models.Document, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		docID, userID uuid.UUID
		status        string
		classifiedAt  sql.NullTime
		d             models.Document
	)
	if err := row.Scan(&docID, &userID, &d.Filename, &d.OriginalName, &d.ContentType, &d.SizeBytes,
		&status, &d.Reason, &d.UploadedAt, &classifiedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseKycStatus(status)
	if err != nil {
		return nil, err
	}
	d.ID = id.DocumentID(docID)
	d.UserID = id.UserID(userID)
	d.Status = parsed
	if classifiedAt.Valid {
		t := classifiedAt.Time
		d.ClassifiedAt = &t
	}
	return &d, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
