package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/internal/platform/config"
)

func TestUniqueViolation(t *testing.T) {
	t.Run("detects wrapped unique violations", func(t *testing.T) {
		err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_phone_unique"})

		constraint, ok := UniqueViolation(err)

		assert.True(t, ok)
		assert.Equal(t, "users_phone_unique", constraint)
	})

	t.Run("ignores other postgres errors", func(t *testing.T) {
		_, ok := UniqueViolation(&pgconn.PgError{Code: "23503"})
		assert.False(t, ok)
	})

	t.Run("ignores foreign errors", func(t *testing.T) {
		_, ok := UniqueViolation(errors.New("boom"))
		assert.False(t, ok)
	})
}

func TestOpen_NoURLMeansNoDatabase(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_create_users.sql", entries[0].Name())
	assert.Equal(t, "00002_create_kyc_documents.sql", entries[1].Name())
}
