package models

import (
	"fmt"

	"kycgate/pkg/platform/sentinel"
)

// Store-level uniqueness failures. Both match sentinel.ErrConflict.
var (
	ErrEmailTaken = fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	ErrPhoneTaken = fmt.Errorf("phone already registered: %w", sentinel.ErrConflict)
)
