package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dErrors "kycgate/pkg/domain-errors"
	txcontext "kycgate/pkg/platform/tx"
)

const defaultKycTxTimeout = 5 * time.Second

// kycPostgresTx runs verification store mutations in one SQL transaction.
// The stores pick the transaction up from ctx.
type kycPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newKycPostgresTx(db *sql.DB) *kycPostgresTx {
	return &kycPostgresTx{db: db}
}

func (t *kycPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultKycTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := txcontext.Run(ctx, t.db, fn)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
	}
	return err
}
