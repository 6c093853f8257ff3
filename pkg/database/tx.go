package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"frozen-pos/pkg/apperror"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TxRunner runs a unit of work in one database transaction and retries it when
// postgres aborts it for a serialization conflict or a deadlock.
type TxRunner struct {
	db           *gorm.DB
	log          *zap.Logger
	maxRetries   int
	serializable bool
	backoff      time.Duration
}

type TxOption func(*TxRunner)

func WithMaxRetries(n int) TxOption {
	return func(r *TxRunner) { r.maxRetries = n }
}

func WithSerializable(on bool) TxOption {
	return func(r *TxRunner) { r.serializable = on }
}

func WithBackoff(d time.Duration) TxOption {
	return func(r *TxRunner) { r.backoff = d }
}

func NewTxRunner(db *gorm.DB, log *zap.Logger, opts ...TxOption) *TxRunner {
	r := &TxRunner{
		db:         db,
		log:        log,
		maxRetries: 3,
		backoff:    20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TxRunner) DB() *gorm.DB {
	return r.db
}

// Run executes fn inside a transaction. fn may be called more than once, so it
// must not leak state outside the transaction until it returns nil.
func (r *TxRunner) Run(ctx context.Context, name string, fn func(tx *gorm.DB) error) error {
	var txOpts []*sql.TxOptions
	if r.serializable {
		txOpts = append(txOpts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(1<<(attempt-1))
			r.log.Warn("retrying transaction",
				zap.String("tx", name),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return apperror.Transient(ctx.Err(), "%s cancelled", name)
			case <-time.After(wait):
			}
		}

		err = r.db.WithContext(ctx).Transaction(fn, txOpts...)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}

	return apperror.Transient(err, "%s could not be committed, try again", name)
}

// IsRetryable reports whether err is a postgres serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// ForUpdate adds SELECT ... FOR UPDATE on dialects that support row locks.
// sqlite serializes writers on its own.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
