// Package storage defines the persistence contract of the ledger and its
// PostgreSQL implementation. An in-memory implementation lives in
// storage/memory.
package storage

import (
	"context"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/shopspring/decimal"
)

// Storage is the durable state of the ledger. All writes happen inside
// WithinUserScope; the remaining methods are plain reads.
type Storage interface {
	// WithinUserScope runs fn with exclusive access to userID's ledger state.
	// Writes made through the UserTx are committed only if fn returns nil.
	WithinUserScope(ctx context.Context, userID string, fn ScopeFunc) error

	// GetBalance returns zeros for a user with no ledger activity.
	GetBalance(ctx context.Context, userID string) (models.Balance, error)
	ListEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error)
	AggregateEntries(ctx context.Context, userID string, since time.Time) (models.EntryAggregate, error)

	GetWithdrawal(ctx context.Context, id string) (models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error)
	WithdrawalTotals(ctx context.Context, userID string) (models.WithdrawalStats, error)
	// ListStaleReservations returns reserved withdrawals created before the
	// given time, oldest first.
	ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]models.Withdrawal, error)
}

// UserTx is a unit of work bound to one user. No two UserTx for the same user
// are open at the same time.
type UserTx interface {
	UserID() string
	Balance(ctx context.Context) (models.Balance, error)

	Credit(ctx context.Context, amount decimal.Decimal) (models.Balance, error)
	// Reserve moves amount from available to pending, or returns
	// models.ErrInsufficientBalance without touching the balance.
	Reserve(ctx context.Context, amount decimal.Decimal) (models.Balance, error)
	FinalizeReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error)
	ReleaseReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error)

	EntryExists(ctx context.Context, dedupeKey string) (bool, error)
	// RecordEntry returns false when an entry with the same dedupe key exists.
	RecordEntry(ctx context.Context, entry models.ReceiptEntry) (bool, error)
	// IncrementDailyCount bumps the counter for bucket unless it already
	// reached limit and returns the counter value after the call.
	IncrementDailyCount(ctx context.Context, bucket string, limit int) (int, bool, error)

	CreateWithdrawal(ctx context.Context, w models.Withdrawal) error
	LockWithdrawal(ctx context.Context, id string) (models.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w models.Withdrawal) error
}

type ScopeFunc func(tx UserTx) error
