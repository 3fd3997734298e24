package testutils

import (
	"context"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPayoutExecutor struct {
	mock.Mock
}

func (m *MockPayoutExecutor) Submit(ctx context.Context, w models.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockPayoutExecutor) Status(ctx context.Context, withdrawalID string) (models.PayoutOutcome, string, error) {
	args := m.Called(ctx, withdrawalID)
	return args.Get(0).(models.PayoutOutcome), args.String(1), args.Error(2)
}

// MockStorage hands its Tx to every scope function, so expectations on Tx
// describe what happens inside WithinUserScope.
type MockStorage struct {
	mock.Mock
	Tx *MockUserTx
}

func (m *MockStorage) WithinUserScope(ctx context.Context, userID string, fn storage.ScopeFunc) error {
	args := m.Called(ctx, userID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

func (m *MockStorage) GetBalance(ctx context.Context, userID string) (models.Balance, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockStorage) ListEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]models.ReceiptEntry), args.Error(1)
}

func (m *MockStorage) AggregateEntries(ctx context.Context, userID string, since time.Time) (models.EntryAggregate, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).(models.EntryAggregate), args.Error(1)
}

func (m *MockStorage) GetWithdrawal(ctx context.Context, id string) (models.Withdrawal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Withdrawal), args.Error(1)
}

func (m *MockStorage) ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *MockStorage) WithdrawalTotals(ctx context.Context, userID string) (models.WithdrawalStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.WithdrawalStats), args.Error(1)
}

func (m *MockStorage) ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]models.Withdrawal, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

type MockUserTx struct {
	mock.Mock
	User string
}

func (m *MockUserTx) UserID() string { return m.User }

func (m *MockUserTx) Balance(ctx context.Context) (models.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockUserTx) Credit(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockUserTx) Reserve(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockUserTx) FinalizeReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockUserTx) ReleaseReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockUserTx) EntryExists(ctx context.Context, dedupeKey string) (bool, error) {
	args := m.Called(ctx, dedupeKey)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserTx) RecordEntry(ctx context.Context, entry models.ReceiptEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserTx) IncrementDailyCount(ctx context.Context, bucket string, limit int) (int, bool, error) {
	args := m.Called(ctx, bucket, limit)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockUserTx) CreateWithdrawal(ctx context.Context, w models.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockUserTx) LockWithdrawal(ctx context.Context, id string) (models.Withdrawal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Withdrawal), args.Error(1)
}

func (m *MockUserTx) UpdateWithdrawal(ctx context.Context, w models.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}
