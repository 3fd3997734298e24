package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/middleware"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SubmitReceipt(ctx context.Context, sub usecase.ReceiptSubmission, now time.Time) (usecase.SubmitResult, error) {
	args := m.Called(ctx, sub, now)
	return args.Get(0).(usecase.SubmitResult), args.Error(1)
}

func (m *MockLedger) ListReceipts(ctx context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]models.ReceiptEntry), args.Error(1)
}

func (m *MockLedger) GetStats(ctx context.Context, userID, period string, now time.Time) (models.ReceiptStats, error) {
	args := m.Called(ctx, userID, period, now)
	return args.Get(0).(models.ReceiptStats), args.Error(1)
}

func (m *MockLedger) GetBalance(ctx context.Context, userID string) (models.Balance, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockLedger) RequestWithdrawal(ctx context.Context, req usecase.WithdrawalRequest) (models.Withdrawal, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.Withdrawal), args.Error(1)
}

func (m *MockLedger) GetWithdrawal(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error) {
	args := m.Called(ctx, userID, withdrawalID)
	return args.Get(0).(models.Withdrawal), args.Error(1)
}

func (m *MockLedger) ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *MockLedger) GetWithdrawalStats(ctx context.Context, userID string) (models.WithdrawalStats, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.WithdrawalStats), args.Error(1)
}

func (m *MockLedger) HandlePayoutResult(ctx context.Context, withdrawalID string, outcome models.PayoutOutcome, reason string) (models.Withdrawal, error) {
	args := m.Called(ctx, withdrawalID, outcome, reason)
	return args.Get(0).(models.Withdrawal), args.Error(1)
}

var (
	_ ReceiptService      = (*MockLedger)(nil)
	_ BalanceService      = (*MockLedger)(nil)
	_ WithdrawalService   = (*MockLedger)(nil)
	_ PayoutResultService = (*MockLedger)(nil)
)

// newRequest builds a request that has already passed authentication when
// userID is set.
func newRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}
