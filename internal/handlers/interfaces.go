package handlers

import (
	"context"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
)

type ReceiptService interface {
	SubmitReceipt(ctx context.Context, sub usecase.ReceiptSubmission, now time.Time) (usecase.SubmitResult, error)
	ListReceipts(ctx context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error)
	GetStats(ctx context.Context, userID, period string, now time.Time) (models.ReceiptStats, error)
}

type BalanceService interface {
	GetBalance(ctx context.Context, userID string) (models.Balance, error)
}

type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, req usecase.WithdrawalRequest) (models.Withdrawal, error)
	GetWithdrawal(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error)
	GetWithdrawalStats(ctx context.Context, userID string) (models.WithdrawalStats, error)
}

type PayoutResultService interface {
	HandlePayoutResult(ctx context.Context, withdrawalID string, outcome models.PayoutOutcome, reason string) (models.Withdrawal, error)
}
