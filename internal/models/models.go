package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID           string
	Available        decimal.Decimal
	Pending          decimal.Decimal
	LifetimeEarnings decimal.Decimal
	UpdatedAt        time.Time
}

// Negative reports whether either spendable bucket dropped below zero.
func (b Balance) Negative() bool {
	return b.Available.IsNegative() || b.Pending.IsNegative()
}

type ReceiptEntry struct {
	ID         string
	UserID     string
	Merchant   string
	Category   string
	Subtotal   decimal.Decimal
	Earned     decimal.Decimal
	Multiplier int
	DedupeKey  string
	CreatedAt  time.Time
}

type Withdrawal struct {
	ID            string
	UserID        string
	Amount        decimal.Decimal
	Method        string
	Destination   string
	State         string
	FailureReason string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

type PayoutOutcome string

const (
	PayoutSuccess PayoutOutcome = "success"
	PayoutFailure PayoutOutcome = "failure"
	PayoutPending PayoutOutcome = "pending"
)

// ParsePayoutOutcome accepts the executor's spelling variants.
func ParsePayoutOutcome(s string) (PayoutOutcome, bool) {
	switch s {
	case "success", "SUCCESS", "completed", "COMPLETED":
		return PayoutSuccess, true
	case "failure", "FAILURE", "failed", "FAILED":
		return PayoutFailure, true
	case "pending", "PENDING", "processing", "PROCESSING":
		return PayoutPending, true
	}
	return "", false
}

type EntryFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Limit    int
}

type CategoryStat struct {
	Category      string
	Count         int
	TotalEarnings decimal.Decimal
}

// EntryAggregate is what the entry store reports for statistics.
type EntryAggregate struct {
	TotalEarnings   decimal.Decimal
	TotalCount      int
	PeriodEarnings  decimal.Decimal
	PeriodCount     int
	PeriodSubtotal  decimal.Decimal
	PeriodBreakdown []CategoryStat
}

type ReceiptStats struct {
	Period          string
	PeriodStart     time.Time
	TotalEarnings   decimal.Decimal
	PeriodEarnings  decimal.Decimal
	TotalReceipts   int
	PeriodReceipts  int
	AvgReceiptValue decimal.Decimal
	TopCategories   []CategoryStat
}

type WithdrawalStats struct {
	TotalWithdrawn decimal.Decimal
	PendingAmount  decimal.Decimal
	TotalCount     int
}
