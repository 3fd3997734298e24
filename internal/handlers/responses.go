package handlers

import (
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/validation"
	"github.com/shopspring/decimal"
)

// Money renders as a JSON number with two decimals.
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type ReceiptResponse struct {
	ID         string    `json:"id"`
	Merchant   string    `json:"merchant"`
	Category   string    `json:"category"`
	Subtotal   Money     `json:"subtotal"`
	Earned     Money     `json:"earned"`
	Multiplier int       `json:"multiplier"`
	DedupeKey  string    `json:"dedupe_key"`
	CreatedAt  time.Time `json:"created_at"`
}

func newReceiptResponse(e models.ReceiptEntry) ReceiptResponse {
	return ReceiptResponse{
		ID:         e.ID,
		Merchant:   e.Merchant,
		Category:   e.Category,
		Subtotal:   Money(e.Subtotal),
		Earned:     Money(e.Earned),
		Multiplier: e.Multiplier,
		DedupeKey:  e.DedupeKey,
		CreatedAt:  e.CreatedAt,
	}
}

type BalanceResponse struct {
	Available        Money `json:"available"`
	Pending          Money `json:"pending"`
	LifetimeEarnings Money `json:"lifetime_earnings"`
}

type WithdrawalResponse struct {
	ID                 string     `json:"withdrawalId"`
	UserID             string     `json:"userId"`
	Amount             Money      `json:"amount"`
	PaymentMethod      string     `json:"paymentMethod"`
	PaymentDestination string     `json:"paymentDestination"`
	State              string     `json:"state"`
	CreatedAt          time.Time  `json:"createdAt"`
	ProcessedAt        *time.Time `json:"processedAt,omitempty"`
	FailureReason      string     `json:"failureReason,omitempty"`
}

func newWithdrawalResponse(w models.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:                 w.ID,
		UserID:             w.UserID,
		Amount:             Money(w.Amount),
		PaymentMethod:      w.Method,
		PaymentDestination: validation.MaskDestination(w.Method, w.Destination),
		State:              w.State,
		CreatedAt:          w.CreatedAt,
		ProcessedAt:        w.ProcessedAt,
		FailureReason:      w.FailureReason,
	}
}

type CategoryStatResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Earnings Money  `json:"earnings"`
}

type StatsResponse struct {
	Period          string                 `json:"period"`
	PeriodStart     *time.Time             `json:"periodStart,omitempty"`
	TotalEarnings   Money                  `json:"totalEarnings"`
	PeriodEarnings  Money                  `json:"periodEarnings"`
	TotalReceipts   int                    `json:"totalReceipts"`
	PeriodReceipts  int                    `json:"periodReceipts"`
	AvgReceiptValue Money                  `json:"avgReceiptValue"`
	TopCategories   []CategoryStatResponse `json:"topCategories"`
}

func newStatsResponse(s models.ReceiptStats) StatsResponse {
	resp := StatsResponse{
		Period:          s.Period,
		TotalEarnings:   Money(s.TotalEarnings),
		PeriodEarnings:  Money(s.PeriodEarnings),
		TotalReceipts:   s.TotalReceipts,
		PeriodReceipts:  s.PeriodReceipts,
		AvgReceiptValue: Money(s.AvgReceiptValue),
		TopCategories:   make([]CategoryStatResponse, len(s.TopCategories)),
	}
	if !s.PeriodStart.IsZero() {
		start := s.PeriodStart
		resp.PeriodStart = &start
	}
	for i, c := range s.TopCategories {
		resp.TopCategories[i] = CategoryStatResponse{
			Category: c.Category,
			Count:    c.Count,
			Earnings: Money(c.TotalEarnings),
		}
	}
	return resp
}

type WithdrawalStatsResponse struct {
	TotalWithdrawn Money `json:"totalWithdrawn"`
	PendingAmount  Money `json:"pendingAmount"`
	TotalCount     int   `json:"totalCount"`
}
