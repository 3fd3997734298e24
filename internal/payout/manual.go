package payout

import (
	"context"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/rs/zerolog"
)

// Manual is used when no payout provider is configured. It accepts every
// withdrawal and reports it pending until an operator posts the result to
// the callback endpoint.
type Manual struct {
	log zerolog.Logger
}

func NewManual(log zerolog.Logger) *Manual {
	return &Manual{log: log}
}

func (m *Manual) Submit(_ context.Context, w models.Withdrawal) error {
	m.log.Info().
		Str("withdrawal_id", w.ID).
		Str("user_id", w.UserID).
		Str("amount", w.Amount.StringFixed(2)).
		Str("method", w.Method).
		Msg("withdrawal queued for manual payout")
	return nil
}

func (m *Manual) Status(_ context.Context, _ string) (models.PayoutOutcome, string, error) {
	return models.PayoutPending, "", nil
}
