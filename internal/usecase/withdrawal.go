package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
	"github.com/AlenaMolokova/receiptbank/internal/validation"
	"github.com/shopspring/decimal"
)

const (
	reasonInsufficientBalance = "insufficient balance"
	reasonPayoutFailed        = "payout failed"
)

var transitions = map[string][]string{
	constants.StatusRequested: {constants.StatusReserved, constants.StatusRejected},
	constants.StatusReserved:  {constants.StatusCompleted, constants.StatusFailed},
}

func canTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type WithdrawalRequest struct {
	UserID      string
	Amount      decimal.Decimal
	Method      string
	Destination string
}

func (l *Ledger) SupportedMethods() []string {
	return append([]string(nil), l.cfg.SupportedMethods...)
}

func (l *Ledger) MinimumWithdrawal() decimal.Decimal {
	return l.cfg.MinimumWithdrawal
}

func (l *Ledger) validateWithdrawal(req *WithdrawalRequest) error {
	if req.UserID == "" {
		return models.ErrUserRequired
	}
	if !req.Amount.IsPositive() {
		return models.ErrAmountRequired
	}
	if req.Amount.Exponent() < -2 && !req.Amount.Equal(req.Amount.Round(2)) {
		return models.ErrAmountPrecision
	}
	req.Amount = req.Amount.Round(2)
	if req.Amount.LessThan(l.cfg.MinimumWithdrawal) {
		return fmt.Errorf("%w of %s", models.ErrBelowMinimum, l.cfg.MinimumWithdrawal.StringFixed(2))
	}

	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if req.Method == "" {
		return models.ErrMethodRequired
	}
	if _, ok := l.methods[req.Method]; !ok {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedMethod, req.Method)
	}

	req.Destination = strings.TrimSpace(req.Destination)
	if err := l.validator.ValidateDestination(req.Method, req.Destination); err != nil {
		return err
	}
	if req.Method == constants.MethodCard {
		req.Destination = validation.NormalizeCardNumber(req.Destination)
	}
	return nil
}

// RequestWithdrawal reserves the amount and hands the withdrawal to the payout
// executor. Invalid requests are never stored. A request the balance cannot
// cover is stored as rejected and reported with models.ErrInsufficientBalance.
// If the executor refuses the submission the returned record is failed and
// the error is nil.
func (l *Ledger) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (models.Withdrawal, error) {
	if err := l.validateWithdrawal(&req); err != nil {
		l.log.Info().Err(err).Str("user_id", req.UserID).Msg("withdrawal request invalid")
		return models.Withdrawal{}, err
	}

	log := l.log.With().Str("user_id", req.UserID).Str("amount", req.Amount.StringFixed(2)).Str("method", req.Method).Logger()
	now := l.now().UTC()
	w := models.Withdrawal{
		ID:          l.newID(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Method:      req.Method,
		Destination: req.Destination,
		State:       constants.StatusRequested,
		CreatedAt:   now,
	}

	err := l.store.WithinUserScope(ctx, req.UserID, func(tx storage.UserTx) error {
		rec := w
		if err := tx.CreateWithdrawal(ctx, rec); err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}

		_, err := NewBalanceAccount(tx, l.log).Reserve(ctx, rec.Amount)
		switch {
		case errors.Is(err, models.ErrInsufficientBalance):
			rec.State = constants.StatusRejected
			rec.FailureReason = reasonInsufficientBalance
			rec.ProcessedAt = &now
		case err != nil:
			return err
		default:
			rec.State = constants.StatusReserved
		}

		if err := tx.UpdateWithdrawal(ctx, rec); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		w = rec
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to request withdrawal")
		return models.Withdrawal{}, err
	}

	log = log.With().Str("withdrawal_id", w.ID).Logger()
	if w.State == constants.StatusRejected {
		log.Info().Msg("withdrawal rejected: insufficient balance")
		return w, models.ErrInsufficientBalance
	}
	log.Info().Msg("withdrawal reserved")

	// A rejected submission is reported through the record's state.
	if err := l.executor.Submit(ctx, w); err != nil {
		log.Warn().Err(err).Msg("payout submission failed")
		failed, ferr := l.HandlePayoutResult(ctx, w.ID, models.PayoutFailure, err.Error())
		if ferr != nil {
			log.Error().Err(ferr).Msg("failed to mark withdrawal as failed")
			return w, fmt.Errorf("%w: %w", models.ErrPayoutFailed, ferr)
		}
		return failed, nil
	}

	log.Info().Msg("withdrawal submitted for payout")
	return w, nil
}

// HandlePayoutResult applies the executor's verdict. A repeated verdict that
// matches the stored state is acknowledged without effect; a verdict that
// contradicts a terminal state is models.ErrInvalidTransition.
func (l *Ledger) HandlePayoutResult(ctx context.Context, withdrawalID string, outcome models.PayoutOutcome, reason string) (models.Withdrawal, error) {
	var target string
	switch outcome {
	case models.PayoutSuccess:
		target = constants.StatusCompleted
	case models.PayoutFailure:
		target = constants.StatusFailed
		if strings.TrimSpace(reason) == "" {
			reason = reasonPayoutFailed
		}
	case models.PayoutPending:
	default:
		return models.Withdrawal{}, fmt.Errorf("%w: %q", models.ErrInvalidOutcome, outcome)
	}

	current, err := l.store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if outcome == models.PayoutPending {
		return current, nil
	}

	log := l.log.With().Str("user_id", current.UserID).Str("withdrawal_id", withdrawalID).Str("outcome", string(outcome)).Logger()
	now := l.now().UTC()

	var result models.Withdrawal
	applied := false
	err = l.store.WithinUserScope(ctx, current.UserID, func(tx storage.UserTx) error {
		w, err := tx.LockWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.State == target {
			result = w
			return nil
		}
		if !canTransition(w.State, target) {
			return fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, w.State, target)
		}

		account := NewBalanceAccount(tx, l.log)
		if target == constants.StatusCompleted {
			_, err = account.FinalizeReservation(ctx, w.Amount)
		} else {
			_, err = account.ReleaseReservation(ctx, w.Amount)
			w.FailureReason = reason
		}
		if err != nil {
			return err
		}

		w.State = target
		w.ProcessedAt = &now
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		result = w
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			log.Warn().Err(err).Msg("conflicting payout result")
		} else {
			log.Error().Err(err).Msg("failed to apply payout result")
		}
		return models.Withdrawal{}, err
	}

	if applied {
		log.Info().Str("state", result.State).Msg("payout result applied")
	} else {
		log.Debug().Msg("duplicate payout result acknowledged")
	}
	return result, nil
}

// GetWithdrawal returns the withdrawal only if it belongs to userID.
func (l *Ledger) GetWithdrawal(ctx context.Context, userID, withdrawalID string) (models.Withdrawal, error) {
	if userID == "" {
		return models.Withdrawal{}, models.ErrUserRequired
	}
	w, err := l.store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if w.UserID != userID {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}
	return w, nil
}

func (l *Ledger) ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	if userID == "" {
		return nil, models.ErrUserRequired
	}
	withdrawals, err := l.store.ListWithdrawals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawals: %w", err)
	}
	return withdrawals, nil
}

func (l *Ledger) GetWithdrawalStats(ctx context.Context, userID string) (models.WithdrawalStats, error) {
	if userID == "" {
		return models.WithdrawalStats{}, models.ErrUserRequired
	}
	stats, err := l.store.WithdrawalTotals(ctx, userID)
	if err != nil {
		return models.WithdrawalStats{}, fmt.Errorf("failed to get withdrawal stats: %w", err)
	}
	return stats, nil
}
