package usecase

import (
	"context"
	"fmt"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceAccount wraps the balance mutators of a UserTx and checks every
// balance the store hands back. A broken invariant is logged and surfaces as
// models.ErrConsistencyFault, which aborts the surrounding scope.
type BalanceAccount struct {
	tx  storage.UserTx
	log zerolog.Logger
}

func NewBalanceAccount(tx storage.UserTx, log zerolog.Logger) *BalanceAccount {
	return &BalanceAccount{tx: tx, log: log}
}

func (a *BalanceAccount) Credit(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if amount.IsNegative() {
		return models.Balance{}, fmt.Errorf("credit: %w", models.ErrAmountRequired)
	}
	return a.check("credit", amount)(a.tx.Credit(ctx, amount))
}

func (a *BalanceAccount) Reserve(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, fmt.Errorf("reserve: %w", models.ErrAmountRequired)
	}
	return a.check("reserve", amount)(a.tx.Reserve(ctx, amount))
}

func (a *BalanceAccount) FinalizeReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, fmt.Errorf("finalize reservation: %w", models.ErrAmountRequired)
	}
	return a.check("finalize reservation", amount)(a.tx.FinalizeReservation(ctx, amount))
}

func (a *BalanceAccount) ReleaseReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, fmt.Errorf("release reservation: %w", models.ErrAmountRequired)
	}
	return a.check("release reservation", amount)(a.tx.ReleaseReservation(ctx, amount))
}

func (a *BalanceAccount) check(op string, amount decimal.Decimal) func(models.Balance, error) (models.Balance, error) {
	return func(bal models.Balance, err error) (models.Balance, error) {
		if err != nil {
			if models.KindOf(err) == models.KindConsistency {
				a.fault(op, amount, bal, err)
			}
			return models.Balance{}, err
		}
		if err := verifyBalance(bal); err != nil {
			a.fault(op, amount, bal, err)
			return models.Balance{}, fmt.Errorf("%s: %w", op, err)
		}
		return bal, nil
	}
}

func (a *BalanceAccount) fault(op string, amount decimal.Decimal, bal models.Balance, err error) {
	a.log.Error().Err(err).
		Str("user_id", a.tx.UserID()).
		Str("op", op).
		Str("amount", amount.StringFixed(2)).
		Str("available", bal.Available.StringFixed(2)).
		Str("pending", bal.Pending.StringFixed(2)).
		Str("lifetime", bal.LifetimeEarnings.StringFixed(2)).
		Msg("ledger consistency fault")
}

// verifyBalance checks the invariants a balance must hold after every
// mutation: no bucket below zero and never more money than was ever earned.
func verifyBalance(b models.Balance) error {
	if b.Negative() {
		return fmt.Errorf("%w: negative balance (available %s, pending %s)", models.ErrConsistencyFault, b.Available, b.Pending)
	}
	if b.Available.Add(b.Pending).GreaterThan(b.LifetimeEarnings) {
		return fmt.Errorf("%w: available %s plus pending %s exceeds lifetime earnings %s",
			models.ErrConsistencyFault, b.Available, b.Pending, b.LifetimeEarnings)
	}
	return nil
}
