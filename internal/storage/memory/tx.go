package memory

import (
	"context"
	"fmt"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/shopspring/decimal"
)

// memTx mutates a userState whose lock is held by WithinUserScope.
type memTx struct {
	store  *Store
	st     *userState
	userID string
	undo   []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) UserID() string { return t.userID }

func (t *memTx) Balance(_ context.Context) (models.Balance, error) {
	return t.st.balance, nil
}

func (t *memTx) setBalance(b models.Balance) models.Balance {
	prev := t.st.balance
	t.undo = append(t.undo, func() { t.st.balance = prev })
	b.UpdatedAt = t.store.now()
	t.st.balance = b
	return b
}

func (t *memTx) Credit(_ context.Context, amount decimal.Decimal) (models.Balance, error) {
	if amount.IsNegative() {
		return models.Balance{}, models.ErrAmountRequired
	}
	b := t.st.balance
	b.Available = b.Available.Add(amount)
	b.LifetimeEarnings = b.LifetimeEarnings.Add(amount)
	return t.setBalance(b), nil
}

func (t *memTx) Reserve(_ context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrAmountRequired
	}
	b := t.st.balance
	if b.Available.LessThan(amount) {
		return models.Balance{}, models.ErrInsufficientBalance
	}
	b.Available = b.Available.Sub(amount)
	b.Pending = b.Pending.Add(amount)
	return t.setBalance(b), nil
}

func (t *memTx) FinalizeReservation(_ context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrAmountRequired
	}
	b := t.st.balance
	b.Pending = b.Pending.Sub(amount)
	if b.Pending.IsNegative() {
		return models.Balance{}, fmt.Errorf("finalize reservation: %w: pending would be %s", models.ErrConsistencyFault, b.Pending)
	}
	return t.setBalance(b), nil
}

func (t *memTx) ReleaseReservation(_ context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrAmountRequired
	}
	b := t.st.balance
	b.Pending = b.Pending.Sub(amount)
	b.Available = b.Available.Add(amount)
	if b.Pending.IsNegative() {
		return models.Balance{}, fmt.Errorf("release reservation: %w: pending would be %s", models.ErrConsistencyFault, b.Pending)
	}
	return t.setBalance(b), nil
}

func (t *memTx) EntryExists(_ context.Context, dedupeKey string) (bool, error) {
	_, ok := t.st.dedupe[dedupeKey]
	return ok, nil
}

func (t *memTx) RecordEntry(_ context.Context, e models.ReceiptEntry) (bool, error) {
	if e.UserID != t.userID {
		return false, fmt.Errorf("record entry: entry belongs to %q, scope is %q", e.UserID, t.userID)
	}
	if _, ok := t.st.dedupe[e.DedupeKey]; ok {
		return false, nil
	}

	t.st.dedupe[e.DedupeKey] = struct{}{}
	t.st.entries = append(t.st.entries, e)
	n := len(t.st.entries)
	t.undo = append(t.undo, func() {
		delete(t.st.dedupe, e.DedupeKey)
		t.st.entries = t.st.entries[:n-1]
	})
	return true, nil
}

func (t *memTx) IncrementDailyCount(_ context.Context, bucket string, limit int) (int, bool, error) {
	count := t.st.counters[bucket]
	if count >= limit {
		return count, false, nil
	}

	_, existed := t.st.counters[bucket]
	t.st.counters[bucket] = count + 1
	t.undo = append(t.undo, func() {
		if existed {
			t.st.counters[bucket] = count
		} else {
			delete(t.st.counters, bucket)
		}
	})
	return count + 1, true, nil
}

func (t *memTx) CreateWithdrawal(_ context.Context, w models.Withdrawal) error {
	if w.UserID != t.userID {
		return fmt.Errorf("create withdrawal: withdrawal belongs to %q, scope is %q", w.UserID, t.userID)
	}

	t.store.mu.Lock()
	if _, ok := t.store.owners[w.ID]; ok {
		t.store.mu.Unlock()
		return fmt.Errorf("create withdrawal: id %s already exists", w.ID)
	}
	t.store.owners[w.ID] = t.userID
	t.store.mu.Unlock()

	stored := w
	t.st.withdrawals[w.ID] = &stored
	t.undo = append(t.undo, func() {
		delete(t.st.withdrawals, w.ID)
		t.store.mu.Lock()
		delete(t.store.owners, w.ID)
		t.store.mu.Unlock()
	})
	return nil
}

func (t *memTx) LockWithdrawal(_ context.Context, id string) (models.Withdrawal, error) {
	w, ok := t.st.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}
	return *w, nil
}

func (t *memTx) UpdateWithdrawal(_ context.Context, w models.Withdrawal) error {
	cur, ok := t.st.withdrawals[w.ID]
	if !ok {
		return models.ErrWithdrawalNotFound
	}

	prev := *cur
	cur.State = w.State
	cur.FailureReason = w.FailureReason
	cur.ProcessedAt = w.ProcessedAt
	t.undo = append(t.undo, func() { *cur = prev })
	return nil
}
