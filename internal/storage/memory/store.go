// Package memory is a process-local implementation of storage.Storage. Each
// user has a mutex held for the whole scope and every write inside a scope
// pushes an undo step, so a failed scope leaves no partial state behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
	"github.com/shopspring/decimal"
)

var _ storage.Storage = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	users  map[string]*userState
	owners map[string]string // withdrawal id -> user id
	now    func() time.Time
}

type userState struct {
	mu          sync.Mutex
	balance     models.Balance
	entries     []models.ReceiptEntry
	dedupe      map[string]struct{}
	counters    map[string]int
	withdrawals map[string]*models.Withdrawal
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:  make(map[string]*userState),
		owners: make(map[string]string),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) state(userID string) *userState {
	s.mu.RLock()
	st, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.users[userID]; ok {
		return st
	}
	st = &userState{
		balance: models.Balance{
			UserID:           userID,
			Available:        decimal.Zero,
			Pending:          decimal.Zero,
			LifetimeEarnings: decimal.Zero,
		},
		dedupe:      make(map[string]struct{}),
		counters:    make(map[string]int),
		withdrawals: make(map[string]*models.Withdrawal),
	}
	s.users[userID] = st
	return st
}

func (s *Store) lookup(userID string) (*userState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[userID]
	return st, ok
}

// snapshot copies the user list so callers never hold s.mu while taking a
// user lock; scopes take them in the opposite order.
func (s *Store) snapshot() []*userState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*userState, 0, len(s.users))
	for _, st := range s.users {
		out = append(out, st)
	}
	return out
}

func (s *Store) WithinUserScope(ctx context.Context, userID string, fn storage.ScopeFunc) (err error) {
	if userID == "" {
		return models.ErrUserRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	tx := &memTx{store: s, st: st, userID: userID}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if st.balance.Negative() {
		return fmt.Errorf("%w: balance of %s went negative", models.ErrConsistencyFault, userID)
	}
	return nil
}

func (s *Store) GetBalance(_ context.Context, userID string) (models.Balance, error) {
	st, ok := s.lookup(userID)
	if !ok {
		return models.Balance{UserID: userID, Available: decimal.Zero, Pending: decimal.Zero, LifetimeEarnings: decimal.Zero}, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.balance, nil
}

func (s *Store) ListEntries(_ context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error) {
	out := make([]models.ReceiptEntry, 0)
	st, ok := s.lookup(userID)
	if !ok {
		return out, nil
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}

	st.mu.Lock()
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := st.entries[i]
		if filter.Category != "" && !strings.EqualFold(e.Category, filter.Category) {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.CreatedAt.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	st.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AggregateEntries(_ context.Context, userID string, since time.Time) (models.EntryAggregate, error) {
	agg := models.EntryAggregate{
		TotalEarnings:   decimal.Zero,
		PeriodEarnings:  decimal.Zero,
		PeriodSubtotal:  decimal.Zero,
		PeriodBreakdown: make([]models.CategoryStat, 0),
	}
	st, ok := s.lookup(userID)
	if !ok {
		return agg, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	byCategory := make(map[string]*models.CategoryStat)
	for _, e := range st.entries {
		agg.TotalEarnings = agg.TotalEarnings.Add(e.Earned)
		agg.TotalCount++
		if e.CreatedAt.Before(since) {
			continue
		}
		agg.PeriodEarnings = agg.PeriodEarnings.Add(e.Earned)
		agg.PeriodSubtotal = agg.PeriodSubtotal.Add(e.Subtotal)
		agg.PeriodCount++

		cs, ok := byCategory[e.Category]
		if !ok {
			cs = &models.CategoryStat{Category: e.Category, TotalEarnings: decimal.Zero}
			byCategory[e.Category] = cs
		}
		cs.Count++
		cs.TotalEarnings = cs.TotalEarnings.Add(e.Earned)
	}

	for _, cs := range byCategory {
		agg.PeriodBreakdown = append(agg.PeriodBreakdown, *cs)
	}
	sort.Slice(agg.PeriodBreakdown, func(i, j int) bool {
		a, b := agg.PeriodBreakdown[i], agg.PeriodBreakdown[j]
		if c := a.TotalEarnings.Cmp(b.TotalEarnings); c != 0 {
			return c > 0
		}
		return a.Category < b.Category
	})
	return agg, nil
}

func (s *Store) GetWithdrawal(_ context.Context, id string) (models.Withdrawal, error) {
	s.mu.RLock()
	userID, ok := s.owners[id]
	var st *userState
	if ok {
		st = s.users[userID]
	}
	s.mu.RUnlock()
	if !ok {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	w, ok := st.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}
	return *w, nil
}

func (s *Store) ListWithdrawals(_ context.Context, userID string) ([]models.Withdrawal, error) {
	out := make([]models.Withdrawal, 0)
	st, ok := s.lookup(userID)
	if !ok {
		return out, nil
	}
	st.mu.Lock()
	for _, w := range st.withdrawals {
		out = append(out, *w)
	}
	st.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) WithdrawalTotals(_ context.Context, userID string) (models.WithdrawalStats, error) {
	stats := models.WithdrawalStats{TotalWithdrawn: decimal.Zero, PendingAmount: decimal.Zero}
	st, ok := s.lookup(userID)
	if !ok {
		return stats, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, w := range st.withdrawals {
		stats.TotalCount++
		switch w.State {
		case constants.StatusCompleted:
			stats.TotalWithdrawn = stats.TotalWithdrawn.Add(w.Amount)
		case constants.StatusReserved:
			stats.PendingAmount = stats.PendingAmount.Add(w.Amount)
		}
	}
	return stats, nil
}

func (s *Store) ListStaleReservations(_ context.Context, before time.Time, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	out := make([]models.Withdrawal, 0)
	for _, st := range s.snapshot() {
		st.mu.Lock()
		for _, w := range st.withdrawals {
			if w.State == constants.StatusReserved && w.CreatedAt.Before(before) {
				out = append(out, *w)
			}
		}
		st.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
