package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	scopeRetryInitial = 20 * time.Millisecond
	scopeRetryMax     = 200 * time.Millisecond
)

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"

	maxScopeAttempts = 3
)

const (
	balanceColumns    = "user_id, available, pending, lifetime_earnings, updated_at"
	entryColumns      = "id, user_id, merchant, category, subtotal, earned, multiplier, dedupe_key, created_at"
	withdrawalColumns = "id, user_id, amount, method, destination, state, failure_reason, created_at, processed_at"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("database pool is nil")
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Postgres) WithinUserScope(ctx context.Context, userID string, fn ScopeFunc) error {
	if userID == "" {
		return models.ErrUserRequired
	}
	log := logger.FromContext(ctx)

	b := newScopeBackOff()

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.runScope(ctx, userID, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case isRetryable(err):
			log.Warn().Err(err).Str("user_id", userID).Int("attempt", attempt).Msg("user scope conflicted, retrying")
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxScopeAttempts))

	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: user %s scope failed after %d attempts: %v", models.ErrConsistencyFault, userID, attempt, err)
	}
	return err
}

func newScopeBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = scopeRetryInitial
	b.MaxInterval = scopeRetryMax
	return b
}

func (s *Postgres) runScope(ctx context.Context, userID string, fn ScopeFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin user scope: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	utx := &pgUserTx{tx: tx, userID: userID}
	if err = utx.lock(ctx); err != nil {
		return err
	}
	if err = fn(utx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return classify("commit user scope", err)
	}
	return nil
}

func (s *Postgres) GetBalance(ctx context.Context, userID string) (models.Balance, error) {
	row := s.db.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE user_id = $1", userID)
	bal, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return zeroBalance(userID), nil
	}
	if err != nil {
		return models.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

func (s *Postgres) ListEntries(ctx context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error) {
	query, args := buildEntryQuery(userID, filter)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ReceiptEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func buildEntryQuery(userID string, filter models.EntryFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + entryColumns + " FROM receipt_entries WHERE user_id = $1")
	args := []any{userID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		sb.WriteString(" AND lower(category) = lower($" + strconv.Itoa(len(args)) + ")")
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		sb.WriteString(" AND created_at >= $" + strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		sb.WriteString(" AND created_at < $" + strconv.Itoa(len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	args = append(args, limit)
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args)))
	return sb.String(), args
}

func (s *Postgres) AggregateEntries(ctx context.Context, userID string, since time.Time) (models.EntryAggregate, error) {
	var agg models.EntryAggregate
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(earned), 0),
		       COUNT(*),
		       COALESCE(SUM(earned) FILTER (WHERE created_at >= $2), 0),
		       COUNT(*) FILTER (WHERE created_at >= $2),
		       COALESCE(SUM(subtotal) FILTER (WHERE created_at >= $2), 0)
		FROM receipt_entries
		WHERE user_id = $1`, userID, since).
		Scan(&agg.TotalEarnings, &agg.TotalCount, &agg.PeriodEarnings, &agg.PeriodCount, &agg.PeriodSubtotal)
	if err != nil {
		return models.EntryAggregate{}, fmt.Errorf("aggregate entries: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT category, COUNT(*), SUM(earned)
		FROM receipt_entries
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY category
		ORDER BY SUM(earned) DESC, category`, userID, since)
	if err != nil {
		return models.EntryAggregate{}, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	agg.PeriodBreakdown = make([]models.CategoryStat, 0)
	for rows.Next() {
		var cs models.CategoryStat
		if err := rows.Scan(&cs.Category, &cs.Count, &cs.TotalEarnings); err != nil {
			return models.EntryAggregate{}, fmt.Errorf("scan category: %w", err)
		}
		agg.PeriodBreakdown = append(agg.PeriodBreakdown, cs)
	}
	return agg, rows.Err()
}

func (s *Postgres) GetWithdrawal(ctx context.Context, id string) (models.Withdrawal, error) {
	row := s.db.QueryRow(ctx, "SELECT "+withdrawalColumns+" FROM withdrawals WHERE id = $1", id)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}
	if err != nil {
		return models.Withdrawal{}, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

func (s *Postgres) ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return collectWithdrawals(rows)
}

func (s *Postgres) WithdrawalTotals(ctx context.Context, userID string) (models.WithdrawalStats, error) {
	var st models.WithdrawalStats
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE state = $2), 0),
		       COALESCE(SUM(amount) FILTER (WHERE state = $3), 0),
		       COUNT(*)
		FROM withdrawals
		WHERE user_id = $1`, userID, constants.StatusCompleted, constants.StatusReserved).
		Scan(&st.TotalWithdrawn, &st.PendingAmount, &st.TotalCount)
	if err != nil {
		return models.WithdrawalStats{}, fmt.Errorf("withdrawal totals: %w", err)
	}
	return st, nil
}

func (s *Postgres) ListStaleReservations(ctx context.Context, before time.Time, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	rows, err := s.db.Query(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawals WHERE state = $1 AND created_at < $2 ORDER BY created_at LIMIT $3",
		constants.StatusReserved, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale reservations: %w", err)
	}
	return collectWithdrawals(rows)
}

type pgUserTx struct {
	tx     pgx.Tx
	userID string
}

func (t *pgUserTx) UserID() string { return t.userID }

// lock creates the balance row on first use and holds it for the rest of the
// transaction, which serializes every scope of the same user.
func (t *pgUserTx) lock(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx,
		"INSERT INTO balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", t.userID); err != nil {
		return classify("create balance", err)
	}
	if _, err := t.tx.Exec(ctx, "SELECT 1 FROM balances WHERE user_id = $1 FOR UPDATE", t.userID); err != nil {
		return classify("lock balance", err)
	}
	return nil
}

func (t *pgUserTx) Balance(ctx context.Context) (models.Balance, error) {
	bal, err := scanBalance(t.tx.QueryRow(ctx, "SELECT "+balanceColumns+" FROM balances WHERE user_id = $1", t.userID))
	if err != nil {
		return models.Balance{}, classify("read balance", err)
	}
	return bal, nil
}

func (t *pgUserTx) Credit(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if amount.IsNegative() {
		return models.Balance{}, models.ErrAmountRequired
	}
	return t.updateBalance(ctx, "credit", `
		UPDATE balances
		SET available = available + $2, lifetime_earnings = lifetime_earnings + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING `+balanceColumns, amount)
}

func (t *pgUserTx) Reserve(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrAmountRequired
	}
	bal, err := t.updateBalance(ctx, "reserve", `
		UPDATE balances
		SET available = available - $2, pending = pending + $2, updated_at = now()
		WHERE user_id = $1 AND available >= $2
		RETURNING `+balanceColumns, amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Balance{}, models.ErrInsufficientBalance
	}
	return bal, err
}

func (t *pgUserTx) FinalizeReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrAmountRequired
	}
	return t.updateBalance(ctx, "finalize reservation", `
		UPDATE balances
		SET pending = pending - $2, updated_at = now()
		WHERE user_id = $1
		RETURNING `+balanceColumns, amount)
}

func (t *pgUserTx) ReleaseReservation(ctx context.Context, amount decimal.Decimal) (models.Balance, error) {
	if !amount.IsPositive() {
		return models.Balance{}, models.ErrAmountRequired
	}
	return t.updateBalance(ctx, "release reservation", `
		UPDATE balances
		SET available = available + $2, pending = pending - $2, updated_at = now()
		WHERE user_id = $1
		RETURNING `+balanceColumns, amount)
}

// updateBalance returns pgx.ErrNoRows unwrapped so Reserve can tell a failed
// guard from a real error.
func (t *pgUserTx) updateBalance(ctx context.Context, op, query string, amount decimal.Decimal) (models.Balance, error) {
	bal, err := scanBalance(t.tx.QueryRow(ctx, query, t.userID, amount))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Balance{}, err
	}
	if err != nil {
		return models.Balance{}, classify(op, err)
	}
	return bal, nil
}

func (t *pgUserTx) EntryExists(ctx context.Context, dedupeKey string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM receipt_entries WHERE user_id = $1 AND dedupe_key = $2)",
		t.userID, dedupeKey).Scan(&exists)
	if err != nil {
		return false, classify("check entry", err)
	}
	return exists, nil
}

func (t *pgUserTx) RecordEntry(ctx context.Context, e models.ReceiptEntry) (bool, error) {
	if e.UserID != t.userID {
		return false, fmt.Errorf("record entry: entry belongs to %q, scope is %q", e.UserID, t.userID)
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO receipt_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, dedupe_key) DO NOTHING`,
		e.ID, e.UserID, e.Merchant, e.Category, e.Subtotal, e.Earned, e.Multiplier, e.DedupeKey, e.CreatedAt)
	if err != nil {
		return false, classify("record entry", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgUserTx) IncrementDailyCount(ctx context.Context, bucket string, limit int) (int, bool, error) {
	if limit > 0 {
		var count int
		err := t.tx.QueryRow(ctx, `
			INSERT INTO daily_upload_counters (user_id, day, count)
			VALUES ($1, $2, 1)
			ON CONFLICT (user_id, day) DO UPDATE
			SET count = daily_upload_counters.count + 1
			WHERE daily_upload_counters.count < $3
			RETURNING count`, t.userID, bucket, limit).Scan(&count)
		if err == nil {
			return count, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, classify("increment upload counter", err)
		}
	}

	var count int
	err := t.tx.QueryRow(ctx,
		"SELECT count FROM daily_upload_counters WHERE user_id = $1 AND day = $2", t.userID, bucket).Scan(&count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, classify("read upload counter", err)
	}
	return count, false, nil
}

func (t *pgUserTx) CreateWithdrawal(ctx context.Context, w models.Withdrawal) error {
	if w.UserID != t.userID {
		return fmt.Errorf("create withdrawal: withdrawal belongs to %q, scope is %q", w.UserID, t.userID)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO withdrawals (`+withdrawalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.UserID, w.Amount, w.Method, w.Destination, w.State, w.FailureReason, w.CreatedAt, w.ProcessedAt)
	if err != nil {
		return classify("create withdrawal", err)
	}
	return nil
}

func (t *pgUserTx) LockWithdrawal(ctx context.Context, id string) (models.Withdrawal, error) {
	row := t.tx.QueryRow(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawals WHERE id = $1 AND user_id = $2 FOR UPDATE", id, t.userID)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}
	if err != nil {
		return models.Withdrawal{}, classify("lock withdrawal", err)
	}
	return w, nil
}

func (t *pgUserTx) UpdateWithdrawal(ctx context.Context, w models.Withdrawal) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE withdrawals
		SET state = $3, failure_reason = $4, processed_at = $5
		WHERE id = $1 AND user_id = $2`,
		w.ID, t.userID, w.State, w.FailureReason, w.ProcessedAt)
	if err != nil {
		return classify("update withdrawal", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWithdrawalNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (models.Balance, error) {
	var b models.Balance
	err := row.Scan(&b.UserID, &b.Available, &b.Pending, &b.LifetimeEarnings, &b.UpdatedAt)
	return b, err
}

func scanEntry(row rowScanner) (models.ReceiptEntry, error) {
	var e models.ReceiptEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Merchant, &e.Category, &e.Subtotal, &e.Earned, &e.Multiplier, &e.DedupeKey, &e.CreatedAt)
	return e, err
}

func scanWithdrawal(row rowScanner) (models.Withdrawal, error) {
	var (
		w           models.Withdrawal
		processedAt pgtype.Timestamptz
	)
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.Method, &w.Destination, &w.State, &w.FailureReason, &w.CreatedAt, &processedAt)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if processedAt.Valid {
		ts := processedAt.Time
		w.ProcessedAt = &ts
	}
	return w, nil
}

func collectWithdrawals(rows pgx.Rows) ([]models.Withdrawal, error) {
	defer rows.Close()
	out := make([]models.Withdrawal, 0)
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func zeroBalance(userID string) models.Balance {
	return models.Balance{
		UserID:           userID,
		Available:        decimal.Zero,
		Pending:          decimal.Zero,
		LifetimeEarnings: decimal.Zero,
	}
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// classify wraps err with op and turns CHECK violations into consistency
// faults: the constraints only fire when a balance would go negative.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
		return fmt.Errorf("%s: %w (constraint %s)", op, models.ErrConsistencyFault, pgErr.ConstraintName)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: duplicate key %s: %w", op, pgErr.ConstraintName, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
