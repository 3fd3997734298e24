package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/pricing"
	"github.com/AlenaMolokova/receiptbank/internal/storage"
	"github.com/AlenaMolokova/receiptbank/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const topCategoriesLimit = 5

// LedgerConfig is fixed for the lifetime of a Ledger.
type LedgerConfig struct {
	DailyUploadLimit   int
	MinimumWithdrawal  decimal.Decimal
	SupportedMethods   []string
	Location           *time.Location
	ReservationTimeout time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		DailyUploadLimit:   constants.DefaultDailyUploadLimit,
		MinimumWithdrawal:  decimal.RequireFromString(constants.DefaultMinimumWithdrawal),
		SupportedMethods:   []string{constants.MethodPayPal, constants.MethodVenmo},
		Location:           time.UTC,
		ReservationTimeout: 30 * time.Minute,
	}
}

func (c LedgerConfig) Validate() error {
	if c.DailyUploadLimit < 1 {
		return errors.New("daily upload limit must be at least 1")
	}
	if c.MinimumWithdrawal.IsNegative() {
		return errors.New("minimum withdrawal must not be negative")
	}
	if len(c.SupportedMethods) == 0 {
		return errors.New("at least one payment method must be supported")
	}
	for _, m := range c.SupportedMethods {
		switch m {
		case constants.MethodPayPal, constants.MethodVenmo, constants.MethodCard:
		default:
			return fmt.Errorf("payment method %q is not known", m)
		}
	}
	if c.ReservationTimeout <= 0 {
		return errors.New("reservation timeout must be positive")
	}
	return nil
}

// PayoutExecutor moves money out to the user's payment destination. Results
// come back asynchronously through Ledger.HandlePayoutResult.
type PayoutExecutor interface {
	Submit(ctx context.Context, w models.Withdrawal) error
	Status(ctx context.Context, withdrawalID string) (models.PayoutOutcome, string, error)
}

type Ledger struct {
	store     storage.Storage
	policy    *pricing.Policy
	limiter   *RateLimiter
	executor  PayoutExecutor
	validator validation.DestinationValidator
	cfg       LedgerConfig
	methods   map[string]struct{}
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

func WithDestinationValidator(v validation.DestinationValidator) Option {
	return func(l *Ledger) { l.validator = v }
}

func NewLedger(store storage.Storage, policy *pricing.Policy, executor PayoutExecutor, cfg LedgerConfig, log zerolog.Logger, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("storage is nil")
	}
	if policy == nil {
		return nil, errors.New("pricing policy is nil")
	}
	if executor == nil {
		return nil, errors.New("payout executor is nil")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ledger config: %w", err)
	}

	methods := make(map[string]struct{}, len(cfg.SupportedMethods))
	for _, m := range cfg.SupportedMethods {
		methods[m] = struct{}{}
	}
	cfg.SupportedMethods = append([]string(nil), cfg.SupportedMethods...)

	l := &Ledger{
		store:     store,
		policy:    policy,
		limiter:   NewRateLimiter(cfg.DailyUploadLimit, cfg.Location),
		executor:  executor,
		validator: validation.NewPaymentValidator(),
		cfg:       cfg,
		methods:   methods,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type ReceiptSubmission struct {
	UserID    string
	Merchant  string
	Category  string
	Subtotal  decimal.Decimal
	DedupeKey string
}

type SubmitResult struct {
	Entry        models.ReceiptEntry
	Earned       decimal.Decimal
	Multiplier   int
	NewAvailable decimal.Decimal
	UploadsToday int
}

func (s ReceiptSubmission) validate() error {
	if s.UserID == "" {
		return models.ErrUserRequired
	}
	if strings.TrimSpace(s.Category) == "" {
		return models.ErrCategoryRequired
	}
	if strings.TrimSpace(s.DedupeKey) == "" {
		return models.ErrDedupeKeyRequired
	}
	if s.Subtotal.IsNegative() {
		return models.ErrInvalidSubtotal
	}
	return nil
}

// SubmitReceipt prices a receipt and credits the user. The duplicate check,
// the daily limit, the entry and the credit are applied together or not at
// all.
func (l *Ledger) SubmitReceipt(ctx context.Context, sub ReceiptSubmission, now time.Time) (SubmitResult, error) {
	if err := sub.validate(); err != nil {
		return SubmitResult{}, err
	}

	earned, multiplier := l.policy.PriceReceipt(sub.Category, sub.Subtotal)
	entry := models.ReceiptEntry{
		ID:         l.newID(),
		UserID:     sub.UserID,
		Merchant:   strings.TrimSpace(sub.Merchant),
		Category:   pricing.NormalizeCategory(sub.Category),
		Subtotal:   sub.Subtotal.Round(2),
		Earned:     earned,
		Multiplier: multiplier,
		DedupeKey:  strings.TrimSpace(sub.DedupeKey),
		CreatedAt:  now.UTC(),
	}
	log := l.log.With().Str("user_id", sub.UserID).Str("dedupe_key", entry.DedupeKey).Logger()

	var result SubmitResult
	err := l.store.WithinUserScope(ctx, sub.UserID, func(tx storage.UserTx) error {
		exists, err := tx.EntryExists(ctx, entry.DedupeKey)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if exists {
			return models.ErrDuplicateReceipt
		}

		decision, err := l.limiter.AuthorizeUpload(ctx, tx, now)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return fmt.Errorf("%w: %s", models.ErrDailyLimitExceeded, decision.Reason)
		}

		created, err := tx.RecordEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("record entry: %w", err)
		}
		if !created {
			return models.ErrDuplicateReceipt
		}

		bal, err := NewBalanceAccount(tx, l.log).Credit(ctx, earned)
		if err != nil {
			return err
		}

		result = SubmitResult{
			Entry:        entry,
			Earned:       earned,
			Multiplier:   multiplier,
			NewAvailable: bal.Available,
			UploadsToday: decision.Count,
		}
		return nil
	})
	if err != nil {
		switch models.KindOf(err) {
		case models.KindPolicy:
			log.Info().Err(err).Msg("receipt rejected")
		case models.KindConsistency:
			log.Error().Err(err).Msg("receipt aborted by consistency fault")
		default:
			log.Error().Err(err).Msg("failed to submit receipt")
		}
		return SubmitResult{}, err
	}

	log.Info().
		Str("category", entry.Category).
		Str("earned", earned.StringFixed(2)).
		Int("multiplier", multiplier).
		Int("uploads_today", result.UploadsToday).
		Msg("receipt credited")
	return result, nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (models.Balance, error) {
	if userID == "" {
		return models.Balance{}, models.ErrUserRequired
	}
	bal, err := l.store.GetBalance(ctx, userID)
	if err != nil {
		return models.Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

func (l *Ledger) ListReceipts(ctx context.Context, userID string, filter models.EntryFilter) ([]models.ReceiptEntry, error) {
	if userID == "" {
		return nil, models.ErrUserRequired
	}
	if filter.Category != "" {
		filter.Category = pricing.NormalizeCategory(filter.Category)
	}
	entries, err := l.store.ListEntries(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return entries, nil
}

func (l *Ledger) GetStats(ctx context.Context, userID, period string, now time.Time) (models.ReceiptStats, error) {
	if userID == "" {
		return models.ReceiptStats{}, models.ErrUserRequired
	}
	if period == "" {
		period = constants.PeriodMonth
	}
	start, err := PeriodStart(period, now, l.cfg.Location)
	if err != nil {
		return models.ReceiptStats{}, err
	}

	agg, err := l.store.AggregateEntries(ctx, userID, start)
	if err != nil {
		return models.ReceiptStats{}, fmt.Errorf("failed to aggregate receipts: %w", err)
	}

	avg := decimal.Zero
	if agg.PeriodCount > 0 {
		avg = agg.PeriodSubtotal.Div(decimal.NewFromInt(int64(agg.PeriodCount))).Round(2)
	}
	top := agg.PeriodBreakdown
	if len(top) > topCategoriesLimit {
		top = top[:topCategoriesLimit]
	}
	if top == nil {
		top = []models.CategoryStat{}
	}

	return models.ReceiptStats{
		Period:          period,
		PeriodStart:     start,
		TotalEarnings:   agg.TotalEarnings,
		PeriodEarnings:  agg.PeriodEarnings,
		TotalReceipts:   agg.TotalCount,
		PeriodReceipts:  agg.PeriodCount,
		AvgReceiptValue: avg,
		TopCategories:   top,
	}, nil
}

// PeriodStart returns the first instant of the period containing now, in loc.
// Weeks start on Monday. The "all" period starts at the zero time.
func PeriodStart(period string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)

	switch period {
	case constants.PeriodDay:
		return day, nil
	case constants.PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset), nil
	case constants.PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc), nil
	case constants.PeriodYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc), nil
	case constants.PeriodAll:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", models.ErrInvalidPeriod, period)
}
