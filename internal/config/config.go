package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/pricing"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is read from flags first; environment variables override flags.
type Config struct {
	RunAddr        string `env:"RUN_ADDRESS"`
	DatabaseURI    string `env:"DATABASE_URI"`
	PayoutAddr     string `env:"PAYOUT_SYSTEM_ADDRESS"`
	JWTSecret      string `env:"JWT_SECRET"`
	CallbackSecret string `env:"PAYOUT_CALLBACK_SECRET"`
	Storage        string `env:"STORAGE"`
	LogLevel       string `env:"LOG_LEVEL"`
	LogPretty      bool   `env:"LOG_PRETTY"`

	DailyUploadLimit   int             `env:"DAILY_UPLOAD_LIMIT"`
	MinimumWithdrawal  decimal.Decimal `env:"MINIMUM_WITHDRAWAL"`
	PaymentMethods     []string        `env:"SUPPORTED_PAYMENT_METHODS" envSeparator:","`
	UploadDayTimezone  string          `env:"UPLOAD_DAY_TIMEZONE"`
	ReservationTimeout time.Duration   `env:"RESERVATION_TIMEOUT"`
	SweepInterval      time.Duration   `env:"SWEEP_INTERVAL"`

	CategoryRates pricing.Table   `env:"CATEGORY_RATES"`
	DefaultRate   decimal.Decimal `env:"DEFAULT_RATE"`
	SubtotalRate  decimal.Decimal `env:"SUBTOTAL_RATE"`
	EarningMin    decimal.Decimal `env:"EARNING_CLAMP_MIN"`
	EarningMax    decimal.Decimal `env:"EARNING_CLAMP_MAX"`
}

func defaults() *Config {
	rules := pricing.DefaultRuleSet()
	return &Config{
		RunAddr:            ":8080",
		PayoutAddr:         "",
		JWTSecret:          constants.DefaultJWTSecret,
		Storage:            StoragePostgres,
		LogLevel:           "info",
		DailyUploadLimit:   constants.DefaultDailyUploadLimit,
		MinimumWithdrawal:  decimal.RequireFromString(constants.DefaultMinimumWithdrawal),
		PaymentMethods:     []string{constants.MethodPayPal, constants.MethodVenmo},
		UploadDayTimezone:  "UTC",
		ReservationTimeout: mustDuration(constants.DefaultReservationTimeout),
		SweepInterval:      mustDuration(constants.DefaultSweepInterval),
		DefaultRate:        rules.Default.Base,
		SubtotalRate:       rules.SubtotalRate,
		EarningMin:         rules.Min,
		EarningMax:         rules.Max,
	}
}

// NewConfig parses args (without the program name) and the process
// environment.
func NewConfig(args []string) (*Config, error) {
	return parse(args, nil)
}

func parse(args []string, environ map[string]string) (*Config, error) {
	cfg := defaults()

	fs := flag.NewFlagSet("receiptbank", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddr, "a", cfg.RunAddr, "server address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "database URI")
	fs.StringVar(&cfg.PayoutAddr, "p", cfg.PayoutAddr, "payout system address")
	fs.StringVar(&cfg.JWTSecret, "j", cfg.JWTSecret, "JWT secret")
	fs.IntVar(&cfg.DailyUploadLimit, "l", cfg.DailyUploadLimit, "daily receipt upload limit")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: postgres or memory")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.DatabaseURI = strings.TrimSpace(cfg.DatabaseURI)
	cfg.PayoutAddr = strings.TrimSpace(cfg.PayoutAddr)
	for i, m := range cfg.PaymentMethods {
		cfg.PaymentMethods[i] = strings.ToLower(strings.TrimSpace(m))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURI == "" {
			return errors.New("DATABASE_URI is required")
		}
		if c.UsesDefaultSecret() {
			return errors.New("JWT_SECRET must be set to a non-default value")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if _, err := c.LedgerConfig(); err != nil {
		return err
	}
	return c.RuleSet().Validate()
}

// UsesDefaultSecret reports whether tokens would be checked against the
// built-in development secret.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == constants.DefaultJWTSecret
}

// LedgerConfig builds the settings handed to the ledger service.
func (c *Config) LedgerConfig() (usecase.LedgerConfig, error) {
	loc, err := time.LoadLocation(c.UploadDayTimezone)
	if err != nil {
		return usecase.LedgerConfig{}, fmt.Errorf("invalid upload day timezone %q: %w", c.UploadDayTimezone, err)
	}
	lc := usecase.LedgerConfig{
		DailyUploadLimit:   c.DailyUploadLimit,
		MinimumWithdrawal:  c.MinimumWithdrawal,
		SupportedMethods:   append([]string(nil), c.PaymentMethods...),
		Location:           loc,
		ReservationTimeout: c.ReservationTimeout,
	}
	return lc, lc.Validate()
}

// RuleSet overlays the configured category rates on the built-in table.
func (c *Config) RuleSet() pricing.RuleSet {
	rules := pricing.DefaultRuleSet()
	for name, r := range c.CategoryRates {
		rules.Rules[pricing.NormalizeCategory(name)] = r
	}
	rules.Default = pricing.Rule{Base: c.DefaultRate, Multiplier: 1}
	rules.SubtotalRate = c.SubtotalRate
	rules.Min = c.EarningMin
	rules.Max = c.EarningMax
	return rules
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}
