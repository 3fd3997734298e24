package models

import "errors"

var (
	ErrUserRequired      = errors.New("user id is required")
	ErrCategoryRequired  = errors.New("category is required")
	ErrDedupeKeyRequired = errors.New("dedupe key is required")
	ErrInvalidSubtotal   = errors.New("subtotal must not be negative")
	ErrAmountRequired    = errors.New("positive amount is required")
	ErrMethodRequired    = errors.New("payment method is required")
	ErrDestinationEmpty  = errors.New("payment destination is required")
	ErrInvalidPeriod     = errors.New("invalid stats period")
	ErrInvalidOutcome    = errors.New("unknown payout outcome")
)

var (
	ErrDuplicateReceipt    = errors.New("receipt already exists")
	ErrDailyLimitExceeded  = errors.New("daily upload limit exceeded")
	ErrBelowMinimum        = errors.New("withdrawal amount is below the minimum")
	ErrAmountPrecision     = errors.New("amount must have at most two decimal places")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrInvalidDestination  = errors.New("invalid payment destination")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrInvalidTransition  = errors.New("invalid withdrawal state transition")
	ErrPayoutFailed       = errors.New("payout failed")
	ErrConsistencyFault   = errors.New("ledger consistency fault")
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindPolicy      Kind = "policy"
	KindExternal    Kind = "external"
	KindConsistency Kind = "consistency"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindInternal    Kind = "internal"
)

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConsistencyFault):
		return KindConsistency
	case IsValidation(err):
		return KindValidation
	case IsPolicyViolation(err):
		return KindPolicy
	case errors.Is(err, ErrPayoutFailed):
		return KindExternal
	case errors.Is(err, ErrWithdrawalNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindConflict
	}
	return KindInternal
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrUserRequired) ||
		errors.Is(err, ErrCategoryRequired) ||
		errors.Is(err, ErrDedupeKeyRequired) ||
		errors.Is(err, ErrInvalidSubtotal) ||
		errors.Is(err, ErrAmountRequired) ||
		errors.Is(err, ErrAmountPrecision) ||
		errors.Is(err, ErrMethodRequired) ||
		errors.Is(err, ErrDestinationEmpty) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidOutcome) ||
		errors.Is(err, ErrUnsupportedMethod) ||
		errors.Is(err, ErrInvalidDestination)
}

func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrDuplicateReceipt) ||
		errors.Is(err, ErrDailyLimitExceeded) ||
		errors.Is(err, ErrBelowMinimum) ||
		errors.Is(err, ErrInsufficientBalance)
}
