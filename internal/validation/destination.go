package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/go-playground/validator/v10"
)

type DestinationValidator interface {
	ValidateDestination(method, destination string) error
}

// PaymentValidator checks that a payout destination has the shape its method
// expects: an email address for wallet methods, a card number for cards.
type PaymentValidator struct {
	validate   *validator.Validate
	cardDigits *regexp.Regexp
}

func NewPaymentValidator() *PaymentValidator {
	return &PaymentValidator{
		validate:   validator.New(),
		cardDigits: regexp.MustCompile(`^\d{12,19}$`),
	}
}

func (v *PaymentValidator) ValidateDestination(method, destination string) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return models.ErrDestinationEmpty
	}

	switch method {
	case constants.MethodPayPal, constants.MethodVenmo:
		if err := v.validate.Var(destination, "required,email"); err != nil {
			return fmt.Errorf("%w: %s requires an email address", models.ErrInvalidDestination, method)
		}
	case constants.MethodCard:
		digits := NormalizeCardNumber(destination)
		if !v.cardDigits.MatchString(digits) || !validCardChecksum(digits) {
			return fmt.Errorf("%w: card number failed checksum", models.ErrInvalidDestination)
		}
	default:
		return fmt.Errorf("%w: %s", models.ErrUnsupportedMethod, method)
	}
	return nil
}

func NormalizeCardNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// MaskDestination hides everything but the tail of a card number; emails are
// returned as is.
func MaskDestination(method, destination string) string {
	if method != constants.MethodCard {
		return destination
	}
	digits := NormalizeCardNumber(destination)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
