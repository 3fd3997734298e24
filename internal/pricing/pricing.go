// Package pricing maps a receipt's category and subtotal to the amount the
// user earns for it. Everything here is pure: identical inputs always give
// identical outputs, so audits can replay any historical entry.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Rule struct {
	Base       decimal.Decimal
	Multiplier int
}

// Table is a category rate table that can be read from configuration in the
// form "electronics=0.75:2,coffee=0.03".
type Table map[string]Rule

func (t *Table) UnmarshalText(text []byte) error {
	parsed, err := ParseTable(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Table) String() string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		r := t[k]
		parts = append(parts, fmt.Sprintf("%s=%s:%d", k, r.Base.StringFixed(2), r.Multiplier))
	}
	return strings.Join(parts, ",")
}

func ParseTable(s string) (Table, error) {
	table := make(Table)
	s = strings.TrimSpace(s)
	if s == "" {
		return table, nil
	}

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, spec, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q: expected category=base[:multiplier]", item)
		}
		baseStr, multStr, hasMult := strings.Cut(spec, ":")

		base, err := decimal.NewFromString(strings.TrimSpace(baseStr))
		if err != nil {
			return nil, fmt.Errorf("rate %q: invalid base: %w", item, err)
		}
		mult := 1
		if hasMult {
			mult, err = strconv.Atoi(strings.TrimSpace(multStr))
			if err != nil {
				return nil, fmt.Errorf("rate %q: invalid multiplier: %w", item, err)
			}
		}
		table[NormalizeCategory(name)] = Rule{Base: base, Multiplier: mult}
	}
	return table, nil
}

type RuleSet struct {
	Rules        Table
	Default      Rule
	SubtotalRate decimal.Decimal
	Min          decimal.Decimal
	Max          decimal.Decimal
}

func DefaultRuleSet() RuleSet {
	return RuleSet{
		Rules: Table{
			"electronics": {Base: decimal.RequireFromString("0.75"), Multiplier: 2},
			"grocery":     {Base: decimal.RequireFromString("0.08"), Multiplier: 1},
			"retail":      {Base: decimal.RequireFromString("0.15"), Multiplier: 1},
			"restaurant":  {Base: decimal.RequireFromString("0.12"), Multiplier: 1},
			"coffee":      {Base: decimal.RequireFromString("0.03"), Multiplier: 1},
			"pharmacy":    {Base: decimal.RequireFromString("0.10"), Multiplier: 1},
			"gas":         {Base: decimal.RequireFromString("0.05"), Multiplier: 1},
		},
		Default:      Rule{Base: decimal.RequireFromString("0.02"), Multiplier: 1},
		SubtotalRate: decimal.RequireFromString("0.0005"),
		Min:          decimal.RequireFromString("0.02"),
		Max:          decimal.RequireFromString("2.50"),
	}
}

func (rs RuleSet) Validate() error {
	if rs.Min.IsNegative() {
		return errors.New("pricing: minimum earning must not be negative")
	}
	if rs.Min.GreaterThan(rs.Max) {
		return fmt.Errorf("pricing: minimum earning %s exceeds maximum %s", rs.Min, rs.Max)
	}
	if rs.SubtotalRate.IsNegative() {
		return errors.New("pricing: subtotal rate must not be negative")
	}
	if err := validateRule("default", rs.Default); err != nil {
		return err
	}
	for name, r := range rs.Rules {
		if err := validateRule(name, r); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(name string, r Rule) error {
	if r.Base.IsNegative() {
		return fmt.Errorf("pricing: category %s has negative base rate", name)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("pricing: category %s multiplier must be at least 1", name)
	}
	return nil
}

type Policy struct {
	rules RuleSet
}

func NewPolicy(rules RuleSet) (*Policy, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	normalized := make(Table, len(rules.Rules))
	for name, r := range rules.Rules {
		normalized[NormalizeCategory(name)] = r
	}
	rules.Rules = normalized
	return &Policy{rules: rules}, nil
}

// PriceReceipt returns the earned amount, rounded to cents and clamped to the
// configured band, and the multiplier that was applied.
func (p *Policy) PriceReceipt(category string, subtotal decimal.Decimal) (decimal.Decimal, int) {
	rule := p.RuleFor(category)
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}

	earned := rule.Base.Add(subtotal.Mul(p.rules.SubtotalRate)).
		Mul(decimal.NewFromInt(int64(rule.Multiplier))).
		Round(2)

	if earned.LessThan(p.rules.Min) {
		earned = p.rules.Min
	}
	if earned.GreaterThan(p.rules.Max) {
		earned = p.rules.Max
	}
	return earned, rule.Multiplier
}

func (p *Policy) RuleFor(category string) Rule {
	if r, ok := p.rules.Rules[NormalizeCategory(category)]; ok {
		return r
	}
	return p.rules.Default
}

func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
