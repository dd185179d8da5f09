package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	INR Currency = "INR" // Indian Rupee (default)
	USD Currency = "USD" // US Dollar
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = INR

// MoneyScale is the number of decimal places money is kept at
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Money is a value object representing a monetary amount in a currency.
// It is immutable - all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: Round(amount), currency: currency}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// MinorUnits returns the amount in the smallest currency unit (paise, cents)
func (m Money) MinorUnits() int64 {
	return MinorUnits(m.amount)
}

// String renders the amount with two decimals and the currency code
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(MoneyScale), m.currency)
}

// Round rounds half-up (away from zero) to two decimal places
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// NonNegative clamps negative amounts to zero
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MinorUnits converts a major-unit amount to integer minor units
func MinorUnits(d decimal.Decimal) int64 {
	return Round(d).Mul(hundred).IntPart()
}

// FromMinorUnits converts integer minor units back to a major-unit amount
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Div(hundred)
}

// PercentOf returns round_half_up(base * percent / 100, 2)
func PercentOf(base, percent decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(percent).Div(hundred))
}

// RatioPercent returns part / whole * 100 rounded to two places, or zero when whole is zero
func RatioPercent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Round(part.Div(whole).Mul(hundred))
}

// Format renders an amount with two decimals, e.g. "1025.00"
func Format(d decimal.Decimal) string {
	return Round(d).StringFixed(MoneyScale)
}
