package wallet

import (
	"bus-booking/internal/apperr"

	"github.com/shopspring/decimal"
)

// apply returns the balance after posting amount of kind onto balance.
// Amounts must be positive with at most two decimal places; debits may not
// take the balance below zero.
func apply(balance decimal.Decimal, kind Kind, amount decimal.Decimal) (decimal.Decimal, error) {
	if !kind.Valid() {
		return decimal.Decimal{}, apperr.New(apperr.ErrValidation, "unknown transaction kind %q", kind)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Decimal{}, err
	}
	if kind.Credit() {
		return balance.Add(amount), nil
	}
	if amount.GreaterThan(balance) {
		return decimal.Decimal{}, apperr.New(apperr.ErrInsufficientFunds,
			"insufficient balance: need %s, have %s", amount.StringFixed(2), balance.StringFixed(2))
	}
	return balance.Sub(amount), nil
}

// ValidateAmount rejects non-positive amounts and sub-cent precision.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.New(apperr.ErrValidation, "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.New(apperr.ErrValidation, "amount must have at most 2 decimal places")
	}
	return nil
}

// HasSufficientBalance reports whether balance covers amount.
func HasSufficientBalance(balance, amount decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(amount)
}
