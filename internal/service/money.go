package service

import "github.com/shopspring/decimal"

// centScale is the scale of every money and rate column (DECIMAL(14,2) and
// DECIMAL(5,2)).
const centScale = 2

// checkCents rejects values that the database would round on write, so a
// decision is never taken on an amount that differs from the stored one.
// Trailing zeros past the second place are accepted.
func checkCents(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(centScale)) {
		return ErrInvalidInput.WithMessage(field + " must not have more than two decimal places")
	}
	return nil
}
