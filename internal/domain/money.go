package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in centavos (two implied decimals) of the local
// currency. Multiplication stays in integers; every division goes through
// shopspring/decimal and rounds half-up to the cent.
type Money int64

// Decimal returns the amount as a decimal in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats the amount with two decimals, e.g. "1250.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MoneyFromDecimal converts a currency-unit decimal to centavos, rounding
// half-up to the cent.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// ParseMoney parses a currency-unit string such as "1250" or "1250.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	return MoneyFromDecimal(d), nil
}

// Percent is a percentage with two implied decimals (hundredths of a
// percent): 20% is stored as 2000.
type Percent int64

// Decimal returns the percentage as a decimal, e.g. 20.5 for 2050.
func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// String formats the percentage with two decimals, e.g. "20.50".
func (p Percent) String() string {
	return p.Decimal().StringFixed(2)
}

// ParsePercent parses a percentage string such as "20" or "20.5".
func ParsePercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	if d.Exponent() < -2 {
		return 0, fmt.Errorf("percentage %q has more than two decimals", s)
	}
	return Percent(d.Shift(2).Round(0).IntPart()), nil
}

// PercentOf computes p percent of base, rounded half-up to the cent.
func PercentOf(base Money, p Percent) Money {
	if base == 0 || p == 0 {
		return 0
	}
	d := decimal.NewFromInt(int64(base)).
		Mul(decimal.NewFromInt(int64(p))).
		Div(decimal.NewFromInt(10000))
	return Money(d.Round(0).IntPart())
}

// DistributeProportional splits total across weights in proportion, rounding
// each share half-up to the cent. The rounding residue lands on the last
// entry with a positive weight so the shares always sum to total exactly.
// Entries with zero weight receive zero.
func DistributeProportional(total Money, weights []Money) []Money {
	shares := make([]Money, len(weights))
	if total == 0 || len(weights) == 0 {
		return shares
	}
	var sum Money
	last := -1
	for i, w := range weights {
		if w > 0 {
			sum += w
			last = i
		}
	}
	if sum == 0 {
		return shares
	}
	var assigned Money
	totalDec := decimal.NewFromInt(int64(total))
	sumDec := decimal.NewFromInt(int64(sum))
	for i, w := range weights {
		if w <= 0 || i == last {
			continue
		}
		share := totalDec.
			Mul(decimal.NewFromInt(int64(w))).
			Div(sumDec).
			Round(0)
		shares[i] = Money(share.IntPart())
		assigned += shares[i]
	}
	shares[last] = total - assigned
	return shares
}
