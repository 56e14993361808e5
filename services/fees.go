package services

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// FeeSchedule maps integer USD tiers to a fixed service fee. Amounts that do
// not hit an exact tier get a zero fee; every miss is logged so pricing gaps
// are visible to operators instead of silently charging nothing.
type FeeSchedule struct {
	tiers map[int64]decimal.Decimal
}

// NewFeeSchedule builds a schedule from tier -> fee strings. Invalid fee
// strings are skipped.
func NewFeeSchedule(tiers map[int64]string) *FeeSchedule {
	s := &FeeSchedule{tiers: make(map[int64]decimal.Decimal, len(tiers))}
	for tier, fee := range tiers {
		d, err := decimal.NewFromString(fee)
		if err != nil {
			slog.Warn("fee schedule: skipping invalid fee", "tier", tier, "fee", fee)
			continue
		}
		s.tiers[tier] = d
	}
	return s
}

// DefaultFeeSchedule is the production tier table.
func DefaultFeeSchedule() *FeeSchedule {
	return NewFeeSchedule(map[int64]string{
		5:  "1.79",
		6:  "1.89",
		8:  "1.99",
		10: "2.19",
		12: "2.29",
		15: "2.58",
		17: "2.77",
		20: "3.17",
		30: "3.49",
	})
}

// FeeFor returns the fee for an amount, zero when no tier matches exactly.
func (s *FeeSchedule) FeeFor(amount decimal.Decimal) decimal.Decimal {
	if amount.IsInteger() {
		if fee, ok := s.tiers[amount.IntPart()]; ok {
			return fee
		}
	}
	slog.Warn("fee schedule: no tier for amount, charging zero fee", "amount", amount)
	return decimal.Zero
}

// Tiers returns the configured tier amounts in no particular order, for
// building product pages.
func (s *FeeSchedule) Tiers() map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal, len(s.tiers))
	for tier, fee := range s.tiers {
		out[tier] = fee
	}
	return out
}
