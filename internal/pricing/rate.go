package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculateBaseRate returns the price of a BASE_RATE rule over the interval.
// Every period the booking touches is billed in full. A rule without a price
// or period is free.
func CalculateBaseRate(rule PaymentRule, start, end time.Time) decimal.Decimal {
	if !rule.PricePerPeriod.Valid || rule.PeriodMinutes == nil || *rule.PeriodMinutes <= 0 {
		return decimal.Zero
	}

	duration := end.Sub(start)
	if duration <= 0 {
		return decimal.Zero
	}

	// Whole minutes first: ceil(ceil(d)/p) == ceil(d/p) for an integral p,
	// and neither division can overflow.
	minutes := int64(duration / time.Minute)
	if duration%time.Minute != 0 {
		minutes++
	}
	period := int64(*rule.PeriodMinutes)
	periods := minutes / period
	if minutes%period != 0 {
		periods++
	}

	return rule.PricePerPeriod.Decimal.Mul(decimal.NewFromInt(periods))
}
