package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleType represents the kind of payment rule.
type RuleType string

const (
	RuleTypeBaseRate   RuleType = "BASE_RATE"
	RuleTypeMultiplier RuleType = "MULTIPLIER"
	RuleTypeDiscount   RuleType = "DISCOUNT"
	RuleTypeFlatFee    RuleType = "FLAT_FEE"
)

// Known reports whether the engine knows how to apply the rule type.
func (t RuleType) Known() bool {
	switch t {
	case RuleTypeBaseRate, RuleTypeMultiplier, RuleTypeDiscount, RuleTypeFlatFee:
		return true
	default:
		return false
	}
}

// PaymentRule defines a single pricing policy configured for a venue.
type PaymentRule struct {
	ID      string `json:"id"`
	VenueID string `json:"venue_id"`
	Name    string `json:"name,omitempty"`
	// SpaceIDs restricts the rule to the listed spaces. Empty means every space of the venue.
	SpaceIDs []string `json:"space_ids,omitempty"`
	RuleType RuleType `json:"rule_type"`
	// Priority orders evaluation, lowest first.
	Priority int `json:"priority"`

	// PricePerPeriod is the price of one period for BASE_RATE and the flat amount for FLAT_FEE.
	PricePerPeriod decimal.NullDecimal `json:"price_per_period"`
	PeriodMinutes  *int                `json:"period_minutes,omitempty"`
	Multiplier     decimal.NullDecimal `json:"multiplier"`
	// DiscountRate is the fraction removed, in [0,1].
	DiscountRate decimal.NullDecimal `json:"discount_rate"`

	// StartTime and EndTime are minute-of-day bounds (0-1439).
	StartTime *int `json:"start_time,omitempty"`
	EndTime   *int `json:"end_time,omitempty"`
	// DaysOfWeek uses 0 for Sunday. Empty means every day.
	DaysOfWeek []int `json:"days_of_week,omitempty"`

	Conditions []PriceCondition `json:"conditions,omitempty"`
}

// PriceCondition narrows when, or for whom, a rule applies.
type PriceCondition struct {
	ID        string   `json:"id,omitempty"`
	StartTime *int     `json:"start_time,omitempty"`
	EndTime   *int     `json:"end_time,omitempty"`
	UserTags  []string `json:"user_tags,omitempty"`
}

// Booking is the interval under evaluation together with who asks for it.
type Booking struct {
	Start    time.Time
	End      time.Time
	SpaceID  string
	UserTags []string
}

// LineItem records what a single rule contributed.
type LineItem struct {
	RuleID string          `json:"rule_id"`
	Amount decimal.Decimal `json:"amount"`
}

// PriceBreakdown itemizes the rules that contributed to a price.
type PriceBreakdown struct {
	BaseRate    *LineItem       `json:"base_rate,omitempty"`
	Multipliers []LineItem      `json:"multipliers"`
	Discounts   []LineItem      `json:"discounts"`
	Fees        []LineItem      `json:"fees"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
}

// Result is the outcome of running a rule set against a booking.
type Result struct {
	RequiresPayment bool            `json:"requires_payment"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	PriceBreakdown  *PriceBreakdown `json:"price_breakdown,omitempty"`
}

// Free is the result returned when nothing has to be paid.
func Free() Result {
	return Result{TotalCost: decimal.Zero}
}
