package pricing

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/log"
)

// CurrencyPlaces is the number of decimal places of a final price.
const CurrencyPlaces = 2

// Engine folds payment rules into a price. It holds no state besides its
// logger and is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables diagnostics.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// RunPaymentRules prices the booking with an engine backed by the global logger.
func RunPaymentRules(rules []PaymentRule, start, end time.Time, spaceID string, userTags ...string) Result {
	engine := NewEngine(log.L(context.Background()))
	return engine.Run(rules, Booking{Start: start, End: end, SpaceID: spaceID, UserTags: userTags})
}

// fold is the running state while rules are applied.
type fold struct {
	total           decimal.Decimal
	requiresPayment bool
	baseRateApplied bool
	breakdown       PriceBreakdown

	// fees is the part of total contributed by flat fees, scaled by every
	// multiplier and discount applied after them.
	fees decimal.Decimal
}

// Run applies the rules to the booking in ascending priority order. Rules
// that do not apply, or carry an unknown type, leave the price untouched.
// The rules slice is not modified.
func (e *Engine) Run(rules []PaymentRule, b Booking) Result {
	if b.End.Before(b.Start) || len(rules) == 0 {
		return Free()
	}

	scoped := make([]PaymentRule, 0, len(rules))
	for _, rule := range rules {
		if AppliesToSpace(rule, b.SpaceID) {
			scoped = append(scoped, rule)
		}
	}
	slices.SortStableFunc(scoped, func(x, y PaymentRule) int {
		return cmp.Compare(x.Priority, y.Priority)
	})

	st := &fold{
		total: decimal.Zero,
		fees:  decimal.Zero,
		breakdown: PriceBreakdown{
			Multipliers: []LineItem{},
			Discounts:   []LineItem{},
			Fees:        []LineItem{},
		},
	}

	for _, rule := range scoped {
		if !IsApplicable(rule, b.Start, b.End, b.UserTags) {
			continue
		}
		e.apply(st, rule, b)
	}

	total := st.total.Round(CurrencyPlaces)
	requiresPayment := st.requiresPayment
	// Checked on the rounded figure so a sub-cent total never asks for payment.
	if total.IsZero() {
		requiresPayment = false
	}

	result := Result{
		RequiresPayment: requiresPayment,
		TotalCost:       total,
	}

	bd := st.breakdown
	if bd.BaseRate != nil || len(bd.Multipliers) > 0 || len(bd.Discounts) > 0 || len(bd.Fees) > 0 {
		bd.Subtotal = st.total.Sub(st.fees).Round(CurrencyPlaces)
		bd.Total = total
		result.PriceBreakdown = &bd
	}

	return result
}

func (e *Engine) apply(st *fold, rule PaymentRule, b Booking) {
	switch rule.RuleType {
	case RuleTypeBaseRate:
		// Only the first applicable base rate counts.
		if st.baseRateApplied {
			return
		}
		amount := CalculateBaseRate(rule, b.Start, b.End)
		st.total = st.total.Add(amount)
		if !amount.IsZero() {
			st.requiresPayment = true
		}
		st.breakdown.BaseRate = &LineItem{RuleID: rule.ID, Amount: amount}
		st.baseRateApplied = true

	case RuleTypeMultiplier:
		m := decimal.NewFromInt(1)
		if rule.Multiplier.Valid {
			m = rule.Multiplier.Decimal
		}
		next := st.total.Mul(m)
		st.breakdown.Multipliers = append(st.breakdown.Multipliers, LineItem{
			RuleID: rule.ID,
			Amount: next.Sub(st.total),
		})
		st.total = next
		st.fees = st.fees.Mul(m)

	case RuleTypeDiscount:
		d := decimal.Zero
		if rule.DiscountRate.Valid {
			d = rule.DiscountRate.Decimal
		}
		// Discounts apply to the running total, so consecutive ones compound.
		amount := st.total.Mul(d)
		st.breakdown.Discounts = append(st.breakdown.Discounts, LineItem{
			RuleID: rule.ID,
			Amount: amount.Neg(),
		})
		st.total = st.total.Sub(amount)
		st.fees = st.fees.Sub(st.fees.Mul(d))

	case RuleTypeFlatFee:
		if !rule.PricePerPeriod.Valid || rule.PricePerPeriod.Decimal.IsZero() {
			return
		}
		fee := rule.PricePerPeriod.Decimal
		st.total = st.total.Add(fee)
		st.fees = st.fees.Add(fee)
		st.breakdown.Fees = append(st.breakdown.Fees, LineItem{RuleID: rule.ID, Amount: fee})
		st.requiresPayment = true

	default:
		e.logger.Warn("Ignoring payment rule with unknown type",
			zap.String("rule_id", rule.ID),
			zap.String("rule_type", string(rule.RuleType)))
	}
}
