package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2024-01-02 is a Tuesday.
var tuesday = time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}

func baseRate(id string, priority int, price string, period int) PaymentRule {
	return PaymentRule{
		ID:             id,
		RuleType:       RuleTypeBaseRate,
		Priority:       priority,
		PricePerPeriod: money(price),
		PeriodMinutes:  intPtr(period),
	}
}

func multiplier(id string, priority int, m string) PaymentRule {
	return PaymentRule{ID: id, RuleType: RuleTypeMultiplier, Priority: priority, Multiplier: money(m)}
}

func discount(id string, priority int, rate string) PaymentRule {
	return PaymentRule{ID: id, RuleType: RuleTypeDiscount, Priority: priority, DiscountRate: money(rate)}
}

func flatFee(id string, priority int, fee string) PaymentRule {
	return PaymentRule{ID: id, RuleType: RuleTypeFlatFee, Priority: priority, PricePerPeriod: money(fee)}
}

func run(rules []PaymentRule, start time.Time, d time.Duration, tags ...string) Result {
	return NewEngine(zap.NewNop()).Run(rules, Booking{Start: start, End: start.Add(d), SpaceID: "space-1", UserTags: tags})
}

func TestRunPaymentRules_Scenarios(t *testing.T) {
	studentDiscount := discount("student", 2, "0.25")
	studentDiscount.Conditions = []PriceCondition{{UserTags: []string{"student"}}}
	weekendOnly := baseRate("weekend", 1, "10", 60)
	weekendOnly.DaysOfWeek = []int{0, 6}

	tests := []struct {
		name            string
		rules           []PaymentRule
		start           time.Time
		duration        time.Duration
		tags            []string
		requiresPayment bool
		total           string
	}{
		{
			name:            "one full period",
			rules:           []PaymentRule{baseRate("base", 1, "10", 60)},
			start:           tuesday,
			duration:        60 * time.Minute,
			requiresPayment: true,
			total:           "10",
		},
		{
			name:            "partial period rounds up",
			rules:           []PaymentRule{baseRate("base", 1, "10", 60)},
			start:           tuesday,
			duration:        90 * time.Minute,
			requiresPayment: true,
			total:           "20",
		},
		{
			name:            "multiplier then discount",
			rules:           []PaymentRule{baseRate("base", 1, "10", 60), multiplier("peak", 2, "2"), discount("promo", 3, "0.5")},
			start:           tuesday,
			duration:        60 * time.Minute,
			requiresPayment: true,
			total:           "10",
		},
		{
			name:            "decimal precision through compounding",
			rules:           []PaymentRule{baseRate("base", 1, "9.99", 30), multiplier("peak", 2, "1.5"), discount("promo", 3, "0.333333")},
			start:           tuesday,
			duration:        30 * time.Minute,
			requiresPayment: true,
			total:           "9.99",
		},
		{
			name:            "weekend only rule on a tuesday",
			rules:           []PaymentRule{weekendOnly},
			start:           tuesday,
			duration:        60 * time.Minute,
			requiresPayment: false,
			total:           "0",
		},
		{
			name:            "student tag matches condition",
			rules:           []PaymentRule{baseRate("base", 1, "50", 60), studentDiscount},
			start:           tuesday,
			duration:        60 * time.Minute,
			tags:            []string{"student"},
			requiresPayment: true,
			total:           "37.5",
		},
		{
			name:            "regular tag misses condition",
			rules:           []PaymentRule{baseRate("base", 1, "50", 60), studentDiscount},
			start:           tuesday,
			duration:        60 * time.Minute,
			tags:            []string{"regular"},
			requiresPayment: true,
			total:           "50",
		},
		{
			name:            "booking spanning a leap year",
			rules:           []PaymentRule{baseRate("base", 1, "10", 60)},
			start:           time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			duration:        time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).Sub(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)),
			requiresPayment: true,
			total:           "87840",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(tt.rules, tt.start, tt.duration, tt.tags...)
			assert.Equal(t, tt.requiresPayment, got.RequiresPayment)
			assertMoney(t, tt.total, got.TotalCost)
		})
	}
}

func TestRunPaymentRules_PackageFunction(t *testing.T) {
	got := RunPaymentRules([]PaymentRule{baseRate("base", 1, "10", 60)}, tuesday, tuesday.Add(time.Hour), "space-1")
	assert.True(t, got.RequiresPayment)
	assertMoney(t, "10", got.TotalCost)
}

func TestRun_InvalidIntervalOrEmptyRules(t *testing.T) {
	engine := NewEngine(nil)

	got := engine.Run([]PaymentRule{baseRate("base", 1, "10", 60)}, Booking{Start: tuesday, End: tuesday.Add(-time.Minute)})
	assert.False(t, got.RequiresPayment)
	assertMoney(t, "0", got.TotalCost)
	assert.Nil(t, got.PriceBreakdown)

	got = engine.Run(nil, Booking{Start: tuesday, End: tuesday.Add(time.Hour)})
	assert.False(t, got.RequiresPayment)
	assert.Nil(t, got.PriceBreakdown)
}

func TestRun_ZeroDurationIsFree(t *testing.T) {
	got := run([]PaymentRule{baseRate("base", 1, "10", 60)}, tuesday, 0)
	assert.False(t, got.RequiresPayment)
	assertMoney(t, "0", got.TotalCost)
	require.NotNil(t, got.PriceBreakdown)
	assertMoney(t, "0", got.PriceBreakdown.BaseRate.Amount)
}

func TestRun_Breakdown(t *testing.T) {
	rules := []PaymentRule{
		flatFee("cleaning", 4, "5"),
		discount("promo", 3, "0.1"),
		multiplier("peak", 2, "1.5"),
		baseRate("base", 1, "20", 60),
	}

	got := run(rules, tuesday, 2*time.Hour)
	require.NotNil(t, got.PriceBreakdown)
	bd := got.PriceBreakdown

	require.NotNil(t, bd.BaseRate)
	assert.Equal(t, "base", bd.BaseRate.RuleID)
	assertMoney(t, "40", bd.BaseRate.Amount)

	require.Len(t, bd.Multipliers, 1)
	assert.Equal(t, "peak", bd.Multipliers[0].RuleID)
	assertMoney(t, "20", bd.Multipliers[0].Amount)

	require.Len(t, bd.Discounts, 1)
	assertMoney(t, "-6", bd.Discounts[0].Amount)

	require.Len(t, bd.Fees, 1)
	assertMoney(t, "5", bd.Fees[0].Amount)

	assertMoney(t, "54", bd.Subtotal)
	assertMoney(t, "59", bd.Total)
	assertMoney(t, "59", got.TotalCost)
	assert.True(t, got.RequiresPayment)
}

func TestRun_NoBreakdownWhenNothingApplies(t *testing.T) {
	rule := baseRate("base", 1, "10", 60)
	rule.SpaceIDs = []string{"space-2"}

	got := run([]PaymentRule{rule}, tuesday, time.Hour)
	assert.Nil(t, got.PriceBreakdown)
	assert.False(t, got.RequiresPayment)
}

func TestRun_OnlyFirstBaseRateApplies(t *testing.T) {
	first := baseRate("cheap", 1, "10", 60)
	second := baseRate("expensive", 2, "99", 60)
	extra := multiplier("peak", 3, "2")

	with := run([]PaymentRule{second, extra, first}, tuesday, time.Hour)
	without := run([]PaymentRule{extra, first}, tuesday, time.Hour)

	assertMoney(t, "20", with.TotalCost)
	assert.True(t, with.TotalCost.Equal(without.TotalCost))
	assert.Equal(t, "cheap", with.PriceBreakdown.BaseRate.RuleID)
}

func TestRun_InapplicableBaseRateDoesNotBlockLaterOne(t *testing.T) {
	weekend := baseRate("weekend", 1, "99", 60)
	weekend.DaysOfWeek = []int{0, 6}
	weekday := baseRate("weekday", 2, "10", 60)

	got := run([]PaymentRule{weekend, weekday}, tuesday, time.Hour)
	assertMoney(t, "10", got.TotalCost)
	assert.Equal(t, "weekday", got.PriceBreakdown.BaseRate.RuleID)
}

func TestRun_EqualPriorityKeepsInputOrder(t *testing.T) {
	a := baseRate("a", 5, "10", 60)
	b := baseRate("b", 5, "30", 60)

	assertMoney(t, "10", run([]PaymentRule{a, b}, tuesday, time.Hour).TotalCost)
	assertMoney(t, "30", run([]PaymentRule{b, a}, tuesday, time.Hour).TotalCost)
}

func TestRun_DiscountsCompoundSequentially(t *testing.T) {
	rules := []PaymentRule{baseRate("base", 1, "100", 60), discount("d1", 2, "0.1"), discount("d2", 3, "0.2")}

	got := run(rules, tuesday, time.Hour)
	// 100 * 0.9 * 0.8, not 100 * 0.7
	assertMoney(t, "72", got.TotalCost)
	assertMoney(t, "-10", got.PriceBreakdown.Discounts[0].Amount)
	assertMoney(t, "-18", got.PriceBreakdown.Discounts[1].Amount)
}

func TestRun_ZeroCostNeverRequiresPayment(t *testing.T) {
	rules := []PaymentRule{baseRate("base", 1, "10", 60), discount("free", 2, "1")}

	got := run(rules, tuesday, time.Hour)
	assertMoney(t, "0", got.TotalCost)
	assert.False(t, got.RequiresPayment)
	require.NotNil(t, got.PriceBreakdown)
}

func TestRun_MissingFieldsAreFree(t *testing.T) {
	rules := []PaymentRule{
		{ID: "no-price", RuleType: RuleTypeBaseRate, Priority: 1, PeriodMinutes: intPtr(60)},
		{ID: "no-mult", RuleType: RuleTypeMultiplier, Priority: 2},
		{ID: "no-rate", RuleType: RuleTypeDiscount, Priority: 3},
		flatFee("zero-fee", 4, "0"),
	}

	got := run(rules, tuesday, time.Hour)
	assert.False(t, got.RequiresPayment)
	assertMoney(t, "0", got.TotalCost)
	require.NotNil(t, got.PriceBreakdown)
	assert.Empty(t, got.PriceBreakdown.Fees)
	assert.Len(t, got.PriceBreakdown.Multipliers, 1)
	assert.Len(t, got.PriceBreakdown.Discounts, 1)
}

func TestRun_FlatFeeAloneRequiresPayment(t *testing.T) {
	got := run([]PaymentRule{flatFee("booking-fee", 1, "2.50")}, tuesday, time.Hour)
	assert.True(t, got.RequiresPayment)
	assertMoney(t, "2.5", got.TotalCost)
	assertMoney(t, "0", got.PriceBreakdown.Subtotal)
	assert.Nil(t, got.PriceBreakdown.BaseRate)
}

func TestRun_UnknownRuleTypeIsIgnored(t *testing.T) {
	rules := []PaymentRule{
		baseRate("base", 1, "10", 60),
		{ID: "mystery", RuleType: RuleType("SURGE"), Priority: 2, Multiplier: money("3")},
	}

	got := run(rules, tuesday, time.Hour)
	assertMoney(t, "10", got.TotalCost)
	assert.Empty(t, got.PriceBreakdown.Multipliers)
}

func TestRun_SpaceScoping(t *testing.T) {
	other := baseRate("other", 1, "10", 60)
	other.SpaceIDs = []string{"space-2", "space-3"}
	mine := flatFee("mine", 2, "3")
	mine.SpaceIDs = []string{"space-1"}

	got := run([]PaymentRule{other, mine}, tuesday, time.Hour)
	assertMoney(t, "3", got.TotalCost)
	assert.Nil(t, got.PriceBreakdown.BaseRate)
}

func TestRun_ConditionsGateTopLevelFields(t *testing.T) {
	rule := baseRate("members", 1, "10", 60)
	rule.DaysOfWeek = []int{2} // Tuesday passes
	rule.Conditions = []PriceCondition{
		{UserTags: []string{"member"}},
		{StartTime: intPtr(18 * 60)},
	}

	got := run([]PaymentRule{rule}, tuesday, time.Hour, "guest")
	assert.False(t, got.RequiresPayment)
	assert.Nil(t, got.PriceBreakdown)

	got = run([]PaymentRule{rule}, tuesday, time.Hour, "member")
	assertMoney(t, "10", got.TotalCost)

	evening := time.Date(2024, time.January, 2, 18, 30, 0, 0, time.UTC)
	got = run([]PaymentRule{rule}, evening, time.Hour)
	assertMoney(t, "10", got.TotalCost)
}

func TestRun_DurationStepFunction(t *testing.T) {
	rules := []PaymentRule{baseRate("base", 1, "10", 60)}

	prev := decimal.Zero
	for minutes := 1; minutes <= 600; minutes++ {
		got := run(rules, tuesday, time.Duration(minutes)*time.Minute).TotalCost
		require.True(t, got.GreaterThanOrEqual(prev), "price decreased at %d minutes", minutes)

		periods := (minutes + 59) / 60
		require.Truef(t, got.Equal(decimal.NewFromInt(int64(periods*10))), "unexpected price %s at %d minutes", got, minutes)
		prev = got
	}
}

func TestRun_NonNegativeWithoutOversizedDiscount(t *testing.T) {
	rules := []PaymentRule{
		baseRate("base", 1, "12.34", 15),
		multiplier("off-peak", 2, "0.8"),
		discount("loyalty", 3, "0.15"),
		discount("promo", 4, "1"),
		flatFee("fee", 5, "0.99"),
	}

	for minutes := 0; minutes <= 240; minutes += 7 {
		got := run(rules, tuesday, time.Duration(minutes)*time.Minute)
		assert.False(t, got.TotalCost.IsNegative())
	}
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	rules := []PaymentRule{discount("d", 3, "0.1"), baseRate("base", 1, "10", 60), multiplier("m", 2, "2")}
	ids := []string{rules[0].ID, rules[1].ID, rules[2].ID}

	_ = run(rules, tuesday, time.Hour)

	assert.Equal(t, ids, []string{rules[0].ID, rules[1].ID, rules[2].ID})
}

func TestRun_SubCentTotalRequiresNoPayment(t *testing.T) {
	got := run([]PaymentRule{baseRate("base", 1, "0.004", 60)}, tuesday, time.Hour)

	assertMoney(t, "0", got.TotalCost)
	assert.False(t, got.RequiresPayment)
	require.NotNil(t, got.PriceBreakdown)
	assertMoney(t, "0.004", got.PriceBreakdown.BaseRate.Amount)
}

func TestRun_SubtotalExcludesFeeBeforeMultiplier(t *testing.T) {
	rules := []PaymentRule{
		baseRate("base", 1, "10", 60),
		flatFee("booking", 2, "5"),
		multiplier("peak", 3, "2"),
		discount("promo", 4, "0.5"),
	}

	got := run(rules, tuesday, time.Hour)
	// (10 + 5) * 2 * 0.5 = 15, of which 5 stems from the fee.
	assertMoney(t, "15", got.TotalCost)
	assertMoney(t, "10", got.PriceBreakdown.Subtotal)
	assertMoney(t, "15", got.PriceBreakdown.Total)
}

func TestCalculateBaseRate_LongPeriods(t *testing.T) {
	for _, period := range []int{200_000_000, 2_147_483_647} {
		rule := baseRate("base", 1, "10", period)
		assertMoney(t, "10", CalculateBaseRate(rule, tuesday, tuesday.Add(time.Hour)))
	}

	yearly := baseRate("base", 1, "10", 60)
	assertMoney(t, "87840", CalculateBaseRate(yearly, tuesday, tuesday.AddDate(1, 0, 0)))
}

func TestCalculateBaseRate(t *testing.T) {
	rule := baseRate("base", 1, "7.25", 30)

	assertMoney(t, "7.25", CalculateBaseRate(rule, tuesday, tuesday.Add(1*time.Second)))
	assertMoney(t, "7.25", CalculateBaseRate(rule, tuesday, tuesday.Add(30*time.Minute)))
	assertMoney(t, "14.5", CalculateBaseRate(rule, tuesday, tuesday.Add(31*time.Minute)))
	assertMoney(t, "0", CalculateBaseRate(rule, tuesday, tuesday))
	assertMoney(t, "0", CalculateBaseRate(rule, tuesday, tuesday.Add(-time.Hour)))

	noPeriod := rule
	noPeriod.PeriodMinutes = nil
	assertMoney(t, "0", CalculateBaseRate(noPeriod, tuesday, tuesday.Add(time.Hour)))
}
