package pricing

import (
	"slices"
	"time"
)

// MinuteOfDay returns the minutes elapsed since midnight in t's own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// AppliesToSpace reports whether the rule is scoped to spaceID.
func AppliesToSpace(rule PaymentRule, spaceID string) bool {
	return len(rule.SpaceIDs) == 0 || slices.Contains(rule.SpaceIDs, spaceID)
}

// IsApplicable reports whether the rule is in scope for the interval.
// Space scoping is checked separately by AppliesToSpace.
func IsApplicable(rule PaymentRule, start, end time.Time, userTags []string) bool {
	if end.Before(start) {
		return false
	}
	if !withinWindow(rule.StartTime, rule.EndTime, start, end) {
		return false
	}
	if len(rule.DaysOfWeek) > 0 && !slices.Contains(rule.DaysOfWeek, int(start.Weekday())) {
		return false
	}
	// Conditions gate the rule as a whole when present.
	if len(rule.Conditions) > 0 && !AnyConditionMatches(rule.Conditions, start, end, userTags) {
		return false
	}
	return true
}

// AnyConditionMatches reports whether at least one condition matches.
func AnyConditionMatches(conditions []PriceCondition, start, end time.Time, userTags []string) bool {
	for _, c := range conditions {
		if ConditionMatches(c, start, end, userTags) {
			return true
		}
	}
	return false
}

// ConditionMatches reports whether every field the condition sets is satisfied.
// A condition without fields always matches.
func ConditionMatches(c PriceCondition, start, end time.Time, userTags []string) bool {
	if !withinWindow(c.StartTime, c.EndTime, start, end) {
		return false
	}
	if len(c.UserTags) > 0 && !tagsIntersect(c.UserTags, userTags) {
		return false
	}
	return true
}

// withinWindow checks both the start and end minute-of-day against the
// inclusive bounds. A nil bound leaves that side open.
func withinWindow(lo, hi *int, start, end time.Time) bool {
	for _, m := range [2]int{MinuteOfDay(start), MinuteOfDay(end)} {
		if lo != nil && m < *lo {
			return false
		}
		if hi != nil && m > *hi {
			return false
		}
	}
	return true
}

func tagsIntersect(want, have []string) bool {
	for _, tag := range have {
		if slices.Contains(want, tag) {
			return true
		}
	}
	return false
}
