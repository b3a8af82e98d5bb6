package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/jia-app/venuepricing/internal/metrics"
	"github.com/jia-app/venuepricing/internal/pricing"
)

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RuleStore loads and saves payment rules in PostgreSQL
type RuleStore struct {
	db DBTX
}

// NewRuleStore creates a rule store on top of an existing pool
func NewRuleStore(db DBTX) (*RuleStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &RuleStore{db: db}, nil
}

const listRulesByVenue = `
SELECT id, venue_id, name, space_ids, rule_type, priority,
       price_per_period::text, period_minutes, multiplier::text, discount_rate::text,
       start_time, end_time, days_of_week
FROM payment_rules
WHERE venue_id = $1 AND enabled
ORDER BY priority, created_at, id`

const listConditionsByRules = `
SELECT id, rule_id, start_time, end_time, user_tags
FROM price_conditions
WHERE rule_id = ANY($1)
ORDER BY rule_id, position`

// ruleRow mirrors a payment_rules row with numerics read as text.
type ruleRow struct {
	ID             string
	VenueID        string
	Name           string
	SpaceIDs       []string
	RuleType       string
	Priority       int32
	PricePerPeriod *string
	PeriodMinutes  *int32
	Multiplier     *string
	DiscountRate   *string
	StartTime      *int32
	EndTime        *int32
	DaysOfWeek     []int32
}

type conditionRow struct {
	ID        string
	RuleID    string
	StartTime *int32
	EndTime   *int32
	UserTags  []string
}

// ListByVenue returns the venue's enabled rules with their conditions
func (s *RuleStore) ListByVenue(ctx context.Context, venueID string) ([]pricing.PaymentRule, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("list_rules_by_venue", time.Since(start)) }()

	rows, err := s.db.Query(ctx, listRulesByVenue, venueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment rules: %w", err)
	}
	ruleRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ruleRow, error) {
		var r ruleRow
		err := row.Scan(&r.ID, &r.VenueID, &r.Name, &r.SpaceIDs, &r.RuleType, &r.Priority,
			&r.PricePerPeriod, &r.PeriodMinutes, &r.Multiplier, &r.DiscountRate,
			&r.StartTime, &r.EndTime, &r.DaysOfWeek)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment rules: %w", err)
	}
	if len(ruleRows) == 0 {
		return []pricing.PaymentRule{}, nil
	}

	ids := make([]string, len(ruleRows))
	for i, r := range ruleRows {
		ids[i] = r.ID
	}

	rows, err = s.db.Query(ctx, listConditionsByRules, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query price conditions: %w", err)
	}
	conditionRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (conditionRow, error) {
		var c conditionRow
		err := row.Scan(&c.ID, &c.RuleID, &c.StartTime, &c.EndTime, &c.UserTags)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan price conditions: %w", err)
	}

	return assembleRules(ruleRows, conditionRows)
}

// assembleRules converts rows into rules, keeping the row order of both.
func assembleRules(ruleRows []ruleRow, conditionRows []conditionRow) ([]pricing.PaymentRule, error) {
	conditions := make(map[string][]pricing.PriceCondition)
	for _, c := range conditionRows {
		conditions[c.RuleID] = append(conditions[c.RuleID], pricing.PriceCondition{
			ID:        c.ID,
			StartTime: intPtr(c.StartTime),
			EndTime:   intPtr(c.EndTime),
			UserTags:  c.UserTags,
		})
	}

	rules := make([]pricing.PaymentRule, 0, len(ruleRows))
	for _, r := range ruleRows {
		rule, err := r.toRule()
		if err != nil {
			return nil, err
		}
		rule.Conditions = conditions[r.ID]
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r ruleRow) toRule() (pricing.PaymentRule, error) {
	price, err := parseNullDecimal(r.PricePerPeriod)
	if err != nil {
		return pricing.PaymentRule{}, fmt.Errorf("rule %s: invalid price_per_period: %w", r.ID, err)
	}
	multiplier, err := parseNullDecimal(r.Multiplier)
	if err != nil {
		return pricing.PaymentRule{}, fmt.Errorf("rule %s: invalid multiplier: %w", r.ID, err)
	}
	discountRate, err := parseNullDecimal(r.DiscountRate)
	if err != nil {
		return pricing.PaymentRule{}, fmt.Errorf("rule %s: invalid discount_rate: %w", r.ID, err)
	}

	days := make([]int, len(r.DaysOfWeek))
	for i, d := range r.DaysOfWeek {
		days[i] = int(d)
	}

	return pricing.PaymentRule{
		ID:             r.ID,
		VenueID:        r.VenueID,
		Name:           r.Name,
		SpaceIDs:       r.SpaceIDs,
		RuleType:       pricing.RuleType(r.RuleType),
		Priority:       int(r.Priority),
		PricePerPeriod: price,
		PeriodMinutes:  intPtr(r.PeriodMinutes),
		Multiplier:     multiplier,
		DiscountRate:   discountRate,
		StartTime:      intPtr(r.StartTime),
		EndTime:        intPtr(r.EndTime),
		DaysOfWeek:     days,
	}, nil
}

const upsertRule = `
INSERT INTO payment_rules (id, venue_id, name, space_ids, rule_type, priority,
    price_per_period, period_minutes, multiplier, discount_rate, start_time, end_time, days_of_week)
VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8, $9::text::numeric, $10::text::numeric, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
    venue_id = EXCLUDED.venue_id,
    name = EXCLUDED.name,
    space_ids = EXCLUDED.space_ids,
    rule_type = EXCLUDED.rule_type,
    priority = EXCLUDED.priority,
    price_per_period = EXCLUDED.price_per_period,
    period_minutes = EXCLUDED.period_minutes,
    multiplier = EXCLUDED.multiplier,
    discount_rate = EXCLUDED.discount_rate,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    days_of_week = EXCLUDED.days_of_week,
    enabled = TRUE,
    updated_at = now()`

const deleteConditions = `DELETE FROM price_conditions WHERE rule_id = $1`

const insertCondition = `
INSERT INTO price_conditions (id, rule_id, position, start_time, end_time, user_tags)
VALUES ($1, $2, $3, $4, $5, $6)`

// UpsertRule saves a rule and replaces its conditions in one transaction
func (s *RuleStore) UpsertRule(ctx context.Context, rule pricing.PaymentRule) (err error) {
	if rule.ID == "" || rule.VenueID == "" {
		return fmt.Errorf("rule id and venue id are required")
	}

	args, err := ruleArgs(rule)
	if err != nil {
		return fmt.Errorf("invalid payment rule %s: %w", rule.ID, err)
	}
	conditions := make([][]any, len(rule.Conditions))
	for i, c := range rule.Conditions {
		if conditions[i], err = conditionArgs(rule.ID, i, c); err != nil {
			return fmt.Errorf("invalid condition %d of rule %s: %w", i, rule.ID, err)
		}
	}

	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("upsert_rule", time.Since(start)) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("failed to rollback: %w", rbErr))
			}
		}
	}()

	if _, err = tx.Exec(ctx, upsertRule, args...); err != nil {
		return fmt.Errorf("failed to upsert payment rule %s: %w", rule.ID, err)
	}
	if _, err = tx.Exec(ctx, deleteConditions, rule.ID); err != nil {
		return fmt.Errorf("failed to clear conditions of rule %s: %w", rule.ID, err)
	}
	for _, condition := range conditions {
		if _, err = tx.Exec(ctx, insertCondition, condition...); err != nil {
			return fmt.Errorf("failed to insert condition of rule %s: %w", rule.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payment rule %s: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule removes a rule; its conditions cascade
func (s *RuleStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM payment_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment rule %s not found", id)
	}
	return nil
}

// ruleArgs converts a rule into upsertRule parameters. Integers that do not
// fit the INTEGER columns are rejected rather than wrapped.
func ruleArgs(rule pricing.PaymentRule) ([]any, error) {
	spaceIDs := rule.SpaceIDs
	if spaceIDs == nil {
		spaceIDs = []string{}
	}
	days := make([]int32, len(rule.DaysOfWeek))
	for i, d := range rule.DaysOfWeek {
		day, err := toInt32("days_of_week", d)
		if err != nil {
			return nil, err
		}
		days[i] = day
	}

	priority, err := toInt32("priority", rule.Priority)
	if err != nil {
		return nil, err
	}
	period, err := int32Ptr("period_minutes", rule.PeriodMinutes)
	if err != nil {
		return nil, err
	}
	startTime, err := int32Ptr("start_time", rule.StartTime)
	if err != nil {
		return nil, err
	}
	endTime, err := int32Ptr("end_time", rule.EndTime)
	if err != nil {
		return nil, err
	}

	return []any{
		rule.ID,
		rule.VenueID,
		rule.Name,
		spaceIDs,
		string(rule.RuleType),
		priority,
		formatNullDecimal(rule.PricePerPeriod),
		period,
		formatNullDecimal(rule.Multiplier),
		formatNullDecimal(rule.DiscountRate),
		startTime,
		endTime,
		days,
	}, nil
}

func conditionArgs(ruleID string, position int, c pricing.PriceCondition) ([]any, error) {
	startTime, err := int32Ptr("start_time", c.StartTime)
	if err != nil {
		return nil, err
	}
	endTime, err := int32Ptr("end_time", c.EndTime)
	if err != nil {
		return nil, err
	}

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	tags := c.UserTags
	if tags == nil {
		tags = []string{}
	}
	return []any{id, ruleID, position, startTime, endTime, tags}, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func formatNullDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func toInt32(column string, v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%s %d is out of range", column, v)
	}
	return int32(v), nil
}

func int32Ptr(column string, v *int) (*int32, error) {
	if v == nil {
		return nil, nil
	}
	i, err := toInt32(column, *v)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
