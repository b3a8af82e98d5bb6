package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jia-app/venuepricing/internal/pricing"
)

var header = []string{
	"id", "venue_id", "name", "space_ids", "rule_type", "priority",
	"price_per_period", "period_minutes", "multiplier", "discount_rate",
	"start_time", "end_time", "days_of_week",
}

// rowError describes a skipped CSV row
type rowError struct {
	Line int
	Err  error
}

func (e rowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// readPaymentRules parses the CSV, returning valid rules and the rows it skipped.
func readPaymentRules(r io.Reader) ([]pricing.PaymentRule, []rowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Skip header row
	if _, err := reader.Read(); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rules []pricing.PaymentRule
	var skipped []rowError
	line := 1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped = append(skipped, rowError{Line: line, Err: err})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		rule, err := parseRecord(record)
		if err != nil {
			skipped = append(skipped, rowError{Line: line, Err: err})
			continue
		}
		rules = append(rules, rule)
	}

	return rules, skipped, nil
}

func parseRecord(record []string) (pricing.PaymentRule, error) {
	if len(record) < len(header) {
		return pricing.PaymentRule{}, fmt.Errorf("expected %d columns, got %d", len(header), len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	rule := pricing.PaymentRule{
		ID:       record[0],
		VenueID:  record[1],
		Name:     record[2],
		SpaceIDs: splitList(record[3]),
		RuleType: pricing.RuleType(strings.ToUpper(record[4])),
	}
	if rule.ID == "" || rule.VenueID == "" {
		return pricing.PaymentRule{}, fmt.Errorf("id and venue_id are required")
	}
	if !rule.RuleType.Known() {
		return pricing.PaymentRule{}, fmt.Errorf("unknown rule_type %q", record[4])
	}

	priority, err := parseInt("priority", record[5], math.MinInt32, math.MaxInt32)
	if err != nil {
		return pricing.PaymentRule{}, err
	}
	if priority != nil {
		rule.Priority = *priority
	}
	if rule.PricePerPeriod, err = parseDecimal("price_per_period", record[6]); err != nil {
		return pricing.PaymentRule{}, err
	}
	if rule.PeriodMinutes, err = parseInt("period_minutes", record[7], 1, math.MaxInt32); err != nil {
		return pricing.PaymentRule{}, err
	}
	if rule.Multiplier, err = parseDecimal("multiplier", record[8]); err != nil {
		return pricing.PaymentRule{}, err
	}
	if rule.DiscountRate, err = parseDecimal("discount_rate", record[9]); err != nil {
		return pricing.PaymentRule{}, err
	}
	if rule.DiscountRate.Valid && (rule.DiscountRate.Decimal.IsNegative() || rule.DiscountRate.Decimal.GreaterThan(decimal.NewFromInt(1))) {
		return pricing.PaymentRule{}, fmt.Errorf("discount_rate must be between 0 and 1")
	}
	if rule.StartTime, err = parseInt("start_time", record[10], 0, 1439); err != nil {
		return pricing.PaymentRule{}, err
	}
	if rule.EndTime, err = parseInt("end_time", record[11], 0, 1439); err != nil {
		return pricing.PaymentRule{}, err
	}
	for _, d := range splitList(record[12]) {
		day, err := parseInt("days_of_week", d, 0, 6)
		if err != nil {
			return pricing.PaymentRule{}, err
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, *day)
	}

	return rule, nil
}

// splitList splits a semicolon separated cell
func splitList(cell string) []string {
	if cell == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(cell, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDecimal(column, cell string) (decimal.NullDecimal, error) {
	if cell == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s %q", column, cell)
	}
	return decimal.NewNullDecimal(d), nil
}

func parseInt(column, cell string, lo, hi int) (*int, error) {
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(cell)
	if err != nil || v < lo || v > hi {
		return nil, fmt.Errorf("invalid %s %q", column, cell)
	}
	return &v, nil
}
