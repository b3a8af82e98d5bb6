package repository

import (
	"context"
	"fmt"

	"github.com/jia-app/venuepricing/internal/circuitbreaker"
	"github.com/jia-app/venuepricing/internal/pricing"
)

// RuleRepository defines payment rule lookups
type RuleRepository interface {
	// ListByVenue returns every enabled rule of the venue
	ListByVenue(ctx context.Context, venueID string) ([]pricing.PaymentRule, error)
}

// guardedRules fails fast while the underlying store keeps failing
type guardedRules struct {
	inner   RuleRepository
	breaker *circuitbreaker.CircuitBreaker
}

// WithCircuitBreaker wraps a rule repository with a circuit breaker
func WithCircuitBreaker(inner RuleRepository, breaker *circuitbreaker.CircuitBreaker) RuleRepository {
	return &guardedRules{inner: inner, breaker: breaker}
}

func (g *guardedRules) ListByVenue(ctx context.Context, venueID string) ([]pricing.PaymentRule, error) {
	var rules []pricing.PaymentRule
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rules, err = g.inner.ListByVenue(ctx, venueID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list rules of venue %s: %w", venueID, err)
	}
	return rules, nil
}
