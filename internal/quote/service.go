package quote

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/cache"
	"github.com/jia-app/venuepricing/internal/log"
	"github.com/jia-app/venuepricing/internal/metrics"
	"github.com/jia-app/venuepricing/internal/pricing"
	"github.com/jia-app/venuepricing/internal/tracing"
)

// RuleRepository loads the payment rules of a venue
type RuleRepository interface {
	ListByVenue(ctx context.Context, venueID string) ([]pricing.PaymentRule, error)
}

// Cache stores computed quotes. Get returns cache.ErrCacheMiss for unknown keys.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Request describes a booking to be priced
type Request struct {
	VenueID  string    `json:"venue_id"`
	SpaceID  string    `json:"space_id"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	UserTags []string  `json:"user_tags,omitempty"`
}

// Quote is the priced booking
type Quote struct {
	VenueID string    `json:"venue_id"`
	SpaceID string    `json:"space_id"`
	Start   time.Time `json:"start_time"`
	End     time.Time `json:"end_time"`
	pricing.Result
}

// Service prices bookings against the rules of their venue
type Service struct {
	rules    RuleRepository
	cache    Cache // nil disables caching
	engine   *pricing.Engine
	cacheTTL time.Duration
}

// NewService creates a new quote service
func NewService(rules RuleRepository, cache Cache, engine *pricing.Engine, cacheTTL time.Duration) *Service {
	if engine == nil {
		engine = pricing.NewEngine(nil)
	}
	return &Service{
		rules:    rules,
		cache:    cache,
		engine:   engine,
		cacheTTL: cacheTTL,
	}
}

// Quote computes the price of the requested booking
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	startTime := time.Now()

	if err := validate(req); err != nil {
		return nil, err
	}

	ctx = log.WithVenueID(ctx, req.VenueID)
	ctx, span := tracing.StartSpan(ctx, "quote.Quote",
		attribute.String("venue.id", req.VenueID),
		attribute.String("space.id", req.SpaceID))
	defer span.End()

	key := CacheKey(req)
	if q, ok := s.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("quote.cached", true))
		metrics.RecordQuote(q.RequiresPayment, q.TotalCost.InexactFloat64(), time.Since(startTime))
		return q, nil
	}

	rules, err := s.rules.ListByVenue(ctx, req.VenueID)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RecordError("rule_load", "quote")
		log.Error(ctx, "Failed to load payment rules", zap.Error(err))
		return nil, fmt.Errorf("failed to load payment rules: %w", err)
	}

	result := s.engine.Run(rules, pricing.Booking{
		Start:    req.Start,
		End:      req.End,
		SpaceID:  req.SpaceID,
		UserTags: req.UserTags,
	})

	q := &Quote{
		VenueID: req.VenueID,
		SpaceID: req.SpaceID,
		Start:   req.Start,
		End:     req.End,
		Result:  result,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, q, s.cacheTTL); err != nil {
			log.Warn(ctx, "Failed to cache quote", zap.String("key", key), zap.Error(err))
		}
	}

	recordRules(result.PriceBreakdown)
	metrics.RecordQuote(result.RequiresPayment, result.TotalCost.InexactFloat64(), time.Since(startTime))
	span.SetAttributes(
		attribute.Int("rules.count", len(rules)),
		attribute.Bool("quote.requires_payment", result.RequiresPayment),
		attribute.String("quote.total", result.TotalCost.String()))

	log.Debug(ctx, "Quote computed",
		zap.String("space_id", req.SpaceID),
		zap.Int("rules", len(rules)),
		zap.Bool("requires_payment", result.RequiresPayment),
		zap.String("total_cost", result.TotalCost.StringFixed(pricing.CurrencyPlaces)))

	return q, nil
}

func (s *Service) cached(ctx context.Context, key string) (*Quote, bool) {
	if s.cache == nil {
		return nil, false
	}

	var q Quote
	err := s.cache.Get(ctx, key, &q)
	switch {
	case err == nil:
		metrics.RecordQuoteCacheHit()
		return &q, true
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.RecordQuoteCacheMiss()
	default:
		metrics.RecordQuoteCacheMiss()
		log.Warn(ctx, "Failed to read cached quote", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

func validate(req Request) error {
	switch {
	case strings.TrimSpace(req.VenueID) == "":
		return NewInvalidInputError("venue_id is required", "")
	case strings.TrimSpace(req.SpaceID) == "":
		return NewInvalidInputError("space_id is required", "")
	case req.Start.IsZero() || req.End.IsZero():
		return NewInvalidInputError("start_time and end_time are required", "")
	}
	return nil
}

// CacheKey identifies a request in the quote cache. Times keep their offset
// since day-of-week and minute-of-day are read in the caller's location.
func CacheKey(req Request) string {
	tags := slices.Clone(req.UserTags)
	slices.Sort(tags)
	tags = slices.Compact(tags)

	return fmt.Sprintf("quote:%s:%s:%s:%s:%s",
		req.VenueID,
		req.SpaceID,
		req.Start.Format(time.RFC3339Nano),
		req.End.Format(time.RFC3339Nano),
		strings.Join(tags, ","))
}

func recordRules(bd *pricing.PriceBreakdown) {
	if bd == nil {
		return
	}
	if bd.BaseRate != nil {
		metrics.RecordRulesApplied(string(pricing.RuleTypeBaseRate), 1)
	}
	metrics.RecordRulesApplied(string(pricing.RuleTypeMultiplier), len(bd.Multipliers))
	metrics.RecordRulesApplied(string(pricing.RuleTypeDiscount), len(bd.Discounts))
	metrics.RecordRulesApplied(string(pricing.RuleTypeFlatFee), len(bd.Fees))
}
