package quote

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jia-app/venuepricing/internal/log"
	"github.com/jia-app/venuepricing/internal/pricing"
)

// PaymentAccountLookup reports whether a venue can accept payments
type PaymentAccountLookup interface {
	HasPaymentAccount(ctx context.Context, venueID string) (bool, error)
}

// Checkout is the booking flow decision derived from a quote
type Checkout struct {
	Quote *Quote `json:"quote"`
	// PaymentStep is true when the booking must go through payment.
	PaymentStep bool `json:"payment_step"`
	// AmountCents is the total in minor units.
	AmountCents int64 `json:"amount_cents"`
}

// CheckoutService decides whether a booking needs a payment step
type CheckoutService struct {
	quotes   *Service
	accounts PaymentAccountLookup
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(quotes *Service, accounts PaymentAccountLookup) *CheckoutService {
	return &CheckoutService{
		quotes:   quotes,
		accounts: accounts,
	}
}

// PrepareCheckout prices the booking and verifies the venue can be paid
// when the price is not zero.
func (cs *CheckoutService) PrepareCheckout(ctx context.Context, req Request) (*Checkout, error) {
	q, err := cs.quotes.Quote(ctx, req)
	if err != nil {
		return nil, err
	}

	if !q.RequiresPayment {
		return &Checkout{Quote: q}, nil
	}

	ok, err := cs.accounts.HasPaymentAccount(ctx, req.VenueID)
	if err != nil {
		log.Error(ctx, "Failed to look up venue payment account",
			zap.String("venue_id", req.VenueID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to look up payment account: %w", err)
	}
	if !ok {
		log.Warn(ctx, "Venue requires payment but has no payment account",
			zap.String("venue_id", req.VenueID),
			zap.String("total_cost", q.TotalCost.StringFixed(pricing.CurrencyPlaces)))
		return nil, ErrPaymentAccountMissing
	}

	return &Checkout{
		Quote:       q,
		PaymentStep: true,
		AmountCents: q.TotalCost.Shift(pricing.CurrencyPlaces).IntPart(),
	}, nil
}
