package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/venuepricing/internal/circuitbreaker"
	"github.com/jia-app/venuepricing/internal/pricing"
	"github.com/jia-app/venuepricing/internal/quote"
)

type staticAccounts map[string]bool

func (a staticAccounts) HasPaymentAccount(_ context.Context, venueID string) (bool, error) {
	return a[venueID], nil
}

type failingQuotes struct{ err error }

func (f failingQuotes) Quote(context.Context, quote.Request) (*quote.Quote, error) {
	return nil, f.err
}

func seedRules(t *testing.T) *pricing.MemoryRuleStore {
	t.Helper()
	period := 60
	store := pricing.NewMemoryRuleStore()
	for _, venue := range []string{"venue-1", "venue-2"} {
		require.NoError(t, store.Upsert(pricing.PaymentRule{
			ID:             venue + "-base",
			VenueID:        venue,
			RuleType:       pricing.RuleTypeBaseRate,
			Priority:       1,
			PricePerPeriod: decimal.NewNullDecimal(decimal.NewFromInt(20)),
			PeriodMinutes:  &period,
		}))
		require.NoError(t, store.Upsert(pricing.PaymentRule{
			ID:             venue + "-cleaning",
			VenueID:        venue,
			RuleType:       pricing.RuleTypeFlatFee,
			Priority:       5,
			PricePerPeriod: decimal.NewNullDecimal(decimal.RequireFromString("4.99")),
		}))
	}
	return store
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quotes := quote.NewService(seedRules(t), nil, nil, time.Minute)
	checkout := quote.NewCheckoutService(quotes, staticAccounts{"venue-1": true})

	return NewRouter(RouterConfig{
		Quotes:         NewQuoteHandler(quotes, checkout),
		Health:         NewHealthHandler(nil),
		RequestTimeout: time.Second,
	})
}

func doJSONRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func bookingBody() map[string]any {
	// 2024-01-02 is a Tuesday.
	return map[string]any{
		"space_id":   "space-1",
		"start_time": "2024-01-02T10:00:00Z",
		"end_time":   "2024-01-02T12:00:00Z",
		"user_tags":  []string{"member"},
	}
}

func TestCreateQuote(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-1/quotes", bookingBody())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	env := decode(t, rr)
	assert.True(t, env.Success)

	var q struct {
		VenueID         string `json:"venue_id"`
		RequiresPayment bool   `json:"requires_payment"`
		TotalCost       string `json:"total_cost"`
		PriceBreakdown  *struct {
			Subtotal string `json:"subtotal"`
			Total    string `json:"total"`
		} `json:"price_breakdown"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, "venue-1", q.VenueID)
	assert.True(t, q.RequiresPayment)
	assert.Equal(t, "44.99", q.TotalCost)
	require.NotNil(t, q.PriceBreakdown)
	assert.Equal(t, "40", q.PriceBreakdown.Subtotal)
	assert.Equal(t, "44.99", q.PriceBreakdown.Total)
}

func TestCreateQuote_VenueWithoutRules(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-9/quotes", bookingBody())
	require.Equal(t, http.StatusOK, rr.Code)

	var q struct {
		RequiresPayment bool            `json:"requires_payment"`
		TotalCost       string          `json:"total_cost"`
		PriceBreakdown  json.RawMessage `json:"price_breakdown"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &q))
	assert.False(t, q.RequiresPayment)
	assert.Equal(t, "0", q.TotalCost)
	assert.Empty(t, q.PriceBreakdown)
}

func TestCreateQuote_BadRequests(t *testing.T) {
	r := setupTestRouter(t)

	missingSpace := bookingBody()
	delete(missingSpace, "space_id")
	badTime := bookingBody()
	badTime["start_time"] = "tomorrow"
	missingEnd := bookingBody()
	delete(missingEnd, "end_time")

	cases := []struct {
		name string
		body any
	}{
		{"malformed json", "{"},
		{"missing space", missingSpace},
		{"unparseable time", badTime},
		{"missing end", missingEnd},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-1/quotes", tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			env := decode(t, rr)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, quote.ErrCodeInvalidInput, env.Error.Code)
		})
	}
}

func TestPrepareCheckout(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-1/checkout", bookingBody())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var checkout struct {
		PaymentStep bool  `json:"payment_step"`
		AmountCents int64 `json:"amount_cents"`
		Quote       struct {
			TotalCost string `json:"total_cost"`
		} `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &checkout))
	assert.True(t, checkout.PaymentStep)
	assert.Equal(t, int64(4499), checkout.AmountCents)
	assert.Equal(t, "44.99", checkout.Quote.TotalCost)
}

func TestPrepareCheckout_MissingPaymentAccount(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-2/checkout", bookingBody())
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	env := decode(t, rr)
	require.NotNil(t, env.Error)
	assert.Equal(t, quote.ErrCodePaymentAccountMissing, env.Error.Code)
}

func TestPrepareCheckout_FreeBooking(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-9/checkout", bookingBody())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var checkout struct {
		PaymentStep bool  `json:"payment_step"`
		AmountCents int64 `json:"amount_cents"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &checkout))
	assert.False(t, checkout.PaymentStep)
	assert.Zero(t, checkout.AmountCents)
}

func TestCreateQuote_ServiceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("load rules: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{errors.New("connection reset"), http.StatusInternalServerError, quote.ErrCodeInternal},
		{quote.NewNotFoundError("venue", "venue-1"), http.StatusNotFound, quote.ErrCodeNotFound},
		{fmt.Errorf("list rules: %w", circuitbreaker.ErrCircuitOpen), http.StatusServiceUnavailable, "UNAVAILABLE"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			r := NewRouter(RouterConfig{Quotes: NewQuoteHandler(failingQuotes{err: tc.err}, nil)})

			rr := doJSONRequest(r, http.MethodPost, "/api/v1/venues/venue-1/quotes", bookingBody())
			require.Equal(t, tc.status, rr.Code)
			env := decode(t, rr)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestNoRoute(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, decode(t, rr).Success)
}
