package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jia-app/venuepricing/internal/circuitbreaker"
	"github.com/jia-app/venuepricing/internal/quote"
	"github.com/jia-app/venuepricing/internal/server/response"
)

// QuoteService prices bookings
type QuoteService interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Quote, error)
}

// CheckoutService decides whether a booking needs a payment step
type CheckoutService interface {
	PrepareCheckout(ctx context.Context, req quote.Request) (*quote.Checkout, error)
}

// QuoteHandler serves the pricing endpoints of a venue
type QuoteHandler struct {
	quotes   QuoteService
	checkout CheckoutService
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quotes QuoteService, checkout CheckoutService) *QuoteHandler {
	return &QuoteHandler{
		quotes:   quotes,
		checkout: checkout,
	}
}

type quoteRequest struct {
	SpaceID   string    `json:"space_id" binding:"required"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	UserTags  []string  `json:"user_tags"`
}

func (h *QuoteHandler) RegisterRoutes(r *gin.RouterGroup) {
	venue := r.Group("/venues/:venue_id")
	{
		venue.POST("/quotes", h.CreateQuote)
		venue.POST("/checkout", h.PrepareCheckout)
	}
}

// CreateQuote prices a booking of one of the venue's spaces
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	req, ok := bindQuoteRequest(c)
	if !ok {
		return
	}

	q, err := h.quotes.Quote(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, q)
}

// PrepareCheckout prices a booking and tells the client whether to collect payment
func (h *QuoteHandler) PrepareCheckout(c *gin.Context) {
	req, ok := bindQuoteRequest(c)
	if !ok {
		return
	}

	checkout, err := h.checkout.PrepareCheckout(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, checkout)
}

func bindQuoteRequest(c *gin.Context) (quote.Request, bool) {
	var body quoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, quote.ErrCodeInvalidInput, "invalid request body", err.Error())
		return quote.Request{}, false
	}

	return quote.Request{
		VenueID:  c.Param("venue_id"),
		SpaceID:  body.SpaceID,
		Start:    body.StartTime,
		End:      body.EndTime,
		UserTags: body.UserTags,
	}, true
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var de *quote.DomainError
	if errors.As(err, &de) {
		response.ErrorWithDetails(c, statusFor(de.Code), de.Code, de.Message, de.Details)
		return
	}

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		response.Error(c, http.StatusServiceUnavailable, "UNAVAILABLE", "pricing rules are temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusGatewayTimeout, "TIMEOUT", "request timeout")
	case errors.Is(err, context.Canceled):
		response.Error(c, 499, "CANCELED", "request canceled")
	default:
		response.Error(c, http.StatusInternalServerError, quote.ErrCodeInternal, "internal server error")
	}
}

func statusFor(code string) int {
	switch code {
	case quote.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case quote.ErrCodeNotFound:
		return http.StatusNotFound
	case quote.ErrCodePaymentAccountMissing:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
