package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jia-app/venuepricing/internal/metrics"
)

// Querier is the subset of pgxpool.Pool the account store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountStore reads venue payment accounts
type AccountStore struct {
	db Querier
}

// NewAccountStore creates a new account store
func NewAccountStore(db Querier) (*AccountStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	return &AccountStore{db: db}, nil
}

const hasPaymentAccount = `
SELECT EXISTS (
    SELECT 1 FROM venue_payment_accounts
    WHERE venue_id = $1 AND charges_enabled AND stripe_account_id <> ''
)`

// HasPaymentAccount reports whether the venue has an account able to take charges
func (s *AccountStore) HasPaymentAccount(ctx context.Context, venueID string) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("has_payment_account", time.Since(start)) }()

	var ok bool
	if err := s.db.QueryRow(ctx, hasPaymentAccount, venueID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check payment account of venue %s: %w", venueID, err)
	}
	return ok, nil
}
