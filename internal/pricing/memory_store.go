package pricing

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRuleStore is an in-memory rule repository. Rules are listed in
// insertion order, which is the tie-break order for equal priorities.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]PaymentRule
	order []string // Maintain insertion order
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{
		rules: make(map[string]PaymentRule),
		order: make([]string, 0),
	}
}

func (s *MemoryRuleStore) Get(id string) (PaymentRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

// ListByVenue returns the venue's rules in insertion order.
func (s *MemoryRuleStore) ListByVenue(_ context.Context, venueID string) ([]PaymentRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PaymentRule, 0)
	for _, id := range s.order {
		if r, exists := s.rules[id]; exists && r.VenueID == venueID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryRuleStore) Upsert(rule PaymentRule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Updating keeps the original position.
	if _, exists := s.rules[rule.ID]; !exists {
		s.order = append(s.order, rule.ID)
	}

	s.rules[rule.ID] = rule
	return nil
}

func (s *MemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, orderID := range s.order {
		if orderID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	delete(s.rules, id)
	return nil
}
