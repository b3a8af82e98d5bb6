package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State represents the state of a circuit breaker
type State int

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = iota
	// StateOpen means the circuit is open and requests are blocked
	StateOpen
	// StateHalfOpen means the circuit is half-open and testing if the dependency is back
	StateHalfOpen
)

// String returns a string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is the duration to wait before transitioning from open to half-open
	Timeout time.Duration
	// SuccessThreshold is the number of successful requests needed to close the circuit
	SuccessThreshold int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker implements a circuit breaker pattern
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	config          Config
	logger          *zap.Logger
	name            string
	now             func() time.Time
}

// New creates a new circuit breaker
func New(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		state:  StateClosed,
		config: config,
		logger: logger,
		name:   name,
		now:    time.Now,
	}
}

// Execute executes a function with circuit breaker protection. Cancellation
// by the caller is not counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	if errors.Is(err, context.Canceled) {
		return err
	}

	cb.afterRequest(err)
	return err
}

// beforeRequest checks if a request should be allowed
func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}

	if cb.now().Sub(cb.lastFailureTime) < cb.config.Timeout {
		return ErrCircuitOpen
	}

	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.logger.Info("Circuit breaker transitioning to half-open",
		zap.String("name", cb.name))
	return nil
}

// afterRequest updates the circuit breaker state based on the result
func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if err == nil {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		cb.logger.Warn("Circuit breaker failure",
			zap.String("name", cb.name),
			zap.Int("failure_count", cb.failureCount),
			zap.Error(err))

		if cb.failureCount >= cb.config.MaxFailures {
			cb.state = StateOpen
			cb.logger.Error("Circuit breaker opened",
				zap.String("name", cb.name),
				zap.Int("failure_count", cb.failureCount))
		}

	case StateHalfOpen:
		if err != nil {
			cb.state = StateOpen
			cb.lastFailureTime = cb.now()
			cb.logger.Error("Circuit breaker re-opened after half-open failure",
				zap.String("name", cb.name),
				zap.Error(err))
			return
		}

		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.Info("Circuit breaker closed after successful recovery",
				zap.String("name", cb.name))
		}
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns statistics about the circuit breaker
type Stats struct {
	State         State
	FailureCount  int
	SuccessCount  int
	LastFailureAt time.Time
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		State:         cb.state,
		FailureCount:  cb.failureCount,
		SuccessCount:  cb.successCount,
		LastFailureAt: cb.lastFailureTime,
	}
}

// Check reports the breaker as unhealthy while it rejects calls. Once the
// open timeout has elapsed the next call may probe, so it is healthy again.
func (cb *CircuitBreaker) Check(_ context.Context) error {
	stats := cb.GetStats()
	if stats.State != StateOpen || cb.now().Sub(stats.LastFailureAt) >= cb.config.Timeout {
		return nil
	}
	return fmt.Errorf("%w: %s failed %d times, last at %s",
		ErrCircuitOpen, cb.name, stats.FailureCount, stats.LastFailureAt.Format(time.RFC3339))
}
