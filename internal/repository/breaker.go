package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// BreakerSettings tunes the agent directory circuit breaker.
type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// BreakerAgentRepository fails fast once the wrapped directory keeps erroring.
type BreakerAgentRepository struct {
	inner   AgentRepository
	breaker *gobreaker.CircuitBreaker[[]domain.Agent]
}

// NewBreakerAgentRepository wraps inner with a circuit breaker.
func NewBreakerAgentRepository(inner AgentRepository, settings BreakerSettings, logger *zap.Logger) *BreakerAgentRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[[]domain.Agent](gobreaker.Settings{
		Name:        "agent-directory",
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// the caller giving up is not a directory failure
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerAgentRepository{inner: inner, breaker: cb}
}

func (r *BreakerAgentRepository) ListActiveOnline(ctx context.Context, filter AgentFilter) ([]domain.Agent, error) {
	return r.breaker.Execute(func() ([]domain.Agent, error) {
		return r.inner.ListActiveOnline(ctx, filter)
	})
}

// State reports the breaker state.
func (r *BreakerAgentRepository) State() gobreaker.State {
	return r.breaker.State()
}
