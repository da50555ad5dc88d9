package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

type countingAgents struct {
	calls int
	err   error
}

func (c *countingAgents) ListActiveOnline(context.Context, AgentFilter) ([]domain.Agent, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []domain.Agent{{ID: "A"}}, nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &countingAgents{err: errors.New("connection refused")}
	repo := NewBreakerAgentRepository(inner, BreakerSettings{MaxFailures: 2, Timeout: time.Minute}, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_, err := repo.ListActiveOnline(context.Background(), AgentFilter{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, repo.State())

	_, err := repo.ListActiveOnline(context.Background(), AgentFilter{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	inner := &countingAgents{err: context.Canceled}
	repo := NewBreakerAgentRepository(inner, BreakerSettings{MaxFailures: 1}, nil)

	for i := 0; i < 3; i++ {
		_, err := repo.ListActiveOnline(context.Background(), AgentFilter{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, repo.State())
}

func TestBreakerPassesThroughResults(t *testing.T) {
	repo := NewBreakerAgentRepository(&countingAgents{}, BreakerSettings{}, nil)
	agents, err := repo.ListActiveOnline(context.Background(), AgentFilter{})
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "A", agents[0].ID)
}
