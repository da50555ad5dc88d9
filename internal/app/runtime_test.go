package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/domain"
)

func TestBuildInMemoryWithRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: rr
    name: Round robin
    type: round_robin
    priority: 1
`), 0o600))

	cfg := &config.Config{
		Assignment: config.AssignmentConfig{
			RingStore:       config.RingStoreMemory,
			RulesFile:       path,
			DefaultCategory: "uncategorized",
		},
	}
	rt, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer rt.Close()

	assert.False(t, rt.Postgres.Enabled())
	assert.Nil(t, rt.Redis)

	rules, err := rt.Assignments.ListRules(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, domain.RuleTypeRoundRobin, rules[0].Type)

	// Rules alone leave the in-memory directory without agents.
	preview, err := rt.Assignments.Preview(context.Background(), domain.Ticket{ID: "draft"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoMatch, preview.Reason)
}

func TestBuildInMemorySeedsAgentsAndTicketsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - id: dept
    name: Department routing
    type: department_match
    priority: 1
  - id: rr
    name: Round robin
    type: round_robin
    priority: 2
agents:
  - id: ana
    name: Ana
    department: billing
  - id: bo
    name: Bo
    department: sales
tickets:
  - id: T-1
    category: billing
  - id: T-2
    category: hardware
`), 0o600))

	cfg := &config.Config{
		Assignment: config.AssignmentConfig{
			RingStore:       config.RingStoreHistory,
			RulesFile:       path,
			DefaultCategory: "uncategorized",
			DefaultMaxLoad:  5,
			WriteRetryMax:   1,
		},
	}
	rt, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer rt.Close()
	ctx := context.Background()

	first, err := rt.Assignments.Assign(ctx, "T-1")
	require.NoError(t, err)
	assert.True(t, first.Assigned)
	assert.Equal(t, "ana", first.AgentID)
	assert.Equal(t, "dept", first.RuleID)

	second, err := rt.Assignments.Assign(ctx, "T-2")
	require.NoError(t, err)
	assert.True(t, second.Assigned)
	assert.Equal(t, "bo", second.AgentID)
	assert.Equal(t, "dept", second.RuleID)

	again, err := rt.Assignments.Assign(ctx, "T-1")
	require.NoError(t, err)
	assert.False(t, again.Assigned)
	assert.Equal(t, domain.ReasonAlreadyAssigned, again.Reason)

	preview, err := rt.Assignments.Preview(ctx, domain.Ticket{ID: "draft", Category: "sales"})
	require.NoError(t, err)
	require.NotNil(t, preview.FirstMatch)
	require.NotNil(t, preview.FirstMatch.Agent)
	assert.Equal(t, "bo", preview.FirstMatch.Agent.ID)
}

func TestBuildFailsOnMissingRulesFile(t *testing.T) {
	cfg := &config.Config{
		Assignment: config.AssignmentConfig{
			RingStore: config.RingStoreHistory,
			RulesFile: filepath.Join(t.TempDir(), "absent.yaml"),
		},
	}
	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
