package routing

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/repository"
)

// RingPositionStore remembers the agent a ring-based rule assigned last.
type RingPositionStore interface {
	// LastAssigned returns the last agent for ruleType; ok is false when none is recorded.
	LastAssigned(ctx context.Context, ruleType domain.RuleType) (agentID string, ok bool, err error)
	// Advance records agentID as the latest assignee for ruleType.
	Advance(ctx context.Context, ruleType domain.RuleType, agentID string) error
}

// HistoryRingStore derives the ring position from the latest assignment history row.
// Advance is a no-op because the coordinator appends the history itself.
type HistoryRingStore struct {
	history repository.AssignmentHistoryRepository
}

// NewHistoryRingStore builds the default ring store.
func NewHistoryRingStore(history repository.AssignmentHistoryRepository) *HistoryRingStore {
	return &HistoryRingStore{history: history}
}

func (s *HistoryRingStore) LastAssigned(ctx context.Context, ruleType domain.RuleType) (string, bool, error) {
	entry, err := s.history.Latest(ctx, ruleType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return entry.AssignedAgentID, true, nil
}

func (s *HistoryRingStore) Advance(context.Context, domain.RuleType, string) error {
	return nil
}

// MemoryRingStore keeps ring pointers in process memory.
type MemoryRingStore struct {
	mu   sync.Mutex
	last map[domain.RuleType]string
}

// NewMemoryRingStore creates an empty in-process ring store.
func NewMemoryRingStore() *MemoryRingStore {
	return &MemoryRingStore{last: make(map[domain.RuleType]string)}
}

func (s *MemoryRingStore) LastAssigned(_ context.Context, ruleType domain.RuleType) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.last[ruleType]
	return id, ok, nil
}

func (s *MemoryRingStore) Advance(_ context.Context, ruleType domain.RuleType, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[ruleType] = agentID
	return nil
}

const redisRingKeyPrefix = "assignment:ring:"

// RedisRingStore shares ring pointers between engine replicas through Redis.
type RedisRingStore struct {
	client *redis.Client
}

// NewRedisRingStore builds a ring store on an existing client.
func NewRedisRingStore(client *redis.Client) *RedisRingStore {
	return &RedisRingStore{client: client}
}

func redisRingKey(ruleType domain.RuleType) string {
	return redisRingKeyPrefix + string(ruleType)
}

func (s *RedisRingStore) LastAssigned(ctx context.Context, ruleType domain.RuleType) (string, bool, error) {
	if s.client == nil {
		return "", false, errors.New("redis client not configured")
	}
	id, err := s.client.Get(ctx, redisRingKey(ruleType)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *RedisRingStore) Advance(ctx context.Context, ruleType domain.RuleType, agentID string) error {
	if s.client == nil {
		return errors.New("redis client not configured")
	}
	return s.client.Set(ctx, redisRingKey(ruleType), agentID, 0).Err()
}
