package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/assignment-engine/internal/config"
	"github.com/spec-kit/assignment-engine/internal/domain"
	"github.com/spec-kit/assignment-engine/internal/events"
	"github.com/spec-kit/assignment-engine/internal/observability"
	"github.com/spec-kit/assignment-engine/internal/persistence"
	"github.com/spec-kit/assignment-engine/internal/repository"
	"github.com/spec-kit/assignment-engine/internal/routing"
	"github.com/spec-kit/assignment-engine/internal/service"
	"github.com/spec-kit/assignment-engine/internal/worker"
)

// Runtime holds the wired engine and the resources it owns.
type Runtime struct {
	Postgres       *persistence.Postgres
	Redis          *persistence.Redis
	Metrics        *observability.Metrics
	Dispatcher     events.Dispatcher
	AgentDirectory *repository.BreakerAgentRepository
	Assignments    *service.AssignmentService

	closers []func()
}

type stores struct {
	memory   *repository.MemoryStore
	rules    repository.RuleRepository
	agents   repository.AgentRepository
	tickets  repository.TicketRepository
	history  repository.AssignmentHistoryRepository
	activity repository.ActivityRepository
}

// Build connects storage and wires the assignment service from cfg.
// Without a POSTGRES_DSN the engine runs on in-memory stores.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{
		Metrics:    observability.NewMetrics(),
		Dispatcher: events.NewInMemoryDispatcher(),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.Postgres = pg
	rt.closers = append(rt.closers, pg.Close)

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			rt.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	st := buildStores(pg)
	if cfg.Assignment.RulesFile != "" {
		fixture, err := repository.LoadFixtureFile(cfg.Assignment.RulesFile)
		if err != nil {
			rt.Close()
			return nil, err
		}
		st.rules = fixture.RuleRepository()
		switch {
		case st.memory != nil:
			fixture.Seed(st.memory)
		case fixture.HasDirectory():
			logger.Warn("ignoring agents and tickets in rules file, postgres is the directory of record",
				zap.String("path", cfg.Assignment.RulesFile))
		}
		logger.Info("loaded assignment rules from file",
			zap.String("path", cfg.Assignment.RulesFile),
			zap.Int("rules", len(fixture.Rules)),
			zap.Int("agents", len(fixture.Agents)),
			zap.Int("tickets", len(fixture.Tickets)))
	} else if st.memory != nil {
		logger.Warn("no POSTGRES_DSN and no ASSIGNMENT_RULES_FILE, in-memory directory is empty")
	}

	ring, err := rt.buildRingStore(ctx, cfg, st.history, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var publisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AssignmentTopic, cfg.Kafka.PublishTimeout(), logger)
		rt.closers = append(rt.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close kafka publisher", zap.Error(err))
			}
		})
		logger.Info("streaming assignment events to kafka", zap.String("topic", cfg.Kafka.AssignmentTopic))
	}
	worker.StartAssignmentEventWorker(rt.Dispatcher, logger, publisher)

	rt.AgentDirectory = repository.NewBreakerAgentRepository(st.agents, repository.BreakerSettings{
		MaxFailures: uint32(max(cfg.Assignment.BreakerMaxFailures, 0)),
		Timeout:     cfg.Assignment.BreakerTimeout(),
	}, logger)

	rt.Assignments = service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:    st.tickets,
		RuleRepo:      st.rules,
		AgentRepo:     rt.AgentDirectory,
		HistoryRepo:   st.history,
		ActivityRepo:  st.activity,
		RingStore:     ring,
		Dispatcher:    rt.Dispatcher,
		Logger:        logger,
		Metrics:       rt.Metrics,
		EngineName:    cfg.Assignment.EngineName,
		WriteRetryMax: cfg.Assignment.WriteRetryMax,
		Defaults: domain.ConfigDefaults{
			Category: cfg.Assignment.DefaultCategory,
			MaxLoad:  cfg.Assignment.DefaultMaxLoad,
		},
	})
	return rt, nil
}

func buildStores(pg *persistence.Postgres) stores {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return stores{
			rules:    repository.NewRuleRepository(pool),
			agents:   repository.NewAgentRepository(pool),
			tickets:  repository.NewTicketRepository(pool),
			history:  repository.NewAssignmentHistoryRepository(pool),
			activity: repository.NewActivityRepository(pool),
		}
	}
	mem := repository.NewMemoryStore()
	return stores{
		memory:   mem,
		rules:    mem.Rules(),
		agents:   mem.Agents(),
		tickets:  mem.Tickets(),
		history:  mem.AssignmentHistory(),
		activity: mem.Activity(),
	}
}

func (rt *Runtime) buildRingStore(ctx context.Context, cfg *config.Config, history repository.AssignmentHistoryRepository, logger *zap.Logger) (routing.RingPositionStore, error) {
	switch cfg.Assignment.RingStore {
	case config.RingStoreRedis:
		client, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		rt.Redis = client
		rt.closers = append(rt.closers, rt.Redis.Close)
		return routing.NewRedisRingStore(rt.Redis.Client), nil
	case config.RingStoreMemory:
		return routing.NewMemoryRingStore(), nil
	case config.RingStoreHistory, "":
		return routing.NewHistoryRingStore(history), nil
	}
	return nil, fmt.Errorf("unsupported ring store %q", cfg.Assignment.RingStore)
}

// Close releases resources in reverse acquisition order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
