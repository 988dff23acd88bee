package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"query_router/adapter/out/cache"
	"query_router/adapter/out/messaging"
	"query_router/adapter/out/persistence"
	"query_router/config"
	"query_router/core/agent"
	"query_router/core/agent/llm"
	"query_router/core/domain"
	"query_router/core/port/out"
	"query_router/core/service/classification"
	"query_router/core/service/learning"
	"query_router/core/service/ticket"
	"query_router/infra/database"
	"query_router/pkg/logger"
	"query_router/pkg/metrics"
	"query_router/pkg/snowflake"
)

// Dependencies holds every wired component shared by the API, the worker
// and the one-shot analysis mode.
type Dependencies struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client // nil when REDIS_URL is unset
	IDs   *snowflake.Generator

	// Repositories
	TicketRepo   *persistence.TicketAdapter
	EventRepo    *persistence.EventAdapter
	PatternRepo  *persistence.PatternAdapter
	FeedbackRepo *persistence.FeedbackAdapter
	TeamRepo     *persistence.TeamAdapter

	// Services
	Learning   *learning.Engine
	Classifier *classification.Engine
	Tickets    *ticket.Manager
	Router     *agent.Orchestrator
	Latency    *metrics.LatencyRegistry

	// Queue is set when Redis is available; learning then runs in the worker.
	Queue *messaging.LearningQueue
}

// NewDependencies opens the stores and wires the services. The returned
// cleanup closes every connection.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	ids, err := snowflake.NewGenerator(snowflake.NodeFor(cfg.WorkerID))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create id generator: %w", err)
	}

	// =========================================================================
	// Stores
	// =========================================================================

	db, err := database.NewSQL(ctx, database.DefaultSQLConfig(cfg.DBDriver, cfg.DSN(), cfg.DBMaxConns))
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { db.Close() })
	logger.Info("Connected to %s database", cfg.DBDriver)

	if err := persistence.Migrate(ctx, db); err != nil {
		cleanup()
		return nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { redisClient.Close() })
		logger.Info("Connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, learning runs in-process and AI results are not cached")
	}

	d := &Dependencies{
		Config:       cfg,
		DB:           db,
		Redis:        redisClient,
		IDs:          ids,
		TicketRepo:   persistence.NewTicketAdapter(db),
		EventRepo:    persistence.NewEventAdapter(db),
		PatternRepo:  persistence.NewPatternAdapter(db),
		FeedbackRepo: persistence.NewFeedbackAdapter(db),
		TeamRepo:     persistence.NewTeamAdapter(db),
		Latency:      metrics.NewLatencyRegistry(1000),
	}

	if err := d.loadTeams(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	// =========================================================================
	// Services
	// =========================================================================

	d.Learning = learning.NewEngine(d.TicketRepo, d.EventRepo, d.PatternRepo, d.FeedbackRepo)

	engineDeps := classification.EngineDeps{Learned: d.Learning}
	var drafter out.ResponseDrafter = llm.NewDrafter(nil)
	if cfg.OpenAIAPIKey != "" {
		client := llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		engineDeps.AI = llm.NewClassifier(client)
		drafter = llm.NewDrafter(client)
		logger.Info("LLM classifier enabled (model %s)", cfg.LLMModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, using keyword classifier and template responses")
	}
	if redisClient != nil {
		engineDeps.Cache = cache.NewRedisClassificationCache(redisClient)
		d.Queue = messaging.NewLearningQueue(messaging.NewRedisProducer(redisClient, ids))
	}

	d.Classifier = classification.NewEngine(ctx, engineDeps, classification.Config{
		AITimeout: cfg.ClassifierAITimeout,
		CacheTTL:  cfg.ClassifierCacheTTL,
	})

	var ticketLearner agent.TicketLearner = d.Learning
	var reassignLearner ticket.ReassignmentLearner = d.Learning
	if d.Queue != nil {
		ticketLearner = d.Queue
		reassignLearner = d.Queue
	}

	d.Tickets = ticket.NewManager(d.TicketRepo, d.EventRepo, d.TeamRepo, reassignLearner)
	d.Router = agent.NewOrchestrator(agent.Deps{
		Classifier: d.Classifier,
		Tickets:    d.Tickets,
		Drafter:    drafter,
		Learner:    ticketLearner,
		Stats:      d.Learning,
		Latency:    d.Latency,
	}, agent.Config{
		RefreshEvery:     cfg.LearningRefreshEvery,
		BatchConcurrency: cfg.BatchConcurrency,
	})

	return d, cleanup, nil
}

// loadTeams seeds the default directory into an empty table, or upserts the
// TEAMS_FILE entries when one is configured.
func (d *Dependencies) loadTeams(ctx context.Context) error {
	if d.Config.TeamsFile == "" {
		n, err := persistence.SeedTeams(ctx, d.TeamRepo, domain.DefaultTeams)
		if err != nil {
			return fmt.Errorf("failed to seed teams: %w", err)
		}
		if n > 0 {
			logger.Info("Seeded %d default teams", n)
		}
		return nil
	}

	teams, err := LoadTeams(d.Config.TeamsFile)
	if err != nil {
		return err
	}
	for i := range teams {
		if err := d.TeamRepo.Upsert(ctx, &teams[i]); err != nil {
			return fmt.Errorf("failed to upsert team %s: %w", teams[i].Name, err)
		}
	}
	logger.Info("Loaded %d teams from %s", len(teams), d.Config.TeamsFile)
	return nil
}

// HealthCheck pings the database and, when configured, Redis.
func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
