package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gorm.io/gorm"

	"tabletop-chat/backend/ai"
	crepo "tabletop-chat/backend/conversation/repository"
	cservice "tabletop-chat/backend/conversation/service"
	"tabletop-chat/backend/conversation/workflow"
	gmodels "tabletop-chat/backend/game/models"
	grepo "tabletop-chat/backend/game/repository"
	gservice "tabletop-chat/backend/game/service"
	"tabletop-chat/backend/internal/database"
	"tabletop-chat/backend/pkg/cache"
	"tabletop-chat/backend/pkg/config"
	"tabletop-chat/backend/pkg/health"
	"tabletop-chat/backend/pkg/logger"
	"tabletop-chat/backend/pkg/metrics"
	"tabletop-chat/backend/pkg/observability"
	"tabletop-chat/backend/pkg/resilience"
	"tabletop-chat/backend/pkg/secrets"
	"tabletop-chat/backend/realtime"
)

// Container holds all the dependencies for the application
type Container struct {
	Config        *config.Config
	DB            *gorm.DB
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	Observability *observability.Providers
	Secrets       secrets.Manager
	Health        *health.Checker

	Hub   *realtime.Hub
	Relay *realtime.RedisRelay

	Engine         *ai.GuardedEngine
	Generator      *ai.ReactionGenerator
	GameRepository grepo.GameRepository
	GameService    *gservice.GameService
	MessageService *cservice.MessageService
	Workflow       *workflow.Workflow

	gameCache *cache.Cache[*gmodels.Game]
}

// Options overrides parts of the container, mostly for tests
type Options struct {
	// Engine replaces the generation backend selected by configuration
	Engine ai.Engine
	// Secrets replaces the vault backed manager
	Secrets secrets.Manager
	// TraceOutput receives spans; defaults to stdout in development
	TraceOutput io.Writer
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger, opts Options) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}

	c := &Container{
		Config:  cfg,
		DB:      db,
		Logger:  log,
		Metrics: metrics.New(),
	}

	traceOut := opts.TraceOutput
	if traceOut == nil && cfg.IsDevelopment() {
		traceOut = os.Stdout
	}
	providers, err := observability.Setup(observability.Options{
		ServiceName: "tabletop-chat",
		TraceOutput: traceOut,
		Registerer:  c.Metrics.Registry(),
	})
	if err != nil {
		return nil, err
	}
	c.Observability = providers

	c.Secrets = opts.Secrets
	if c.Secrets == nil {
		vm, err := secrets.NewVaultManager(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets manager: %w", err)
		}
		c.Secrets = vm
	}

	c.Hub = realtime.NewHub(log, c.Metrics)
	var broadcaster workflow.Broadcaster = c.Hub
	if cfg.Redis.URL != "" {
		client, err := realtime.NewRedisClient(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		c.Relay = realtime.NewRedisRelay(client, cfg.Redis.ChannelPrefix, c.Hub, log)
		broadcaster = c.Relay
	}

	inner := opts.Engine
	if inner == nil {
		inner, err = NewEngine(ctx, cfg, c.Secrets)
		if err != nil {
			return nil, err
		}
	}
	threshold := cfg.Generation.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	breaker := resilience.NewCircuitBreaker(resilience.Config{
		Name:             "generator",
		FailureThreshold: uint(threshold),
		SuccessThreshold: 1,
		RetryTimeout:     cfg.Generation.BreakerRetry,
	}, log)
	c.Engine = ai.NewGuardedEngine(inner, cfg.Generation.Timeout, breaker)
	c.Generator = ai.NewReactionGenerator(c.Engine, ai.NewPrompter(cfg.Generation.PromptWindowSize))

	c.GameRepository = grepo.NewGormGameRepository(db)
	if cfg.Cache.GameTTL > 0 {
		c.gameCache = cache.New[*gmodels.Game](cache.Options{
			DefaultExpiration: cfg.Cache.GameTTL,
			CleanupInterval:   cfg.Cache.GameTTL,
			MaxItems:          cfg.Cache.GameMaxItems,
		})
		c.GameRepository = grepo.NewCachedGameRepository(c.GameRepository, c.gameCache)
	}
	c.GameService = gservice.NewGameService(c.GameRepository)
	c.MessageService = cservice.NewMessageService(crepo.NewGormMessageRepository(db))

	c.Workflow = workflow.New(c.MessageService, c.GameRepository, broadcaster, c.Generator,
		workflow.Config{
			WindowSize:        cfg.Generation.ContextWindowSize,
			GenerationTimeout: cfg.Generation.Timeout,
		},
		workflow.WithLogger(log),
		workflow.WithMetrics(c.Metrics),
		workflow.WithTracer(providers.Tracer("tabletop-chat/workflow")),
	)

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})
	if c.Relay != nil {
		c.Health.RegisterRedisCheck(c.Relay.Ping)
	}
	c.Health.RegisterCheck("generator-breaker", false, breakerCheck(breaker))

	return c, nil
}

// NewEngine builds the generation backend named by the configuration
func NewEngine(ctx context.Context, cfg *config.Config, sm secrets.Manager) (ai.Engine, error) {
	g := cfg.Generation
	switch g.Backend {
	case config.BackendCLI, "":
		return ai.NewCLIEngine(g.Command, g.Model), nil
	case config.BackendOllama:
		return ai.NewOllamaEngine(g.OllamaURL, g.Model, nil)
	case config.BackendOpenAI:
		return ai.NewOpenAIEngineFromSecrets(ctx, sm, g.OpenAIBaseURL, g.Model)
	default:
		return nil, fmt.Errorf("unknown generation backend %q", g.Backend)
	}
}

func breakerCheck(cb *resilience.CircuitBreaker) health.Check {
	return func(context.Context) (health.Status, string, error) {
		switch cb.State() {
		case resilience.StateOpen:
			return health.StatusDegraded, "generation backend short-circuited", nil
		case resilience.StateHalfOpen:
			return health.StatusDegraded, "probing generation backend", nil
		default:
			return health.StatusUp, "closed", nil
		}
	}
}

// Start launches the background loops: hub, redis relay and health checks
func (c *Container) Start(ctx context.Context) {
	go c.Hub.Run(ctx)
	if c.Relay != nil {
		go c.Relay.Run(ctx)
	}
	c.Health.Start(ctx)
}

// Close flushes telemetry and closes the database
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.gameCache != nil {
		c.gameCache.Stop()
	}
	if c.Observability != nil {
		errs = append(errs, c.Observability.Shutdown(ctx))
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
