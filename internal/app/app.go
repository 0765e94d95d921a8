// Package app is the composition root: it builds every component from
// environment configuration and wires them into the HTTP server, the way
// the teacher's cmd/server main wires repos -> services -> handlers.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fleetctl/masterctl/internal/builtin"
	"github.com/fleetctl/masterctl/internal/cache"
	"github.com/fleetctl/masterctl/internal/contextselect"
	"github.com/fleetctl/masterctl/internal/controller"
	"github.com/fleetctl/masterctl/internal/db"
	"github.com/fleetctl/masterctl/internal/domain"
	httpapi "github.com/fleetctl/masterctl/internal/http"
	httpH "github.com/fleetctl/masterctl/internal/http/handlers"
	"github.com/fleetctl/masterctl/internal/health"
	"github.com/fleetctl/masterctl/internal/leader"
	"github.com/fleetctl/masterctl/internal/observability"
	"github.com/fleetctl/masterctl/internal/oracle"
	"github.com/fleetctl/masterctl/internal/platform/envutil"
	"github.com/fleetctl/masterctl/internal/platform/logger"
	"github.com/fleetctl/masterctl/internal/planner"
	"github.com/fleetctl/masterctl/internal/queue"
	"github.com/fleetctl/masterctl/internal/registry"
	"github.com/fleetctl/masterctl/internal/repos"
	"github.com/fleetctl/masterctl/internal/router"
	"github.com/fleetctl/masterctl/internal/tracker"
	"github.com/fleetctl/masterctl/internal/validator"
	"github.com/fleetctl/masterctl/internal/workerclient"
)

// App holds every long-lived component so main can start/stop them in order.
type App struct {
	log     *logger.Logger
	metrics *observability.Metrics

	postgres *db.PostgresService
	leaderMon *leader.Monitor
	registry  *registry.Registry
	tracker   *tracker.Tracker
	health    *health.Monitor
	queue     *queue.Queue
	supervisor *router.Supervisor
	taskRepo  repos.TaskRepo
	workerRepo repos.WorkerRepo
	workerClient *workerclient.Client

	Server *httpapi.Server

	shutdownOTel func(context.Context) error
}

func getEnv(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

// New builds the full application: Postgres, every core component (C1-C8),
// the HTTP surface, and background loops (not yet started — call Start).
func New(ctx context.Context) (*App, error) {
	logMode := getEnv("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("app: build logger: %w", err)
	}

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "masterctl",
		Environment: getEnv("APP_ENV", "development"),
		Version:     getEnv("APP_VERSION", "dev"),
	})

	metrics := observability.NewMetrics()

	postgres, err := db.NewPostgresService(log)
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	if err := postgres.AutoMigrateAll(); err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}
	gdb := postgres.DB()

	oracleClient, err := oracle.New(log)
	if err != nil {
		log.Warn("oracle not configured, degrading to deterministic fallbacks", "error", err)
		oracleClient = nil
	}

	// C1 Leader Monitor
	leaderRepo := repos.NewLeaderRepo(gdb, log)
	masterID := getEnv("MASTER_ID", "master-1")
	leaderMon := leader.New(leader.Config{
		MasterID:          masterID,
		HeartbeatInterval: time.Duration(envutil.Int("MASTER_HEARTBEAT_INTERVAL", 5)) * time.Second,
		Timeout:           time.Duration(envutil.Int("MASTER_TIMEOUT", 15)) * time.Second,
		EnableFailover:    strings.EqualFold(getEnv("ENABLE_MASTER_FAILOVER", "true"), "true"),
	}, leaderRepo, log, metrics)

	// C5 Worker Registry: in-memory live state backs the hot routing path;
	// the health sweep loop persists a durable snapshot to repos.WorkerRepo
	// (the "agents" table) so a restarted controller has a starting registry.
	reg := registry.New()
	workerRepo := repos.NewWorkerRepo(gdb, log)
	if persisted, err := workerRepo.List(ctx, nil); err != nil {
		log.Warn("failed to load persisted workers, starting with empty registry", "error", err)
	} else {
		for _, w := range persisted {
			reg.Register(*w)
		}
	}

	// C6 Performance Tracker
	trk := tracker.New()

	// C7 Health Monitor
	hm := health.New(trk)

	// Queue backing steps 1/2/3/5 of routing
	q := queue.New(envutil.Int("QUEUE_MAX_SIZE", queue.DefaultMaxSize))

	// C4 Response Cache, optionally backed by Redis across replicas
	var cacheBackend cache.Backend
	if redisAddr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); redisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        redisAddr,
			DialTimeout: 5 * time.Second,
		})
		cacheBackend = cache.NewRedisBackend(rdb, "masterctl:cache:")
	}
	respCache := cache.New(
		time.Duration(envutil.Int("TTL_SECONDS", int(cache.DefaultTTL.Seconds())))*time.Second,
		envutil.Int("MAX_ENTRIES", cache.DefaultMaxEntries),
		cacheBackend,
	)

	// C2 Task Planner
	var plannerPort planner.Port
	if oracleClient != nil {
		plannerPort = planner.NewOracle(oracleClient)
	} else {
		plannerPort = planner.NewFallback()
	}

	// C3 Context Selector
	var contextOracle contextselect.ContextOracle
	if oracleClient != nil {
		contextOracle = contextselect.NewOracleAnalyzer(oracleClient)
	}
	referenceKeywords := contextselect.DefaultReferenceKeywords
	if raw := strings.TrimSpace(os.Getenv("REFERENCE_KEYWORDS")); raw != "" {
		referenceKeywords = strings.Split(raw, ",")
	}
	selector := contextselect.New(contextselect.Config{
		ReferenceKeywords:  referenceKeywords,
		MaxContextMessages: envutil.Int("MAX_CONTEXT_MESSAGES", domain.DefaultContextWindow),
	}, contextOracle)

	// Answer validator
	var validatorPort validator.Port
	if oracleClient != nil {
		validatorPort = validator.NewOracle(oracleClient)
	} else {
		validatorPort = validator.NewFallback()
	}

	// Builtin last-resort responder
	var builtinResponder router.BuiltinResponder
	if oracleClient != nil {
		builtinResponder = builtin.NewOracle(oracleClient)
	}

	wc := workerclient.New(time.Duration(envutil.Int("WORKER_TIMEOUT_SECONDS", 5)) * time.Second)

	store := repos.NewControllerStore(gdb, log)
	taskRepo := repos.NewTaskRepo(gdb, log)

	supervisor := router.New(
		router.Config{
			MaxRetries:      envutil.Int("MAX_RETRIES", router.DefaultMaxRetries),
			FreshnessWindow: time.Duration(envutil.Int("WORKER_FRESHNESS_SECONDS", 30)) * time.Second,
		},
		log, reg, trk, hm, q, validatorPort, wc, builtinResponder, store, leaderMon, metrics,
	)

	history := repos.NewConversationHistory(gdb, log)
	controllerSvc := controller.New(
		controller.Config{MasterID: masterID, MaxContextMessages: envutil.Int("MAX_CONTEXT_MESSAGES", domain.DefaultContextWindow)},
		log, history, selector, plannerPort, respCache, supervisor, reg, trk, hm, leaderMon, metrics,
	)

	routerCfg := httpapi.RouterConfig{
		ChatHandler:   httpH.NewChatHandler(controllerSvc),
		HealthHandler: httpH.NewHealthHandler(controllerSvc),
		StatsHandler:  httpH.NewStatsHandler(controllerSvc),
		CancelHandler: httpH.NewCancelHandler(controllerSvc),
		WorkerHandler: httpH.NewWorkerHandler(controllerSvc),
		Log:           log,
		Metrics:       metrics,
	}
	server := httpapi.NewServer(routerCfg)

	return &App{
		log:        log,
		metrics:    metrics,
		postgres:   postgres,
		leaderMon:  leaderMon,
		registry:   reg,
		tracker:    trk,
		health:     hm,
		queue:      q,
		supervisor: supervisor,
		taskRepo:     taskRepo,
		workerRepo:   workerRepo,
		workerClient: wc,
		Server:       server,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Start launches every background loop: leader election, the health sweep,
// and the supervisor's queue-drain loop.
func (a *App) Start(ctx context.Context) error {
	if err := a.leaderMon.Start(ctx); err != nil {
		return fmt.Errorf("app: start leader monitor: %w", err)
	}
	go healthSweepLoop(ctx, a.log, a.registry, a.health, a.tracker, a.workerRepo, a.workerClient)
	go a.supervisor.DrainLoop(ctx, a.retryQueuedItem)
	return nil
}

// retryQueuedItem rebuilds the *domain.Task a queued item refers to and
// re-runs RouteStep for it; the task row was already created the first time
// this step was routed, so this only needs to re-fetch and re-dispatch.
func (a *App) retryQueuedItem(ctx context.Context, item *queue.Item) bool {
	task, err := a.taskRepo.GetByID(ctx, nil, item.TaskID)
	if err != nil {
		a.log.Warn("drain: task lookup failed", "error", err, "task_id", item.TaskID)
		return false
	}
	result := a.supervisor.RouteStep(ctx, task, "")
	return result.Outcome == router.OutcomeCompleted || result.Outcome == router.OutcomeUseBuiltin
}

// Stop shuts down the OTel exporter and closes the leader monitor. The health
// sweep and drain loops are not stopped here; they exit when the context
// passed to Start is cancelled.
func (a *App) Stop(ctx context.Context) error {
	if a.shutdownOTel != nil {
		_ = a.shutdownOTel(ctx)
	}
	return a.leaderMon.Close()
}
