// Package main is the entry point for the Content Pilot API server.
//
// It loads configuration, builds the scheduler, publishing queue, content
// library and autopilot, mounts their HTTP handlers on the core chassis and
// runs the HTTP server alongside the queue worker and the autopilot loop.
//
// Optional integrations are enabled by configuration:
//   - DATABASE_URL loads historical engagement for slot scoring.
//   - SQS_PUBLISH_EVENTS emits one event per finished publish task.
//   - METRICS_BACKEND selects Prometheus (/metrics) or CloudWatch.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"contentpilot/internal/api/handlers"
	"contentpilot/internal/autopilot"
	"contentpilot/internal/config"
	"contentpilot/internal/content"
	"contentpilot/internal/core"
	"contentpilot/internal/db"
	"contentpilot/internal/events"
	"contentpilot/internal/external"
	"contentpilot/internal/metrics"
	"contentpilot/internal/queue"
	"contentpilot/internal/scheduler"
)

const (
	shutdownTimeout = 10 * time.Second

	// historyWindow is how far back engagement is aggregated for scoring.
	historyWindow = 90 * 24 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("contentpilot API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

// app holds the wired components of a running server.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *core.Server
	scheduler *scheduler.Scheduler
	queue     *queue.Queue
	content   *content.Store
	autopilot *autopilot.Manager
	pool      *pgxpool.Pool
}

// buildApp wires every component from cfg. External services are only
// contacted when configured.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	sched, err := scheduler.NewSmartScheduler(scheduler.Config{
		Timezone:  cfg.Scheduler.Timezone,
		Platforms: cfg.Scheduler.Platforms,
		Seed:      cfg.Scheduler.Seed,
		Logger:    logger.With("component", "scheduler"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	a.scheduler = sched

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.server = srv

	if cfg.Database.URL.IsSet() {
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("database", pool.Ping))
		a.loadHistory(ctx)
	}

	var awsCfg aws.Config
	needAWS := cfg.AWS.PublishEventsQueue != "" || cfg.Observability.MetricsBackend == "cloudwatch"
	if needAWS {
		awsCfg, err = loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	recorder := a.newRecorder(awsCfg)

	registry := external.NewPublisherRegistry(cfg.Platforms, logger.With("component", "publishers"))
	logger.Info("platform publishers configured", "platforms", registry.Configured())

	q := queue.New(queue.Config{
		Publishers:     registry,
		Observers:      []queue.TaskObserver{queue.NewScheduleSync(sched, logger)},
		Metrics:        recorder,
		Logger:         logger.With("component", "queue"),
		PublishTimeout: cfg.Queue.PublishTimeout,
		MaxRetries:     cfg.Queue.MaxRetries,
		RetryMinWait:   cfg.Queue.RetryMinWait,
		RetryMaxWait:   cfg.Queue.RetryMaxWait,
	})
	if cfg.AWS.PublishEventsQueue != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		q.AddObserver(events.NewSQSNotifier(client, cfg.AWS.PublishEventsQueue, nil, logger))
		logger.Info("publish events enabled", "queue_url", cfg.AWS.PublishEventsQueue)
	}
	a.queue = q

	store := content.NewStore(nil, logger.With("component", "content"))
	producer, err := content.NewTemplateProducer(content.ProducerConfig{
		Store:        store,
		MediaBaseURL: cfg.Autopilot.MediaBaseURL,
		Logger:       logger.With("component", "producer"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating content producer: %w", err)
	}
	a.content = store

	a.autopilot = autopilot.New(autopilot.Config{
		Scheduler:    sched,
		Producer:     producer,
		Queue:        q,
		Content:      store,
		Metrics:      recorder,
		Velocity:     cfg.Autopilot.Velocity,
		Topics:       cfg.Autopilot.Topics,
		ContentTypes: cfg.Autopilot.ContentTypes,
		AutoApprove:  cfg.Autopilot.AutoApprove,
		Logger:       logger.With("component", "autopilot"),
	})

	scheduleHandler := handlers.NewScheduleHandler(sched, recorder, sched.Location().String(), srv.Validator, logger)
	queueHandler := handlers.NewQueueHandler(q, store, logger)
	contentHandler := handlers.NewContentHandler(store, producer, srv.Validator, logger)
	autopilotHandler := handlers.NewAutopilotHandler(a.autopilot, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/schedule", scheduleHandler.RegisterRoutes)
		r.Route("/queue", queueHandler.RegisterRoutes)
		r.Route("/content", contentHandler.RegisterRoutes)
		r.Route("/autopilot", autopilotHandler.RegisterRoutes)
	})
	srv.MountRoutes()

	return a, nil
}

// newRecorder builds the metrics backend named in the configuration. For
// Prometheus it also installs the HTTP middleware and the /metrics route.
func (a *app) newRecorder(awsCfg aws.Config) metrics.Recorder {
	obs := a.cfg.Observability
	switch obs.MetricsBackend {
	case "prometheus":
		p := metrics.NewPrometheus(obs.MetricNamespace, a.cfg.Build.Version, a.cfg.Build.Commit)
		a.server.Instrument = p.Middleware
		a.server.MetricsHandler = p.Handler()
		return p
	case "cloudwatch":
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if a.cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(a.cfg.AWS.EndpointURL)
			}
		})
		return metrics.NewCloudWatch(client, obs.MetricNamespace, a.logger)
	default:
		return metrics.Nop{}
	}
}

// loadHistory seeds the scheduler with aggregated engagement. Failures leave
// default scoring in place.
func (a *app) loadHistory(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	since := time.Now().UTC().Add(-historyWindow)
	records, err := db.NewPerformanceRepository(a.pool).
		ListHistoricalPerformance(loadCtx, since, a.cfg.Scheduler.Timezone)
	if err != nil {
		a.logger.Warn("historical performance unavailable, using default scoring", "error", err)
		return
	}
	a.scheduler.SetHistoricalData(records)
	a.logger.Info("historical performance loaded", "records", len(records), "since", since)
}

// Run serves HTTP and runs the background loops until ctx is cancelled or one
// of them fails.
func (a *app) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.ListenAndServe(gctx, shutdownTimeout)
	})
	g.Go(func() error {
		return a.queue.Run(gctx, a.cfg.Queue.ProcessInterval)
	})
	if a.cfg.Autopilot.Enabled {
		g.Go(func() error {
			return a.autopilot.Run(gctx, a.cfg.Autopilot.Interval)
		})
	} else {
		a.logger.Info("autopilot loop disabled; passes run only via the API")
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("server stopped cleanly")
	return nil
}

// Close releases the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	return pool, nil
}

// loadAWSConfig resolves credentials from the default chain. EndpointURL
// points the clients at LocalStack during development.
func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
