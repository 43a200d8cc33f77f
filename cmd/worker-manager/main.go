// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"bankruptcy-workers/internal/api"
	"bankruptcy-workers/internal/casefile"
	"bankruptcy-workers/internal/common/aws"
	"bankruptcy-workers/internal/common/camunda"
	"bankruptcy-workers/internal/common/caselock"
	"bankruptcy-workers/internal/common/config"
	"bankruptcy-workers/internal/common/database"
	"bankruptcy-workers/internal/common/docintel"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/common/observability"
	"bankruptcy-workers/internal/repository"

	cie "bankruptcy-workers/internal/workers/income/collect-income-evidence"
	gis "bankruptcy-workers/internal/workers/income/get-income-summary"
	ri "bankruptcy-workers/internal/workers/income/reconcile-income"
	cmt "bankruptcy-workers/internal/workers/means-test/calculate-means-test"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs, err := observability.New("worker-manager")
	if err != nil {
		log.Warn("otel exporter unavailable, stage metrics disabled", map[string]interface{}{"error": err})
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = camunda.RetryWithBackoff(ctx, func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, log, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	log.Info("Zeebe client connected", nil)

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = camunda.RetryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	log.Info("PostgreSQL connected", nil)

	if cfg.Database.Postgres.AutoMigrate {
		if err := repository.ApplyMigrations(ctx, pg.DB, log); err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
	}

	// --- Redis ---
	var rdb *database.RedisClient
	err = camunda.RetryWithBackoff(ctx, func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("Redis connected", nil)

	// --- Collaborators ---
	fetcher := docintel.NewClient(docintel.Config{
		BaseURL:    cfg.DocumentIntel.BaseURL,
		APIKey:     cfg.DocumentIntel.APIKey,
		Timeout:    config.GetDuration(cfg.DocumentIntel.Timeout),
		RetryCount: cfg.DocumentIntel.RetryCount,
	}, log)

	notifier, err := buildNotifier(ctx, cfg.Notifications)
	if err != nil {
		zapLog.Fatal("review notifier setup failed", zap.Error(err))
	}

	locker := caselock.New(rdb.Client, caselock.Options{
		TTL:           config.GetDuration(cfg.Lock.TTL),
		WaitTimeout:   config.GetDuration(cfg.Lock.WaitTimeout),
		RetryInterval: config.GetDuration(cfg.Lock.RetryInterval),
	})

	params, err := casefile.ParamsFromConfig(cfg.Reconciliation)
	if err != nil {
		zapLog.Fatal("invalid reconciliation settings", zap.Error(err))
	}
	tables, err := casefile.TablesFromConfig(cfg.MeansTest)
	if err != nil {
		zapLog.Fatal("invalid statutory tables", zap.Error(err))
	}

	service, err := casefile.New(casefile.Deps{
		Store:    repository.New(pg),
		Fetcher:  fetcher,
		Locker:   locker,
		Notifier: notifier,
		Obs:      obs,
	}, casefile.Options{
		Params:         params,
		Tables:         tables,
		MaxConcurrency: cfg.DocumentIntel.MaxConcurrency,
	}, log)
	if err != nil {
		zapLog.Fatal("case file service setup failed", zap.Error(err))
	}

	// --- Workers ---
	client := zeebe.GetClient()
	var workers []worker.JobWorker
	start := func(taskType string, handler camunda.HandlerFunc) {
		if jw := camunda.StartWorker(client, taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, log); jw != nil {
			workers = append(workers, jw)
		}
	}

	start(cie.TaskType, cie.NewHandler(cie.LoadConfig(config.GetWorkerConfig(cfg, cie.TaskType)), service, log).Handle)
	start(ri.TaskType, ri.NewHandler(ri.LoadConfig(config.GetWorkerConfig(cfg, ri.TaskType)), service, log).Handle)
	start(gis.TaskType, gis.NewHandler(gis.LoadConfig(config.GetWorkerConfig(cfg, gis.TaskType)), service, log).Handle)
	start(cmt.TaskType, cmt.NewHandler(cmt.LoadConfig(config.GetWorkerConfig(cfg, cmt.TaskType)), service, log).Handle)
	log.Info("Workers registered", map[string]interface{}{"count": len(workers)})

	// --- HTTP ---
	var server *api.Server
	if cfg.HTTP.Enabled {
		server = api.NewServer(service, map[string]api.ReadinessCheck{
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
			"zeebe":    zeebe.HealthCheck,
		}, log)
		go func() {
			log.Info("HTTP server listening", map[string]interface{}{"address": cfg.HTTP.Address})
			if err := server.Start(cfg.HTTP.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server failed", map[string]interface{}{"error": err})
				stop()
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers", nil)

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err})
		}
	}

	log.Info("Worker manager stopped", nil)
}

// buildNotifier returns nil when no review channel is enabled.
func buildNotifier(ctx context.Context, cfg config.NotificationConfig) (aws.Notifier, error) {
	var fanout aws.Fanout

	if cfg.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.SNS.Region)
		if err != nil {
			return nil, err
		}
		fanout = append(fanout, aws.NewReviewNotifier(client, cfg.SNS.TopicARN))
	}
	if cfg.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.Email.Region)
		if err != nil {
			return nil, err
		}
		fanout = append(fanout, aws.NewReviewMailer(client, cfg.Email.FromEmail, cfg.Email.Recipients))
	}

	if len(fanout) == 0 {
		return nil, nil
	}
	return fanout, nil
}
