// cmd/notifier-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cakeshop-notifier/internal/api"
	"cakeshop-notifier/internal/audit"
	"cakeshop-notifier/internal/common/auth"
	awsclient "cakeshop-notifier/internal/common/aws"
	"cakeshop-notifier/internal/common/camunda"
	"cakeshop-notifier/internal/common/config"
	"cakeshop-notifier/internal/common/database"
	httpclient "cakeshop-notifier/internal/common/http"
	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/common/observability"
	"cakeshop-notifier/internal/directory"
	"cakeshop-notifier/internal/email"
	"cakeshop-notifier/internal/notify"
	"cakeshop-notifier/internal/push"
	"cakeshop-notifier/internal/realtime"
	nno "cakeshop-notifier/internal/workers/notification/notify-new-order"
	noa "cakeshop-notifier/internal/workers/notification/notify-order-assignment"
	nou "cakeshop-notifier/internal/workers/notification/notify-order-update"
	"cakeshop-notifier/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notifier server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
		obs = observability.NewNoop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	activities, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}

	checks := map[string]api.HealthCheck{}

	// --- Storage: push subscriptions and the delivery-boy directory ---
	var (
		store push.Store          = push.NewMemoryStore()
		dir   directory.Directory = directory.Static{}
	)

	var redis *database.RedisClient
	if cfg.Database.Redis.Enabled() {
		err = retryWithBackoff(func() error {
			client, err := database.ConnectRedis(ctx, cfg.Database.Redis)
			if err != nil {
				return err
			}
			redis = client
			return nil
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			defer redis.Close()
			checks["redis"] = redis.Ping
			zapLog.Info("Redis connected successfully")
		}
	}

	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")

		pgStore := push.NewPostgresStore(pg.DB, redis.Underlying(), time.Duration(cfg.Database.Redis.CacheTTL)*time.Second, log)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("push subscription schema failed", zap.Error(err))
		}
		store = pgStore
		dir = directory.NewPostgresDirectory(pg.DB)
	} else {
		zapLog.Warn("postgres not configured, push subscriptions are kept in memory")
	}

	// --- Audit log ---
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, audit log disabled", zap.Error(err))
		} else {
			recorder = audit.NewESRecorder(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)
			checks["elasticsearch"] = esClient.Ping
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Channels ---
	var transport push.Transport
	if t := push.NewWebPushTransport(cfg.Push, httpclient.NewClient(config.GetDuration(cfg.Notifications.ChannelTimeout))); t != nil {
		transport = t
	}
	pushService := push.NewService(store, transport, cfg.Push.VAPIDPublicKey, log)

	var sesClient email.SESService
	if cfg.Notifications.Email.Provider == "ses" {
		c, err := awsclient.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		sesClient = c
	}
	mailer, err := email.NewSender(cfg.Notifications, sesClient)
	if err != nil {
		zapLog.Fatal("email sender failed", zap.Error(err))
	}
	if mailer == nil {
		zapLog.Warn("email provider not configured, email notifications disabled")
	}

	var sms notify.SMSSender
	if cfg.Notifications.SMS.Enabled {
		c, err := awsclient.NewSNSClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.SMS.SenderID)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		sms = c
	}

	connections := realtime.NewRegistry(log)

	dispatcher := notify.NewDispatcher(notify.Options{
		Registry:       connections,
		Push:           pushService,
		Email:          mailer,
		Composer:       email.NewComposer(cfg.Notifications.PanelURL),
		SMS:            sms,
		Audit:          recorder,
		Observability:  obs,
		ChannelTimeout: config.GetDuration(cfg.Notifications.ChannelTimeout),
		Logger:         log,
	})

	assignment := noa.NewHandler(
		noa.LoadConfig(config.GetWorkerConfig(cfg, registry.TaskNotifyOrderAssignment)),
		dispatcher, dir, activities, log,
	)
	update := nou.NewHandler(
		nou.LoadConfig(config.GetWorkerConfig(cfg, registry.TaskNotifyOrderUpdate)),
		dispatcher, activities, log,
	)
	newOrder := nno.NewHandler(
		nno.LoadConfig(config.GetWorkerConfig(cfg, registry.TaskNotifyNewOrder)),
		dispatcher, activities, log,
	)

	// --- Job workers ---
	var pool *camunda.WorkerPool
	if cfg.Camunda.Enabled() {
		zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		pool = camunda.NewWorkerPool(zeebe, log)
		pool.Start(registry.TaskNotifyOrderAssignment, config.GetWorkerConfig(cfg, registry.TaskNotifyOrderAssignment), assignment.Handle)
		pool.Start(registry.TaskNotifyOrderUpdate, config.GetWorkerConfig(cfg, registry.TaskNotifyOrderUpdate), update.Handle)
		pool.Start(registry.TaskNotifyNewOrder, config.GetWorkerConfig(cfg, registry.TaskNotifyNewOrder), newOrder.Handle)
	} else {
		zapLog.Info("camunda.broker_address not set, job workers not started")
	}

	// --- HTTP server ---
	server := api.NewServer(api.Deps{
		Server:          cfg.Server,
		Realtime:        cfg.Realtime,
		Verifier:        auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Registry:        connections,
		Push:            pushService,
		Activities:      activities,
		Audit:           recorder,
		Checks:          checks,
		OrderAssignment: assignment,
		OrderUpdate:     update,
		NewOrder:        newOrder,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	go func() {
		// pprof only on loopback
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			zapLog.Debug("pprof listener stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down notifier server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if pool != nil {
		pool.Close()
	}
	connections.CloseAll(websocket.CloseGoingAway, "server shutting down")
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Notifier server stopped")
}
