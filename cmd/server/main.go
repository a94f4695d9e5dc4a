package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"accountservice/internal/activity"
	"accountservice/internal/config"
	"accountservice/internal/credentials"
	"accountservice/internal/events"
	"accountservice/internal/httpapi"
	"accountservice/internal/service"
	"accountservice/internal/store/memory"
	"accountservice/internal/store/postgres"
)

type accountsBackend interface {
	service.AccountStore
	service.AdminAccountsStore
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store accountsBackend
	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pgPool.Close()

		if cfg.DBMigrate {
			if err := postgres.Migrate(ctx, pgPool); err != nil {
				return err
			}
			logger.Info("db migrations applied")
		}
		store = postgres.NewAccountsStore(pgPool)
	} else {
		logger.Warn("APP_DB_DSN not set, using in-memory account store")
		store = memory.NewAccountsStore()
	}

	gateway, err := credentials.NewClient(cfg.CredentialsURL, &http.Client{Timeout: cfg.CredentialsTimeout})
	if err != nil {
		return err
	}

	topics := events.Topics(cfg.Topics)

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaClientID, topics, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("kafka producer close failed", "err", err)
			}
		}()
		publisher = kp
	} else {
		logger.Warn("APP_KAFKA_BROKERS not set, events are only logged")
	}

	var recorder activity.Recorder = activity.StoreRecorder{Store: store}
	if cfg.LastActiveMode == config.LastActiveEvent {
		recorder = activity.EventRecorder{Publisher: publisher}
	}
	if len(cfg.RedisAddrs) > 0 {
		rdb, err := activity.NewRedisClient(cfg.RedisAddrs, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		recorder = &activity.Throttle{
			Next:   recorder,
			Redis:  rdb,
			Window: cfg.LastActiveThrottle,
			Logger: logger,
		}
	}

	accountsSvc := &service.AccountService{
		Store:             store,
		Credentials:       gateway,
		Events:            publisher,
		Activity:          recorder,
		Logger:            logger,
		CredentialTimeout: cfg.CredentialsTimeout,
	}
	adminSvc := &service.AdminService{Accounts: store, Logger: logger}

	var (
		wg      sync.WaitGroup
		batcher *events.LastActiveBatcher
	)
	if len(cfg.KafkaBrokers) > 0 {
		batcher = events.NewLastActiveBatcher(accountsSvc, cfg.LastActiveBatchSize, cfg.LastActiveFlushInterval, logger)
		dispatcher := &events.Dispatcher{
			Handler:    accountsSvc,
			Topics:     topics,
			LastActive: batcher,
			Logger:     logger,
		}
		consumer, err := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaClientID, cfg.KafkaGroupID, dispatcher, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("kafka consumer close failed", "err", err)
			}
		}()

		go batcher.Run(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error("kafka consumer stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.RouterOpts{
			Logger:        logger,
			IsProd:        cfg.IsProd(),
			DBPing:        store.Ping,
			Accounts:      accountsSvc,
			Admin:         adminSvc,
			InternalToken: cfg.InternalToken,
			TrustProxy:    cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	cancel()
	wg.Wait()
	if batcher != nil {
		<-batcher.Done()
	}
	return serveErr
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
