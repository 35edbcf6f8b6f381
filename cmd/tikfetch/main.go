package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/destroydevs/TikFetchBot/internal/bot"
	"github.com/destroydevs/TikFetchBot/internal/cache"
	"github.com/destroydevs/TikFetchBot/internal/config"
	"github.com/destroydevs/TikFetchBot/internal/httpserver"
	"github.com/destroydevs/TikFetchBot/internal/logging"
	"github.com/destroydevs/TikFetchBot/internal/metrics"
	"github.com/destroydevs/TikFetchBot/internal/repository"
	"github.com/destroydevs/TikFetchBot/internal/resolver"
	"github.com/destroydevs/TikFetchBot/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format,
		cfg.Telegram.Token, cfg.HTTP.AdminToken, cfg.Redis.Password)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New(cfg.Metrics.Namespace, nil)

	store, err := repository.Open(ctx, repository.Config{
		Backend:     cfg.Store.Backend,
		FilePath:    cfg.Store.UsersFile,
		DatabaseURL: cfg.Store.DatabaseURL,
		PoolSize:    cfg.Store.PoolSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()
	logger.Info("user store ready", "backend", cfg.Store.Backend)

	resolverOpts := []resolver.Option{resolver.WithMetrics(m)}
	if cfg.Redis.Addr != "" {
		rdb := cache.New(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		resolverOpts = append(resolverOpts, resolver.WithCache(cache.NewMediaCache(rdb, cfg.Redis.TTL)))
		logger.Info("media cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	res := resolver.New(resolver.Config{
		BaseURL:          cfg.Resolver.APIURL,
		UserAgent:        cfg.Resolver.UserAgent,
		Timeout:          cfg.Resolver.Timeout,
		FallbackAudioURL: cfg.Resolver.FallbackAudioURL,
		DefaultTitle:     cfg.Resolver.DefaultTitle,
	}, store, logger, resolverOpts...)

	api, err := bot.NewAPI(cfg.Telegram.Token, cfg.Telegram.Debug, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	pipeline := service.NewPipeline(store, res, bot.NewMessenger(api, m), logger, service.WithMetrics(m))
	telegramBot := bot.New(api, pipeline, cfg.Telegram.PollTimeout, logger, m)

	stats := service.NewStatsService(store, m, logger)
	scheduler := service.NewSchedulerService(time.Local, logger)
	scheduled, err := scheduler.Schedule(cfg.Stats.DailyAt, cfg.Stats.Interval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// Report logs its own failures.
		_ = stats.Report(jobCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule stats: %w", err)
	}
	if scheduled {
		scheduler.Start()
		defer scheduler.Stop()
	}
	if _, err := stats.Snapshot(ctx); err != nil {
		logger.Warn("initial stats snapshot", "error", err)
	}

	srv := httpserver.New(cfg.HTTP.Addr, cfg.HTTP.AdminToken, httpserver.Dependencies{
		Store: store,
		Stats: stats,
	}, logger, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Start(gctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("tikfetch bot started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
