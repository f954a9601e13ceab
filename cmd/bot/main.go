package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wagerdeck/wagerdeck-bot/internal/bot"
	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/database"
	"github.com/wagerdeck/wagerdeck-bot/internal/directory"
	"github.com/wagerdeck/wagerdeck-bot/internal/health"
	"github.com/wagerdeck/wagerdeck-bot/internal/i18n"
	"github.com/wagerdeck/wagerdeck-bot/internal/idempotency"
	"github.com/wagerdeck/wagerdeck-bot/internal/jobs"
	"github.com/wagerdeck/wagerdeck-bot/internal/lifecycle"
	"github.com/wagerdeck/wagerdeck-bot/internal/middleware"
	"github.com/wagerdeck/wagerdeck-bot/internal/preview"
	"github.com/wagerdeck/wagerdeck-bot/internal/publish"
	"github.com/wagerdeck/wagerdeck-bot/internal/ratelimit"
	"github.com/wagerdeck/wagerdeck-bot/internal/repository"
	"github.com/wagerdeck/wagerdeck-bot/internal/session"
	"github.com/wagerdeck/wagerdeck-bot/pkg/config"
	"github.com/wagerdeck/wagerdeck-bot/pkg/graceful"
	"github.com/wagerdeck/wagerdeck-bot/pkg/logger"
	pkgredis "github.com/wagerdeck/wagerdeck-bot/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, viperInstance, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	log.Info("starting wagerdeck bot",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.String("bot_mode", cfg.Bot.Mode))

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := pkgredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	translations, err := i18n.Load("en")
	if err != nil {
		log.Error("failed to load translations", slog.Any("error", err))
		os.Exit(1)
	}

	// Domain wiring: directory -> catalog -> engine.
	dir := directory.New(db, redisClient, log)
	cat := catalog.New(dir, curationFromConfig(cfg.Betting), log)

	config.Watch(viperInstance, log, func(betting config.BettingConfig) {
		cat.UpdateCuration(curationFromConfig(betting))
		log.Info("step catalog curation reloaded")
	})

	betRepo := repository.NewBetRepository(db, log)
	renderer := preview.NewRenderer(cfg.Renderer.URL, cfg.Renderer.Timeout, log)

	engine := session.NewEngine(cat, betRepo, renderer, nil, session.Config{
		BuildTTL:  cfg.Session.BuildTTL,
		BrowseTTL: cfg.Session.BrowseTTL,
	}, log)

	// Update plumbing: idempotency and rate limiting.
	idemStore := idempotency.NewRedisStore(redisClient, log)
	idemManager := idempotency.NewManager(idemStore, log)

	memLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(redisClient, log),
		memLimiter,
		log,
	)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), log)

	tgBot, err := bot.New(*cfg, log, engine, translations, idemManager, rateLimitMw)
	if err != nil {
		log.Error("failed to initialize bot", slog.Any("error", err))
		os.Exit(1)
	}

	// The publisher needs the live telebot instance, so it is attached after
	// the bot is built.
	engine.AttachPublisher(publish.NewPublisher(tgBot.Telebot(), log))

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient))
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))
	if cfg.Renderer.URL != "" {
		checker.AddCheck("renderer", health.NewRendererChecker(cfg.Renderer.URL))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.Handler())

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           middleware.New(log)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.Server.ShutdownTimeout)

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram bot", func(context.Context) error {
		tgBot.Stop()
		return nil
	})

	go tgBot.Start()
	go func() {
		if err := httpServer.ListenAndServe(ctx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}()

	// Background maintenance through asynq, sharing the Redis instance.
	if cfg.Jobs.Enabled {
		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		worker := jobs.NewWorker(redisOpt, cfg.Jobs.Queues, log)
		worker.RegisterHandler(jobs.TaskTypeDraftCleanup, jobs.NewDraftCleanupHandler(betRepo, log))
		worker.RegisterHandler(jobs.TaskTypeDirectorySweep, jobs.NewDirectorySweepHandler(dir, log))

		go func() {
			if err := worker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
			}
		}()

		scheduler := jobs.NewScheduler(redisOpt, log)
		if err := scheduler.RegisterTasks(cfg.Betting.DraftTTL); err != nil {
			log.Error("failed to register scheduled tasks", slog.Any("error", err))
		} else {
			scheduler.Run()
		}

		// Catch-up sweep so a long-stopped instance does not wait for the
		// nightly cron to retire stale directory entries.
		queue := jobs.NewManager(redisOpt, log)
		if err := queue.EnqueueDirectorySweep(ctx, 7*24*time.Hour); err != nil {
			log.Warn("failed to enqueue catch-up sweep", slog.Any("error", err))
		}

		cleaner := idempotency.NewCleaner(redisClient, log, time.Hour)
		go cleaner.Run(ctx)

		rlCleaner := ratelimit.NewCleaner(redisClient, memLimiter, log, 10*time.Minute)
		go rlCleaner.Run(ctx)

		shutdown.Register("jobs worker", func(context.Context) error {
			scheduler.Shutdown()
			worker.Shutdown()
			return queue.Close()
		})
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("wagerdeck bot stopped")
}

func curationFromConfig(betting config.BettingConfig) catalog.Curation {
	destinations := make([]catalog.Destination, 0, len(betting.Destinations))
	for _, d := range betting.Destinations {
		destinations = append(destinations, catalog.Destination{
			Label:     d.Label,
			ChannelID: d.ChannelID,
		})
	}

	return catalog.Curation{
		Categories:       betting.Categories,
		Destinations:     destinations,
		StakeLadder:      betting.StakeLadder,
		MaxSelectOptions: betting.MaxSelectOptions,
	}
}
