package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/redis/go-redis/v9"

	mebelbot "github.com/vkarpekin/mebelbot"
	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/dialog"
	"github.com/vkarpekin/mebelbot/internal/handler"
	"github.com/vkarpekin/mebelbot/internal/memory"
	"github.com/vkarpekin/mebelbot/internal/middleware"
	"github.com/vkarpekin/mebelbot/internal/repository"
	"github.com/vkarpekin/mebelbot/internal/service"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(mebelbot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Session and context-memory stores: Redis when configured,
	// in-memory otherwise.
	var sessions dialog.SessionStore
	var contexts memory.Store
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = dialog.NewRedisSessionStore(rdb)
		contexts = memory.NewRedisStore(rdb)
		slog.Info("using redis stores")
	} else {
		sessions = dialog.NewMapSessionStore()
		contexts = memory.NewMapStore()
		slog.Info("using in-memory stores")
	}

	// Initialize services
	dealService := service.NewDealService(pool)
	taskService := service.NewTaskService(pool)
	stageService := service.NewStageService(pool)
	openRouter := service.NewOpenRouterService(cfg.OpenRouterKey, cfg.OpenRouterModel)

	// Dialog engine
	engine := dialog.New(dialog.Deps{
		Deals:      dealService,
		Tasks:      taskService,
		Stages:     stageService,
		LLM:        openRouter,
		Sessions:   sessions,
		Contexts:   contexts,
		CRMBaseURL: cfg.CRMBaseURL,
	})

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
		),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Error("failed to drop pending updates", "error", err)
		}
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	// Initialize handler
	h := handler.New(handler.Deps{
		Bot:      b,
		Cfg:      cfg,
		Engine:   engine,
		Sessions: sessions,
		Contexts: contexts,
	})

	// Register command and callback handlers
	h.Register()

	// Default text handler: everything that is not a command goes into
	// the dialog engine.
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		if len(update.Message.Text) > 0 && update.Message.Text[0] == '/' {
			return
		}
		h.HandleText(ctx, b, update)
	})

	// Periodic sweep: drop expired context memories and idle sessions.
	go func() {
		ticker := time.NewTicker(config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				if n, err := contexts.EvictExpired(context.Background(), now); err != nil {
					slog.Error("evict expired contexts", "error", err)
				} else if n > 0 {
					slog.Info("evicted expired contexts", "count", n)
				}
				if n, err := sessions.EvictExpired(context.Background(), now); err != nil {
					slog.Error("evict idle sessions", "error", err)
				} else if n > 0 {
					slog.Info("evicted idle sessions", "count", n)
				}
			}
		}
	}()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully")
}
