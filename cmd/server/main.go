// Package main is the entrypoint for the mealtrack API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/mealtrack/internal/ai"
	"github.com/kiranshivaraju/mealtrack/internal/analysis"
	"github.com/kiranshivaraju/mealtrack/internal/api"
	"github.com/kiranshivaraju/mealtrack/internal/api/handler"
	mw "github.com/kiranshivaraju/mealtrack/internal/api/middleware"
	"github.com/kiranshivaraju/mealtrack/internal/cache"
	"github.com/kiranshivaraju/mealtrack/internal/config"
	"github.com/kiranshivaraju/mealtrack/internal/metrics"
	"github.com/kiranshivaraju/mealtrack/internal/notify"
	"github.com/kiranshivaraju/mealtrack/internal/offline"
	"github.com/kiranshivaraju/mealtrack/internal/reminder"
	"github.com/kiranshivaraju/mealtrack/internal/store"
	"github.com/kiranshivaraju/mealtrack/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	reminderMessage = "Time to log your meal"
)

var fallbackReminder = reminder.TimeOfDay{Hour: 19}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env, "db", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open database (postgres runs migrations first)
	db, err := store.Open(ctx, cfg.Database, "migrations")
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	slog.Info("database connected")

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name(), "model", aiProvider.Model(), "cloud", aiProvider.Cloud())

	// 5. Notifications and background analysis
	feed := notify.NewFeed(cfg.Queue.FeedSize)
	notifier := buildNotifier(feed, redisCache)

	analyzer := analysis.NewService(db, redisCache, ai.NewClient(aiProvider, cfg.AI.InferenceTimeout), notifier)
	defer analyzer.Close()

	// 6. Offline app shell
	shell, err := offline.New(cfg.Offline, offlineStorage(cfg.Offline, redisCache), nil)
	if err != nil {
		return fmt.Errorf("create offline controller: %w", err)
	}
	installShell(ctx, shell)
	defer shell.Wait()

	// 7. Daily reminder
	cancelReminder := startReminder(cfg.Reminder, reminder.RealClock, notifier)
	defer cancelReminder()

	// 8. Build router with dependencies
	router := api.NewRouter(dependencies(cfg, db, redisCache, analyzer, feed, shell))

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

func dependencies(cfg *config.Config, db store.Store, c *cache.RedisCache, analyzer handler.Analyzer,
	feed *notify.Feed, shell *offline.Controller) api.Dependencies {
	return api.Dependencies{
		Auth:      mw.NewAuth(db),
		RateLimit: mw.NewRateLimit(c, cfg.Server.RequestsPerMinute),

		HealthHandler:  handler.NewHealthHandler(db, c, shell),
		MetricsHandler: metrics.Handler(),

		GetProfile: handler.NewGetProfileHandler(db),
		PutProfile: handler.NewPutProfileHandler(db),

		CreateMeal:   handler.NewCreateMealHandler(db, analyzer),
		ListMeals:    handler.NewListMealsHandler(db),
		GetMeal:      handler.NewGetMealHandler(db),
		UpdateMeal:   handler.NewUpdateMealHandler(db),
		DeleteMeal:   handler.NewDeleteMealHandler(db, analyzer),
		AnalyzeMeal:  handler.NewAnalyzeMealHandler(db, analyzer),
		MealAnalysis: handler.NewMealAnalysisHandler(db, analyzer),

		CreatePlan:   handler.NewCreatePlanHandler(db, analyzer),
		ListPlans:    handler.NewListPlansHandler(db),
		GetPlan:      handler.NewGetPlanHandler(db),
		DeletePlan:   handler.NewDeletePlanHandler(db, analyzer),
		AnalyzePlan:  handler.NewAnalyzePlanHandler(db, analyzer),
		PlanAnalysis: handler.NewPlanAnalysisHandler(db, analyzer),

		Notifications: handler.NewNotificationsHandler(feed),

		CreateKeyHandler: handler.NewCreateKeyHandler(db),
		ListKeysHandler:  handler.NewListKeysHandler(db),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(db),

		AppShell: shell,
	}
}

// buildNotifier logs every notification, keeps it in the feed served by the
// API and publishes it to Redis for other listeners.
func buildNotifier(feed *notify.Feed, c cache.Cache) notify.Notifier {
	return notify.Multi{
		notify.NewLogNotifier(slog.Default()),
		feed,
		notify.NewRedisNotifier(c),
	}
}

func offlineStorage(cfg config.OfflineConfig, c *cache.RedisCache) offline.Storage {
	if cfg.Storage == "memory" {
		return offline.NewMemoryStorage()
	}
	return offline.NewRedisStorage(c)
}

// installShell populates and activates the app-shell cache. On failure the
// controller stays inactive and proxies every request to the origin.
func installShell(ctx context.Context, shell *offline.Controller) {
	if err := shell.Install(ctx); err != nil {
		slog.Error("offline cache install failed, serving from origin only",
			"generation", shell.Generation(), "error", err)
		return
	}
	if err := shell.Activate(ctx); err != nil {
		slog.Error("offline cache activation failed", "generation", shell.Generation(), "error", err)
		return
	}
	slog.Info("offline cache active", "generation", shell.Generation())
}

// startReminder schedules the daily reminder. The returned func cancels it.
func startReminder(cfg config.ReminderConfig, clock reminder.Clock, n notify.Notifier) func() {
	if !cfg.Enabled {
		return func() {}
	}
	fallback := reminder.ParseTimeOfDay(cfg.DefaultTime, fallbackReminder)
	return reminder.Schedule(clock, cfg.Time, fallback, func() {
		n.Notify(models.Notification{
			Level:   models.LevelInfo,
			Kind:    "reminder",
			Message: reminderMessage,
		})
	})
}
