// Math tutor conversation server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/tutor-labs/internal/api"
	"github.com/ashureev/tutor-labs/internal/config"
	"github.com/ashureev/tutor-labs/internal/convlog"
	"github.com/ashureev/tutor-labs/internal/identity"
	"github.com/ashureev/tutor-labs/internal/llm"
	"github.com/ashureev/tutor-labs/internal/middleware"
	"github.com/ashureev/tutor-labs/internal/retention"
	"github.com/ashureev/tutor-labs/internal/store"
	"github.com/ashureev/tutor-labs/internal/telemetry"
	"github.com/ashureev/tutor-labs/internal/tutor"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if l, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
		level.Set(l)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"db_driver", cfg.Database.Driver,
		"llm_provider", cfg.LLM.Provider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  "tutor-server",
		Environment:  cfg.Environment(),
		Endpoint:     cfg.Telemetry.Endpoint,
		SamplerRatio: cfg.Telemetry.SamplerRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	// Initialize dependencies.
	repo, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected")

	transport, err := llm.New(ctx, llm.Config{
		Provider: llm.Provider(cfg.LLM.Provider),
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey(),
		BaseURL:  cfg.LLM.BaseURL(),
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	phrases, err := tutor.LoadRejectPhrases(cfg.LLM.QualityPhrasesPath)
	if err != nil {
		return err
	}

	convLog, err := convlog.New(convlog.Config{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := convLog.Close(); err != nil {
			slog.Warn("Failed to close conversation log", "error", err)
		}
	}()

	// Initialize services.
	gateway := tutor.NewGateway(transport, tutor.PhraseQualityCheck(phrases))
	orchestrator := tutor.NewOrchestrator(repo, gateway, tutor.NewExtractor(repo, logger), tutor.Options{
		HistoryLimit: cfg.History.Limit,
		ConvLog:      convLog,
		Logger:       logger,
	})

	// Initialize handlers.
	tutorHandler := tutor.NewHandler(orchestrator, repo, tutor.HandlerConfig{
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		HistoryLimit:        cfg.History.Limit,
	})
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Learner routes carry an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		tutorHandler.RegisterRoutes(r)
	})

	// WriteTimeout covers two model calls plus persistence.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return retention.NewWorker(repo, cfg.History.Retention, cfg.History.Interval).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}
