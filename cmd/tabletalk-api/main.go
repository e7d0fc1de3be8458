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

	"github.com/tabletalk/tabletalk/internal/api"
	"github.com/tabletalk/tabletalk/internal/api/uistatic"
	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/history"
	"github.com/tabletalk/tabletalk/internal/nl2sql"
	"github.com/tabletalk/tabletalk/internal/observability"
	duckdbengine "github.com/tabletalk/tabletalk/internal/query/duckdb"
	"github.com/tabletalk/tabletalk/internal/session"
)

func main() {
	cfg, err := config.LoadFromEnv("tabletalk-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	var historyStore *history.Store
	if cfg.History.Enabled() {
		historyStore, err = history.Open(context.Background(), history.Config{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyStore.Close() }()
		if err := historyStore.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to ensure history schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var translator nl2sql.Translator
	if cfg.AI.Enabled() {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:      cfg.AI.BaseURL,
			APIKey:       cfg.AI.APIKey,
			Model:        cfg.AI.Model,
			Temperature:  cfg.AI.Temperature,
			Timeout:      cfg.AI.Timeout,
			MaxRetries:   cfg.AI.MaxRetries,
			RetryBackoff: cfg.AI.RetryBackoff,
		})
		if err != nil {
			logger.Error("failed to initialize translator", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("no AI api key configured; ask endpoint is disabled")
	}

	sessions := session.NewManager(session.ManagerConfig{
		Factory:       duckdbengine.Factory(),
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		Logger:        logger,
	})

	deps := api.Dependencies{
		Logger:            logger,
		Sessions:          sessions,
		Translator:        translator,
		MaxUploadBytes:    cfg.Session.MaxUploadBytes,
		MaxDatasets:       cfg.Session.MaxDatasets,
		PreviewRows:       cfg.UI.PreviewRows,
		UI:                uistatic.Handler(),
		DependencyTimeout: time.Second,
	}
	if historyStore != nil {
		deps.History = historyStore
		deps.Readiness = api.CombineReadinessChecks(api.CheckHistoryStore(historyStore))
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx)

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
