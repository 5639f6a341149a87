package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/trika-ai/trika-engine/internal/api"
	"github.com/trika-ai/trika-engine/internal/collab"
	"github.com/trika-ai/trika-engine/internal/engine"
	"github.com/trika-ai/trika-engine/internal/expressions"
	"github.com/trika-ai/trika-engine/internal/logging"
	"github.com/trika-ai/trika-engine/internal/nodes"
	"github.com/trika-ai/trika-engine/internal/scheduler"
	"github.com/trika-ai/trika-engine/internal/store"
	"github.com/trika-ai/trika-engine/internal/streaming"
	"github.com/trika-ai/trika-engine/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "trikad:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	cel, err := expressions.NewCELEngine()
	if err != nil {
		return fmt.Errorf("init cel engine: %w", err)
	}

	registry := nodes.NewRegistry(nodes.Deps{
		Completer: collab.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
		Retriever: collab.NewHTTPRetriever(cfg.RAGURL),
		Searcher:  collab.NewDuckDuckGoSearcher(cfg.SearchURL),
		CEL:       cel,
		Expr:      expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
	})

	hub := streaming.NewMemoryHub()

	eng, err := engine.New(st, registry, hub, logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	sched := scheduler.NewScheduler(st, eng, logger)
	if cfg.Scheduler {
		if err := sched.RecoverMissed(ctx); err != nil {
			logger.Warn("missed-job recovery failed", "error", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	if cfg.MCP {
		// Stdio transport for agent callers. Logs go to stderr so they
		// don't corrupt the protocol stream.
		logger.Info("serving MCP over stdio")
		srv := mcp.NewServer(mcp.ServerDeps{Engine: eng, Logger: logger})
		return srv.Serve(ctx)
	}

	srv := api.NewServer(api.Deps{
		Engine:    eng,
		Scheduler: sched,
		Hub:       hub,
		Logger:    logger,
	})

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func openStore(cfg Config) (store.Store, error) {
	if cfg.Store == "memory" {
		return store.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
