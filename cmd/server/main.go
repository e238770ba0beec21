package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/querykit/internal/config"
	"github.com/atlekbai/querykit/internal/executor"
	"github.com/atlekbai/querykit/internal/handler"
	"github.com/atlekbai/querykit/internal/logger"
	"github.com/atlekbai/querykit/internal/middleware"
	"github.com/atlekbai/querykit/internal/schema"
	"github.com/atlekbai/querykit/internal/server"
	"github.com/atlekbai/querykit/internal/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("QUERYKIT_CONFIG"), "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	l, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	ctx = l.WithContext(ctx)

	registry := schema.NewRegistry()
	if err := registry.LoadModels(cfg.Models); err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	var exec executor.Executor
	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	if dsn != "" {
		db, err := executor.Open(dsn)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		exec = db

		if parsed, err := mysql.ParseDSN(dsn); err == nil && parsed.DBName != "" {
			n, err := registry.Discover(ctx, db, parsed.DBName)
			if err != nil {
				l.Warn().Err(err).Msg("primary key discovery failed, using defaults")
			} else {
				l.Info().Int("tables", n).Msg("primary keys discovered")
			}
		}
	} else {
		l.Warn().Msg("no database configured, Execute is unavailable")
	}
	l.Info().Int("models", registry.Count()).Strs("names", registry.Names()).Msg("model registry loaded")

	mux := server.Mux(service.NewStatementService(registry, exec, cfg.TimeZone))
	handler.New(registry).Register(mux)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: middleware.Chain(mux, middleware.RequestID(l), middleware.Logging, middleware.Recovery),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info().Str("addr", cfg.Addr()).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
