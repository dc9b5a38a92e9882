// Package main is the entry point for the tombstone demo API server.
// It exposes a soft-deletable product catalog and an append-only audit log
// over HTTP, backed by PostgreSQL or the in-memory engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tombstone/internal/api"
	"tombstone/internal/domain/audit"
	"tombstone/internal/domain/product"
	"tombstone/internal/query"
	"tombstone/internal/session"
	"tombstone/internal/storage"
	"tombstone/internal/storage/memory"
	"tombstone/internal/storage/postgres"
	"tombstone/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting tombstone server")

	schema := storage.NewSchema(
		product.TableSpec(),
		audit.TableSpec(),
	)

	var engine storage.Engine
	var pool *postgres.Pool

	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		pool, err = postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		engine = postgres.NewEngine(postgres.NewTxManager(pool), schema)
		log.Info("database connection established")
	} else {
		engine = memory.NewEngine()
		log.Warn("DATABASE_URL not set, using in-memory engine")
	}

	// Read filters: soft-deleted products are hidden from every query
	// unless the caller asks for them; audit events carry no filter.
	filters := query.NewFilters()
	if err := filters.Register(product.Table, query.NotDeleted()); err != nil {
		log.Fatalw("failed to register read filter", "error", err)
	}

	sessions := session.NewFactory(session.Config{
		Engine:  engine,
		Filters: filters,
	})

	productService := product.NewService(sessions)
	auditService := audit.NewService(sessions)

	router := api.NewRouter(api.Config{
		Logger:   log,
		Products: productService,
		Audit:    auditService,
	})

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
