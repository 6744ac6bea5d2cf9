package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/gitdigital/loanflow/internal/adapter/fsm"
	"github.com/gitdigital/loanflow/internal/adapter/otel"
	riveradapter "github.com/gitdigital/loanflow/internal/adapter/river"
	"github.com/gitdigital/loanflow/internal/adapter/sqlite"
	"github.com/gitdigital/loanflow/internal/adapter/toml"
	"github.com/gitdigital/loanflow/internal/app"
	"github.com/gitdigital/loanflow/internal/domain"

	handler "github.com/gitdigital/loanflow/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "loanflow.db")
	workflowPath := os.Getenv("WORKFLOW_PATH")

	ctx := context.Background()

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	// --- Process definition ---
	var def *domain.Definition
	if workflowPath != "" {
		def, err = toml.LoadFile(workflowPath)
	} else {
		def, err = toml.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("workflow definition: %w", err)
	}

	resolver, err := fsm.New(def)
	if err != nil {
		return fmt.Errorf("workflow definition: %w", err)
	}

	// --- Adapters (out) ---
	db, err := otel.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	ledgerStore, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	defer ledgerStore.Close()

	ledger := otel.NewTracingLedger(ledgerStore)

	riverClient, err := riveradapter.Setup(ctx, db)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	publisher := otel.NewTracingPublisher(riveradapter.NewPublisher(riverClient))

	// --- Application ---
	orchestrator := app.NewOrchestrator(ledger)
	engine := app.NewEngine(ledger, orchestrator, resolver, publisher, def.Initial)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("loanflow", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("loanflow", "0.1.0"))
	handler.Register(api, engine, orchestrator)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("loanflow listening on :%s (workflow %s v%d)", port, def.Name, def.Version)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Printf("river stop: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}

	log.Println("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
