// Package main provides the funding engine server:
// - Onboarding: signature check, risk gate, pool account allocation
// - Trade gate: per-order authorization with quota and drawdown kill-switch
// - Profit ledger: settled-fill accrual with 80/20 split
// - Settlement stream (optional): applies fills pushed by the exchange
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"agent-funding-engine/internal/allocation"
	"agent-funding-engine/internal/config"
	"agent-funding-engine/internal/evaluation"
	"agent-funding-engine/internal/exchange"
	"agent-funding-engine/internal/ledger"
	"agent-funding-engine/internal/observability"
	"agent-funding-engine/internal/pool"
	"agent-funding-engine/internal/registry"
	"agent-funding-engine/internal/settlement"
	"agent-funding-engine/internal/signature"
	"agent-funding-engine/internal/storage"
	chstore "agent-funding-engine/internal/storage/clickhouse"
	"agent-funding-engine/internal/storage/memory"
	"agent-funding-engine/internal/storage/migrations"
	pgstore "agent-funding-engine/internal/storage/postgres"
	"agent-funding-engine/internal/tradegate"
)

// Server holds all components of the funding engine service.
type Server struct {
	cfg config.Config

	stores *allStores

	verifier signature.Verifier
	exchange exchange.Client
	engine   *allocation.Engine
	gate     *tradegate.Gate
	ledger   *ledger.Ledger
	registry *registry.Registry
	pool     *pool.Pool

	logger *log.Logger

	mu      sync.Mutex
	started time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	agentStore       storage.AgentStore
	poolAccountStore storage.PoolAccountStore
	allocationStore  storage.AllocationStore
	appliedFillStore storage.AppliedFillStore
	activityStore    storage.ActivityStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := buildServer(cfg, stores, logger)

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// loadConfig reads the config file named by -config / CONFIG_FILE (optional)
// and applies environment overrides on top.
func loadConfig() (config.Config, error) {
	path := os.Getenv("CONFIG_FILE")
	for i, arg := range os.Args[1:] {
		if arg == "-config" || arg == "--config" {
			if i+2 <= len(os.Args[1:]) {
				path = os.Args[i+2]
			}
		}
	}

	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadFile(path)
		if err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// createStores creates all required stores and runs migrations.
func createStores(ctx context.Context, cfg config.Config, logger *log.Logger) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		agents := memory.NewAgentStore()
		accounts := memory.NewPoolAccountStore()
		stores := &allStores{
			agentStore:       agents,
			poolAccountStore: accounts,
			allocationStore:  memory.NewAllocationStore(agents, accounts),
			appliedFillStore: memory.NewAppliedFillStore(),
			activityStore:    memory.NewActivityStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL: source of truth for agents, accounts and applied fills
	pgPool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pgPool); err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	stores := &allStores{
		agentStore:       pgstore.NewAgentStore(pgPool),
		poolAccountStore: pgstore.NewPoolAccountStore(pgPool),
		allocationStore:  pgstore.NewAllocationStore(pgPool),
		appliedFillStore: pgstore.NewAppliedFillStore(pgPool),
	}

	cleanup := func() { pgPool.Close() }

	// ClickHouse: best-effort decision analytics. A missing DSN disables it;
	// a failed connection is fatal since it was explicitly configured.
	if cfg.Storage.ClickhouseDSN != "" {
		chConn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			pgPool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			chConn.Close()
			pgPool.Close()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.activityStore = chstore.NewActivityStore(chConn)
		cleanup = func() {
			chConn.Close()
			pgPool.Close()
		}
	} else {
		logger.Println("ClickHouse DSN not set, decision analytics disabled")
	}

	return stores, cleanup, nil
}

// buildServer wires the engine components over the stores.
func buildServer(cfg config.Config, stores *allStores, logger *log.Logger) *Server {
	exClient := exchange.NewHTTPClient(cfg.Exchange.BaseURL)
	reg := registry.New(stores.agentStore)

	engine := allocation.NewEngine(allocation.Config{
		Agents:         stores.agentStore,
		Allocator:      stores.allocationStore,
		Analyzer:       evaluation.NewAnalyzer(cfg.Thresholds()),
		Exchange:       exClient,
		Activity:       stores.activityStore,
		BypassRiskGate: cfg.Risk.BypassRiskGate,
		Logger:         log.New(os.Stdout, "[allocation] ", log.LstdFlags|log.Lshortfile),
	})

	gate := tradegate.NewGate(reg, exClient, stores.activityStore, cfg.GateSettings(),
		log.New(os.Stdout, "[tradegate] ", log.LstdFlags|log.Lshortfile))

	led := ledger.New(reg, stores.appliedFillStore, stores.activityStore, cfg.Shares(),
		log.New(os.Stdout, "[ledger] ", log.LstdFlags|log.Lshortfile))

	return &Server{
		cfg:      cfg,
		stores:   stores,
		verifier: signature.NewEd25519Verifier(),
		exchange: exClient,
		engine:   engine,
		gate:     gate,
		ledger:   led,
		registry: reg,
		pool:     pool.New(stores.poolAccountStore),
		logger:   logger,
	}
}

// Run starts the HTTP server and background loops, blocking until ctx is
// cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	errCh := make(chan error, 3)

	// HTTP API
	httpServer := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.routes(),
	}
	go func() {
		s.logger.Printf("Starting HTTP server on %s", s.cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Settlement stream, when configured
	if s.cfg.Exchange.WSEndpoint != "" {
		go func() {
			err := s.runSettlement(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("settlement: %w", err)
			}
		}()
	} else {
		s.logger.Println("Settlement WS endpoint not set, fills accepted via HTTP only")
	}

	// Pool utilization gauges
	go s.runPoolGauges(ctx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runSettlement consumes the exchange's settled-fill stream.
func (s *Server) runSettlement(ctx context.Context) error {
	stream, err := exchange.NewWSFillStream(ctx, s.cfg.Exchange.WSEndpoint, nil)
	if err != nil {
		return err
	}
	defer stream.Close()

	runner := settlement.NewRunner(stream, s.stores.poolAccountStore, s.ledger,
		log.New(os.Stdout, "[settlement] ", log.LstdFlags|log.Lshortfile))

	s.logger.Printf("Starting settlement stream: %s", s.cfg.Exchange.WSEndpoint)
	return runner.Run(ctx)
}

// runPoolGauges keeps the pool occupancy gauges current.
func (s *Server) runPoolGauges(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			util, err := s.pool.Utilization(ctx)
			if err != nil {
				continue
			}
			observability.UpdatePoolUtilization(util.Total, util.Free)
		}
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
