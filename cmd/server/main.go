package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/atmx/pool-engine/internal/metrics"
	"github.com/atmx/pool-engine/internal/pool"
	"github.com/atmx/pool-engine/internal/store"
	"github.com/atmx/pool-engine/internal/yield"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pgPool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pgPool.Close)
		st = store.NewPostgresStore(pgPool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Wagering constants ---
	cfg := pool.Config{
		TicketFee:              envAmount("TICKET_FEE", "100000000000000000"),       // 0.1 in 18-decimal base units
		MinSponsorDeposit:      envAmount("MIN_SPONSOR_DEPOSIT", "1000000000000000000"), // 1.0
		SponsorYieldCutPercent: envInt("SPONSOR_YIELD_CUT_PERCENT", 40),
	}

	// --- Yield source ---
	// In-process simulated facility: principal is held whole, the yield
	// figure is attested by the sponsor at settlement.
	src := yield.NewMockSource()

	// --- Engine ---
	engine, err := pool.NewEngine(st, src, cfg)
	if err != nil {
		slog.Error("invalid engine configuration", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := pool.NewWSHub()
	go wsHub.Run()

	// --- Pool service ---
	poolSvc := pool.NewService(engine, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"pool-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time pool events.
		r.Get("/ws", wsHub.HandleWS)

		// Wagering constants.
		r.Get("/config", poolSvc.GetConfig)

		// Pool read surface.
		r.Get("/pools", poolSvc.ListPools)
		r.Get("/pools/next-id", poolSvc.NextPoolID)
		r.Get("/pools/{poolID}", poolSvc.GetPool)
		r.Get("/pools/{poolID}/counts", poolSvc.GetCounts)
		r.Get("/pools/{poolID}/tickets", poolSvc.GetTickets)
		r.Get("/pools/{poolID}/claims/{accountID}", poolSvc.GetClaim)

		// Pool write surface.
		r.Post("/pools", poolSvc.CreatePool)
		r.Post("/join", poolSvc.Join)
		r.Post("/settle", poolSvc.Settle)
		r.Post("/claim", poolSvc.Claim)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("pool-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down pool-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("pool-engine stopped")
}

// envAmount reads a base-unit amount from the environment.
func envAmount(key, fallback string) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		raw = fallback
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Error("invalid amount in environment", "key", key, "value", raw)
		os.Exit(1)
	}
	return amount
}

// envInt reads an integer from the environment.
func envInt(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Error("invalid integer in environment", "key", key, "value", raw)
		os.Exit(1)
	}
	return v
}
