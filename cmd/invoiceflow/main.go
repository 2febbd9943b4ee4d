package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferrand/invoiceflow-bff-go/internal/config"
	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/guard"
	"github.com/ferrand/invoiceflow-bff-go/internal/handler"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/cache"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/prefs"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/resilience"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/supabase"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("cors_origin", cfg.CORSOrigin),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("prefs_path", cfg.PrefsPath),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "invoiceflow-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	invoiceCache := cache.New[*domain.Invoice](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Supabase client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Local preferences ---
	prefStore, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		logger.Fatal("failed to open preference store", zap.Error(err))
	}

	// --- Services ---
	sessionSvc := service.NewSession(supabaseClient, supabaseClient, metrics, logger)
	clientsSvc := service.NewClients(supabaseClient, sessionSvc, metrics, logger)
	invoicesSvc := service.NewInvoices(supabaseClient, sessionSvc, invoiceCache, metrics, logger)
	themeSvc := service.NewTheme(
		prefStore,
		func() bool { return cfg.DefaultDark },
		func(dark bool) {
			logger.Info("theme applied", zap.Bool("dark", dark))
		},
		logger,
	)

	// Restore any existing session before the guard starts answering.
	initCtx, cancelInit := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	sessionSvc.Initialize(initCtx)
	cancelInit()

	// --- Route guard ---
	routeGuard := guard.New(sessionSvc, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Session:    sessionSvc,
		Clients:    clientsSvc,
		Invoices:   invoicesSvc,
		Theme:      themeSvc,
		Guard:      routeGuard,
		Metrics:    metrics,
		JWTSecret:  cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
		Logger:     logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
