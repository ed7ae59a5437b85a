package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/config"
	"github.com/agrovision-ai/agrovision-engine/pkg/handlers"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/mcp"
	"github.com/agrovision-ai/agrovision-engine/pkg/metrics"
	"github.com/agrovision-ai/agrovision-engine/pkg/middleware"
	"github.com/agrovision-ai/agrovision-engine/pkg/retry"
	"github.com/agrovision-ai/agrovision-engine/pkg/services"
	"github.com/agrovision-ai/agrovision-engine/pkg/stores"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("fast_model", cfg.LLM.FastModel),
		zap.String("chat_model", cfg.LLM.ChatModel),
		zap.Int("max_retries", cfg.LLM.MaxRetries),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New()

	inner, err := llm.NewProvider(ctx, llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey(),
		BaseURL:  cfg.LLM.OpenAIBaseURL,
		Models: llm.ModelSet{
			Fast:  cfg.LLM.FastModel,
			Image: cfg.LLM.ImageModel,
			Chat:  cfg.LLM.ChatModel,
		},
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create AI provider", zap.Error(err))
	}
	provider := llm.NewGuardedProvider(inner, llm.GuardConfig{
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
		MaxConcurrent:     cfg.LLM.MaxConcurrent,
		FailureThreshold:  cfg.LLM.BreakerFailures,
		OpenTimeout:       cfg.LLM.BreakerOpenTimeout,
	}, logger, recorder.ObserveBreaker)

	directory, err := stores.Load(cfg.Stores.DirectoryFile, cfg.Stores.RadiusKm, logger)
	if err != nil {
		logger.Fatal("Failed to load store directory", zap.Error(err))
	}

	retryCfg := retry.LLMConfig()
	retryCfg.MaxRetries = cfg.LLM.MaxRetries
	retryCfg.InitialDelay = cfg.LLM.InitialRetryDelay

	advisory := services.NewAdvisoryService(provider, directory, services.AdvisoryConfig{
		Retry:          retryCfg,
		RequestTimeout: cfg.LLM.RequestTimeout,
		Pool:           llm.WorkerPoolConfig{MaxConcurrent: cfg.LLM.MaxConcurrent},
	}, recorder, logger)

	sessions := services.NewSessionManager(provider, services.ChatConfig{
		Retry:       retryCfg,
		TurnTimeout: cfg.LLM.RequestTimeout,
	}, cfg.Chat.SessionTTL, recorder, logger)
	go sessions.Run(ctx)

	prober := llm.NewProber(provider, cfg.LLM.RequestTimeout)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, prober, logger).RegisterRoutes(mux)
	handlers.NewAdvisoryHandler(advisory, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(sessions, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", recorder.Handler())

	mcpServer := mcp.NewServer("agrovision-engine", cfg.Version, logger.Named("mcp"))
	mcpServer.RegisterAdvisoryTools(cfg.Version, advisory, prober)
	mux.Handle("/mcp", mcpServer.Handler())

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Info("Starting agrovision-engine",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))

		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
