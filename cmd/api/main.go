package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/codetutor/backend/internal/config"
	"github.com/zhouzirui/codetutor/backend/internal/handler"
	"github.com/zhouzirui/codetutor/backend/internal/logging"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
	"github.com/zhouzirui/codetutor/backend/internal/service/ai"
	"github.com/zhouzirui/codetutor/backend/internal/service/broker"
	"github.com/zhouzirui/codetutor/backend/internal/service/router"
	"github.com/zhouzirui/codetutor/backend/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	metrics, err := telemetry.New(cfg.MetricsEnabled)
	if err != nil {
		logger.Fatal("failed to create metrics", zap.Error(err))
	}

	credentials := credential.NewMemoryStore()
	pool := credential.NewPool(cfg.Broker.SharedCredentials)
	if pool.Size() == 0 {
		logger.Warn("shared credential pool is empty, exam and teacher modes will fail",
			zap.String("hint", "set SHARED_CREDENTIALS or SHARED_CREDENTIALS_FILE"))
	}

	brokerSvc := broker.NewService(credentials, metrics, logger)

	prompts, err := ai.NewModePromptManager()
	if err != nil {
		logger.Fatal("failed to load mode instructions", zap.Error(err))
	}

	aiSvc, err := ai.NewService(cfg.AI.NewChatModel, cfg.AI.Models(), metrics, logger)
	if err != nil {
		logger.Fatal("failed to initialize AI service", zap.Error(err))
	}
	logger.Info("AI service initialized",
		zap.String("provider", string(cfg.AI.Provider)),
		zap.Strings("models", aiSvc.Models()),
	)

	routerSvc := router.NewService(brokerSvc, pool, aiSvc, prompts,
		router.WithMetrics(metrics),
		router.WithLogger(logger),
	)

	httpHandler := handler.NewRouter(handler.Deps{
		Credentials: credentials,
		Format:      cfg.Broker.Format,
		Pool:        pool,
		Broker:      brokerSvc,
		Router:      routerSvc,
		Modes:       mode.NewMemoryStore(mode.Seed()),
	})

	startServer(ctx, logger, cfg.Server, httpHandler)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("codetutor broker listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
