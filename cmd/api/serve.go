package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/pulse-hr/backend/internal/config"
	"github.com/zhouzirui/pulse-hr/backend/internal/handler"
	"github.com/zhouzirui/pulse-hr/backend/internal/model/companion"
	"github.com/zhouzirui/pulse-hr/backend/internal/service/ai"
	"github.com/zhouzirui/pulse-hr/backend/internal/service/chat"
	"github.com/zhouzirui/pulse-hr/backend/internal/simulator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (REST, SSE and WebSocket)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	companions := companion.NewMemoryStore(companion.Seed())
	chatService := newChatService(ctx, companions)
	defer chatService.Close()

	router := handler.NewRouter(companions, chatService, logger.Named("http"))
	return startServer(ctx, cfg.Server, router, chatService.Close)
}

// newChatService wires the session registry, backed by the Ark model when configured.
func newChatService(ctx context.Context, companions companion.Store) *chat.Service {
	opts := []chat.Option{
		chat.WithLogger(logger.Named("simulator")),
		chat.WithSeed(cfg.Seed),
	}
	if responders := newResponders(ctx, companions); len(responders) > 0 {
		opts = append(opts, chat.WithResponders(func(profile companion.Companion) simulator.Responder {
			if r, ok := responders[profile.ID]; ok {
				return r
			}
			return nil
		}))
	}
	return chat.NewService(cfg.Simulator, companions, opts...)
}

// newResponders compiles one ai.Responder per companion so each session is prompted
// with its own persona. It returns nil when Ark is not configured.
func newResponders(ctx context.Context, companions companion.Store) map[string]*ai.Responder {
	if !cfg.AI.Enabled() {
		logger.Info("ark credentials not configured, using canned replies")
		return nil
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.Warn("failed to initialize ark chat model, using canned replies", zap.Error(err))
		return nil
	}

	aiCfg := ai.Config{
		HistoryLimit: cfg.AI.HistoryLimit,
		Timeout:      cfg.AI.Timeout,
	}
	responders := make(map[string]*ai.Responder)
	for _, profile := range companions.List() {
		responder, err := ai.NewResponder(ctx, chatModel, profile, aiCfg, logger.Named("ai"))
		if err != nil {
			logger.Warn("failed to build ai responder, using canned replies",
				zap.String("companion", profile.ID), zap.Error(err))
			continue
		}
		responders[profile.ID] = responder
	}

	logger.Info("ai responders initialized",
		zap.String("model", cfg.AI.Model),
		zap.Int("companions", len(responders)))
	return responders
}

// startServer blocks until ctx is cancelled. onShutdown ends the long-lived SSE and
// WebSocket streams so Shutdown can drain them.
func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, onShutdown func()) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if onShutdown != nil {
		srv.RegisterOnShutdown(onShutdown)
	}

	logger.Info("pulse backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}
	logger.Info("pulse backend stopped")
	return nil
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
