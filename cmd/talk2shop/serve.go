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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	chiTransport "github.com/kailas-cloud/talk2shop/internal/transport/chi"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	logger.Info("Starting talk2shop API server",
		append(startupFields(rt.env, rt.cfg), zap.Int("http_port", rt.cfg.HTTP.Port))...)

	a, err := buildApp(ctx, rt.cfg, logger)
	if err != nil {
		logger.Error("Failed to build app", zap.Error(err))
		return err
	}
	defer a.Close()

	// A dimension mismatch is a config error. Anything else leaves search on the text fallback
	// until the index comes back.
	readyCtx, cancel := context.WithTimeout(ctx, rt.cfg.Vector.ReadyTimeout())
	err = a.index.EnsureIndex(readyCtx)
	cancel()
	switch {
	case errors.Is(err, domain.ErrDimensionMismatch):
		logger.Error("Vector index dimension mismatch", zap.Error(err))
		return err
	case err != nil:
		logger.Warn("Vector index not ready at startup", zap.Error(err))
	default:
		logger.Info("Vector index ready", zap.String("index", a.index.Spec().Name))
	}

	if a.chat == nil {
		logger.Info("Chat disabled: chat.api_key is empty")
	}

	handler := a.httpServer().Handler(chiTransport.RouterOptions{
		Logger:         logger,
		APIKeys:        rt.cfg.Auth.APIKeys,
		AllowedOrigins: rt.cfg.HTTP.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", rt.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(rt.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(rt.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
