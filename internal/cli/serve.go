package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/writepal/internal/api"
	"github.com/ashureev/writepal/internal/chat"
	"github.com/ashureev/writepal/internal/identity"
	"github.com/ashureev/writepal/internal/middleware"
	"github.com/ashureev/writepal/internal/session"
	"github.com/ashureev/writepal/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func newServeCommand(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, the WebSocket chat and the web page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "override PORT")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	registry := chat.NewRegistry()
	rt, err := newRuntime(ctx, cfg, logger, session.Options{OnRemove: registry.CloseSession})
	if err != nil {
		return err
	}
	defer rt.Close()

	limiter := api.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	handler := api.NewHandler(rt.repo, rt.sessions, api.Options{
		DrainIdle: cfg.Session.DrainIdleTimeout,
		Limiter:   limiter,
		Logger:    logger,
	})
	wsHandler := chat.NewHandler(rt.sessions, registry, limiter, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.FrontendURL)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	handler.RegisterHealth(r)
	handler.RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)
	r.Handle("/*", web.ChatPage())

	// Replies wait for the pipeline, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	rt.sessions.StartTTLWorker(ctx, sweepInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := rt.sessions.Shutdown(shutdownCtx); err != nil {
		logger.Error("Sessions did not finish", "error", err)
	}
	logger.Info("Server stopped successfully")
	return nil
}
