package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/trelloplus/bot-server-go/internal/config"
	"github.com/trelloplus/bot-server-go/internal/handler"
	"github.com/trelloplus/bot-server-go/internal/jobs"
	"github.com/trelloplus/bot-server-go/internal/middleware"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Telegram webhook and the HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newRouter(a *app) http.Handler {
	cfg := a.cfg
	securityHeaders := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())
	webhookToken := middleware.NewWebhookTokenMiddleware(cfg.WebhookTokenHash())
	bodyLimit := middleware.NewBodyLimitMiddleware(config.MaxWebhookBodySize)
	tokenRateLimit := middleware.NewIPRateLimitMiddleware(a.limiter, config.TokenRateLimit, config.TokenRateLimitWindow, "token")
	adminAuth := middleware.NewAdminAuthMiddleware(cfg.AdminPasswordHash, a.limiter)

	webhookHandler := handler.NewWebhookHandler(a.dispatcher, a.reporter, cfg.Testing || cfg.TelegramResponseErrorOnException)
	tokenHandler := handler.NewTokenHandler(a.pairing)
	adminHandler := handler.NewAdminHandler(a.store)
	healthHandler := handler.NewHealthHandler(a.healthChecks())

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/bot/{"+middleware.TokenHashParam+"}", func(r chi.Router) {
		r.Use(webhookToken.Handler)
		r.Use(bodyLimit.Handler)
		r.Post("/", webhookHandler.ServeHTTP)
	})

	r.Route("/token", func(r chi.Router) {
		r.Use(securityHeaders.Handler)
		r.Use(tokenRateLimit.Handler)
		r.Get("/", tokenHandler.ServeHTTP)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(securityHeaders.Handler)
		r.Use(adminAuth.Handler)
		r.Mount("/", adminHandler.Routes())
	})

	return r
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	cleanupJob, err := a.cleanupJob()
	if err != nil {
		return err
	}
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newRouter(a),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

func (a *app) cleanupJob() (*jobs.CleanupJob, error) {
	return jobs.NewCleanupJob(a.cfg.CleanupSchedule,
		jobs.Task{Name: "pairing tokens", Run: a.pairing.PurgeExpired},
	)
}
