package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/config"
	"github.com/Nixie-Tech-LLC/premiere/internal/content"
	"github.com/Nixie-Tech-LLC/premiere/internal/db"
	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/executor"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/premiere/internal/scheduling"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := LoadEnvironment(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up environment")
	}

	registry, err := content.NewRegistry(db.ContentRepositories(env.DB))
	if err != nil {
		log.Fatal().Err(err).Msg("content registry")
	}
	svc := scheduling.NewService(db.NewStore(env.DB), registry, env.Notifier, scheduling.Options{
		PublishTimeout: cfg.PublishTimeout,
	})
	exec := executor.New(svc, env.Notifier, executor.Config{
		Concurrency:     cfg.SweepConcurrency,
		BatchLimit:      cfg.SweepBatchLimit,
		ExpireAfter:     cfg.ExpireAfter,
		StaleClaimAfter: cfg.StaleClaimAfter,
		RetryAttempts:   cfg.SweepRetryAttempts,
		RetryBackoff:    cfg.SweepRetryBackoff,
	}, log.Logger)

	var trigger *executor.Trigger
	if cfg.SweepEnabled {
		trigger, err = executor.NewTrigger(exec, cfg.SweepInterval, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("sweep trigger")
		}
		trigger.Start(ctx)
	} else {
		log.Info().Msg("periodic sweep disabled; use POST /api/admin/sweeps or premierectl sweep")
	}

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	health := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := env.DB.PingContext(pingCtx); err != nil {
			return errors.Transient(errors.Wrap(err, "database ping"))
		}
		return nil
	}
	if err := RegisterRoutes(r, cfg.JWTSecret, svc, exec, health); err != nil {
		log.Fatal().Err(err).Msg("register routes")
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("sweep trigger did not stop in time")
		}
	}
	env.Close(shutdownCtx)
	log.Info().Msg("bye")
}
