// Command premierectl runs scheduler maintenance from the shell: one-off
// sweeps, expiry, the legacy publish_at backfill, statistics and admin tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/premiere/internal/config"
	"github.com/Nixie-Tech-LLC/premiere/internal/content"
	"github.com/Nixie-Tech-LLC/premiere/internal/db"
	"github.com/Nixie-Tech-LLC/premiere/internal/executor"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/notify"
	"github.com/Nixie-Tech-LLC/premiere/internal/scheduling"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "premierectl",
		Short:        "Maintenance commands for the publish scheduler",
		SilenceUsage: true,
	}
	root.AddCommand(
		sweepCommand(),
		expireCommand(),
		backfillCommand(),
		statsCommand(),
		tokenCommand(),
		migrateCommand(),
	)
	return root
}

// app is what every database-backed command needs.
type app struct {
	cfg  *config.Config
	conn *sqlx.DB
	svc  *scheduling.Service
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.SetupLogging(cfg)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	registry, err := content.NewRegistry(db.ContentRepositories(conn))
	if err != nil {
		conn.Close()
		return nil, err
	}
	svc := scheduling.NewService(db.NewStore(conn), registry, notify.NewLog(log.Logger), scheduling.Options{
		PublishTimeout: cfg.PublishTimeout,
	})
	return &app{cfg: cfg, conn: conn, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.conn.Close(); err != nil {
		log.Warn().Err(err).Msg("close database")
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sweepCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one batch pass over due schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if concurrency <= 0 {
				concurrency = a.cfg.SweepConcurrency
			}
			exec := executor.New(a.svc, notify.NewLog(log.Logger), executor.Config{
				Concurrency:     concurrency,
				BatchLimit:      a.cfg.SweepBatchLimit,
				ExpireAfter:     a.cfg.ExpireAfter,
				StaleClaimAfter: a.cfg.StaleClaimAfter,
				RetryAttempts:   a.cfg.SweepRetryAttempts,
				RetryBackoff:    a.cfg.SweepRetryBackoff,
			}, log.Logger)

			sum, err := exec.RunWithRetry(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, sum)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Workers per priority tier (default SWEEP_CONCURRENCY)")
	return cmd
}

func expireCommand() *cobra.Command {
	var after time.Duration

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Mark PENDING schedules overdue by more than --after as EXPIRED",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("after") {
				after = a.cfg.ExpireAfter
			}
			n, err := a.svc.ExpireOverdue(cmd.Context(), after)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d schedules\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&after, "after", 24*time.Hour, "Grace period past scheduled_time")
	return cmd
}

func backfillCommand() *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Move legacy publish_at values into PENDING schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if priority < model.MinPriority || priority > model.MaxPriority {
				return fmt.Errorf("priority must be between %d and %d", model.MinPriority, model.MaxPriority)
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := db.BackfillLegacyPublishAt(cmd.Context(), a.conn, priority)
			if err != nil {
				return err
			}
			return printJSON(cmd, created)
		},
	}
	cmd.Flags().IntVar(&priority, "priority", model.DefaultPriority, "Priority of the created schedules")
	return cmd
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print schedule statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.svc.GetStatistics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func tokenCommand() *cobra.Command {
	var (
		userID int64
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an admin JWT with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be positive")
			}
			_ = godotenv.Load()
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			token, err := middleware.GenerateJWT(userID, email, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "Admin user id for the sub claim")
	cmd.Flags().StringVar(&email, "email", "", "Optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the *.up.sql migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			config.SetupLogging(cfg)
			conn, err := db.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()
			return db.RunMigrations(conn, cfg.MigrationsPath)
		},
	}
}
