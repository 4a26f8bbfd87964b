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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/telehealth-admin/internal/app"
	"github.com/jwalitptl/telehealth-admin/internal/auth"
	"github.com/jwalitptl/telehealth-admin/internal/config"
	"github.com/jwalitptl/telehealth-admin/internal/repository/postgres"
	"github.com/jwalitptl/telehealth-admin/internal/service/form"
	"github.com/jwalitptl/telehealth-admin/internal/service/records"
	jwtauth "github.com/jwalitptl/telehealth-admin/pkg/auth"
	"github.com/jwalitptl/telehealth-admin/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "telehealth-admin",
		Short:         "Telehealth admin dashboard API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(formsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.Logger = l.ZL
	return cfg, l, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			return runServer(cfg, l)
		},
	}
}

func runServer(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, m := app.NewMetrics()
	store, err := app.OpenStore(ctx, cfg, l, m)
	if err != nil {
		return err
	}
	broker, err := app.OpenBroker(cfg, l)
	if err != nil {
		_ = store.Close()
		return err
	}
	resolver, err := auth.NewResolver(cfg.Auth)
	if err != nil {
		_ = broker.Close()
		_ = store.Close()
		return err
	}

	a := app.New(cfg, store, broker, resolver, l, reg, m)
	defer func() {
		if err := a.Close(); err != nil {
			l.Error(err, "failed to close application")
		}
	}()
	a.Start(ctx)

	if cfg.Forms.SeedDir != "" {
		results, err := a.Services.Forms.Seed(ctx, cfg.Forms.SeedDir, true)
		if err != nil {
			return fmt.Errorf("failed to seed forms: %w", err)
		}
		for _, r := range results {
			if r.Err != nil || !r.Result.Valid {
				l.Warn("skipped form schema", "path", r.Path, "errors", r.Result.Errors, "error", fmt.Sprint(r.Err))
			}
		}
		l.Info("seeded forms", "dir", cfg.Forms.SeedDir, "files", len(results))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		l.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	l.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	l.Info("server exited properly")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(ctx, db)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			l.Info("migrations applied", "count", len(applied), "versions", applied)
			return nil
		},
	}
}

func formsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "Work with form schema files",
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate form schema files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := form.NewService(nil, records.Dependencies{}, nil)
			invalid := 0
			for _, path := range args {
				r := svc.CheckFile(path)
				switch {
				case r.Err != nil:
					invalid++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, r.Err)
				case !r.Result.Valid:
					invalid++
					for _, e := range r.Result.Errors {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, e.Error())
					}
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d schema file(s) invalid", invalid, len(args))
			}
			return nil
		},
	}

	var publish bool
	seedCmd := &cobra.Command{
		Use:   "seed <dir>",
		Short: "Store every valid schema in a directory as a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg, l, nil)
			if err != nil {
				return err
			}
			defer store.Close()
			broker, err := app.OpenBroker(cfg, l)
			if err != nil {
				return err
			}
			defer broker.Close()

			svc := app.NewServices(store, broker, l, nil)
			results, err := svc.Forms.Seed(auth.WithSession(ctx, auth.Authenticated("cli", auth.RoleAdmin)), args[0], publish)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Err != nil || !r.Result.Valid {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped\n", r.Path)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s v%d\n", r.Path, r.Form.ID, r.Form.Version)
			}
			if failed > 0 {
				return fmt.Errorf("%d schema file(s) skipped", failed)
			}
			return nil
		},
	}
	seedCmd.Flags().BoolVar(&publish, "publish", false, "publish the seeded forms")

	cmd.AddCommand(validateCmd, seedCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}
			if !auth.Role(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := jwtauth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).GenerateAccessToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (subject)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
