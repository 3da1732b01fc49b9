// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authkeep/internal/api"
	"github.com/holomush/authkeep/internal/auth"
	"github.com/holomush/authkeep/internal/auth/postgres"
	"github.com/holomush/authkeep/internal/config"
	"github.com/holomush/authkeep/internal/logging"
	"github.com/holomush/authkeep/internal/observability"
	"github.com/holomush/authkeep/internal/store"
	"github.com/holomush/authkeep/pkg/errutil"
)

const (
	serviceName      = "authkeep"
	readinessTimeout = 2 * time.Second
)

// serveOptions holds flags of the serve command that are not configuration keys.
type serveOptions struct {
	migrate bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmdWithDeps(nil)
}

func newServeCmdWithDeps(deps *ServeDeps) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (register, login)",
		Long: `Start the HTTP API serving POST /register and POST /login, plus the
metrics and health endpoints. Requires a database URL and a JWT signing secret.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, opts, deps)
		},
	}

	config.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending database migrations before serving")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, opts *serveOptions, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = defaultDatabaseFactory
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = defaultMigratorFactory
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(cfg api.Config, authn api.Authenticator, metrics api.Recorder, logger *slog.Logger) (APIServer, error) {
			return api.NewServer(cfg, authn, metrics, logger)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return oops.Code("SERVE_CONFIG_FAILED").Wrap(err)
	}
	if err := cfg.RequireSigningSecret(); err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})

	logger.InfoContext(ctx, "starting authkeep",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"log_format", cfg.Log.Format,
	)

	if opts.migrate {
		if err := migrateUp(deps.MigratorFactory, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseFactory(ctx, poolConfig(cfg.Database))
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.InfoContext(ctx, "connected to database")

	service, err := newAuthService(cfg, db, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer ObservabilityServer
		recorder  api.Recorder
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, store.ReadinessCheck(db, readinessTimeout))
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_START_FAILED").With("server", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		recorder = obsServer.Metrics()
		logger.InfoContext(ctx, "observability server started", "addr", obsServer.Addr())
	}

	apiServer, err := deps.APIServerFactory(api.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}, service, recorder, logger)
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
		return oops.Code("SERVE_START_FAILED").With("server", "api").Wrap(err)
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer, cfg.Server.ShutdownTimeout, logger)
		return oops.Code("SERVE_START_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api", logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("authkeep listening on %s\n", apiServer.Addr())
	logger.InfoContext(ctx, "authkeep ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping api server", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// newAuthService wires the credential store, hasher and token issuer.
func newAuthService(cfg *config.Config, db Database, logger *slog.Logger) (*auth.Service, error) {
	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	return auth.NewAuthServiceWithLogger(postgres.NewUserRepository(db), hasher, tokens, logger)
}

func migrateUp(factory func(string) (Migrator, error), databaseURL string, logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	v, _, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	logger.Info("database schema up to date", "version", v)
	return nil
}

func stopObservability(s ObservabilityServer, timeout time.Duration, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		errutil.LogError(logger, "failed to stop observability server during cleanup", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err.Error())
			cancel()
		}
	case <-ctx.Done():
	}
}
