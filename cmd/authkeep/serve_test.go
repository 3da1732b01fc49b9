// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authkeep/internal/api"
	"github.com/holomush/authkeep/internal/observability"
	"github.com/holomush/authkeep/internal/store"
	"github.com/holomush/authkeep/pkg/errutil"
)

type serveHarness struct {
	db       *mockDatabase
	migrator *mockMigrator
	obs      *mockObservabilityServer
	api      *mockAPIServer

	poolCfg   store.PoolConfig
	apiCfg    api.Config
	recorder  api.Recorder
	dbErr     error
	migrateTo string
}

func newServeHarness() *serveHarness {
	return &serveHarness{
		db:       &mockDatabase{},
		migrator: &mockMigrator{version: 1},
		obs:      newMockObservabilityServer(),
		api:      &mockAPIServer{},
	}
}

func (h *serveHarness) deps() *ServeDeps {
	return &ServeDeps{
		DatabaseFactory: func(_ context.Context, cfg store.PoolConfig) (Database, error) {
			h.poolCfg = cfg
			if h.dbErr != nil {
				return nil, h.dbErr
			}
			return h.db, nil
		},
		MigratorFactory: func(url string) (Migrator, error) {
			h.migrateTo = url
			return h.migrator, nil
		},
		ObservabilityServerFactory: func(_ string, readiness observability.ReadinessChecker) ObservabilityServer {
			h.obs.readiness = readiness
			return h.obs
		},
		APIServerFactory: func(cfg api.Config, _ api.Authenticator, metrics api.Recorder, _ *slog.Logger) (APIServer, error) {
			h.apiCfg = cfg
			h.recorder = metrics
			return h.api, nil
		},
	}
}

// run executes serve. With a cancelled ctx a successful start shuts down
// immediately.
func (h *serveHarness) run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := newServeCmdWithDeps(h.deps())
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func setServeEnv(t *testing.T) {
	t.Helper()
	resetGlobals(t)
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "serve-test-secret")
	t.Setenv("DATABASE_URL", "postgres://authkeep@localhost:5432/authkeep")
}

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCmd()
	for _, name := range []string{"addr", "database-url", "log-format", "log-level", "metrics-addr", "migrate"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s", name)
	}
	assert.Equal(t, "localhost:3000", cmd.Flags().Lookup("addr").DefValue)
	assert.Equal(t, "127.0.0.1:9100", cmd.Flags().Lookup("metrics-addr").DefValue)
}

func TestServe_RequiresSigningSecret(t *testing.T) {
	setServeEnv(t)
	t.Setenv("JWT_SECRET", "")
	h := newServeHarness()

	_, err := h.run(t, cancelledContext())

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_SECRET_MISSING")
	assert.False(t, h.api.started)
}

func TestServe_RequiresDatabase(t *testing.T) {
	setServeEnv(t)
	t.Setenv("DATABASE_URL", "")
	h := newServeHarness()

	_, err := h.run(t, cancelledContext())

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_DATABASE_MISSING")
}

func TestServe_InvalidConfig(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()

	_, err := h.run(t, cancelledContext(), "--log-format", "xml")

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestServe_DatabaseFailure(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()
	h.dbErr = errors.New("connection refused")

	_, err := h.run(t, cancelledContext())

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	assert.False(t, h.obs.started)
	assert.False(t, h.api.started)
}

func TestServe_StartsAndShutsDown(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()

	out, err := h.run(t, cancelledContext(), "--addr", "127.0.0.1:3456")

	require.NoError(t, err)
	assert.Contains(t, out, "authkeep listening on 127.0.0.1:3000")
	assert.Equal(t, "postgres://authkeep@localhost:5432/authkeep", h.poolCfg.URL)
	assert.Equal(t, int32(10), h.poolCfg.MaxConns)
	assert.Equal(t, "127.0.0.1:3456", h.apiCfg.Addr)
	assert.Equal(t, 10*time.Second, h.apiCfg.ReadHeaderTimeout)
	assert.True(t, h.obs.started)
	assert.True(t, h.obs.stopped)
	assert.True(t, h.api.started)
	assert.True(t, h.api.stopped)
	assert.Same(t, h.obs.metrics, h.recorder)
	assert.Equal(t, 1, h.db.closeCount())
	assert.Empty(t, h.migrateTo, "migrations run only with --migrate")
}

func TestServe_ReadinessFollowsDatabasePing(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()

	_, err := h.run(t, cancelledContext())
	require.NoError(t, err)
	require.NotNil(t, h.obs.readiness)

	assert.True(t, h.obs.readiness())
	h.db.pingErr = errors.New("down")
	assert.False(t, h.obs.readiness())
}

func TestServe_MetricsDisabled(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()

	_, err := h.run(t, cancelledContext(), "--metrics-addr=")

	require.NoError(t, err)
	assert.False(t, h.obs.started)
	assert.Nil(t, h.recorder)
	assert.True(t, h.api.started)
}

func TestServe_MigrateFlag(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()

	_, err := h.run(t, cancelledContext(), "--migrate")

	require.NoError(t, err)
	assert.Equal(t, "postgres://authkeep@localhost:5432/authkeep", h.migrateTo)
	assert.Equal(t, 1, h.migrator.upCalls)
	assert.True(t, h.migrator.closed)
}

func TestServe_MigrateFailureStopsStartup(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()
	h.migrator.upErr = errors.New("dirty database")

	_, err := h.run(t, cancelledContext(), "--migrate")

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	assert.False(t, h.api.started)
}

func TestServe_ObservabilityStartFailure(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()
	h.obs.startFunc = func() (<-chan error, error) {
		return nil, errors.New("address in use")
	}

	_, err := h.run(t, cancelledContext())

	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "server", "observability")
	assert.False(t, h.api.started)
	assert.Equal(t, 1, h.db.closeCount())
}

func TestServe_APIStartFailureStopsObservability(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()
	h.api.startErr = errors.New("address in use")

	_, err := h.run(t, cancelledContext())

	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "server", "api")
	assert.True(t, h.obs.stopped)
}

func TestServe_ServerErrorTriggersShutdown(t *testing.T) {
	setServeEnv(t)
	h := newServeHarness()
	h.api.errCh = make(chan error, 1)
	h.api.errCh <- errors.New("listener closed unexpectedly")

	done := make(chan error, 1)
	go func() {
		_, err := h.run(t, context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down after a server error")
	}
	assert.True(t, h.api.stopped)
}

func TestMonitorServerErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))

	t.Run("error cancels", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("boom")

		monitorServerErrors(ctx, cancel, errCh, "test", logger)

		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel does not cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "test", logger)

		assert.NoError(t, ctx.Err())
	})

	t.Run("returns when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		monitorServerErrors(ctx, cancel, make(chan error), "test", logger)
	})
}
