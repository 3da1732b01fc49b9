// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authkeep/internal/config"
	"github.com/holomush/authkeep/internal/observability"
)

// resetGlobals clears the root persistent flags so a test does not read a
// .env file from the working directory.
func resetGlobals(t *testing.T) {
	t.Helper()
	configFile = ""
	envFile = ""
	t.Cleanup(func() {
		configFile = ""
		envFile = defaultEnvFile
	})
}

// clearConfigEnv unsets every environment variable config.Load reads.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if key == config.EnvJWTSecret || key == config.EnvDatabaseURL || strings.HasPrefix(key, config.EnvPrefix) {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

// mockDatabase implements Database for testing.
type mockDatabase struct {
	mu       sync.Mutex
	execFunc func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	pingErr  error
	execs    int
	closed   int
}

func (m *mockDatabase) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	m.execs++
	m.mu.Unlock()
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDatabase) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (m *mockDatabase) Ping(context.Context) error {
	return m.pingErr
}

func (m *mockDatabase) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *mockDatabase) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// mockMigrator implements Migrator for testing.
type mockMigrator struct {
	upErr    error
	downErr  error
	version  uint
	dirty    bool
	pending  []uint
	forceErr error

	upCalls   int
	downCalls int
	forced    []int
	closed    bool
}

func (m *mockMigrator) Up() error {
	m.upCalls++
	return m.upErr
}

func (m *mockMigrator) Down() error {
	m.downCalls++
	return m.downErr
}

func (m *mockMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, nil
}

func (m *mockMigrator) Force(version int) error {
	m.forced = append(m.forced, version)
	return m.forceErr
}

func (m *mockMigrator) Pending() ([]uint, error) {
	return m.pending, nil
}

func (m *mockMigrator) Close() error {
	m.closed = true
	return nil
}

// mockObservabilityServer implements ObservabilityServer for testing.
type mockObservabilityServer struct {
	startFunc func() (<-chan error, error)
	metrics   *observability.Metrics
	readiness observability.ReadinessChecker
	started   bool
	stopped   bool
}

func newMockObservabilityServer() *mockObservabilityServer {
	return &mockObservabilityServer{metrics: observability.NewMetrics(prometheus.NewRegistry())}
}

func (m *mockObservabilityServer) Start() (<-chan error, error) {
	m.started = true
	if m.startFunc != nil {
		return m.startFunc()
	}
	return make(chan error, 1), nil
}

func (m *mockObservabilityServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockObservabilityServer) Addr() string {
	return "127.0.0.1:9100"
}

func (m *mockObservabilityServer) Metrics() *observability.Metrics {
	return m.metrics
}

// mockAPIServer implements APIServer for testing.
type mockAPIServer struct {
	startErr error
	errCh    chan error
	started  bool
	stopped  bool
}

func (m *mockAPIServer) Start() (<-chan error, error) {
	m.started = true
	if m.startErr != nil {
		return nil, m.startErr
	}
	if m.errCh == nil {
		m.errCh = make(chan error, 1)
	}
	return m.errCh, nil
}

func (m *mockAPIServer) Stop(context.Context) error {
	m.stopped = true
	return nil
}

func (m *mockAPIServer) Addr() string {
	return "127.0.0.1:3000"
}
