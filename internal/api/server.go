// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api exposes registration and login over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/oops"

	"github.com/holomush/authkeep/internal/auth"
)

// Authenticator is the part of auth.Service the handlers call.
type Authenticator interface {
	Register(ctx context.Context, reg auth.Registration) (*auth.RegisterResult, error)
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
}

// Recorder receives request and auth outcome counts. observability.Metrics implements it.
type Recorder interface {
	ObserveRequest(route string, status int)
	ObserveAuth(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRequest(string, int) {}
func (noopRecorder) ObserveAuth(string, string) {}

// Config configures the HTTP listener.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	// BodyLimit caps request bodies, e.g. "64K". Empty uses DefaultBodyLimit.
	BodyLimit string
}

// DefaultBodyLimit caps request bodies when Config.BodyLimit is empty.
const DefaultBodyLimit = "64K"

// Server serves the public API.
type Server struct {
	cfg        Config
	echo       *echo.Echo
	auth       Authenticator
	metrics    Recorder
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer builds the router. metrics may be nil.
func NewServer(cfg Config, authn Authenticator, metrics Recorder, logger *slog.Logger) (*Server, error) {
	if authn == nil {
		return nil, oops.Code("API_INVALID_DEPENDENCY").Errorf("authenticator is required")
	}
	if logger == nil {
		return nil, oops.Code("API_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultBodyLimit
	}

	s := &Server{cfg: cfg, auth: authn, metrics: metrics, logger: logger}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogRoutePath:  true,
		LogStatus:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogRemoteIP:   true,
		HandleError:   true,
		LogValuesFunc: s.logRequest,
	}))
	e.Use(s.observe)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.ErrorContext(c.Request().Context(), "handler panic", "error", err.Error(), "stack", string(stack))
			return err
		},
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{Limit: cfg.BodyLimit}))

	e.POST("/register", s.register)
	e.POST("/login", s.login)

	s.echo = e
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving. The returned channel receives a serve error, if one
// occurs, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("API_ALREADY_RUNNING").Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.Code("API_SHUTDOWN_FAILED").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// observe resolves handler errors into a response here, so the counter and
// the request log both see the final status.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := next(c); err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, c.Response().Status)
		return nil
	}
}

func (s *Server) logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	level := slog.LevelInfo
	switch {
	case v.Status >= http.StatusInternalServerError:
		level = slog.LevelError
	case v.Status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("method", v.Method),
		slog.String("uri", v.URI),
		slog.String("route", v.RoutePath),
		slog.Int("status", v.Status),
		slog.Duration("latency", v.Latency),
		slog.String("request_id", v.RequestID),
		slog.String("remote_ip", v.RemoteIP),
	}
	if v.Error != nil {
		attrs = append(attrs, slog.String("error", v.Error.Error()))
	}
	s.logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
	return nil
}
