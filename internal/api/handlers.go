// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/holomush/authkeep/internal/auth"
	"github.com/holomush/authkeep/internal/observability"
)

// Operation labels for the auth outcome counter.
const (
	opRegister = "register"
	opLogin    = "login"
)

// Response messages.
const (
	MessageInvalidBody         = "Invalid request body"
	MessageUsernameTaken       = "Username already exists"
	MessageInvalidCredentials  = "Invalid username or password"
	MessageNotConfigured       = "Authentication is not configured"
	MessageInternalServerError = "Internal server error"
)

// MessageResponse is the body of every non-token response.
type MessageResponse struct {
	Message string `json:"message"`
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// register accepts {username, password, ...}. Every other field is stored
// as the user's profile.
func (s *Server) register(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil || body == nil {
		return s.badRequest(c, opRegister, MessageInvalidBody)
	}

	username, okUser := optionalString(body, "username")
	password, okPass := optionalString(body, "password")
	if !okUser || !okPass {
		return s.badRequest(c, opRegister, "username and password must be strings")
	}
	req := credentials{Username: username, Password: password}
	if err := c.Validate(&req); err != nil {
		return s.badRequest(c, opRegister, validationMessage(err))
	}

	delete(body, "username")
	delete(body, "password")

	result, err := s.auth.Register(c.Request().Context(), auth.Registration{
		Username: req.Username,
		Password: req.Password,
		Profile:  body,
	})
	if err != nil {
		return s.authFailure(c, opRegister, err)
	}

	s.metrics.ObserveAuth(opRegister, observability.OutcomeSuccess)
	return c.JSON(http.StatusCreated, result)
}

func (s *Server) login(c echo.Context) error {
	var req credentials
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, opLogin, MessageInvalidBody)
	}
	if err := c.Validate(&req); err != nil {
		return s.badRequest(c, opLogin, validationMessage(err))
	}

	result, err := s.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return s.authFailure(c, opLogin, err)
	}

	s.metrics.ObserveAuth(opLogin, observability.OutcomeSuccess)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) badRequest(c echo.Context, op, message string) error {
	s.metrics.ObserveAuth(op, observability.OutcomeBadRequest)
	return c.JSON(http.StatusBadRequest, MessageResponse{Message: message})
}

// authFailure maps a classified service error to a response. Causes stay in
// the service log; the caller only sees the fixed message for the kind.
func (s *Server) authFailure(c echo.Context, op string, err error) error {
	status, outcome, message := classifyFailure(err)
	s.metrics.ObserveAuth(op, outcome)
	return c.JSON(status, MessageResponse{Message: message})
}

func classifyFailure(err error) (status int, outcome, message string) {
	switch auth.KindOf(err) {
	case auth.KindDuplicateUsername:
		return http.StatusConflict, observability.OutcomeDuplicateUsername, MessageUsernameTaken
	case auth.KindInvalidCredentials:
		return http.StatusUnauthorized, observability.OutcomeInvalidCredentials, MessageInvalidCredentials
	case auth.KindConfiguration:
		return http.StatusInternalServerError, observability.OutcomeConfiguration, MessageNotConfigured
	case auth.KindPersistence:
		return http.StatusInternalServerError, observability.OutcomePersistence, MessageInternalServerError
	default:
		return http.StatusInternalServerError, observability.OutcomeInternal, MessageInternalServerError
	}
}

// optionalString returns body[key] as a string. A missing key yields "" and
// true so validation can report it; a non-string value yields false.
func optionalString(body map[string]any, key string) (string, bool) {
	v, ok := body[key]
	if !ok || v == nil {
		return "", true
	}
	str, ok := v.(string)
	return str, ok
}

// handleError renders errors that escaped the handlers: routing misses,
// oversize bodies and recovered panics. Internal detail is never echoed.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := MessageInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		status = he.Code
		message = http.StatusText(he.Code)
	} else {
		s.logger.ErrorContext(c.Request().Context(), "unhandled request error",
			"error", err.Error(),
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, MessageResponse{Message: message})
	}
	if writeErr != nil {
		s.logger.DebugContext(c.Request().Context(), "error response write failed", "error", writeErr)
	}
}
