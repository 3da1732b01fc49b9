// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Auth outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeConfiguration      = "configuration_error"
	OutcomeDuplicateUsername  = "duplicate_username"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomePersistence        = "persistence_error"
	OutcomeInternal           = "internal_error"
	OutcomeBadRequest         = "bad_request"
)

// Metrics holds the service counters.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	AuthOutcomes *prometheus.CounterVec
}

// NewMetrics creates the service counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		AuthOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authkeep_auth_outcomes_total",
				Help: "Total number of register and login attempts by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	reg.MustRegister(m.HTTPRequests, m.AuthOutcomes)
	return m
}

// ObserveRequest counts one HTTP response.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// ObserveAuth counts one register or login outcome.
func (m *Metrics) ObserveAuth(operation, outcome string) {
	m.AuthOutcomes.WithLabelValues(operation, outcome).Inc()
}
