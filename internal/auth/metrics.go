// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token validation outcomes
const (
	outcomeSuccess = "success"
	outcomeMissing = "missing"
	outcomeInvalid = "invalid"
	outcomeExpired = "expired"
)

var (
	// TokenValidations counts token checks for HTTP requests and websocket
	// handshakes.
	// Labels:
	//   - outcome: "success", "missing", "invalid", "expired"
	TokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Total number of bearer token validations by outcome",
		},
		[]string{"outcome"},
	)

	// AuthorizationDenials counts authenticated requests refused for
	// lacking the admin role.
	AuthorizationDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_authorization_denials_total",
			Help: "Total number of requests denied for insufficient role",
		},
	)
)
