// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package auth provides bearer token authentication for the HTTP API and the
websocket handshake.

Key Components:

  - JWTManager: HS256 token generation and validation
  - Middleware: Authenticate, RequireAdmin and SecurityHeaders
  - ExtractToken: Authorization header first, token query parameter second

Tokens carry a user_id claim (falling back to the registered sub claim)
and a role. A token whose role equals the configured admin role yields an
admin identity, which unlocks admin-only realtime events and the queue
management endpoint.

JWTManager.ValidateToken returns a models.Identity, so the manager can be
handed directly to the websocket hub as its token validator.

Usage Example:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    log.Fatal(err)
	}
	mw := auth.NewMiddleware(jwtManager)
	r.Post("/api/v1/events/email", mw.Authenticate(handler.IngestEmail))

Metrics:

  - auth_token_validations_total{outcome}
  - auth_authorization_denials_total
*/
package auth
