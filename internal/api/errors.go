// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import "errors"

// Error codes carried in models.APIError.Code.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidBody      = "INVALID_BODY"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

var (
	// ErrEmptyBody is returned when a JSON body was required but absent.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrNoIdentity indicates a handler behind Authenticate ran without one.
	ErrNoIdentity = errors.New("no authenticated identity on request")
)
