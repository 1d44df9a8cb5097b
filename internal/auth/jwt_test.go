// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/insightstream/internal/config"
)

// testJWTConfig returns a standard test security config for JWT
func testJWTConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:      "test-secret-key-that-is-at-least-32-characters-long",
		JWTIssuer:      "insightstream-test",
		SessionTimeout: time.Hour,
		AdminRole:      "admin",
	}
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testJWTConfig())
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{"valid secret", testJWTConfig(), false},
		{"empty secret", &config.SecurityConfig{SessionTimeout: time.Hour}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewJWTManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWTManager() unexpected error = %v", err)
			}
			if manager.AdminRole() != "admin" {
				t.Errorf("AdminRole() = %q, want admin", manager.AdminRole())
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name      string
		userID    string
		role      string
		wantAdmin bool
	}{
		{"regular user", "alice", "user", false},
		{"admin user", "ops", "admin", true},
		{"no role", "bob", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.GenerateToken(tt.userID, tt.role)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}

			id, err := m.ValidateToken(token)
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if id.UserID != tt.userID {
				t.Errorf("UserID = %q, want %q", id.UserID, tt.userID)
			}
			if id.IsAdmin != tt.wantAdmin {
				t.Errorf("IsAdmin = %v, want %v", id.IsAdmin, tt.wantAdmin)
			}
		})
	}
}

func TestValidateToken_SubjectFallback(t *testing.T) {
	m := newTestManager(t)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "carol",
		Issuer:    "insightstream-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		t.Fatal(err)
	}

	id, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if id.UserID != "carol" {
		t.Errorf("UserID = %q, want carol (from sub)", id.UserID)
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	m := newTestManager(t)

	other, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "a-completely-different-secret-of-32-plus-chars",
		JWTIssuer:      "insightstream-test",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := other.GenerateToken("alice", "admin")

	past := time.Now().Add(-2 * time.Hour)
	expiredManager := newTestManager(t)
	expiredManager.now = func() time.Time { return past }
	expired, _ := expiredManager.GenerateToken("alice", "user")

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID:           "alice",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "insightstream-test"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(m.secret)

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "insightstream-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(m.secret)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"wrong secret", forged, ErrInvalidToken},
		{"expired", expired, ErrExpiredToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"wrong issuer", wrongIssuer, ErrInvalidToken},
		{"no user", noUser, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ValidateToken(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateToken_Metrics(t *testing.T) {
	m := newTestManager(t)
	token, _ := m.GenerateToken("alice", "user")

	before := testutil.ToFloat64(TokenValidations.WithLabelValues(outcomeSuccess))
	if _, err := m.ValidateToken(token); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(TokenValidations.WithLabelValues(outcomeSuccess)) - before; got != 1 {
		t.Errorf("success counter delta = %v, want 1", got)
	}

	before = testutil.ToFloat64(TokenValidations.WithLabelValues(outcomeMissing))
	_, _ = m.ValidateToken("")
	if got := testutil.ToFloat64(TokenValidations.WithLabelValues(outcomeMissing)) - before; got != 1 {
		t.Errorf("missing counter delta = %v, want 1", got)
	}
}
