// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/insightstream/internal/config"
	"github.com/tomtom215/insightstream/internal/models"
)

// Token validation errors
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims represents JWT claims. UserID falls back to the registered
// subject when absent.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the user behind the claims.
func (c *Claims) Identity(adminRole string) models.Identity {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	return models.Identity{
		UserID:  userID,
		IsAdmin: adminRole != "" && c.Role == adminRole,
	}
}

// JWTManager handles JWT token creation and validation
type JWTManager struct {
	secret    []byte
	timeout   time.Duration
	issuer    string
	adminRole string
	now       func() time.Time
}

// NewJWTManager creates a token manager with the configured secret and
// timeout. Tokens are signed with HS256.
//
// Example:
//
//	jwtManager, err := auth.NewJWTManager(&cfg.Security)
//	if err != nil {
//	    log.Fatal("Failed to initialize JWT manager:", err)
//	}
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = "admin"
	}

	return &JWTManager{
		secret:    []byte(cfg.JWTSecret),
		timeout:   cfg.SessionTimeout,
		issuer:    cfg.JWTIssuer,
		adminRole: adminRole,
		now:       time.Now,
	}, nil
}

// GenerateToken creates a signed token for userID with the given role.
func (m *JWTManager) GenerateToken(userID, role string) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ParseClaims verifies the signature, algorithm, expiry and issuer of a
// token and returns its claims.
func (m *JWTManager) ParseClaims(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateToken resolves a token to the identity it carries. It satisfies
// the websocket hub's token validator.
func (m *JWTManager) ValidateToken(tokenString string) (models.Identity, error) {
	if tokenString == "" {
		TokenValidations.WithLabelValues(outcomeMissing).Inc()
		return models.Identity{}, ErrMissingToken
	}

	claims, err := m.ParseClaims(tokenString)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			TokenValidations.WithLabelValues(outcomeExpired).Inc()
		} else {
			TokenValidations.WithLabelValues(outcomeInvalid).Inc()
		}
		return models.Identity{}, err
	}

	id := claims.Identity(m.adminRole)
	if id.UserID == "" {
		TokenValidations.WithLabelValues(outcomeInvalid).Inc()
		return models.Identity{}, fmt.Errorf("%w: no user id or subject", ErrInvalidToken)
	}

	TokenValidations.WithLabelValues(outcomeSuccess).Inc()
	return id, nil
}

// AdminRole returns the role name that grants admin visibility.
func (m *JWTManager) AdminRole() string {
	return m.adminRole
}
