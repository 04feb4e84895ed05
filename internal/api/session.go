// Spindeck - Swipe-Based Music Discovery Backend
// Copyright 2026 Spindeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/spindeck/spindeck

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spindeck/spindeck/internal/config"
)

// Claims carries the session identity inside the JWT cookie.
type Claims struct {
	UserID string `json:"userId"`
	Anon   bool   `json:"anon"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates the HTTP-only session cookie. Tokens
// are HMAC-SHA256 signed and stateless; expiry is the only revocation.
type SessionManager struct {
	secret     []byte
	timeout    time.Duration
	cookieName string
}

// NewSessionManager creates the session manager. The secret must be set;
// short secrets are rejected at config validation.
func NewSessionManager(cfg *config.SecurityConfig) (*SessionManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required but was empty")
	}
	return &SessionManager{
		secret:     []byte(cfg.JWTSecret),
		timeout:    cfg.SessionTimeout,
		cookieName: cfg.CookieName,
	}, nil
}

// IssueToken signs a session token for the user.
func (m *SessionManager) IssueToken(userID string, anon bool) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Anon:   anon,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature, algorithm and time claims.
func (m *SessionManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session claims")
	}
	return claims, nil
}

// SetCookie writes the session cookie on the response.
func (m *SessionManager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.timeout.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type contextKey string

const claimsKey contextKey = "sessionClaims"

// Authenticate rejects requests without a valid session cookie and stores
// the claims on the request context.
func (m *SessionManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookieName)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "no_session", "authentication required")
			return
		}
		claims, err := m.ValidateToken(cookie.Value)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_session", "session is invalid or expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// SessionClaims returns the authenticated claims stored by Authenticate.
func SessionClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
