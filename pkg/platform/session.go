// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "carrier_session"

// sessionClaims is the claim set the platform issues in HS256 tokens.
type sessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionService resolves users from platform-issued bearer tokens and
// session cookies. Both carry the same HS256 JWT.
type SessionService struct {
	secret []byte
}

// NewSessionService creates a session service verifying tokens with secret.
func NewSessionService(secret string) *SessionService {
	return &SessionService{secret: []byte(secret)}
}

// CurrentUser resolves the calling user from the Authorization header or,
// failing that, the session cookie.
func (s *SessionService) CurrentUser(r *http.Request) (*User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, ErrUnauthorized
	}
	return s.parseToken(token)
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (s *SessionService) parseToken(token string) (*User, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &User{
		ID:    userID,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}
