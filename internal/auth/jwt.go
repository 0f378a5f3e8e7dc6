// MAGE Server - Geospatial Situational Awareness and Observation Tracking
// Copyright 2026 Brian Flannery (BrianFlannery)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/BrianFlannery/mage-server-1

// Package auth issues and verifies the bearer tokens that identify API
// callers. Tokens are HMAC-signed JWTs carrying the user id, username, and
// role; user provisioning itself lives outside this server.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BrianFlannery/mage-server-1/internal/models"
)

// ErrInvalidToken covers every verification failure: bad signature,
// expiry, malformed claims. Callers get no more detail than that.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload for an authenticated user.
type Claims struct {
	Username string `json:"username"`
	RoleID   string `json:"roleId"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService builds a token service from the shared HMAC secret.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token identifying the user.
func (s *TokenService) Issue(user models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user.Username,
		RoleID:   user.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user it identifies.
func (s *TokenService) Verify(tokenString string) (models.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return models.User{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return models.User{}, ErrInvalidToken
	}
	return models.User{
		ID:       claims.Subject,
		Username: claims.Username,
		RoleID:   claims.RoleID,
	}, nil
}
