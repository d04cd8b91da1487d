// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package auth validates the bearer token presented at connection
// establishment and resolves it to {user_id, is_admin} — the only
// authentication inputs the core consumes (spec §1). Token issuance,
// password hashing, and admin-role assignment are external collaborators.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails to parse, verify,
// or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims is the validated identity extracted from a bearer token.
type Claims struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Validator verifies bearer tokens signed with a shared HMAC secret,
// grounded on the teacher's middleware/auth.go bearer-extraction/context
// pattern (SetAuthInfo/GetAuthInfo), reimplemented here with
// golang-jwt/jwt/v5 since the teacher's pkg/extensions.AuthProvider
// abstraction was dropped along with the rest of pkg/extensions.
type Validator struct {
	signingKey []byte
}

// NewValidator builds a Validator against signingKey.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

type tokenClaims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// Validate parses and verifies raw, returning the resolved claims.
func (v *Validator) Validate(ctx context.Context, raw string) (Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: userID, IsAdmin: claims.IsAdmin}, nil
}

// contextKey is an unexported type so values stored under it cannot
// collide with keys set by other packages, mirroring the teacher's
// authInfoKey pattern.
type contextKey struct{ name string }

var claimsKey = &contextKey{name: "auth-claims"}

// WithClaims returns a context carrying claims for downstream handlers.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext extracts claims previously stored by WithClaims.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

// ExtractBearerToken pulls the token out of an "Authorization: Bearer …"
// header value, mirroring the teacher's extractBearerToken helper.
func ExtractBearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", errors.New("auth: missing bearer prefix")
	}
	return header[len(prefix):], nil
}
