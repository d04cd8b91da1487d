// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubechat/tubechat/internal/auth"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/observability"
)

func TestParseScope(t *testing.T) {
	channelID := uuid.New()

	tests := []struct {
		name    string
		raw     string
		want    Scope
		wantErr bool
	}{
		{name: "empty is personal", raw: "", want: Scope{}},
		{name: "explicit personal", raw: "personal", want: Scope{}},
		{name: "valid channel", raw: "channel:" + channelID.String(), want: Scope{ChannelID: &channelID}},
		{name: "missing prefix", raw: channelID.String(), wantErr: true},
		{name: "malformed uuid", raw: "channel:not-a-uuid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScope(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want.ChannelID == nil {
				assert.Nil(t, got.ChannelID)
				return
			}
			require.NotNil(t, got.ChannelID)
			assert.Equal(t, *tt.want.ChannelID, *got.ChannelID)
		})
	}
}

type fakeChannelChecker struct {
	channel domain.Channel
	err     error
}

func (f *fakeChannelChecker) GetActiveChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error) {
	return f.channel, f.err
}

func signedToken(t *testing.T, key string, userID uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestServeWS_RejectsNonexistentChannelScopeBeforeUpgrade(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const signingKey = "test-signing-key"
	validator := auth.NewValidator(signingKey)
	token := signedToken(t, signingKey, uuid.New())

	h := &Handler{
		validator: validator,
		metrics:   observability.Default(),
		channels:  &fakeChannelChecker{err: assert.AnError},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token="+token+"&scope=channel:"+uuid.New().String(), nil)

	h.ServeWS(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
