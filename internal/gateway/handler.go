// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway is the session gateway from spec §4.1: one persistent
// bidirectional frame-oriented channel per authenticated client, the
// lifecycle state machine, heartbeat, and the per-turn algorithm that
// drives classification, retrieval, grading, and generation to a single
// terminal frame.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tubechat/tubechat/internal/auth"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/observability"
	"github.com/tubechat/tubechat/pkg/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ChannelChecker is the subset of *store.Store the handler needs to assert
// channel scope validity before upgrading a connection.
type ChannelChecker interface {
	GetActiveChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error)
}

// Handler holds everything needed to accept a new channel connection.
type Handler struct {
	validator *auth.Validator
	processor *Processor
	registry  *Registry
	metrics   *observability.Metrics
	log       *logging.Logger
	heartbeat time.Duration
	channels  ChannelChecker
}

// NewHandler builds a Handler. channels is used to reject open() calls for
// a channel scope that is already non-existent or soft-deleted (spec §4.1's
// open() Errors list); per-turn checks in the processor still apply on
// every subsequent message, since a channel can be deleted mid-session.
func NewHandler(validator *auth.Validator, processor *Processor, registry *Registry, metrics *observability.Metrics, log *logging.Logger, heartbeat time.Duration, channels ChannelChecker) *Handler {
	return &Handler{validator: validator, processor: processor, registry: registry, metrics: metrics, log: log, heartbeat: heartbeat, channels: channels}
}

// ServeWS is the gin.HandlerFunc for the channel-open endpoint: `open(auth_token,
// scope)` (spec §4.1). The bearer token is accepted as a query parameter
// since the browser websocket API cannot set an Authorization header.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if raw, err := auth.ExtractBearerToken(c.GetHeader("Authorization")); err == nil {
			token = raw
		}
	}

	claims, err := h.validator.Validate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	scope, err := parseScope(c.Query("scope"))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if scope.ChannelID != nil {
		if _, err := h.channels.GetActiveChannel(c.Request.Context(), *scope.ChannelID); err != nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("gateway: upgrade failed", "error", err.Error())
		return
	}

	conn := NewConnection(ws, claims.UserID, scope, h.processor, h.log, h.heartbeat)
	h.registry.Add(conn)
	h.metrics.ActiveConnections.Inc()
	h.log.Info("gateway: connection opened", "connection_id", conn.ID, "user_id", claims.UserID)

	defer func() {
		h.registry.Remove(conn.ID)
		h.metrics.ActiveConnections.Dec()
		h.log.Info("gateway: connection closed", "connection_id", conn.ID)
	}()

	conn.Run()
}

// parseScope resolves the raw `scope` query parameter into a Scope.
// "personal" (or empty) is personal scope; "channel:<uuid>" is channel
// scope. This only validates the scope string's shape; ServeWS separately
// asserts the referenced channel exists and is not soft-deleted before
// upgrading (spec §4.1's open() Errors list), and the turn processor
// re-asserts it on every subsequent message in case the channel is deleted
// mid-session.
func parseScope(raw string) (Scope, error) {
	if raw == "" || raw == "personal" {
		return Scope{}, nil
	}
	const prefix = "channel:"
	if !strings.HasPrefix(raw, prefix) {
		return Scope{}, errInvalidScope
	}
	id, err := uuid.Parse(raw[len(prefix):])
	if err != nil {
		return Scope{}, errInvalidScope
	}
	return Scope{ChannelID: &id}, nil
}
