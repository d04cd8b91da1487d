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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tubechat/tubechat/pkg/logging"
)

// connState is the per-channel lifecycle from spec §4.1:
//
//	CLOSED -open,auth_ok-> OPEN_IDLE
//	OPEN_IDLE -frame_in-> TURN_ACTIVE -final_emitted-> OPEN_IDLE
//	TURN_ACTIVE -rate_limited-> OPEN_IDLE (error frame emitted)
//	any -transport_err|auth_expired|heartbeat_miss-> CLOSED
type connState int32

const (
	stateOpenIdle connState = iota
	stateTurnActive
	stateClosed
)

const maxMissedPongs = 2

// Connection owns one authenticated client's websocket channel: the
// lifecycle state machine, the heartbeat, the busy-queue-of-1, and
// dispatch into Processor for each accepted frame.
type Connection struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Scope  Scope

	conn      *websocket.Conn
	processor *Processor
	log       *logging.Logger
	heartbeat time.Duration

	state       atomic.Int32
	missedPongs atomic.Int32
	pending     chan InboundFrame
	writeMu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConnection wraps an upgraded websocket in a Connection ready to Run.
func NewConnection(conn *websocket.Conn, userID uuid.UUID, scope Scope, processor *Processor, log *logging.Logger, heartbeat time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:        uuid.New(),
		UserID:    userID,
		Scope:     scope,
		conn:      conn,
		processor: processor,
		log:       log,
		heartbeat: heartbeat,
		pending:   make(chan InboundFrame, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Run drives the connection until the transport closes, a heartbeat is
// missed twice, or the caller cancels. It blocks; call it from its own
// goroutine per accepted websocket.
func (c *Connection) Run() {
	defer c.close()

	c.conn.SetPongHandler(func(string) error {
		c.missedPongs.Store(0)
		return nil
	})

	go c.heartbeatLoop()

	for {
		var in InboundFrame
		if err := c.conn.ReadJSON(&in); err != nil {
			c.log.Debug("gateway: read failed, closing connection", "connection_id", c.ID, "error", err.Error())
			return
		}
		c.dispatch(in)
	}
}

// dispatch implements the busy-queue-of-1: a frame arriving while a turn
// is active is queued if the slot is free, else refused with ErrBusy
// (spec §4.1: "implementations MAY queue at most one pending frame").
func (c *Connection) dispatch(in InboundFrame) {
	if connState(c.state.Load()) == stateClosed {
		return
	}
	if c.state.CompareAndSwap(int32(stateOpenIdle), int32(stateTurnActive)) {
		go c.runTurn(in)
		return
	}

	select {
	case c.pending <- in:
	default:
		c.send(ErrorFrame(ErrBusy, "a turn is already in progress"))
	}
}

func (c *Connection) runTurn(in InboundFrame) {
	c.processor.Execute(c.ctx, c.UserID, c.Scope, in, c.send)
	c.state.Store(int32(stateOpenIdle))

	select {
	case next := <-c.pending:
		c.dispatch(next)
	default:
	}
}

func (c *Connection) send(frame OutboundFrame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(frame); err != nil {
		c.log.Debug("gateway: write failed", "connection_id", c.ID, "error", err.Error())
	}
}

func (c *Connection) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.missedPongs.Add(1) > maxMissedPongs {
				c.log.Info("gateway: heartbeat missed twice, closing connection", "connection_id", c.ID)
				c.close()
				return
			}
			c.writeMu.Lock()
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Connection) close() {
	if !c.state.CompareAndSwap(int32(stateOpenIdle), int32(stateClosed)) {
		c.state.Store(int32(stateClosed))
	}
	c.cancel()
	_ = c.conn.Close()
}
