// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ratelimit implements the per-user sliding-window submission
// counter from spec §4.3. It is hand-rolled rather than built on
// golang.org/x/time/rate because the spec's semantics — drop timestamps
// older than now-window, deny when the remaining count is at the limit —
// is a sliding-window log, not the token-bucket model x/time/rate
// implements; no pack library exposes that timestamp-log shape.
package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Limiter is one of the three process-wide singletons named in spec.md §9.
// State is a process-local map guarded by a per-key lock.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[uuid.UUID]*entry

	now func() time.Time
}

type entry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// New builds a Limiter allowing limit submissions per rolling window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		window:  window,
		limit:   limit,
		entries: make(map[uuid.UUID]*entry),
		now:     time.Now,
	}
}

// Allow reports whether userID may submit now, recording the submission if
// so. A limit of 0 or less disables throttling entirely (always allows).
func (l *Limiter) Allow(userID uuid.UUID) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &entry{}
		l.entries[userID] = e
	}
	l.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.timestamps = kept

	if len(e.timestamps) >= l.limit {
		return false
	}
	e.timestamps = append(e.timestamps, now)
	return true
}

// Reset clears a user's window, used by integration-suite teardown per the
// "tested teardown/reset" requirement in spec.md §9.
func (l *Limiter) Reset(userID uuid.UUID) {
	l.mu.Lock()
	delete(l.entries, userID)
	l.mu.Unlock()
}
