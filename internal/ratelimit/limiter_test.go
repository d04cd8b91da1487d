// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ratelimit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l := New(10, time.Minute)
	user := uuid.New()

	for i := 0; i < 10; i++ {
		require.True(t, l.Allow(user), "submission %d should be allowed", i+1)
	}
	assert.False(t, l.Allow(user), "11th submission within the window should be denied")
}

func TestLimiter_SlidingWindowExpires(t *testing.T) {
	l := New(1, time.Minute)
	user := uuid.New()
	clock := time.Now()
	l.now = func() time.Time { return clock }

	require.True(t, l.Allow(user))
	assert.False(t, l.Allow(user))

	clock = clock.Add(61 * time.Second)
	assert.True(t, l.Allow(user), "after the window elapses the old timestamp should be dropped")
}

func TestLimiter_ZeroLimitDisablesThrottling(t *testing.T) {
	l := New(0, time.Minute)
	user := uuid.New()
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow(user))
	}
}

func TestLimiter_PerUserIsolation(t *testing.T) {
	l := New(1, time.Minute)
	a, b := uuid.New(), uuid.New()

	require.True(t, l.Allow(a))
	assert.False(t, l.Allow(a))
	assert.True(t, l.Allow(b), "a different user's window must be independent")
}
