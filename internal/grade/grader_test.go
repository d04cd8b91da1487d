// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grade

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/llm"
)

type fakeGraderLLM struct {
	relevant    map[string]bool // chunk text -> relevant
	failOn      map[string]bool
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (f *fakeGraderLLM) Chat(ctx context.Context, prompt string, params llm.GenerationParams) (llm.ChatResult, error) {
	return llm.ChatResult{}, errors.New("not used")
}

func (f *fakeGraderLLM) Structured(ctx context.Context, prompt string, schema []byte, out any, params llm.GenerationParams) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	for text, fail := range f.failOn {
		if fail && containsText(prompt, text) {
			return errors.New("boom")
		}
	}
	v := out.(*verdict)
	for text, rel := range f.relevant {
		if containsText(prompt, text) {
			v.IsRelevant = rel
			v.Reasoning = "matched"
			return nil
		}
	}
	return nil
}

func containsText(haystack, needle string) bool {
	return len(needle) > 0 && (len(haystack) >= len(needle)) && (indexOf(haystack, needle) >= 0)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestGrade_PreservesOrderAndDropsIrrelevant(t *testing.T) {
	fake := &fakeGraderLLM{relevant: map[string]bool{"keep-me": true, "drop-me": false}}
	g := New(fake, 4)

	chunks := []domain.RetrievedChunk{
		{ChunkText: "drop-me", Score: 0.9},
		{ChunkText: "keep-me", Score: 0.5},
	}
	out := g.Grade(context.Background(), "u1", "query", chunks)

	assert.Len(t, out, 1)
	assert.Equal(t, "keep-me", out[0].ChunkText)
}

func TestGrade_SwallowsPerChunkFailure(t *testing.T) {
	fake := &fakeGraderLLM{
		relevant: map[string]bool{"good": true},
		failOn:   map[string]bool{"bad": true},
	}
	g := New(fake, 4)

	chunks := []domain.RetrievedChunk{{ChunkText: "bad"}, {ChunkText: "good"}}
	out := g.Grade(context.Background(), "u1", "query", chunks)

	assert.Len(t, out, 1)
	assert.Equal(t, "good", out[0].ChunkText)
}

func TestGrade_RespectsConcurrencyBound(t *testing.T) {
	fake := &fakeGraderLLM{relevant: map[string]bool{}, delay: 20 * time.Millisecond}
	g := New(fake, 2)

	chunks := make([]domain.RetrievedChunk, 8)
	for i := range chunks {
		chunks[i] = domain.RetrievedChunk{ChunkText: "x"}
	}
	g.Grade(context.Background(), "u1", "query", chunks)

	assert.LessOrEqual(t, fake.maxInFlight.Load(), int32(2))
}
