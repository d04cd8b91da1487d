// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/llm"
)

type fakeLLM struct {
	responses []string // JSON payloads returned in order; exhausted entries error
	calls     int
}

func (f *fakeLLM) Chat(ctx context.Context, prompt string, params llm.GenerationParams) (llm.ChatResult, error) {
	return llm.ChatResult{}, errors.New("not used in these tests")
}

func (f *fakeLLM) Structured(ctx context.Context, prompt string, schema []byte, out any, params llm.GenerationParams) error {
	if f.calls >= len(f.responses) {
		return errors.New("fakeLLM: exhausted canned responses")
	}
	resp := f.responses[f.calls]
	f.calls++
	return json.Unmarshal([]byte(resp), out)
}

func TestClassify_YoutubeURLShortCircuits(t *testing.T) {
	fake := &fakeLLM{}
	c := New(fake)

	res, err := c.Classify(context.Background(), "u1", "check this out https://youtu.be/dQw4w9WgXcQ", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentVideoLoad, res.Intent)
	assert.Equal(t, 0, fake.calls, "url short-circuit should skip the LLM call entirely")
}

func TestClassify_ValidResponse(t *testing.T) {
	fake := &fakeLLM{responses: []string{`{"intent":"qa","confidence":0.9,"reasoning":"topical question"}`}}
	c := New(fake)

	res, err := c.Classify(context.Background(), "u1", "what is FastAPI?", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentQA, res.Intent)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestClassify_RetriesOnMalformedThenDegrades(t *testing.T) {
	fake := &fakeLLM{responses: []string{
		`{"intent":"not-a-real-intent","confidence":0.5,"reasoning":"bad"}`,
		`{"intent":"also-bad","confidence":0.5,"reasoning":"bad"}`,
		`{"intent":"still-bad","confidence":0.5,"reasoning":"bad"}`,
	}}
	c := New(fake)

	res, err := c.Classify(context.Background(), "u1", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentChitchat, res.Intent)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, 3, fake.calls, "expect the initial attempt plus two retries")
}

func TestClassify_RetriesThenSucceeds(t *testing.T) {
	fake := &fakeLLM{responses: []string{
		`{"intent":"bogus","confidence":0.5,"reasoning":"bad"}`,
		`{"intent":"metadata","confidence":0.8,"reasoning":"list request"}`,
	}}
	c := New(fake)

	res, err := c.Classify(context.Background(), "u1", "list my videos", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentMetadata, res.Intent)
	assert.Equal(t, 2, fake.calls)
}
