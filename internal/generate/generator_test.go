// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/llm"
)

type fakeChatLLM struct {
	text string
	err  error
}

func (f *fakeChatLLM) Chat(ctx context.Context, prompt string, params llm.GenerationParams) (llm.ChatResult, error) {
	if f.err != nil {
		return llm.ChatResult{}, f.err
	}
	return llm.ChatResult{Text: f.text}, nil
}

func (f *fakeChatLLM) Structured(ctx context.Context, prompt string, schema []byte, out any, params llm.GenerationParams) error {
	return errors.New("not used")
}

func TestGenerate_Chitchat(t *testing.T) {
	g := New(&fakeChatLLM{text: "hi there!"}, NoopVideoIngestor{})
	out, err := g.Generate(context.Background(), domain.IntentChitchat, Input{UserID: uuid.New(), Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi there!", out.Response)
	assert.Equal(t, domain.IntentChitchat, out.Metadata.Intent)
	assert.Equal(t, 0, out.Metadata.ChunksUsed)
}

func TestGenerate_QAIncludesSourceChunks(t *testing.T) {
	g := New(&fakeChatLLM{text: "FastAPI is a web framework."}, NoopVideoIngestor{})
	chunkID := uuid.New()
	out, err := g.Generate(context.Background(), domain.IntentQA, Input{
		UserID: uuid.New(),
		Query:  "what is fastapi?",
		GradedChunks: []domain.GradedChunk{
			{RetrievedChunk: domain.RetrievedChunk{ChunkID: chunkID, ChunkText: "FastAPI is a web framework"}, Relevant: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Metadata.ChunksUsed)
	assert.Equal(t, []uuid.UUID{chunkID}, out.Metadata.SourceChunkIDs)
}

func TestGenerate_VideoLoadAcknowledgment(t *testing.T) {
	var events []IngestEvent
	g := New(&fakeChatLLM{}, NoopVideoIngestor{})
	g.OnIngestEvent(func(ev IngestEvent) { events = append(events, ev) })

	out, err := g.Generate(context.Background(), domain.IntentVideoLoad, Input{
		UserID:     uuid.New(),
		YoutubeURL: "https://youtu.be/dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.Contains(t, out.Response, "Added video")
	assert.Equal(t, domain.IntentVideoLoad, out.Metadata.Intent)
	require.Len(t, events, 1)
	assert.Equal(t, IngestCompleted, events[0].Status)
}

func TestGenerate_UnknownIntentErrors(t *testing.T) {
	g := New(&fakeChatLLM{}, NoopVideoIngestor{})
	_, err := g.Generate(context.Background(), domain.Intent("bogus"), Input{})
	assert.Error(t, err)
}
