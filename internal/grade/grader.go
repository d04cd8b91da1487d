// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grade implements the per-chunk relevance judgment stage from
// spec §4.6: a small structured LLM call per retrieved chunk, fanned out
// with bounded concurrency, preserving retrieval score order.
package grade

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/invopop/jsonschema"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/llm"
)

type verdict struct {
	IsRelevant bool   `json:"is_relevant"`
	Reasoning  string `json:"reasoning"`
}

var schema []byte

func init() {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	s := reflector.Reflect(&verdict{})
	b, err := s.MarshalJSON()
	if err != nil {
		panic("grade: reflect verdict schema: " + err.Error())
	}
	schema = b
}

// Grader judges each retrieved chunk's relevance to the user's query.
type Grader struct {
	client      llm.Client
	concurrency int
}

// New builds a Grader. concurrency bounds in-flight grader calls (spec §5:
// recommended ≤ 4).
func New(client llm.Client, concurrency int) *Grader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Grader{client: client, concurrency: concurrency}
}

// Grade judges every chunk concurrently (bounded by g.concurrency) and
// returns only the relevant ones, in their original retrieval-score order.
// A per-chunk LLM failure is swallowed — it is neither logged nor returned
// to the caller — and that chunk is dropped; grading is advisory, so one transient failure must
// not drop the whole turn (spec §4.6).
func (g *Grader) Grade(ctx context.Context, userID, query string, chunks []domain.RetrievedChunk) []domain.GradedChunk {
	results := make([]*domain.GradedChunk, len(chunks))
	sem := make(chan struct{}, g.concurrency)

	eg, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return nil
			}

			var v verdict
			prompt := buildPrompt(query, chunk.ChunkText)
			params := llm.GenerationParams{
				MaxTokens:   150,
				Temperature: 0.1,
				Metadata:    map[string]any{"user_id": userID, "tags": []string{"grade"}},
			}
			if err := g.client.Structured(gctx, prompt, schema, &v, params); err != nil {
				// Swallowed per spec §4.6: grading is advisory.
				return nil
			}
			if v.IsRelevant {
				results[i] = &domain.GradedChunk{RetrievedChunk: chunk, Relevant: true, Reasoning: v.Reasoning}
			}
			return nil
		})
	}
	_ = eg.Wait() // Grade never propagates an error; per-chunk failures are swallowed above.

	out := make([]domain.GradedChunk, 0, len(chunks))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func buildPrompt(query, chunkText string) string {
	return "User query:\n" + query + "\n\nCandidate transcript excerpt:\n" + chunkText +
		"\n\nIs this excerpt relevant to answering the user's query?"
}
