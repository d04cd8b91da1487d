// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding wraps the remote embedding model behind the
// embed(texts, metadata) → [][]float32 contract from spec §6. Callers never
// hard-code the vector dimension; it is read off the first returned
// embedding.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tubechat/tubechat/internal/retry"
)

// maxBatch bounds one embedding call per spec §5 ("embedding batch size
// ≤ 100 texts per call").
const maxBatch = 100

// Provider embeds text via a remote model.
type Provider interface {
	Embed(ctx context.Context, texts []string, metadata map[string]any) ([][]float32, error)
}

// Client implements Provider against an OpenAI-compatible embeddings
// endpoint.
type Client struct {
	inner *openai.Client
	model string
}

// NewClient builds an embedding client against apiKey/baseURL using model.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{inner: openai.NewClientWithConfig(cfg), model: model}
}

// Embed maps texts to vectors, batching at maxBatch per call.
func (c *Client) Embed(ctx context.Context, texts []string, metadata map[string]any) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}

	var resp openai.EmbeddingResponse
	policy := retry.Default()
	policy.Retryable = isRetryableErr
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		resp, err = c.inner.CreateEmbeddings(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create embeddings: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// isRetryableErr reports whether err looks transient (5xx/429 API response
// or network failure) rather than permanent (4xx, malformed request) — the
// same classification the llm package applies to chat completions, spec §7.
func isRetryableErr(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
