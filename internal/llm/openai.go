// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tubechat/tubechat/internal/retry"
)

// OpenAIClient implements Client against an OpenAI-compatible chat
// completions API, grounded on the teacher's services/llm/openai_llm.go
// (default model, env-driven key) with Structured added via go-openai's
// JSON-schema response_format support.
type OpenAIClient struct {
	inner        *openai.Client
	defaultModel string
}

// NewOpenAIClient builds a client against apiKey and baseURL (baseURL
// empty selects the public OpenAI endpoint). defaultModel names the chat
// model to use absent a per-call override.
func NewOpenAIClient(apiKey, baseURL, defaultModel string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{inner: openai.NewClientWithConfig(cfg), defaultModel: defaultModel}
}

// Chat issues a free-form completion.
func (c *OpenAIClient) Chat(ctx context.Context, prompt string, params GenerationParams) (ChatResult, error) {
	req := c.baseRequest(prompt, params)

	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, retryPolicy(), func(ctx context.Context) error {
		var err error
		resp, err = c.inner.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("llm: chat completion: %w", classifyRetryable(err))
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, errors.New("llm: chat completion returned no choices")
	}
	return ChatResult{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Structured issues a completion constrained to schema and unmarshals the
// result JSON into out.
func (c *OpenAIClient) Structured(ctx context.Context, prompt string, schema []byte, out any, params GenerationParams) error {
	req := c.baseRequest(prompt, params)

	var rawSchema map[string]any
	if err := json.Unmarshal(schema, &rawSchema); err != nil {
		return fmt.Errorf("llm: parse schema: %w", err)
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "structured_output",
			Schema: rawSchema,
			Strict: true,
		},
	}

	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, retryPolicy(), func(ctx context.Context) error {
		var err error
		resp, err = c.inner.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("llm: structured completion: %w", classifyRetryable(err))
	}
	if len(resp.Choices) == 0 {
		return errors.New("llm: structured completion returned no choices")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("llm: unmarshal structured response: %w", err)
	}
	return nil
}

func (c *OpenAIClient) baseRequest(prompt string, params GenerationParams) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if params.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: params.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	model := c.defaultModel
	if m, ok := params.Metadata["model"].(string); ok && m != "" {
		model = m
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
}

// RetryableError is a thin marker an external-call site can use to
// distinguish transient failures (connection, 5xx, timeout) from
// non-transient ones (validation, 4xx auth) per spec §7's propagation
// policy.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// retryPolicy returns the pipeline-node default with Retryable wired to
// isRetryableErr, so retry.Do stops immediately on validation/4xx failures
// instead of burning through MaxAttempts on errors that will never succeed
// (spec §7: fail fast, no retries on non-transient errors).
func retryPolicy() retry.Policy {
	p := retry.Default()
	p.Retryable = isRetryableErr
	return p
}

// isRetryableErr reports whether err looks transient: a 5xx/429 API
// response or a network-level failure. Everything else (4xx, malformed
// request) is treated as permanent.
func isRetryableErr(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func classifyRetryable(err error) error {
	if isRetryableErr(err) {
		return &RetryableError{Err: err}
	}
	return err
}

// IsRetryable reports whether err was classified transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
