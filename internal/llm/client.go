// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm defines the chat/structured-output contract the classifier,
// grader, and generator consume, adapted from the teacher's
// services/llm/client.go — without ChatStream, since token-level streaming
// is an explicit non-goal (spec §1), and with a new Structured method for
// JSON-schema-constrained calls.
package llm

import "context"

// GenerationParams configures one chat or structured call.
type GenerationParams struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	// Metadata is attached to the provider call for correlation/telemetry,
	// e.g. {"user_id": ..., "tags": [...]}.
	Metadata map[string]any
}

// ChatResult is one chat completion and its token accounting.
type ChatResult struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// Client is the external LLM provider contract: chat(prompt, system?,
// max_tokens, temperature, metadata) and structured(prompt, schema,
// metadata), per spec §6.
type Client interface {
	// Chat issues a free-form completion.
	Chat(ctx context.Context, prompt string, params GenerationParams) (ChatResult, error)

	// Structured issues a completion constrained to schema (a JSON Schema
	// produced by invopop/jsonschema) and unmarshals the result into out,
	// which must be a pointer to the schema's Go type.
	Structured(ctx context.Context, prompt string, schema []byte, out any, params GenerationParams) error
}
