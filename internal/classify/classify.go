// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify implements the single-stage intent classifier from
// spec §4.4: prompt → structured {intent, confidence, reasoning}, retried
// up to twice on an out-of-set or malformed response before degrading to
// chitchat.
package classify

import (
	"context"
	"regexp"

	"github.com/invopop/jsonschema"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/llm"
)

// maxRetries bounds the classifier's own retry loop on out-of-set/malformed
// responses (spec §4.4: "retries up to 2 times; persistent failure
// degrades to chitchat with confidence=0"). This is distinct from the
// pipeline node's transient-error retry policy in internal/retry — this
// loop retries on a *parse/validity* predicate, not a transport error.
const maxRetries = 2

// youtubeURLPattern matches the two URL shapes spec §4.4 calls out:
// youtube.com/watch?v=<11+ alphanumeric> and youtu.be/<11+ alphanumeric>.
var youtubeURLPattern = regexp.MustCompile(`(?i)(youtube\.com/watch\?v=|youtu\.be/)[A-Za-z0-9_-]{11,}`)

// Result is the classifier's structured output.
type Result struct {
	Intent     domain.Intent
	Confidence float64
	Reasoning  string
}

// rawOutput is the shape the LLM is constrained to produce; Intent is
// validated and parsed into domain.Intent only after the call returns,
// per the "sum type over intent" design note (spec §9).
type rawOutput struct {
	Intent     string  `json:"intent" jsonschema:"enum=chitchat,enum=qa,enum=linkedin,enum=metadata,enum=metadata_search,enum=metadata_search_and_summarize,enum=video_load"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

var schema []byte

func init() {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	s := reflector.Reflect(&rawOutput{})
	b, err := s.MarshalJSON()
	if err != nil {
		panic("classify: reflect output schema: " + err.Error())
	}
	schema = b
}

// HistoryEntry is one prior turn fed to the classifier for pronoun/
// follow-up resolution.
type HistoryEntry struct {
	Role    domain.Role
	Content string
}

// Classifier routes one user query to an Intent via a structured LLM call.
type Classifier struct {
	client llm.Client
}

// New builds a Classifier over client.
func New(client llm.Client) *Classifier {
	return &Classifier{client: client}
}

// Classify determines the intent for query given conversationHistory. A
// bare YouTube URL short-circuits straight to video_load without an LLM
// call — the regex match is unambiguous and cheaper than a round trip.
func (c *Classifier) Classify(ctx context.Context, userID string, query string, history []HistoryEntry) (Result, error) {
	if youtubeURLPattern.MatchString(query) {
		return Result{Intent: domain.IntentVideoLoad, Confidence: 1, Reasoning: "youtube url detected"}, nil
	}

	prompt := buildPrompt(query, history)
	params := llm.GenerationParams{
		SystemPrompt: systemPrompt,
		MaxTokens:    300,
		Temperature:  0.2, // spec §4.4: temperature ≤ 0.3
		Metadata:     map[string]any{"user_id": userID, "tags": []string{"classify"}},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		var out rawOutput
		if err := c.client.Structured(ctx, prompt, schema, &out, params); err != nil {
			lastErr = err
			continue
		}
		intent, err := domain.ParseIntent(out.Intent)
		if err != nil {
			lastErr = err
			continue
		}
		return Result{Intent: intent, Confidence: out.Confidence, Reasoning: out.Reasoning}, nil
	}

	// Persistent failure degrades to chitchat with confidence=0 rather
	// than propagating lastErr — an unclassifiable turn must still get a
	// reply (spec §4.4).
	_ = lastErr
	return Result{Intent: domain.IntentChitchat, Confidence: 0, Reasoning: "classification failed, degraded to chitchat"}, nil
}

const systemPrompt = `You classify a user's chat message into exactly one intent.

Discrimination rules, in priority order:
1. If the message mentions creating a LinkedIn post anywhere, the intent is "linkedin", overriding all other signals.
2. If the message contains a YouTube URL, the intent is "video_load".
3. If the message names the EXACT full title of a known video, the intent is "metadata_search_and_summarize" (prefer the search path over conversational recall to avoid returning the wrong video).
4. If the message names a partial title or topic together with a summarize/explain verb, the intent is "metadata_search_and_summarize".
5. If the message asks to list all videos, the intent is "metadata".
6. If the message filters by topic without asking to summarize, the intent is "metadata_search".
7. If the message is a topical question, the intent is "qa". Pronouns and follow-ups ("it", "that", "the first one") are "qa" only when the conversation history provides a clear antecedent.
8. Otherwise, the intent is "chitchat".

Respond with the single best-matching intent, a confidence in [0,1], and a one-sentence reasoning.`

func buildPrompt(query string, history []HistoryEntry) string {
	prompt := "Conversation history:\n"
	if len(history) == 0 {
		prompt += "(none)\n"
	}
	for _, h := range history {
		prompt += string(h.Role) + ": " + h.Content + "\n"
	}
	prompt += "\nUser message:\n" + query
	return prompt
}
