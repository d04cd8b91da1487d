// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generate implements the intent-dispatched answer synthesis stage
// from spec §4.7: one prompt template, context shape, temperature, and
// max-output-tokens bound per intent, plus the video_load side-effect path.
package generate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/llm"
)

// template bundles one intent's generation parameters (spec §4.7 table).
type template struct {
	name        string
	temperature float32
	maxTokens   int
}

var templates = map[domain.Intent]template{
	domain.IntentChitchat:                   {name: "chitchat", temperature: 0.8, maxTokens: 500},
	domain.IntentQA:                         {name: "qa_rag", temperature: 0.7, maxTokens: 2000},
	domain.IntentLinkedIn:                   {name: "linkedin", temperature: 0.7, maxTokens: 2000},
	domain.IntentMetadata:                   {name: "metadata_list", temperature: 0.3, maxTokens: 1500},
	domain.IntentMetadataSearch:             {name: "metadata_search", temperature: 0.3, maxTokens: 1500},
	domain.IntentMetadataSearchAndSummarize: {name: "metadata_search", temperature: 0.3, maxTokens: 2000},
}

// HistoryEntry is one prior turn fed into the prompt.
type HistoryEntry struct {
	Role    domain.Role
	Content string
}

// VideoListing is one row from the user's library, used by the metadata
// templates.
type VideoListing struct {
	VideoID string
	Title   string
	Score   float32 // 0 for plain listings, set for metadata_search hits
}

// Input bundles everything a single generate call might need; unused
// fields for a given intent are simply ignored by that template.
type Input struct {
	UserID          uuid.UUID
	Query           string
	History         []HistoryEntry
	GradedChunks    []domain.GradedChunk
	VideoListings   []VideoListing
	YoutubeURL      string // set only for video_load
}

// Output is the generator's result: the reply text plus the bookkeeping
// metadata persisted alongside it (spec §4.7).
type Output struct {
	Response string
	Metadata domain.MessageMetadata
}

// Generator synthesizes a reply for a classified intent.
type Generator struct {
	client   llm.Client
	ingestor VideoIngestor
	// onIngestEvent relays ingestion progress as it is observed. It is set
	// only through OnIngestEvent; cmd/server and the gateway do not call
	// that, so no video_load_status frame reaches a client.
	onIngestEvent func(IngestEvent)
}

// New builds a Generator. ingestor may be generate.NoopVideoIngestor{} when
// no real ingestion backend is wired.
func New(client llm.Client, ingestor VideoIngestor) *Generator {
	return &Generator{client: client, ingestor: ingestor}
}

// OnIngestEvent registers a callback invoked for every video_load progress
// event. Passing nil disables relaying.
func (g *Generator) OnIngestEvent(fn func(IngestEvent)) { g.onIngestEvent = fn }

// Generate dispatches to the intent-appropriate template, or to the
// video_load side-effect path.
func (g *Generator) Generate(ctx context.Context, intent domain.Intent, in Input) (Output, error) {
	if intent.IsVideoLoad() {
		return g.generateVideoLoad(ctx, in)
	}

	tmpl, ok := templates[intent]
	if !ok {
		return Output{}, fmt.Errorf("generate: no template for intent %q", intent)
	}

	prompt := buildPrompt(intent, in)
	result, err := g.client.Chat(ctx, prompt, llm.GenerationParams{
		SystemPrompt: systemPromptFor(intent),
		MaxTokens:    tmpl.maxTokens,
		Temperature:  tmpl.temperature,
		Metadata:     map[string]any{"user_id": in.UserID.String(), "tags": []string{"generate", tmpl.name}},
	})
	if err != nil {
		return Output{}, fmt.Errorf("generate: %s: %w", tmpl.name, err)
	}

	sourceIDs := make([]uuid.UUID, 0, len(in.GradedChunks))
	for _, c := range in.GradedChunks {
		sourceIDs = append(sourceIDs, c.ChunkID)
	}

	return Output{
		Response: result.Text,
		Metadata: domain.MessageMetadata{
			Intent:         intent,
			ChunksUsed:     len(in.GradedChunks),
			SourceChunkIDs: sourceIDs,
		},
	}, nil
}

// generateVideoLoad hands off to the ingestion collaborator instead of
// producing a RAG reply. No context is consumed; the persisted reply is a
// short templated acknowledgment (spec §4.7).
func (g *Generator) generateVideoLoad(ctx context.Context, in Input) (Output, error) {
	events, err := g.ingestor.LoadVideo(ctx, in.UserID.String(), in.YoutubeURL)
	if err != nil {
		return Output{}, fmt.Errorf("generate: start video load: %w", err)
	}

	var last IngestEvent
	for ev := range events {
		last = ev
		if g.onIngestEvent != nil {
			g.onIngestEvent(ev)
		}
	}

	if last.Status == IngestFailed {
		return Output{
			Response: fmt.Sprintf("I couldn't add that video: %s", last.Error),
			Metadata: domain.MessageMetadata{Intent: domain.IntentVideoLoad, ChunksUsed: 0},
		}, nil
	}

	title := last.VideoTitle
	if title == "" {
		title = in.YoutubeURL
	}
	return Output{
		Response: fmt.Sprintf("Added video %q to your library.", title),
		Metadata: domain.MessageMetadata{Intent: domain.IntentVideoLoad, ChunksUsed: 0},
	}, nil
}

func systemPromptFor(intent domain.Intent) string {
	switch intent {
	case domain.IntentChitchat:
		return "You are a friendly assistant for a video-transcript chat app. Keep replies brief and conversational."
	case domain.IntentQA, domain.IntentLinkedIn:
		return "Answer the user's question using only the provided transcript excerpts. If no excerpt is relevant, say so explicitly rather than guessing."
	case domain.IntentMetadata, domain.IntentMetadataSearch, domain.IntentMetadataSearchAndSummarize:
		return "You are listing or summarizing videos from the user's library using only the provided listing data."
	default:
		return ""
	}
}

func buildPrompt(intent domain.Intent, in Input) string {
	var b string
	switch intent {
	case domain.IntentChitchat:
		b = historyBlock(in.History) + "\nUser: " + in.Query
	case domain.IntentQA, domain.IntentLinkedIn:
		b = historyBlock(in.History) + "\n" + chunksBlock(in.GradedChunks) + "\nUser: " + in.Query
	case domain.IntentMetadata, domain.IntentMetadataSearch, domain.IntentMetadataSearchAndSummarize:
		b = listingsBlock(in.VideoListings) + "\nUser: " + in.Query
	default:
		b = in.Query
	}
	return b
}

func historyBlock(history []HistoryEntry) string {
	if len(history) == 0 {
		return "Conversation history: (none)"
	}
	out := "Conversation history:\n"
	for _, h := range history {
		out += string(h.Role) + ": " + h.Content + "\n"
	}
	return out
}

func chunksBlock(chunks []domain.GradedChunk) string {
	if len(chunks) == 0 {
		return "Transcript excerpts: (none — no relevant context was found; say so in your answer)"
	}
	out := "Transcript excerpts:\n"
	for _, c := range chunks {
		out += fmt.Sprintf("- [%s#%d] %s\n", c.YoutubeVideoID, c.ChunkIndex, c.ChunkText)
	}
	return out
}

// SearchListings builds the VideoListing set a metadata-family intent's
// prompt consumes from a user's full video library. The plain "metadata"
// (list-all) intent returns every video unscored; the two search intents
// keep only videos whose title overlaps query and score them, applying the
// exact-title discrimination rule from spec §4.4 (a query containing a
// video's full title verbatim scores 1.0 and always survives).
func SearchListings(videos []domain.Transcript, intent domain.Intent, query string) []VideoListing {
	out := make([]VideoListing, 0, len(videos))
	if intent == domain.IntentMetadata {
		for _, v := range videos {
			out = append(out, VideoListing{VideoID: v.YoutubeVideoID, Title: v.Title})
		}
		return out
	}

	for _, v := range videos {
		score := titleMatchScore(v.Title, query)
		if score == 0 {
			continue
		}
		out = append(out, VideoListing{VideoID: v.YoutubeVideoID, Title: v.Title, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// titleMatchScore scores how well a video's title matches a free-form
// query: 1.0 when the query contains the title verbatim (exact-title
// discrimination, spec §4.4), otherwise the fraction of the title's words
// that also appear in the query, 0 when nothing overlaps.
func titleMatchScore(title, query string) float32 {
	titleLower := strings.ToLower(title)
	queryLower := strings.ToLower(query)
	if titleLower != "" && strings.Contains(queryLower, titleLower) {
		return 1.0
	}

	words := strings.Fields(titleLower)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if len(w) > 2 && strings.Contains(queryLower, w) {
			hits++
		}
	}
	return float32(hits) / float32(len(words))
}

func listingsBlock(listings []VideoListing) string {
	if len(listings) == 0 {
		return "Video listing: (empty)"
	}
	out := "Video listing:\n"
	for _, v := range listings {
		out += fmt.Sprintf("- %s (%s) score=%.3f\n", v.Title, v.VideoID, v.Score)
	}
	return out
}
