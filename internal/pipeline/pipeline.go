// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"regexp"

	"github.com/tubechat/tubechat/internal/classify"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/generate"
	"github.com/tubechat/tubechat/internal/llm"
	"github.com/tubechat/tubechat/internal/retry"
)

// Stage names a pipeline node for progress emission (spec §4.1/§4.8).
type Stage string

const (
	StageRouting    Stage = "routing"
	StageRetrieving Stage = "retrieving"
	StageGrading    Stage = "grading"
	StageGenerating Stage = "generating"
)

// ProgressFunc is the callback the gateway supplies so nodes never reach
// into the connection registry directly (spec §9). A node blocks only on
// its own invocation of progress; the gateway's implementation is
// responsible for not blocking the turn on a slow or closed connection.
type ProgressFunc func(stage Stage)

// Classifier is the subset of classify.Classifier the pipeline depends on.
type Classifier interface {
	Classify(ctx context.Context, userID string, query string, history []classify.HistoryEntry) (classify.Result, error)
}

// RetrieveFunc performs one retrieval already bound to its collection and
// tenant filter, keeping the pipeline independent of vectorstore/retrieval
// package types.
type RetrieveFunc func(ctx context.Context, s State) []domain.RetrievedChunk

// ListingsFunc builds the video-library listing a metadata-family intent's
// prompt is built from (spec §4.7's metadata/metadata_search templates).
type ListingsFunc func(ctx context.Context, s State) []generate.VideoListing

// Grader is the subset of grade.Grader the pipeline depends on.
type Grader interface {
	Grade(ctx context.Context, userID, query string, chunks []domain.RetrievedChunk) []domain.GradedChunk
}

// Generator is the subset of generate.Generator the pipeline depends on.
type Generator interface {
	Generate(ctx context.Context, intent domain.Intent, in generate.Input) (generate.Output, error)
}

// Executor runs one turn through classify → maybe retrieve → maybe grade
// → generate, per the conditional edges in spec §4.8.
type Executor struct {
	classifier  Classifier
	retrieve    RetrieveFunc
	grader      Grader
	generator   Generator
	listings    ListingsFunc
	retryPolicy retry.Policy
}

// New builds an Executor over the four pipeline stages. retrieve may be nil
// only when the caller guarantees no routed intent will ever require
// retrieval (tests); production wiring always supplies it. listings may be
// nil when the caller guarantees no routed intent is in the metadata family
// (tests); production wiring always supplies it.
func New(classifier Classifier, retrieve RetrieveFunc, grader Grader, generator Generator, listings ListingsFunc) *Executor {
	policy := retry.Default()
	// classify and generate ultimately call through internal/llm, which
	// wraps transient (5xx/429/network) errors as *llm.RetryableError;
	// anything else (validation, bad request) fails the node immediately
	// instead of burning through MaxAttempts (spec §7: fail fast).
	policy.Retryable = llm.IsRetryable
	return &Executor{
		classifier:  classifier,
		retrieve:    retrieve,
		grader:      grader,
		generator:   generator,
		listings:    listings,
		retryPolicy: policy,
	}
}

// Run executes one turn. progress is invoked once per node entered (spec
// §4.8). Cancellation is checked between nodes only — an in-flight external
// call may run to completion, but its result is then discarded.
func (e *Executor) Run(ctx context.Context, s State, progress ProgressFunc) (State, error) {
	if err := checkCanceled(ctx); err != nil {
		return s, err
	}
	progress(StageRouting)

	history := make([]classify.HistoryEntry, len(s.ConversationHistory))
	for i, h := range s.ConversationHistory {
		history[i] = classify.HistoryEntry{Role: h.Role, Content: h.Content}
	}

	var classifyResult classify.Result
	err := retry.Do(ctx, e.retryPolicy, func(ctx context.Context) error {
		var err error
		classifyResult, err = e.classifier.Classify(ctx, s.UserID.String(), s.UserQuery, history)
		return err
	})
	if err != nil {
		return s, NewNodeError("classify", err)
	}
	s.Intent = classifyResult.Intent

	if err := checkCanceled(ctx); err != nil {
		return s, err
	}

	if s.Intent.NeedsVideoListings() && e.listings != nil {
		s.VideoListings = e.listings(ctx, s)
	}

	if err := checkCanceled(ctx); err != nil {
		return s, err
	}

	switch {
	case s.Intent.IsVideoLoad():
		// video_load_path: the generator owns the ingestion hand-off and
		// relays its own progress; retrieval and grading are skipped.
		return e.generateStage(ctx, s, progress)

	case s.Intent.RequiresRetrieval():
		progress(StageRetrieving)
		if e.retrieve != nil {
			s.RetrievedChunks = e.retrieve(ctx, s)
		}

		if err := checkCanceled(ctx); err != nil {
			return s, err
		}

		progress(StageGrading)
		s.GradedChunks = e.grader.Grade(ctx, s.UserID.String(), s.UserQuery, s.RetrievedChunks)

		if err := checkCanceled(ctx); err != nil {
			return s, err
		}
		return e.generateStage(ctx, s, progress)

	default:
		// chitchat, metadata: skip retrieval entirely (spec §4.8).
		return e.generateStage(ctx, s, progress)
	}
}

func (e *Executor) generateStage(ctx context.Context, s State, progress ProgressFunc) (State, error) {
	progress(StageGenerating)

	var out generate.Output
	err := retry.Do(ctx, e.retryPolicy, func(ctx context.Context) error {
		var err error
		out, err = e.generator.Generate(ctx, s.Intent, generate.Input{
			UserID:        s.UserID,
			Query:         s.UserQuery,
			History:       toGenerateHistory(s.ConversationHistory),
			GradedChunks:  s.GradedChunks,
			VideoListings: s.VideoListings,
			YoutubeURL:    extractYoutubeURL(s.UserQuery),
		})
		return err
	})
	if err != nil {
		return s, NewNodeError("generate", err)
	}

	s.Response = out.Response
	s.Metadata = out.Metadata
	return s, nil
}

func toGenerateHistory(h []HistoryEntry) []generate.HistoryEntry {
	out := make([]generate.HistoryEntry, len(h))
	for i, e := range h {
		out[i] = generate.HistoryEntry{Role: e.Role, Content: e.Content}
	}
	return out
}

func checkCanceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCanceled
	default:
		return nil
	}
}

var youtubeURLPattern = regexp.MustCompile(`(?i)(youtube\.com/watch\?v=|youtu\.be/)[A-Za-z0-9_-]{11,}`)

// extractYoutubeURL pulls the URL substring a video_load turn's query
// carries; the classifier has already confirmed one is present.
func extractYoutubeURL(query string) string {
	return youtubeURLPattern.FindString(query)
}
