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
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubechat/tubechat/internal/classify"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/generate"
)

type fakeClassifier struct {
	result classify.Result
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, userID, query string, history []classify.HistoryEntry) (classify.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeGrader struct {
	out   []domain.GradedChunk
	calls int
}

func (f *fakeGrader) Grade(ctx context.Context, userID, query string, chunks []domain.RetrievedChunk) []domain.GradedChunk {
	f.calls++
	return f.out
}

type fakeGenerator struct {
	out        generate.Output
	err        error
	gotIntent  domain.Intent
	gotChunks  []domain.GradedChunk
}

func (f *fakeGenerator) Generate(ctx context.Context, intent domain.Intent, in generate.Input) (generate.Output, error) {
	f.gotIntent = intent
	f.gotChunks = in.GradedChunks
	return f.out, f.err
}

func newState() State {
	return State{
		UserID:         uuid.New(),
		ConversationID: uuid.New(),
		UserQuery:      "hello there",
	}
}

func TestRun_ChitchatSkipsRetrievalAndGrading(t *testing.T) {
	classifier := &fakeClassifier{result: classify.Result{Intent: domain.IntentChitchat}}
	grader := &fakeGrader{}
	generator := &fakeGenerator{out: generate.Output{Response: "hi"}}

	retrieveCalled := false
	retrieve := func(ctx context.Context, s State) []domain.RetrievedChunk {
		retrieveCalled = true
		return nil
	}

	exec := New(classifier, retrieve, grader, generator, nil)

	var stages []Stage
	out, err := exec.Run(context.Background(), newState(), func(st Stage) { stages = append(stages, st) })

	require.NoError(t, err)
	assert.False(t, retrieveCalled)
	assert.Equal(t, 0, grader.calls)
	assert.Equal(t, "hi", out.Response)
	assert.Equal(t, []Stage{StageRouting, StageGenerating}, stages)
}

func TestRun_QARoutesThroughRetrieveAndGrade(t *testing.T) {
	classifier := &fakeClassifier{result: classify.Result{Intent: domain.IntentQA}}
	graded := []domain.GradedChunk{{RetrievedChunk: domain.RetrievedChunk{ChunkText: "x"}, Relevant: true}}
	grader := &fakeGrader{out: graded}
	generator := &fakeGenerator{out: generate.Output{Response: "answer"}}

	retrieveCalled := false
	retrieve := func(ctx context.Context, s State) []domain.RetrievedChunk {
		retrieveCalled = true
		return []domain.RetrievedChunk{{ChunkText: "x"}}
	}

	exec := New(classifier, retrieve, grader, generator, nil)

	var stages []Stage
	out, err := exec.Run(context.Background(), newState(), func(st Stage) { stages = append(stages, st) })

	require.NoError(t, err)
	assert.True(t, retrieveCalled)
	assert.Equal(t, 1, grader.calls)
	assert.Equal(t, graded, generator.gotChunks)
	assert.Equal(t, domain.IntentQA, generator.gotIntent)
	assert.Equal(t, []Stage{StageRouting, StageRetrieving, StageGrading, StageGenerating}, stages)
	assert.Equal(t, "answer", out.Response)
}

func TestRun_VideoLoadSkipsRetrieveAndGrade(t *testing.T) {
	classifier := &fakeClassifier{result: classify.Result{Intent: domain.IntentVideoLoad}}
	grader := &fakeGrader{}
	generator := &fakeGenerator{out: generate.Output{Response: "added"}}

	retrieveCalled := false
	retrieve := func(ctx context.Context, s State) []domain.RetrievedChunk {
		retrieveCalled = true
		return nil
	}

	exec := New(classifier, retrieve, grader, generator, nil)

	st := newState()
	st.UserQuery = "please load https://youtu.be/dQw4w9WgXcQ"

	out, err := exec.Run(context.Background(), st, func(Stage) {})

	require.NoError(t, err)
	assert.False(t, retrieveCalled)
	assert.Equal(t, 0, grader.calls)
	assert.Equal(t, domain.IntentVideoLoad, generator.gotIntent)
	assert.Equal(t, "added", out.Response)
}

func TestRun_MetadataIntentsPopulateVideoListings(t *testing.T) {
	intents := []domain.Intent{
		domain.IntentMetadata,
		domain.IntentMetadataSearch,
		domain.IntentMetadataSearchAndSummarize,
	}
	for _, intent := range intents {
		t.Run(string(intent), func(t *testing.T) {
			classifier := &fakeClassifier{result: classify.Result{Intent: intent}}
			grader := &fakeGrader{}
			generator := &fakeGenerator{out: generate.Output{Response: "here are your videos"}}

			want := []generate.VideoListing{{VideoID: "abc123", Title: "FastAPI Crash Course"}}
			listings := func(ctx context.Context, s State) []generate.VideoListing {
				assert.Equal(t, intent, s.Intent)
				return want
			}

			exec := New(classifier, nil, grader, generator, listings)
			out, err := exec.Run(context.Background(), newState(), func(Stage) {})

			require.NoError(t, err)
			assert.Equal(t, "here are your videos", out.Response)
		})
	}
}

func TestRun_NonMetadataIntentLeavesVideoListingsEmpty(t *testing.T) {
	classifier := &fakeClassifier{result: classify.Result{Intent: domain.IntentChitchat}}
	generator := &fakeGenerator{out: generate.Output{Response: "hi"}}

	listingsCalled := false
	listings := func(ctx context.Context, s State) []generate.VideoListing {
		listingsCalled = true
		return nil
	}

	exec := New(classifier, nil, &fakeGrader{}, generator, listings)
	_, err := exec.Run(context.Background(), newState(), func(Stage) {})

	require.NoError(t, err)
	assert.False(t, listingsCalled)
}

func TestRun_ClassifyFailureWrapsNodeError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("llm down")}
	grader := &fakeGrader{}
	generator := &fakeGenerator{}

	exec := New(classifier, nil, grader, generator, nil)

	_, err := exec.Run(context.Background(), newState(), func(Stage) {})

	require.Error(t, err)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "classify", nodeErr.NodeName)
	assert.GreaterOrEqual(t, classifier.calls, 1)
}

func TestRun_CanceledBeforeStartYieldsNoTerminalState(t *testing.T) {
	classifier := &fakeClassifier{result: classify.Result{Intent: domain.IntentChitchat}}
	generator := &fakeGenerator{out: generate.Output{Response: "hi"}}

	exec := New(classifier, nil, &fakeGrader{}, generator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, newState(), func(Stage) {})

	require.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, 0, classifier.calls)
}

func TestRun_CanceledBetweenRetrieveAndGradeSkipsGrading(t *testing.T) {
	classifier := &fakeClassifier{result: classify.Result{Intent: domain.IntentQA}}
	grader := &fakeGrader{}
	generator := &fakeGenerator{}

	ctx, cancel := context.WithCancel(context.Background())
	retrieve := func(ctx context.Context, s State) []domain.RetrievedChunk {
		cancel() // simulate cancellation landing while retrieval was in flight
		return []domain.RetrievedChunk{{ChunkText: "x"}}
	}

	exec := New(classifier, retrieve, grader, generator, nil)

	_, err := exec.Run(ctx, newState(), func(Stage) {})

	require.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, 0, grader.calls)
}
