// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"strings"
	"time"

	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubechat/tubechat/internal/convo"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/pipeline"
	"github.com/tubechat/tubechat/internal/ratelimit"
	"github.com/tubechat/tubechat/internal/store"
)

type fakePersonalStore struct {
	conversations map[uuid.UUID]domain.Conversation
}

func newFakePersonalStore() *fakePersonalStore {
	return &fakePersonalStore{conversations: map[uuid.UUID]domain.Conversation{}}
}

func (f *fakePersonalStore) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (domain.Conversation, error) {
	c := domain.Conversation{ID: uuid.New(), UserID: userID, Title: title}
	f.conversations[c.ID] = c
	return c, nil
}

func (f *fakePersonalStore) GetConversation(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return domain.Conversation{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakePersonalStore) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Conversation, int, error) {
	return nil, 0, nil
}
func (f *fakePersonalStore) UpdateConversationTitle(ctx context.Context, id, userID uuid.UUID, title string) error {
	return nil
}
func (f *fakePersonalStore) DeleteConversation(ctx context.Context, id, userID uuid.UUID) error {
	return nil
}
func (f *fakePersonalStore) AllMessages(ctx context.Context, column string, id uuid.UUID) ([]domain.Message, error) {
	return nil, nil
}

type fakeTurnStore struct {
	*fakePersonalStore
	channels      map[uuid.UUID]domain.Channel
	conversations map[uuid.UUID]domain.ChannelConversation
	committed     []store.TurnCommit
	commitErr     error
}

func newFakeTurnStore() *fakeTurnStore {
	return &fakeTurnStore{
		fakePersonalStore: newFakePersonalStore(),
		channels:          map[uuid.UUID]domain.Channel{},
		conversations:     map[uuid.UUID]domain.ChannelConversation{},
	}
}

func (f *fakeTurnStore) GetActiveChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error) {
	c, ok := f.channels[id]
	if !ok || c.Deleted() {
		return domain.Channel{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeTurnStore) GetOrCreateChannelConversation(ctx context.Context, userID, channelID uuid.UUID) (domain.ChannelConversation, error) {
	for _, cc := range f.conversations {
		if cc.UserID == userID && cc.ChannelID == channelID {
			return cc, nil
		}
	}
	cc := domain.ChannelConversation{ID: uuid.New(), UserID: userID, ChannelID: channelID}
	f.conversations[cc.ID] = cc
	return cc, nil
}

func (f *fakeTurnStore) GetChannelConversation(ctx context.Context, id uuid.UUID) (domain.ChannelConversation, error) {
	cc, ok := f.conversations[id]
	if !ok {
		return domain.ChannelConversation{}, store.ErrNotFound
	}
	return cc, nil
}

func (f *fakeTurnStore) ListChannelConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.ChannelConversationListItem, int, error) {
	return nil, 0, nil
}
func (f *fakeTurnStore) DeleteChannelConversation(ctx context.Context, id, userID uuid.UUID) error {
	return nil
}

func (f *fakeTurnStore) LoadHistory(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.HistoryEntry, error) {
	return nil, nil
}
func (f *fakeTurnStore) LoadChannelHistory(ctx context.Context, channelConversationID uuid.UUID, limit int) ([]store.HistoryEntry, error) {
	return nil, nil
}
func (f *fakeTurnStore) CommitTurn(ctx context.Context, t store.TurnCommit) (domain.Message, domain.Message, error) {
	if f.commitErr != nil {
		return domain.Message{}, domain.Message{}, f.commitErr
	}
	f.committed = append(f.committed, t)
	return domain.Message{}, domain.Message{}, nil
}

type fakePipeline struct {
	out   pipeline.State
	err   error
	stages []pipeline.Stage
}

func (f *fakePipeline) Run(ctx context.Context, s pipeline.State, progress pipeline.ProgressFunc) (pipeline.State, error) {
	progress(pipeline.StageRouting)
	if f.err != nil {
		return pipeline.State{}, f.err
	}
	return f.out, nil
}

func newTestProcessor(t *testing.T, ts *fakeTurnStore, pr *fakePipeline, rate int) *Processor {
	t.Helper()
	limiter := ratelimit.New(rate, time.Minute)
	personal := convo.NewPersonal(ts.fakePersonalStore)
	channel := convo.NewChannel(ts)
	return NewProcessor(limiter, personal, channel, ts, pr, 10)
}

func TestExecute_RateLimitDeniesEleventhSubmission(t *testing.T) {
	ts := newFakeTurnStore()
	pipe := &fakePipeline{out: pipeline.State{Response: "hi"}}
	proc := newTestProcessor(t, ts, pipe, 10)
	userID := uuid.New()

	var frames []OutboundFrame
	emit := func(f OutboundFrame) { frames = append(frames, f) }

	for i := 0; i < 10; i++ {
		proc.Execute(context.Background(), userID, Scope{}, InboundFrame{Content: "hello"}, emit)
	}
	frames = nil
	proc.Execute(context.Background(), userID, Scope{}, InboundFrame{Content: "one too many"}, emit)

	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Type)
	assert.Equal(t, ErrRateLimit, frames[0].Code)
	assert.Empty(t, ts.committed)
}

func TestExecute_RejectsOutOfRangeContent(t *testing.T) {
	ts := newFakeTurnStore()
	pipe := &fakePipeline{out: pipeline.State{Response: "hi"}}
	proc := newTestProcessor(t, ts, pipe, 10)

	var frames []OutboundFrame
	emit := func(f OutboundFrame) { frames = append(frames, f) }

	proc.Execute(context.Background(), uuid.New(), Scope{}, InboundFrame{Content: ""}, emit)
	require.Len(t, frames, 1)
	assert.Equal(t, ErrInvalidInput, frames[0].Code)

	frames = nil
	proc.Execute(context.Background(), uuid.New(), Scope{}, InboundFrame{Content: strings.Repeat("x", 2001)}, emit)
	require.Len(t, frames, 1)
	assert.Equal(t, ErrInvalidInput, frames[0].Code)
}

func TestExecute_PersonalHappyPathCommitsAndEmitsMessage(t *testing.T) {
	ts := newFakeTurnStore()
	pipe := &fakePipeline{out: pipeline.State{Response: "here is your answer"}}
	proc := newTestProcessor(t, ts, pipe, 10)
	userID := uuid.New()

	var frames []OutboundFrame
	emit := func(f OutboundFrame) { frames = append(frames, f) }

	proc.Execute(context.Background(), userID, Scope{}, InboundFrame{ConversationID: "new", Content: "hello there"}, emit)

	require.Len(t, ts.committed, 1)
	assert.Equal(t, "hello there", ts.committed[0].UserContent)
	assert.Equal(t, "here is your answer", ts.committed[0].AssistantContent)

	last := frames[len(frames)-1]
	assert.Equal(t, "message", last.Type)
	assert.Equal(t, "here is your answer", last.Content)
}

func TestExecute_OwnershipMismatchIsForbidden(t *testing.T) {
	ts := newFakeTurnStore()
	pipe := &fakePipeline{out: pipeline.State{Response: "hi"}}
	proc := newTestProcessor(t, ts, pipe, 10)

	owner := uuid.New()
	conv, err := ts.fakePersonalStore.CreateConversation(context.Background(), owner, "mine")
	require.NoError(t, err)

	var frames []OutboundFrame
	emit := func(f OutboundFrame) { frames = append(frames, f) }

	proc.Execute(context.Background(), uuid.New(), Scope{}, InboundFrame{ConversationID: conv.ID.String(), Content: "hello"}, emit)

	require.Len(t, frames, 1)
	assert.Equal(t, ErrForbidden, frames[0].Code)
	assert.Empty(t, ts.committed)
}

func TestExecute_ChannelScopeRejectsDeletedChannel(t *testing.T) {
	ts := newFakeTurnStore()
	channelID := uuid.New()
	deletedAt := time.Now()
	ts.channels[channelID] = domain.Channel{ID: channelID, DeletedAt: &deletedAt}
	pipe := &fakePipeline{out: pipeline.State{Response: "hi"}}
	proc := newTestProcessor(t, ts, pipe, 10)

	var frames []OutboundFrame
	emit := func(f OutboundFrame) { frames = append(frames, f) }

	proc.Execute(context.Background(), uuid.New(), Scope{ChannelID: &channelID}, InboundFrame{Content: "hello"}, emit)

	require.Len(t, frames, 1)
	assert.Equal(t, ErrForbidden, frames[0].Code)
	assert.Empty(t, ts.committed)
}

func TestExecute_CanceledPipelineEmitsNoFrameAndPersistsNothing(t *testing.T) {
	ts := newFakeTurnStore()
	pipe := &fakePipeline{err: pipeline.ErrCanceled}
	proc := newTestProcessor(t, ts, pipe, 10)

	var frames []OutboundFrame
	emit := func(f OutboundFrame) { frames = append(frames, f) }

	proc.Execute(context.Background(), uuid.New(), Scope{}, InboundFrame{ConversationID: "new", Content: "hello"}, emit)

	for _, f := range frames {
		assert.NotEqual(t, "message", f.Type)
		assert.NotEqual(t, "error", f.Type)
	}
	assert.Empty(t, ts.committed)
}
