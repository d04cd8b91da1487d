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
	"errors"

	"github.com/google/uuid"

	"github.com/tubechat/tubechat/internal/convo"
	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/pipeline"
	"github.com/tubechat/tubechat/internal/ratelimit"
	"github.com/tubechat/tubechat/internal/store"
)

// Scope identifies a channel's binding, fixed for its lifetime at open()
// (spec §4.1: "personal" or "channel:<channel_id>"). A nil ChannelID means
// personal scope.
type Scope struct {
	ChannelID *uuid.UUID
}

// TurnStore is the subset of *store.Store the turn processor needs,
// narrowed for testability.
type TurnStore interface {
	LoadHistory(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.HistoryEntry, error)
	LoadChannelHistory(ctx context.Context, channelConversationID uuid.UUID, limit int) ([]store.HistoryEntry, error)
	CommitTurn(ctx context.Context, t store.TurnCommit) (domain.Message, domain.Message, error)
	GetActiveChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error)
}

// PipelineRunner is the subset of *pipeline.Executor the turn processor
// needs, narrowed for testability.
type PipelineRunner interface {
	Run(ctx context.Context, s pipeline.State, progress pipeline.ProgressFunc) (pipeline.State, error)
}

const (
	minContentLen = 1
	maxContentLen = 2000
)

// Processor implements the per-turn algorithm from spec §4.1 steps 1-7,
// independent of the transport that carries frames — a websocket
// connection supplies emit and invokes Execute once per inbound frame.
type Processor struct {
	limiter    *ratelimit.Limiter
	personal   *convo.Personal
	channel    *convo.Channel
	store      TurnStore
	pipeline   PipelineRunner
	contextMax int
}

// NewProcessor builds a Processor. contextMax bounds how many prior
// messages are loaded into pipeline history (spec §4.1 step 4, default 10).
func NewProcessor(limiter *ratelimit.Limiter, personal *convo.Personal, channel *convo.Channel, s TurnStore, p PipelineRunner, contextMax int) *Processor {
	return &Processor{limiter: limiter, personal: personal, channel: channel, store: s, pipeline: p, contextMax: contextMax}
}

// Execute runs one turn to completion, emitting status frames as the
// pipeline advances and exactly one terminal frame (message or error) via
// emit. It never returns an error to the caller: every failure mode is
// translated into a terminal error frame, per spec §4.1 step 7 ("persist
// nothing" on failure). The one exception is cancellation: when the pipeline
// returns pipeline.ErrCanceled, no terminal frame is emitted and nothing is
// persisted.
func (p *Processor) Execute(ctx context.Context, userID uuid.UUID, scope Scope, in InboundFrame, emit func(OutboundFrame)) {
	if !p.limiter.Allow(userID) {
		emit(ErrorFrame(ErrRateLimit, "too many submissions, slow down"))
		return
	}

	if len(in.Content) < minContentLen || len(in.Content) > maxContentLen {
		emit(ErrorFrame(ErrInvalidInput, "content must be between 1 and 2000 characters"))
		return
	}

	if scope.ChannelID != nil {
		p.executeChannel(ctx, userID, *scope.ChannelID, in, emit)
		return
	}
	p.executePersonal(ctx, userID, in, emit)
}

func (p *Processor) executePersonal(ctx context.Context, userID uuid.UUID, in InboundFrame, emit func(OutboundFrame)) {
	var id *uuid.UUID
	if in.ConversationID != "" && in.ConversationID != "new" {
		parsed, err := uuid.Parse(in.ConversationID)
		if err != nil {
			emit(ErrorFrame(ErrInvalidInput, "conversation_id is not a valid id"))
			return
		}
		id = &parsed
	}

	conv, err := p.personal.GetOrCreate(ctx, userID, id)
	if err != nil {
		emit(ErrorFrame(classifyError(err), "could not resolve conversation"))
		return
	}

	history, err := p.store.LoadHistory(ctx, conv.ID, p.contextMax)
	if err != nil {
		emit(ErrorFrame(ErrInternal, "could not load conversation history"))
		return
	}

	state := pipeline.State{
		UserID:              userID,
		ConversationID:      conv.ID,
		UserQuery:           in.Content,
		ConversationHistory: toPipelineHistory(history),
	}

	outState, ok := p.runPipeline(ctx, state, emit)
	if !ok {
		return
	}

	convID := conv.ID
	_, _, err = p.store.CommitTurn(ctx, store.TurnCommit{
		ConversationID:    &convID,
		UserContent:       in.Content,
		AssistantContent:  outState.Response,
		AssistantMetadata: outState.Metadata,
	})
	if err != nil {
		emit(ErrorFrame(ErrInternal, "could not persist turn"))
		return
	}

	emit(MessageFrame(conv.ID.String(), outState.Response, outState.Metadata))
}

func (p *Processor) executeChannel(ctx context.Context, userID, channelID uuid.UUID, in InboundFrame, emit func(OutboundFrame)) {
	ch, err := p.store.GetActiveChannel(ctx, channelID)
	if err != nil {
		emit(ErrorFrame(ErrForbidden, "channel does not exist or has been deleted"))
		return
	}

	cc, err := p.channel.GetOrCreate(ctx, userID, channelID)
	if err != nil {
		emit(ErrorFrame(classifyError(err), "could not resolve channel conversation"))
		return
	}

	history, err := p.store.LoadChannelHistory(ctx, cc.ID, p.contextMax)
	if err != nil {
		emit(ErrorFrame(ErrInternal, "could not load conversation history"))
		return
	}

	state := pipeline.State{
		UserID:                userID,
		ConversationID:        cc.ID,
		ChannelID:             &channelID,
		ChannelCollectionName: ch.QdrantCollectionName,
		UserQuery:             in.Content,
		ConversationHistory:   toPipelineHistory(history),
	}

	outState, ok := p.runPipeline(ctx, state, emit)
	if !ok {
		return
	}

	ccID := cc.ID
	_, _, err = p.store.CommitTurn(ctx, store.TurnCommit{
		ChannelConversationID: &ccID,
		UserContent:           in.Content,
		AssistantContent:      outState.Response,
		AssistantMetadata:     outState.Metadata,
	})
	if err != nil {
		emit(ErrorFrame(ErrInternal, "could not persist turn"))
		return
	}

	emit(MessageFrame(cc.ID.String(), outState.Response, outState.Metadata))
}

func (p *Processor) runPipeline(ctx context.Context, state pipeline.State, emit func(OutboundFrame)) (pipeline.State, bool) {
	progress := func(stage pipeline.Stage) { emit(StatusFrame(toStatusStep(stage))) }

	outState, err := p.pipeline.Run(ctx, state, progress)
	if err != nil {
		if errors.Is(err, pipeline.ErrCanceled) {
			// Channel is closing; no terminal frame is owed (spec §4.1
			// cancellation: partial work is discarded, nothing persisted).
			return pipeline.State{}, false
		}
		emit(ErrorFrame(classifyError(err), "could not generate a reply"))
		return pipeline.State{}, false
	}
	return outState, true
}

func toStatusStep(stage pipeline.Stage) StatusStep {
	switch stage {
	case pipeline.StageRouting:
		return StepRouting
	case pipeline.StageRetrieving:
		return StepRetrieving
	case pipeline.StageGrading:
		return StepGrading
	case pipeline.StageGenerating:
		return StepGenerating
	default:
		return StepGenerating
	}
}

func toPipelineHistory(h []store.HistoryEntry) []pipeline.HistoryEntry {
	out := make([]pipeline.HistoryEntry, len(h))
	for i, e := range h {
		out[i] = pipeline.HistoryEntry{Role: e.Role, Content: e.Content}
	}
	return out
}

// classifyError maps an internal error to the client-visible taxonomy,
// mirroring the teacher's IsRetrievalError/IsPolicyViolation helper
// pattern in services/chat_rag.go.
func classifyError(err error) ErrorCode {
	switch {
	case errors.Is(err, convo.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, convo.ErrInvalidTitle):
		return ErrInvalidInput
	default:
		return ErrInternal
	}
}
