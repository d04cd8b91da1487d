// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline is the directed-graph executor from spec §4.8: classify
// → [retrieve | video_load | generate] conditional on intent, then
// retrieve → grade → generate. State is a plain record extended by each
// node, never a shared mutable object or dynamic attribute bag (spec §9).
package pipeline

import (
	"github.com/google/uuid"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/generate"
)

// State threads through the pipeline. Nodes extend it; they do not mutate
// a predecessor's already-set fields.
type State struct {
	UserID             uuid.UUID
	ConversationID     uuid.UUID
	ChannelID          *uuid.UUID
	// ChannelCollectionName is the vector-store collection to search when
	// ChannelID is set; resolved by the caller (internal/gateway) from the
	// channel row before Run is invoked, keeping row-store lookups out of
	// the pipeline itself.
	ChannelCollectionName string
	UserQuery          string
	ConversationHistory []HistoryEntry

	Intent          domain.Intent
	RetrievedChunks []domain.RetrievedChunk
	GradedChunks    []domain.GradedChunk
	VideoListings   []generate.VideoListing

	Response string
	Metadata domain.MessageMetadata
}

// HistoryEntry is one prior turn's {role, content} projection.
type HistoryEntry struct {
	Role    domain.Role
	Content string
}
