// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role enumerates the speaker of a persisted message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// User is the identity that owns conversations, transcripts, and (if IsAdmin
// is set) channels. The core consumes only ID and IsAdmin; password
// hashing and token minting are external collaborators (spec §1).
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transcript is one fetched video, owned either by the user who ingested it
// personally or by the admin who added it to a channel.
type Transcript struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	YoutubeVideoID  string
	Title           string
	ChannelName     string
	Duration        time.Duration
	TranscriptText  string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// Chunk is a bounded, overlapping token-window slice of a transcript — the
// unit of retrieval. ChannelID is non-nil iff the chunk was added through a
// channel-video admin action, and iff its vector lives in a channel
// collection rather than the per-user global one.
type Chunk struct {
	ID           uuid.UUID
	TranscriptID uuid.UUID
	UserID       uuid.UUID
	ChannelID    *uuid.UUID
	ChunkIndex   int
	ChunkText    string
	TokenCount   int
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Channel is a named, admin-curated, shared corpus of videos with its own
// vector-store collection. Name and QdrantCollectionName are immutable for the
// channel's lifetime, including across soft-delete/reactivate cycles.
type Channel struct {
	ID                   uuid.UUID
	Name                 string
	DisplayTitle         string
	Description          string
	QdrantCollectionName string
	CreatedBy            uuid.UUID
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// Deleted reports whether the channel has been soft-deleted.
func (c Channel) Deleted() bool { return c.DeletedAt != nil }

// ChannelVideo joins a transcript into a channel's corpus.
type ChannelVideo struct {
	ID           uuid.UUID
	ChannelID    uuid.UUID
	TranscriptID uuid.UUID
	AddedBy      uuid.UUID
	AddedAt      time.Time
}

// Conversation is a user-scoped chat session (personal scope).
type Conversation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChannelConversation is the unique (user, channel) conversation — exactly
// one row per pair, created via get-or-create at the service boundary.
type ChannelConversation struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ChannelID uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageMetadata carries classifier/generator bookkeeping attached to a
// persisted message: the routed intent, how many chunks fed the answer, and
// which chunk ids survived grading for citation purposes.
type MessageMetadata struct {
	Intent          Intent      `json:"intent,omitempty"`
	ChunksUsed      int         `json:"chunks_used"`
	SourceChunkIDs  []uuid.UUID `json:"source_chunks,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Message is one turn's half: exactly one of ConversationID or
// ChannelConversationID is set.
type Message struct {
	ID                    uuid.UUID
	ConversationID        *uuid.UUID
	ChannelConversationID *uuid.UUID
	Role                  Role
	Content               string
	Metadata              MessageMetadata
	CreatedAt             time.Time
}

// RetrievedChunk is one vector-search hit hydrated against the authoritative
// row store. The vector-store payload is a cache, not the source of truth —
// callers hydrate ChunkText/metadata from the row store and silently drop
// hits whose chunk row is missing.
type RetrievedChunk struct {
	ChunkID        uuid.UUID
	Score          float32
	ChunkText      string
	YoutubeVideoID string
	ChunkIndex     int
	Metadata       map[string]any
}

// GradedChunk is a RetrievedChunk annotated with the grader's relevance
// verdict. Only chunks with Relevant=true survive into generation.
type GradedChunk struct {
	RetrievedChunk
	Relevant  bool
	Reasoning string
}
