// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tubechat/tubechat/internal/domain"
)

// HistoryEntry is a minimal projection of a message for prompt assembly.
type HistoryEntry struct {
	Role    domain.Role
	Content string
}

// LoadHistory returns the last limit messages for a personal conversation,
// ordered ascending by created_at (spec §4.1 step 4).
func (s *Store) LoadHistory(ctx context.Context, conversationID uuid.UUID, limit int) ([]HistoryEntry, error) {
	return s.loadHistory(ctx, "conversation_id", conversationID, limit)
}

// LoadChannelHistory is LoadHistory's channel-scoped counterpart.
func (s *Store) LoadChannelHistory(ctx context.Context, channelConversationID uuid.UUID, limit int) ([]HistoryEntry, error) {
	return s.loadHistory(ctx, "channel_conversation_id", channelConversationID, limit)
}

func (s *Store) loadHistory(ctx context.Context, column string, id uuid.UUID, limit int) ([]HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT role, content FROM (
			SELECT role, content, created_at FROM messages
			WHERE %s = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`, column)
	rows, err := s.Pool.Query(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Role, &e.Content); err != nil {
			return nil, fmt.Errorf("store: scan history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AllMessages returns every message for a conversation ascending, for
// get_detail endpoints.
func (s *Store) AllMessages(ctx context.Context, column string, id uuid.UUID) ([]domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, channel_conversation_id, role, content, metadata, created_at
		FROM messages WHERE %s = $1 ORDER BY created_at ASC`, column)
	rows, err := s.Pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("store: all messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(rows interface {
	Scan(dest ...any) error
}) (domain.Message, error) {
	var m domain.Message
	var meta []byte
	if err := rows.Scan(&m.ID, &m.ConversationID, &m.ChannelConversationID, &m.Role, &m.Content, &meta, &m.CreatedAt); err != nil {
		return domain.Message{}, fmt.Errorf("store: scan message: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return domain.Message{}, fmt.Errorf("store: unmarshal message metadata: %w", err)
		}
	}
	return m, nil
}

// TurnCommit is the atomic pair persisted for one successful turn: the
// user's utterance and the assistant's reply, written under a single
// transaction per spec §4.9. Exactly one of ConversationID /
// ChannelConversationID is set.
type TurnCommit struct {
	ConversationID        *uuid.UUID
	ChannelConversationID *uuid.UUID
	UserContent           string
	AssistantContent      string
	AssistantMetadata     domain.MessageMetadata
}

// CommitTurn persists the user and assistant messages for one turn in a
// single transaction. On any failure the whole turn is rolled back — the
// caller's gateway surfaces an error frame and persists nothing, per
// spec §4.1 step 7 and the "database is a faithful log of completed turns
// only" invariant.
func (s *Store) CommitTurn(ctx context.Context, t TurnCommit) (userMsg, assistantMsg domain.Message, err error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("store: begin turn transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	userMsg, err = insertMessage(ctx, tx, t.ConversationID, t.ChannelConversationID, domain.RoleUser, t.UserContent, domain.MessageMetadata{})
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("store: insert user message: %w", err)
	}

	assistantMsg, err = insertMessage(ctx, tx, t.ConversationID, t.ChannelConversationID, domain.RoleAssistant, t.AssistantContent, t.AssistantMetadata)
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("store: insert assistant message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("store: commit turn: %w", err)
	}
	return userMsg, assistantMsg, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, conversationID, channelConversationID *uuid.UUID, role domain.Role, content string, md domain.MessageMetadata) (domain.Message, error) {
	meta, err := json.Marshal(md)
	if err != nil {
		return domain.Message{}, fmt.Errorf("store: marshal message metadata: %w", err)
	}
	m := domain.Message{
		ConversationID:        conversationID,
		ChannelConversationID: channelConversationID,
		Role:                  role,
		Content:               content,
		Metadata:              md,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, channel_conversation_id, role, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`, conversationID, channelConversationID, role, content, meta,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}
