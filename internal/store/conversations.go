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
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tubechat/tubechat/internal/domain"
)

// CreateConversation inserts a new personal conversation.
func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (domain.Conversation, error) {
	var c domain.Conversation
	c.UserID = userID
	c.Title = title
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, title) VALUES ($1, $2)
		RETURNING id, created_at, updated_at`, userID, title,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("store: create conversation: %w", err)
	}
	return c, nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	var c domain.Conversation
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("store: get conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns a user's personal conversations ordered by
// updated_at desc, paginated.
func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Conversation, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM conversations WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count conversations: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, title, created_at, updated_at FROM conversations
		WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("store: scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// UpdateConversationTitle renames a conversation, enforcing ownership.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, userID uuid.UUID, title string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE conversations SET title = $1 WHERE id = $2 AND user_id = $3`, title, id, userID)
	if err != nil {
		return fmt.Errorf("store: update conversation title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation and cascades to its messages,
// enforcing ownership.
func (s *Store) DeleteConversation(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
