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

// GetOrCreateChannelConversation is the idempotent select-or-insert
// primitive over the (user_id, channel_id) uniqueness constraint: calling
// it N times for the same pair returns the same row and creates exactly
// one (spec §4.9, §8).
func (s *Store) GetOrCreateChannelConversation(ctx context.Context, userID, channelID uuid.UUID) (domain.ChannelConversation, error) {
	var cc domain.ChannelConversation
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, channel_id, created_at, updated_at
		FROM channel_conversations WHERE user_id = $1 AND channel_id = $2`, userID, channelID,
	).Scan(&cc.ID, &cc.UserID, &cc.ChannelID, &cc.CreatedAt, &cc.UpdatedAt)
	if err == nil {
		return cc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ChannelConversation{}, fmt.Errorf("store: lookup channel conversation: %w", err)
	}

	err = s.Pool.QueryRow(ctx, `
		INSERT INTO channel_conversations (user_id, channel_id) VALUES ($1, $2)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, channel_id, created_at, updated_at`, userID, channelID,
	).Scan(&cc.ID, &cc.UserID, &cc.ChannelID, &cc.CreatedAt, &cc.UpdatedAt)
	if err != nil {
		return domain.ChannelConversation{}, fmt.Errorf("store: get-or-create channel conversation: %w", err)
	}
	return cc, nil
}

// GetChannelConversation loads a channel conversation by id.
func (s *Store) GetChannelConversation(ctx context.Context, id uuid.UUID) (domain.ChannelConversation, error) {
	var cc domain.ChannelConversation
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, channel_id, created_at, updated_at
		FROM channel_conversations WHERE id = $1`, id,
	).Scan(&cc.ID, &cc.UserID, &cc.ChannelID, &cc.CreatedAt, &cc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChannelConversation{}, ErrNotFound
	}
	if err != nil {
		return domain.ChannelConversation{}, fmt.Errorf("store: get channel conversation: %w", err)
	}
	return cc, nil
}

// ChannelConversationListItem is one row of ListChannelConversations: a
// channel conversation plus the channel's display fields.
type ChannelConversationListItem struct {
	domain.ChannelConversation
	ChannelName        string
	ChannelDisplayTitle string
}

// ListChannelConversations returns a user's channel conversations joined
// with channel display fields, newest-updated first.
func (s *Store) ListChannelConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ChannelConversationListItem, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM channel_conversations WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count channel conversations: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT cc.id, cc.user_id, cc.channel_id, cc.created_at, cc.updated_at, c.name, c.display_title
		FROM channel_conversations cc
		JOIN channels c ON c.id = cc.channel_id
		WHERE cc.user_id = $1
		ORDER BY cc.updated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list channel conversations: %w", err)
	}
	defer rows.Close()

	var out []ChannelConversationListItem
	for rows.Next() {
		var item ChannelConversationListItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ChannelID, &item.CreatedAt, &item.UpdatedAt, &item.ChannelName, &item.ChannelDisplayTitle); err != nil {
			return nil, 0, fmt.Errorf("store: scan channel conversation: %w", err)
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// DeleteChannelConversation removes a channel conversation, enforcing
// ownership.
func (s *Store) DeleteChannelConversation(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM channel_conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete channel conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
