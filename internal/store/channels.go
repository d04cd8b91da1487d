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
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tubechat/tubechat/internal/domain"
)

// CreateChannel inserts a new channel. QdrantCollectionName is derived by
// the caller (e.g. "channel_"+name) and must remain stable across
// soft-delete/reactivate cycles, so it is stored rather than recomputed.
func (s *Store) CreateChannel(ctx context.Context, c domain.Channel) (domain.Channel, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO channels (name, display_title, description, qdrant_collection_name, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		c.Name, c.DisplayTitle, c.Description, c.QdrantCollectionName, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.Channel{}, ErrConflict
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("store: create channel: %w", err)
	}
	return c, nil
}

// GetChannel loads a channel by id regardless of soft-delete state — read
// paths that must reason about a soft-deleted channel (e.g. conversations
// that still reference one) use this; list paths use GetActiveChannel.
func (s *Store) GetChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error) {
	return scanChannel(s.Pool.QueryRow(ctx, `
		SELECT id, name, display_title, description, qdrant_collection_name, created_by, created_at, updated_at, deleted_at
		FROM channels WHERE id = $1`, id))
}

// GetActiveChannel loads a channel by id, returning ErrNotFound if it has
// been soft-deleted.
func (s *Store) GetActiveChannel(ctx context.Context, id uuid.UUID) (domain.Channel, error) {
	return scanChannel(s.Pool.QueryRow(ctx, `
		SELECT id, name, display_title, description, qdrant_collection_name, created_by, created_at, updated_at, deleted_at
		FROM channels WHERE id = $1 AND deleted_at IS NULL`, id))
}

// SoftDeleteChannel marks a channel deleted without removing its row or
// collection name, preserving the invariant that the collection name
// outlives any single delete/reactivate cycle.
func (s *Store) SoftDeleteChannel(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE channels SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("store: soft delete channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanChannel(row pgx.Row) (domain.Channel, error) {
	var c domain.Channel
	var deletedAt *time.Time
	err := row.Scan(&c.ID, &c.Name, &c.DisplayTitle, &c.Description, &c.QdrantCollectionName, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Channel{}, ErrNotFound
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("store: scan channel: %w", err)
	}
	c.DeletedAt = deletedAt
	return c, nil
}
