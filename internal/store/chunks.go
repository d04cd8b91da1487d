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

// InsertChunks bulk-inserts chunks for one transcript inside a transaction,
// enforcing the (transcript_id, chunk_index) uniqueness invariant.
func (s *Store) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("store: marshal chunk metadata: %w", err)
		}
		batch.Queue(`
			INSERT INTO chunks (transcript_id, user_id, channel_id, chunk_index, chunk_text, token_count, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.TranscriptID, c.UserID, c.ChannelID, c.ChunkIndex, c.ChunkText, c.TokenCount, meta)
	}
	br := s.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("store: insert chunk: %w", err)
		}
	}
	return nil
}

// HydrateChunks bulk-loads chunk rows by id, returning only the ones found —
// the retriever treats the vector store as a cache and silently drops hits
// whose chunk row is missing (spec §4.5).
func (s *Store) HydrateChunks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Chunk, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]domain.Chunk{}, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, transcript_id, user_id, channel_id, chunk_index, chunk_text, token_count, metadata, created_at
		FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("store: hydrate chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]domain.Chunk, len(ids))
	for rows.Next() {
		var c domain.Chunk
		var meta []byte
		if err := rows.Scan(&c.ID, &c.TranscriptID, &c.UserID, &c.ChannelID, &c.ChunkIndex, &c.ChunkText, &c.TokenCount, &meta, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, fmt.Errorf("store: unmarshal chunk metadata: %w", err)
			}
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// DeleteChunksByChannel removes only the chunks whose channel_id matches —
// a channel removal must not touch chunks belonging to other channels or to
// a user's personal corpus.
func (s *Store) DeleteChunksByChannel(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.Pool.Query(ctx, `DELETE FROM chunks WHERE channel_id = $1 RETURNING id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: delete channel chunks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan deleted chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
