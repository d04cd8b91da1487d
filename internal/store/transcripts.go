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
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tubechat/tubechat/internal/domain"
)

// CreateTranscript inserts a new transcript row. Callers enforce the
// (user_id, youtube_video_id) uniqueness invariant at the database level;
// a violation surfaces as ErrConflict.
func (s *Store) CreateTranscript(ctx context.Context, t domain.Transcript) (domain.Transcript, error) {
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("store: marshal transcript metadata: %w", err)
	}
	err = s.Pool.QueryRow(ctx, `
		INSERT INTO transcripts (user_id, youtube_video_id, title, channel_name, duration_seconds, transcript_text, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		t.UserID, t.YoutubeVideoID, t.Title, t.ChannelName, int(t.Duration.Seconds()), t.TranscriptText, meta,
	).Scan(&t.ID, &t.CreatedAt)
	if isUniqueViolation(err) {
		return domain.Transcript{}, ErrConflict
	}
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("store: create transcript: %w", err)
	}
	return t, nil
}

// GetTranscript loads a transcript by id.
func (s *Store) GetTranscript(ctx context.Context, id uuid.UUID) (domain.Transcript, error) {
	return s.scanTranscript(s.Pool.QueryRow(ctx, `
		SELECT id, user_id, youtube_video_id, title, channel_name, duration_seconds, transcript_text, metadata, created_at
		FROM transcripts WHERE id = $1`, id))
}

// ListUserVideos returns every transcript a user owns, newest first —
// backing the "metadata" list-all-videos intent.
func (s *Store) ListUserVideos(ctx context.Context, userID uuid.UUID) ([]domain.Transcript, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, user_id, youtube_video_id, title, channel_name, duration_seconds, transcript_text, metadata, created_at
		FROM transcripts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list user videos: %w", err)
	}
	defer rows.Close()

	var out []domain.Transcript
	for rows.Next() {
		t, err := s.scanTranscriptRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTranscriptIfOrphaned removes a transcript when it is no longer
// referenced by any channel_videos row. It does not read the
// DeleteOrphanedTranscripts policy knob (spec.md's unresolved open
// question, left as configuration); whether to call it is up to the caller.
func (s *Store) DeleteTranscriptIfOrphaned(ctx context.Context, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `
		DELETE FROM transcripts
		WHERE id = $1
		AND NOT EXISTS (SELECT 1 FROM channel_videos WHERE transcript_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("store: delete orphaned transcript: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanTranscript(row pgx.Row) (domain.Transcript, error) {
	return s.scanTranscriptRow(row)
}

func (s *Store) scanTranscriptRow(row rowScanner) (domain.Transcript, error) {
	var t domain.Transcript
	var meta []byte
	var durationSeconds int
	err := row.Scan(&t.ID, &t.UserID, &t.YoutubeVideoID, &t.Title, &t.ChannelName, &durationSeconds, &t.TranscriptText, &meta, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transcript{}, ErrNotFound
	}
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("store: scan transcript: %w", err)
	}
	t.Duration = secondsToDuration(durationSeconds)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return domain.Transcript{}, fmt.Errorf("store: unmarshal transcript metadata: %w", err)
		}
	}
	return t, nil
}
