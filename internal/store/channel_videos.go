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
	"fmt"

	"github.com/google/uuid"

	"github.com/tubechat/tubechat/internal/domain"
)

// AddChannelVideo joins a transcript into a channel's corpus, enforcing
// (channel_id, transcript_id) uniqueness.
func (s *Store) AddChannelVideo(ctx context.Context, cv domain.ChannelVideo) (domain.ChannelVideo, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO channel_videos (channel_id, transcript_id, added_by)
		VALUES ($1, $2, $3)
		RETURNING id, added_at`, cv.ChannelID, cv.TranscriptID, cv.AddedBy,
	).Scan(&cv.ID, &cv.AddedAt)
	if isUniqueViolation(err) {
		return domain.ChannelVideo{}, ErrConflict
	}
	if err != nil {
		return domain.ChannelVideo{}, fmt.Errorf("store: add channel video: %w", err)
	}
	return cv, nil
}

// RemoveChannelVideo removes the channel/transcript join.
func (s *Store) RemoveChannelVideo(ctx context.Context, channelID, transcriptID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM channel_videos WHERE channel_id = $1 AND transcript_id = $2`, channelID, transcriptID)
	if err != nil {
		return fmt.Errorf("store: remove channel video: %w", err)
	}
	return nil
}
