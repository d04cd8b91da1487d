// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generate

import "context"

// IngestStatus enumerates the video_load_status frame's status field
// (spec §4.1).
type IngestStatus string

const (
	IngestStarted   IngestStatus = "started"
	IngestCompleted IngestStatus = "completed"
	IngestFailed    IngestStatus = "failed"
)

// IngestEvent is one progress update from the external ingestion
// collaborator. Its fields match the video_load_status outbound frame
// (gateway.VideoLoadStatusFrame), but nothing in the server converts events
// into that frame; they reach only a callback set with
// Generator.OnIngestEvent.
type IngestEvent struct {
	Status     IngestStatus
	VideoID    string
	VideoTitle string
	Error      string
}

// VideoIngestor is the external collaborator that fetches, chunks, embeds,
// and indexes a video (spec §1: explicitly out of scope for the core). The
// core only consumes its progress events.
type VideoIngestor interface {
	LoadVideo(ctx context.Context, userID, youtubeURL string) (<-chan IngestEvent, error)
}

// NoopVideoIngestor stands in for the real ingestion service: it reports a
// single synthetic success so the generator's side-effect path and
// acknowledgment templating can be exercised without a live ingestion
// backend.
type NoopVideoIngestor struct{}

// LoadVideo immediately emits one completed event and closes the channel.
func (NoopVideoIngestor) LoadVideo(ctx context.Context, userID, youtubeURL string) (<-chan IngestEvent, error) {
	ch := make(chan IngestEvent, 1)
	ch <- IngestEvent{Status: IngestCompleted, VideoID: youtubeURL, VideoTitle: "Untitled video"}
	close(ch)
	return ch, nil
}
