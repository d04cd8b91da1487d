// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore wraps the Qdrant gRPC client behind the narrow
// create/upsert/search/delete contract spec §6 specifies, so the retriever
// and ingestion paths never touch the Qdrant SDK directly.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// GlobalCollection is the per-user corpus every personal-scope retrieval
// searches.
const GlobalCollection = "youtube_chunks"

// ChannelCollectionName derives the immutable collection name for a
// channel from its URL-safe name, per spec §3 ("channel_<name>").
func ChannelCollectionName(channelName string) string {
	return "channel_" + channelName
}

// Point is one vector to upsert: Qdrant point id = chunk id, vector plus a
// payload carrying the fields the retriever filters and hydrates by.
type Point struct {
	ChunkID        uuid.UUID
	Vector         []float32
	UserID         uuid.UUID
	ChannelID      *uuid.UUID
	YoutubeVideoID string
	ChunkIndex     int
	ChunkText      string
}

// Hit is one search result. ChunkID and Score drive grading and ranking;
// YoutubeVideoID is read back from the payload so a caller can cite the
// source video without a second round trip to the row store — every other
// field is a cache the caller still hydrates from Postgres.
type Hit struct {
	ChunkID        uuid.UUID
	Score          float32
	YoutubeVideoID string
}

// Filter scopes a search or delete to one tenant dimension. Exactly one of
// UserID / ChannelID is set, matching the personal-vs-channel scoping rule
// in spec §4.5.
type Filter struct {
	UserID    *uuid.UUID
	ChannelID *uuid.UUID
}

// Store wraps a single shared Qdrant gRPC connection (spec §5: "single
// shared HTTP client with keep-alive for the others").
type Store struct {
	client *qdrant.Client
}

// Config holds the connection settings for Open.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Open establishes the shared Qdrant client connection.
func Open(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.client.Close() }

// EnsureCollection creates the named collection if it does not already
// exist, sized for dim-dimensional vectors with cosine distance.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim uint64) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %q: %w", name, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %q: %w", name, err)
	}
	return nil
}

// Upsert writes points into collection with user_id, youtube_video_id and
// (when set) channel_id in the payload. This package creates no payload
// index on those fields; filtered searches run against unindexed payload.
func (s *Store) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qpoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := map[string]any{
			"chunk_id":         p.ChunkID.String(),
			"user_id":          p.UserID.String(),
			"youtube_video_id": p.YoutubeVideoID,
			"chunk_index":      p.ChunkIndex,
			"chunk_text":       p.ChunkText,
		}
		if p.ChannelID != nil {
			payload["channel_id"] = p.ChannelID.String()
		}
		qpoints = append(qpoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ChunkID.String()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert into %q: %w", collection, err)
	}
	return nil
}

// Search returns the top-k nearest points to vector within collection,
// restricted by filter, sorted by descending score.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, filter Filter, k uint64) ([]Hit, error) {
	must := []*qdrant.Condition{}
	switch {
	case filter.ChannelID != nil:
		must = append(must, qdrant.NewMatch("channel_id", filter.ChannelID.String()))
	case filter.UserID != nil:
		must = append(must, qdrant.NewMatch("user_id", filter.UserID.String()))
	}

	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(k),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search %q: %w", collection, err)
	}

	hits := make([]Hit, 0, len(resp))
	for _, r := range resp {
		id, err := uuid.Parse(pointIDString(r.Id))
		if err != nil {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:        id,
			Score:          r.Score,
			YoutubeVideoID: payloadString(r.Payload, "youtube_video_id"),
		})
	}
	return hits, nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// Delete removes points by chunk id from collection.
func (s *Store) Delete(ctx context.Context, collection string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id.String()))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete from %q: %w", collection, err)
	}
	return nil
}

func pointIDString(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
