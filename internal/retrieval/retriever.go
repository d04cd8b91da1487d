// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval implements the embed→search→hydrate pipeline stage
// from spec §4.5: resolve the tenant-scoped collection, run a vector
// search, then hydrate hits against the authoritative row store.
package retrieval

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tubechat/tubechat/internal/domain"
	"github.com/tubechat/tubechat/internal/vectorstore"
)

// Embedder maps a single query to a vector; the retriever does not hard-
// code the dimension (spec §4.5 step 1).
type Embedder interface {
	Embed(ctx context.Context, texts []string, metadata map[string]any) ([][]float32, error)
}

// VectorSearcher is the subset of vectorstore.Store the retriever needs,
// narrowed for testability.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, filter vectorstore.Filter, k uint64) ([]vectorstore.Hit, error)
}

// ChunkHydrator bulk-loads authoritative chunk rows by id; the vector
// store's payload is a cache only (spec §4.5 step 3).
type ChunkHydrator interface {
	HydrateChunks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Chunk, error)
}

// Retriever implements the retrieve pipeline stage.
type Retriever struct {
	embedder Embedder
	vectors  VectorSearcher
	rows     ChunkHydrator
	topK     int
}

// New builds a Retriever. topK is the default search depth (spec §6:
// retrieval.top_k, default 12); a topK of 0 yields empty results by
// design (spec §8 boundary behavior).
func New(embedder Embedder, vectors VectorSearcher, rows ChunkHydrator, topK int) *Retriever {
	return &Retriever{embedder: embedder, vectors: vectors, rows: rows, topK: topK}
}

// Retrieve embeds query, searches the scope-appropriate collection, and
// hydrates the resulting hits. Scope is personal when channelID is nil,
// channel-scoped otherwise. Any failure — embedding, search, or an empty
// corpus — yields an empty slice rather than an error: "no context" is a
// legitimate outcome the generator must handle (spec §4.5).
func (r *Retriever) Retrieve(ctx context.Context, userID uuid.UUID, channelID *uuid.UUID, collection, query string) []domain.RetrievedChunk {
	if r.topK <= 0 {
		return nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query}, map[string]any{"user_id": userID.String(), "tags": []string{"retrieval"}})
	if err != nil || len(vectors) == 0 {
		return nil
	}

	filter := vectorstore.Filter{UserID: &userID}
	if channelID != nil {
		filter = vectorstore.Filter{ChannelID: channelID}
	}

	hits, err := r.vectors.Search(ctx, collection, vectors[0], filter, uint64(r.topK))
	if err != nil || len(hits) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	rows, err := r.rows.HydrateChunks(ctx, ids)
	if err != nil {
		return nil
	}

	out := make([]domain.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		chunk, ok := rows[h.ChunkID]
		if !ok {
			// Row store is authoritative; a hit with no backing row is
			// silently dropped (spec §4.5 step 3).
			continue
		}
		out = append(out, domain.RetrievedChunk{
			ChunkID:        chunk.ID,
			Score:          h.Score,
			ChunkText:      chunk.ChunkText,
			YoutubeVideoID: h.YoutubeVideoID,
			ChunkIndex:     chunk.ChunkIndex,
			Metadata:       chunk.Metadata,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// CollectionFor resolves which collection a retrieval should search:
// the channel collection when channelID is set, else the global per-user
// collection.
func CollectionFor(channelID *uuid.UUID, channelCollectionName string) string {
	if channelID != nil {
		return channelCollectionName
	}
	return vectorstore.GlobalCollection
}
