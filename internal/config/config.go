// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service's typed configuration from environment
// variables, following the flat-struct-plus-defaults convention the rest of
// this codebase's ancestry uses rather than a generic key/value store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the external-interfaces configuration
// table, plus the connection settings the ambient stack needs. Values are
// loaded at startup (Load, then optionally LoadFile for the five knobs
// ContextMessagesMax, RetrievalTopK, RatePerMinute, GraderConcurrency and
// HeartbeatInterval). The components built in cmd/server copy their values
// once at construction, so any change takes effect only after a process
// restart, which the spec explicitly permits ("at minimum at startup").
type Config struct {
	// Pipeline-tunable knobs (spec §6 configuration table).
	ContextMessagesMax int           // context.messages.max, default 10
	RetrievalTopK      int           // retrieval.top_k, default 12
	ChunkingSizeTokens int           // chunking.size_tokens, default 700 (ingestion-referenced only)
	ChunkingOverlapPct int           // chunking.overlap_pct, default 20 (ingestion-referenced only)
	RatePerMinute      int           // rate.per_minute, default 10
	GraderConcurrency  int           // grader.concurrency, default 4
	HeartbeatInterval  time.Duration // heartbeat.interval_s, default 30s

	// Timeouts (spec §5).
	LLMTimeout       time.Duration
	EmbeddingTimeout time.Duration
	VectorTimeout    time.Duration
	DBQueryTimeout   time.Duration
	TurnTimeout      time.Duration

	// Connection settings.
	Port           string
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	QdrantAddr     string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string
	JWTSigningKey  string
	OTELEndpoint   string

	// DeleteOrphanedTranscripts resolves the spec's open question on
	// whether removing the last channel referencing a transcript also
	// deletes that transcript. Left conservative (false) by default.
	DeleteOrphanedTranscripts bool

	// Service name tag for logging/tracing.
	ServiceName string
}

// Load reads configuration from the environment, applying the defaults the
// spec's configuration table names.
func Load() (*Config, error) {
	c := &Config{
		ContextMessagesMax:        envInt("CONTEXT_MESSAGES_MAX", 10),
		RetrievalTopK:             envInt("RETRIEVAL_TOP_K", 12),
		ChunkingSizeTokens:        envInt("CHUNKING_SIZE_TOKENS", 700),
		ChunkingOverlapPct:        envInt("CHUNKING_OVERLAP_PCT", 20),
		RatePerMinute:             envInt("RATE_PER_MINUTE", 10),
		GraderConcurrency:         envInt("GRADER_CONCURRENCY", 4),
		HeartbeatInterval:         envDuration("HEARTBEAT_INTERVAL_S", 30*time.Second),
		LLMTimeout:                envDuration("LLM_TIMEOUT_S", 60*time.Second),
		EmbeddingTimeout:          envDuration("EMBEDDING_TIMEOUT_S", 30*time.Second),
		VectorTimeout:             envDuration("VECTOR_TIMEOUT_S", 10*time.Second),
		DBQueryTimeout:            envDuration("DB_QUERY_TIMEOUT_S", 5*time.Second),
		TurnTimeout:               envDuration("TURN_TIMEOUT_S", 120*time.Second),
		Port:                      envStr("PORT", "8080"),
		DatabaseURL:               envStr("DATABASE_URL", "postgres://localhost:5432/tubechat?sslmode=disable"),
		DBMaxConns:                int32(envInt("DB_MAX_CONNS", 20)),
		DBMinConns:                int32(envInt("DB_MIN_CONNS", 10)),
		QdrantAddr:                envStr("QDRANT_ADDR", "localhost:6334"),
		OpenAIAPIKey:              envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:             envStr("OPENAI_BASE_URL", ""),
		ChatModel:                 envStr("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:            envStr("EMBEDDING_MODEL", "text-embedding-3-small"),
		JWTSigningKey:             envStr("JWT_SIGNING_KEY", ""),
		OTELEndpoint:              envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		DeleteOrphanedTranscripts: envBool("DELETE_ORPHANED_TRANSCRIPTS", false),
		ServiceName:               envStr("SERVICE_NAME", "tubechat-gateway"),
	}
	if c.RatePerMinute < 0 {
		return nil, fmt.Errorf("config: RATE_PER_MINUTE must be >= 0, got %d", c.RatePerMinute)
	}
	if c.GraderConcurrency < 1 {
		return nil, fmt.Errorf("config: GRADER_CONCURRENCY must be >= 1, got %d", c.GraderConcurrency)
	}
	return c, nil
}

// fileOverlay mirrors the five pipeline-tunable knobs (spec §6) an operator
// may override via a YAML file on top of the environment-derived defaults,
// grounded on the teacher's mcts.MCTSFullConfig load-from-file convention.
// Fields are pointers so an absent key leaves Load's value untouched.
type fileOverlay struct {
	ContextMessagesMax *int `yaml:"context_messages_max"`
	RetrievalTopK      *int `yaml:"retrieval_top_k"`
	RatePerMinute      *int `yaml:"rate_per_minute"`
	GraderConcurrency  *int `yaml:"grader_concurrency"`
	HeartbeatIntervalS *int `yaml:"heartbeat_interval_s"`
}

// LoadFile overlays the YAML file at path onto c, returning a new Config.
// Only the five runtime-tunable knobs may be set this way; connection
// settings remain env-only (spec §6: "at minimum at startup").
func LoadFile(path string, c *Config) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	out := *c
	if overlay.ContextMessagesMax != nil {
		out.ContextMessagesMax = *overlay.ContextMessagesMax
	}
	if overlay.RetrievalTopK != nil {
		out.RetrievalTopK = *overlay.RetrievalTopK
	}
	if overlay.RatePerMinute != nil {
		out.RatePerMinute = *overlay.RatePerMinute
	}
	if overlay.GraderConcurrency != nil {
		out.GraderConcurrency = *overlay.GraderConcurrency
	}
	if overlay.HeartbeatIntervalS != nil {
		out.HeartbeatInterval = time.Duration(*overlay.HeartbeatIntervalS) * time.Second
	}
	return &out, nil
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(secs) * time.Second
}

// Store holds an atomically-swappable Config snapshot. Replace swaps the
// snapshot, but no component re-reads the Store after construction, so a
// swap does not change the running gateway or pipeline. It is one of the
// three process-wide singletons named in spec.md §9.
type Store struct {
	v atomic.Pointer[Config]
}

// NewStore wraps an initial Config in a Store.
func NewStore(initial *Config) *Store {
	s := &Store{}
	s.v.Store(initial)
	return s
}

// Get returns the current configuration snapshot.
func (s *Store) Get() *Config { return s.v.Load() }

// Replace atomically swaps in a new configuration snapshot.
func (s *Store) Replace(c *Config) { s.v.Store(c) }
