// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store is the row-oriented persistence layer: transcripts, chunks,
// channels, conversations, and messages, over a pgx connection pool with
// golang-migrate-managed schema migrations. It is the authoritative source
// of truth the retriever hydrates against — the vector store is a cache.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tubechat/tubechat/pkg/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store wraps a pgx connection pool sized per spec §5 (20 steady / 10 burst
// floor), mirroring EternisAI-enchanted-proxy's Database{DB, Queries}
// bootstrap shape.
type Store struct {
	Pool *pgxpool.Pool
	log  *logging.Logger
}

// Open connects to databaseURL, tuning the pool to maxConns/minConns, and
// returns a Store ready for use. Callers run migrations separately via
// Migrate so that read replicas or already-migrated environments can skip
// it.
func Open(ctx context.Context, databaseURL string, maxConns, minConns int32, log *logging.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if log != nil {
		log.Info("database pool established", "max_conns", maxConns, "min_conns", minConns)
	}
	return &Store{Pool: pool, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.Pool.Close() }

// Migrate applies every pending migration embedded under migrations/.
func (s *Store) Migrate(databaseURL string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("store: init migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	if s.log != nil {
		s.log.Info("database migrations applied")
	}
	return nil
}
