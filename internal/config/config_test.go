// Copyright (C) 2025 TubeChat Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"CONTEXT_MESSAGES_MAX", "RETRIEVAL_TOP_K", "RATE_PER_MINUTE",
		"GRADER_CONCURRENCY", "HEARTBEAT_INTERVAL_S",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.ContextMessagesMax)
	assert.Equal(t, 12, cfg.RetrievalTopK)
	assert.Equal(t, 10, cfg.RatePerMinute)
	assert.Equal(t, 4, cfg.GraderConcurrency)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.False(t, cfg.DeleteOrphanedTranscripts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RATE_PER_MINUTE", "25")
	t.Setenv("GRADER_CONCURRENCY", "8")
	t.Setenv("DELETE_ORPHANED_TRANSCRIPTS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.RatePerMinute)
	assert.Equal(t, 8, cfg.GraderConcurrency)
	assert.True(t, cfg.DeleteOrphanedTranscripts)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "negative rate", env: map[string]string{"RATE_PER_MINUTE": "-1"}},
		{name: "zero grader concurrency", env: map[string]string{"GRADER_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_OverlaysOnlyTunableKnobs(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)
	base.DatabaseURL = "postgres://original/db"

	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	yamlContent := `
context_messages_max: 20
retrieval_top_k: 5
heartbeat_interval_s: 45
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	out, err := LoadFile(path, base)
	require.NoError(t, err)

	assert.Equal(t, 20, out.ContextMessagesMax)
	assert.Equal(t, 5, out.RetrievalTopK)
	assert.Equal(t, 45*time.Second, out.HeartbeatInterval)
	// Untouched knobs and connection settings pass through unchanged.
	assert.Equal(t, base.RatePerMinute, out.RatePerMinute)
	assert.Equal(t, "postgres://original/db", out.DatabaseURL)
}

func TestLoadFile_MissingFileErrors(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), base)
	assert.Error(t, err)
}

func TestLoadFile_InvalidYAMLErrors(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: valid: yaml: :::"), 0644))

	_, err = LoadFile(path, base)
	assert.Error(t, err)
}

func TestStore_GetAndReplace(t *testing.T) {
	initial, err := Load()
	require.NoError(t, err)
	s := NewStore(initial)

	assert.Equal(t, initial, s.Get())

	updated := *initial
	updated.RatePerMinute = 99
	s.Replace(&updated)

	assert.Equal(t, 99, s.Get().RatePerMinute)
}
