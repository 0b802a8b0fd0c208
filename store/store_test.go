// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package store

import (
	"path/filepath"
	"testing"

	"github.com/maruel/go-tyre/tyre"
	"github.com/maruel/go-tyre/tyretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tyre.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	r := tyre.Passthrough(1)
	assert.Error(t, db.Emit(&r, nil, 8), "no run started")

	cfg := tyre.DefaultConfig()
	run, err := db.StartRun(cfg)
	require.NoError(t, err)
	require.Len(t, run, 36)

	p, err := tyre.New(cfg)
	require.NoError(t, err)
	f := tyretest.Band(20, 60, 9, 22)
	for i := 0; i < 3; i++ {
		r = p.Process(f)
		require.NoError(t, db.Emit(&r, f, 8))
	}

	rows, err := db.Frames(run, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	got := rows[0]
	assert.Equal(t, uint32(3), got.FrameNumber)
	assert.True(t, got.Detected)
	assert.Equal(t, 9, got.SpanStart)
	assert.Equal(t, 22, got.SpanEnd)
	assert.Equal(t, 14, got.Width)
	assert.Equal(t, 60., got.CentreAvg)
	assert.Equal(t, r.Warnings, got.Warnings)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, uint32(2), rows[1].FrameNumber)

	runs, err := db.Runs()
	require.NoError(t, err)
	assert.Equal(t, []string{run}, runs)
}

func TestDB_reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tyre.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	first, err := db.StartRun(tyre.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	second, err := db.StartRun(tyre.DefaultConfig())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	runs, err := db.Runs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, runs)
}

func TestDB_runConfig(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "tyre.db"))
	require.NoError(t, err)
	defer db.Close()
	cfg := tyre.DefaultConfig()
	cfg.EMAAlpha = 0.25
	run, err := db.StartRun(cfg)
	require.NoError(t, err)

	var raw string
	require.NoError(t, db.QueryRow("SELECT config FROM runs WHERE run_id = ?", run).Scan(&raw))
	assert.Contains(t, raw, `"ema_alpha":0.25`)
	var got tyre.Config
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, cfg, got)
}
