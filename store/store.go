// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package store logs frame results in a sqlite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/maruel/go-tyre/tyre"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DB is a results log. Each process run gets its own run id.
type DB struct {
	*sql.DB
	run string
}

// NewDB opens or creates the database at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			config TEXT,
			started TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS frames (
			run_id TEXT,
			frame_number BIGINT,
			fps DOUBLE,
			detected BOOLEAN,
			span_start INTEGER,
			span_end INTEGER,
			width INTEGER,
			confidence DOUBLE,
			gradient DOUBLE,
			inner_avg DOUBLE,
			inner_median DOUBLE,
			centre_avg DOUBLE,
			centre_median DOUBLE,
			outer_avg DOUBLE,
			outer_median DOUBLE,
			warnings INTEGER,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
		CREATE INDEX IF NOT EXISTS frames_run ON frames(run_id, frame_number);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &DB{DB: db}, nil
}

// StartRun registers a new run using cfg and returns its id. Following Emit
// calls are recorded under this run.
func (db *DB) StartRun(cfg tyre.Config) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := db.Exec("INSERT INTO runs (run_id, config) VALUES (?, ?)", id, string(b)); err != nil {
		return "", err
	}
	db.run = id
	return id, nil
}

// Emit records one frame result. It implements driver.Sink.
func (db *DB) Emit(r *tyre.FrameResult, _ *tyre.Frame, fps float64) error {
	if db.run == "" {
		return errors.New("store: StartRun not called")
	}
	d := &r.Detection
	_, err := db.Exec(`INSERT INTO frames (
			run_id, frame_number, fps, detected, span_start, span_end, width,
			confidence, gradient, inner_avg, inner_median, centre_avg,
			centre_median, outer_avg, outer_median, warnings
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.run, r.FrameNumber, fps, d.Detected, d.Start, d.End, d.Width,
		d.Confidence, r.LateralGradient, r.Inner.Avg, r.Inner.Median,
		r.Centre.Avg, r.Centre.Median, r.Outer.Avg, r.Outer.Median,
		int(r.Warnings))
	return err
}

// Row is one recorded frame.
type Row struct {
	FrameNumber  uint32
	FPS          float64
	Detected     bool
	SpanStart    int
	SpanEnd      int
	Width        int
	Confidence   float64
	Gradient     float64
	InnerAvg     float64
	InnerMedian  float64
	CentreAvg    float64
	CentreMedian float64
	OuterAvg     float64
	OuterMedian  float64
	Warnings     tyre.Warning
	Timestamp    time.Time
}

// Frames returns up to limit frames of a run, most recent first.
func (db *DB) Frames(run string, limit int) ([]Row, error) {
	rows, err := db.Query(`SELECT
			frame_number, fps, detected, span_start, span_end, width, confidence,
			gradient, inner_avg, inner_median, centre_avg, centre_median,
			outer_avg, outer_median, warnings, timestamp
		FROM frames WHERE run_id = ? ORDER BY rowid DESC LIMIT ?`, run, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var w int
		var ts string
		if err := rows.Scan(&r.FrameNumber, &r.FPS, &r.Detected, &r.SpanStart,
			&r.SpanEnd, &r.Width, &r.Confidence, &r.Gradient, &r.InnerAvg,
			&r.InnerMedian, &r.CentreAvg, &r.CentreMedian, &r.OuterAvg,
			&r.OuterMedian, &w, &ts); err != nil {
			return nil, err
		}
		r.Warnings = tyre.Warning(w)
		r.Timestamp = parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs returns the run ids, most recent first.
func (db *DB) Runs() ([]string, error) {
	rows, err := db.Query("SELECT run_id FROM runs ORDER BY started DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// parseTime accepts both the sqlite CURRENT_TIMESTAMP format and RFC3339, as
// the driver may already have converted the column.
func parseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
