// Package db wraps the sqlite storage backing a gaze engine deployment:
// one row per session, batched raw samples, fixation/saccade events, and
// AOI hits. Grounded on the teacher's internal/db package (DB struct
// embedding *sql.DB, schema.sql embedded alongside golang-migrate
// migrations, WAL pragmas applied on open) but trimmed to this domain's
// four tables — the teacher's legacy-schema detection, baselining, and
// schema-diff tooling exists to migrate a years-old production radar
// database forward and has no counterpart here, where schema.sql and
// migrations/0001_init are introduced together.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sqlite connection pool for the gaze engine schema.
type DB struct {
	*sql.DB
}

// Open creates (if needed) and migrates the database at path. A fresh
// database is created from schema.sql and baselined at the latest
// migration version; an existing one is migrated up.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	d := &DB{conn}
	if err := d.applyPragmas(); err != nil {
		return nil, err
	}

	var hasMigrationsTable bool
	err = conn.QueryRow(`SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name='schema_migrations'`).Scan(&hasMigrationsTable)
	if err != nil {
		return nil, fmt.Errorf("check schema_migrations: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("sub migrations fs: %w", err)
	}

	if hasMigrationsTable {
		if err := d.MigrateUp(sub); err != nil {
			return nil, err
		}
		return d, nil
	}

	var tableCount int
	err = conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`).Scan(&tableCount)
	if err != nil {
		return nil, fmt.Errorf("count tables: %w", err)
	}
	if tableCount == 0 {
		if _, err := conn.Exec(schemaSQL); err != nil {
			return nil, fmt.Errorf("apply schema.sql: %w", err)
		}
	}
	if err := d.baselineAndMigrate(sub); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := d.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

func (d *DB) baselineAndMigrate(migrations fs.FS) error {
	if err := d.ensureSchemaMigrationsTable(); err != nil {
		return err
	}
	latest, err := latestMigrationVersion(migrations)
	if err != nil {
		return err
	}
	var exists bool
	if err := d.QueryRow(`SELECT COUNT(*) > 0 FROM schema_migrations`).Scan(&exists); err != nil {
		return fmt.Errorf("check baseline: %w", err)
	}
	if !exists {
		if _, err := d.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (?, 0)`, latest); err != nil {
			return fmt.Errorf("baseline schema_migrations: %w", err)
		}
	}
	return d.MigrateUp(migrations)
}

// InsertSession records a newly created session.
func (d *DB) InsertSession(ctx context.Context, id string, createdAtNs int64, screenW, screenH int) error {
	_, err := d.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at_ns, screen_width_px, screen_height_px) VALUES (?, ?, ?, ?)`,
		id, createdAtNs, screenW, screenH)
	return err
}

// MarkSessionStopped stamps a session's stop time.
func (d *DB) MarkSessionStopped(ctx context.Context, id string, stoppedAtNs int64) error {
	_, err := d.ExecContext(ctx, `UPDATE sessions SET stopped_at_ns = ? WHERE id = ?`, stoppedAtNs, id)
	return err
}

// RawSampleRow is one batched raw_samples insert.
type RawSampleRow struct {
	TsNs             int64
	DeviceX, DeviceY float64
	ScreenX, ScreenY float64
	Valid            bool
	Confidence       float64
}

// InsertRawSamples writes a batch of samples for a session in one
// transaction, matching spec.md §6's batched-write requirement.
func (d *DB) InsertRawSamples(ctx context.Context, sessionID string, rows []RawSampleRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin raw sample batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO raw_samples
		(session_id, ts_ns, device_x, device_y, screen_x, screen_y, valid, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw sample insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		validInt := 0
		if r.Valid {
			validInt = 1
		}
		if _, err := stmt.ExecContext(ctx, sessionID, r.TsNs, r.DeviceX, r.DeviceY, r.ScreenX, r.ScreenY, validInt, r.Confidence); err != nil {
			return fmt.Errorf("insert raw sample: %w", err)
		}
	}
	return tx.Commit()
}

// EventRow is one events insert (a completed fixation or saccade).
type EventRow struct {
	Kind                 string
	StartTsNs, EndTsNs   int64
	DurationMs           float64
	CentroidX, CentroidY float64
	MeanConfidence       float64
	AOIID                string
}

// InsertEvent appends one detector event, best-effort: a failure here
// must never block the logic worker (spec.md §6).
func (d *DB) InsertEvent(ctx context.Context, sessionID string, e EventRow) error {
	var aoiID sql.NullString
	if e.AOIID != "" {
		aoiID = sql.NullString{String: e.AOIID, Valid: true}
	}
	_, err := d.ExecContext(ctx, `INSERT INTO events
		(session_id, kind, start_ts_ns, end_ts_ns, duration_ms, centroid_x, centroid_y, mean_confidence, aoi_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, e.Kind, e.StartTsNs, e.EndTsNs, e.DurationMs, e.CentroidX, e.CentroidY, e.MeanConfidence, aoiID)
	return err
}

// HitRow is one hits insert.
type HitRow struct {
	SequenceNumber         int
	TsNs                   int64
	AOIID, AOIText         string
	GazeX, GazeY           float64
	Confidence, FixationMs float64
	IsVocabulary           bool
}

// InsertHit appends one AOI hit, best-effort like InsertEvent.
func (d *DB) InsertHit(ctx context.Context, sessionID string, h HitRow) error {
	vocabInt := 0
	if h.IsVocabulary {
		vocabInt = 1
	}
	_, err := d.ExecContext(ctx, `INSERT INTO hits
		(session_id, sequence_number, ts_ns, aoi_id, aoi_text, gaze_x, gaze_y, confidence, fixation_ms, is_vocabulary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, h.SequenceNumber, h.TsNs, h.AOIID, h.AOIText, h.GazeX, h.GazeY, h.Confidence, h.FixationMs, vocabInt)
	return err
}
