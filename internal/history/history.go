/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package history keeps a local practice log in an embedded SQLite database.
// Every pose whose countdown ran out is one row. The log is informational;
// deleting the file loses statistics and nothing else.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "quickpose/internal/log"
	"quickpose/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// Pose is one finished countdown.
type Pose struct {
	SessionID  string
	Path       string
	Seconds    int
	FinishedAt time.Time
}

// Stats summarises poses in a time range.
type Stats struct {
	Poses    int
	Seconds  int
	Sessions int
}

// Duration is the practiced time.
func (s Stats) Duration() time.Duration { return time.Duration(s.Seconds) * time.Second }

// Store is the practice log. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
	log  *slog.Logger
}

// Open creates or opens the log at path, enables WAL and ensures the schema.
func Open(path string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("history"), "open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create history dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("history ready")
	return &Store{db: db, path: path, now: time.Now, log: applog.WithComponent("history")}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS poses (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			path        TEXT NOT NULL,
			seconds     INTEGER NOT NULL CHECK(seconds > 0),
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_poses_finished ON poses(finished_at);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	case cur > schemaVersion:
		return fmt.Errorf("history schema %d is newer than supported %d", cur, schemaVersion)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordPose appends one finished pose.
func (s *Store) RecordPose(ctx context.Context, sessionID, path string, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("record pose: seconds must be positive, got %d", seconds)
	}
	if sessionID == "" {
		return errors.New("record pose: session id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO poses (session_id, path, seconds, finished_at) VALUES(?, ?, ?, ?)`,
		sessionID, path, seconds, s.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("record pose: %w", err)
	}
	s.log.Debug("pose recorded", slog.String("session", sessionID), slog.String("path", path), slog.Int("seconds", seconds))
	return nil
}

// StatsSince summarises poses finished at or after since. A zero since
// covers the whole log.
func (s *Store) StatsSince(ctx context.Context, since time.Time) (Stats, error) {
	var from int64
	if !since.IsZero() {
		from = since.UTC().Unix()
	}
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(seconds), 0), COUNT(DISTINCT session_id) FROM poses WHERE finished_at >= ?`, from).
		Scan(&st.Poses, &st.Seconds, &st.Sessions)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

// Today summarises poses since local midnight.
func (s *Store) Today(ctx context.Context) (Stats, error) {
	return s.StatsSince(ctx, StartOfDay(s.now()))
}

// Recent returns up to limit poses, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Pose, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, path, seconds, finished_at FROM poses ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()
	var out []Pose
	for rows.Next() {
		var p Pose
		var ts int64
		if err := rows.Scan(&p.SessionID, &p.Path, &p.Seconds, &ts); err != nil {
			return nil, fmt.Errorf("scan pose: %w", err)
		}
		p.FinishedAt = time.Unix(ts, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
