/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenUsesWAL(t *testing.T) {
	s := openTemp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var schema int
	if err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d", schema)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.RecordPose(ctx, uuid.NewString(), "/img/a.png", 30); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	st, err := s2.StatsSince(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Poses != 1 || st.Seconds != 30 {
		t.Fatalf("stats after reopen: %+v", st)
	}
}

func TestStats(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 15, 0, 0, 0, time.Local)
	yesterday := base.Add(-24 * time.Hour)
	a, b := uuid.NewString(), uuid.NewString()

	s.now = func() time.Time { return yesterday }
	if err := s.RecordPose(ctx, a, "/x/old.jpg", 120); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base }
	for _, p := range []string{"/x/1.png", "/x/2.png"} {
		if err := s.RecordPose(ctx, a, p, 60); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordPose(ctx, b, "/x/3.png", 30); err != nil {
		t.Fatal(err)
	}

	today, err := s.Today(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if today.Poses != 3 || today.Seconds != 150 || today.Sessions != 2 {
		t.Fatalf("today = %+v", today)
	}
	if today.Duration() != 150*time.Second {
		t.Fatalf("duration = %v", today.Duration())
	}
	total, err := s.StatsSince(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if total.Poses != 4 || total.Seconds != 270 {
		t.Fatalf("total = %+v", total)
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Path != "/x/3.png" || recent[0].SessionID != b {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestRecordPoseValidation(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.RecordPose(ctx, "s", "/a.png", 0); err == nil {
		t.Fatalf("zero seconds accepted")
	}
	if err := s.RecordPose(ctx, "", "/a.png", 10); err == nil {
		t.Fatalf("empty session accepted")
	}
	st, err := s.StatsSince(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Poses != 0 {
		t.Fatalf("rows written for invalid poses: %+v", st)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2025, 7, 1, 23, 59, 59, 5, time.UTC)
	got := StartOfDay(in)
	if !got.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("StartOfDay = %v", got)
	}
}
