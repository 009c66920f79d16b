/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quickpose/internal/config"
	"quickpose/internal/crash"
	"quickpose/internal/history"
	"quickpose/internal/library"
	"quickpose/internal/settings"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	cfg := config.Defaults()
	cfg.Paths.Settings = filepath.Join(dir, config.SettingsFileName)
	cfg.Paths.History = filepath.Join(dir, config.HistoryFileName)
	return cfg
}

func imageDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunPlayCompletesAndRecords(t *testing.T) {
	old := tickInterval
	tickInterval = time.Millisecond
	defer func() { tickInterval = old }()

	cfg := testConfig(t)
	dir := imageDir(t, "a.png", "b.jpg")
	var out bytes.Buffer
	guard := &crash.Guard{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := runPlay(ctx, &out, cfg, []string{dir, "-s", "2"}, guard); err != nil {
		t.Fatalf("runPlay: %v", err)
	}
	if !strings.Contains(out.String(), "Session complete") {
		t.Fatalf("output missing completion:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "[2 / 2]") {
		t.Fatalf("second image never shown:\n%s", out.String())
	}
	if guard.Save == nil {
		t.Fatalf("crash guard not wired to settings save")
	}

	st, err := settings.NewStore(cfg.Paths.Settings).Load()
	if err != nil {
		t.Fatal(err)
	}
	if st.PoseSeconds != 2 || st.LastFolder != dir {
		t.Fatalf("settings after play: %+v", st)
	}

	h, err := history.Open(cfg.Paths.History)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	total, err := h.StatsSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if total.Poses != 2 || total.Seconds != 4 || total.Sessions != 1 {
		t.Fatalf("history after play: %+v", total)
	}

	out.Reset()
	if err := runHistory(context.Background(), &out, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Today: 2 poses") {
		t.Fatalf("history output:\n%s", out.String())
	}
}

func TestRunPlayStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.History = false
	dir := imageDir(t, "a.png")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var out bytes.Buffer
	if err := runPlay(ctx, &out, cfg, []string{"-s", "30", dir}, nil); err != nil {
		t.Fatalf("runPlay: %v", err)
	}
	if !strings.Contains(out.String(), "Stopped") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestRunPlayErrors(t *testing.T) {
	cfg := testConfig(t)
	if err := runPlay(context.Background(), &bytes.Buffer{}, cfg, nil, nil); !errors.Is(err, errUsage) {
		t.Fatalf("missing dir: %v", err)
	}
	empty := t.TempDir()
	if err := runPlay(context.Background(), &bytes.Buffer{}, cfg, []string{empty}, nil); !errors.Is(err, library.ErrNoImages) {
		t.Fatalf("empty dir: %v", err)
	}
}

func TestRunScan(t *testing.T) {
	dir := imageDir(t, "a.png", "b.JPG", "notes.txt")
	var out bytes.Buffer
	if err := runScan(context.Background(), &out, dir); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "2 images in") || strings.Contains(out.String(), "notes.txt") {
		t.Fatalf("scan output:\n%s", out.String())
	}
}

func TestRunHistoryWithoutLog(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	if err := runHistory(context.Background(), &out, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No practice recorded yet") {
		t.Fatalf("output: %s", out.String())
	}
	cfg.Session.History = false
	out.Reset()
	if err := runHistory(context.Background(), &out, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "disabled") {
		t.Fatalf("output: %s", out.String())
	}
}

func TestRunConfigInit(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	if err := runConfig(&out, cfg, []string{"init"}); err != nil {
		t.Fatal(err)
	}
	path, err := config.ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	out.Reset()
	if err := runConfig(&out, cfg, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "on_complete: stop") {
		t.Fatalf("config output:\n%s", out.String())
	}
}
