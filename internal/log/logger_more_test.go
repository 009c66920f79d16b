/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestFromEnvAndGetenv(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "yes")
	t.Setenv(EnvFile, "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}

	if err := os.Unsetenv("SOME_UNSET_VAR"); err != nil {
		t.Fatalf("Unsetenv error: %v", err)
	}
	if v := getenv("SOME_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in).Level(); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrettyTextHandler_Behavior(t *testing.T) {
	var buf bytes.Buffer
	h := &prettyTextHandler{opts: prettyOpts{Level: slog.LevelWarn}, w: &buf}
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) {
		t.Fatalf("info should not be enabled at warn level")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Fatalf("error should be enabled at warn level")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")

	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.Bool("ok", true), slog.Duration("d", time.Second))
	if err := h2.Handle(ctx, r); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ERR boom", "k=v", "grp.n=42", "pi=3.14", "ok=true", "d=1s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %q", want, out)
		}
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := multiHandler(
		&prettyTextHandler{opts: prettyOpts{Level: slog.LevelDebug}, w: &a},
		&prettyTextHandler{opts: prettyOpts{Level: slog.LevelError}, w: &b},
	)
	l := slog.New(h)
	l.Info("tick")
	if !strings.Contains(a.String(), "tick") {
		t.Fatalf("debug handler should receive info record: %q", a.String())
	}
	if b.Len() != 0 {
		t.Fatalf("error handler should not receive info record: %q", b.String())
	}
}
