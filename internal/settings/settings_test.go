/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if st != Defaults() {
		t.Fatalf("got %+v, want defaults", st)
	}
	if st.PoseSeconds != 60 || st.LastFolder != "" {
		t.Fatalf("unexpected defaults: %+v", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "settings.json"))
	want := Settings{PoseSeconds: 45, LastFolder: "/refs/figures"}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := NewStore(s.Path()).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got != want {
		t.Fatalf("round trip: got %+v, want %+v", got, want)
	}
}

func TestSaveWritesIndentedJSONWithExpectedKeys(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err := s.Save(Settings{PoseSeconds: 30, LastFolder: "x"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	b, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	if !strings.Contains(out, "\n    \"pose_time\": 30") || !strings.Contains(out, "\"last_folder\": \"x\"") {
		t.Fatalf("unexpected file content: %q", out)
	}
	if err := Validate(b); err != nil {
		t.Fatalf("written file does not conform to schema: %v", err)
	}
}

func TestSaveRejectsNonPositivePoseTime(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err := s.Save(Settings{PoseSeconds: 0}); err == nil {
		t.Fatalf("expected error for zero pose time")
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("nothing should be written on rejection")
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"last_folder": "/a"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if st.PoseSeconds != DefaultPoseSeconds || st.LastFolder != "/a" {
		t.Fatalf("unexpected settings: %+v", st)
	}
}

func TestLoadMalformedFallsBackGracefully(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"pose_time": `,
		"wrong type":    `{"pose_time": "sixty"}`,
		"non-positive":  `{"pose_time": -5, "last_folder": ""}`,
		"not an object": `[1,2,3]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			st, err := NewStore(path).Load()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if st != Defaults() {
				t.Fatalf("expected defaults, got %+v", st)
			}
		})
	}
}

func TestLoadCorruptFileUsesBackup(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err := s.Save(Settings{PoseSeconds: 90, LastFolder: "/first"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Settings{PoseSeconds: 120, LastFolder: "/second"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := s.Load()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid to be reported, got %v", err)
	}
	if st.PoseSeconds != 90 || st.LastFolder != "/first" {
		t.Fatalf("expected backup contents, got %+v", st)
	}

	// saving over the corrupt file must not clobber the good backup
	if err := s.Save(Settings{PoseSeconds: 15}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(s.Path() + ".bak")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "/first") {
		t.Fatalf("backup was overwritten by corrupt data: %q", b)
	}
}
