/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport("", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "QuickPose Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportCreatesReportDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crashes")
	path, err := writeReport(dir, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected crash report under %s, got %s", dir, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
}

func TestSaveSafelyContainsPanic(t *testing.T) {
	err := saveSafely(func() error { panic("nested") })
	if err == nil || !strings.Contains(err.Error(), "nested") {
		t.Fatalf("expected wrapped panic, got %v", err)
	}
}
