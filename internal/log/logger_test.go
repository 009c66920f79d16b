/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestInitAndStructuredLoggingToFile verifies that Init with a file handler writes JSON logs
// and that static and contextual attributes are present.
func TestInitAndStructuredLoggingToFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "qp.json")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Console: &console})
	t.Cleanup(func() { _ = Close() })

	l := WithOperation(WithComponent("slideshow"), "advance")
	l.Info("image shown", slog.Int("index", 3))
	if err := Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(b))
	var last string
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	if m["app"] != "quickpose" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "slideshow" || m["op"] != "advance" {
		t.Fatalf("context attrs mismatch: %v / %v", m["component"], m["op"])
	}
	if m["index"] != float64(3) {
		t.Fatalf("index attr mismatch: %v", m["index"])
	}
	if !strings.Contains(console.String(), `"msg":"image shown"`) {
		t.Fatalf("console json output missing message: %q", console.String())
	}
}

func TestInitConsoleLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Console: &buf})
	l := WithComponent("library")
	l.Info("hidden")
	l.Warn("shown", slog.String("path", "/tmp/a b"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "WRN shown") || !strings.Contains(out, `path="/tmp/a b"`) {
		t.Fatalf("unexpected console output: %q", out)
	}
	if !strings.Contains(out, "component=library") {
		t.Fatalf("component attr missing: %q", out)
	}
}
