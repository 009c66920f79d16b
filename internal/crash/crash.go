/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, a last settings save and a
// non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "quickpose/internal/log"
	"quickpose/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Guard describes what to preserve when the process panics.
type Guard struct {
	// ReportDir receives crash-*.log; empty means the OS temp dir.
	ReportDir string
	// Save is called once to persist settings before exiting. May be nil.
	Save func() error
}

// Recover captures a panic, logs it with a stacktrace, writes a report,
// runs g.Save and exits with code 2.
//
// Usage: defer crash.Recover(guard)
func Recover(g *Guard) {
	if r := recover(); r != nil {
		handle(g, r, debug.Stack())
	}
}

func handle(g *Guard, panicVal any, stack []byte) {
	l := applog.WithComponent("crash")
	l.Error("panic recovered", slog.Any("panic", panicVal), slog.String("stack", string(stack)))

	dir := ""
	if g != nil {
		dir = g.ReportDir
	}
	reportPath, err := writeReport(dir, panicVal, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err), slog.String("path", reportPath))
	}
	if g != nil && g.Save != nil {
		if err := saveSafely(g.Save); err != nil {
			l.Error("final settings save failed", slog.Any("err", err))
		} else {
			l.Info("settings saved after crash")
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	_ = applog.Close()
	exitFn(2)
}

// saveSafely keeps a second panic inside Save from skipping the exit.
func saveSafely(save func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during save: %v", r)
		}
	}()
	return save()
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		dir = os.TempDir()
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "QuickPose Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "Go: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}
