/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides centralized slog-based logging for QuickPose.
// It wraps slog with a small configuration surface: a human-friendly console
// handler (or JSON), an optional rotating JSON file and common attributes
// (app, version, component, operation).
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"quickpose/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "QP_LOG_LEVEL"
	EnvFormat = "QP_LOG_FORMAT"
	EnvSource = "QP_LOG_SOURCE"
	EnvFile   = "QP_LOG_FILE"
)

// Options controls logger initialization.
// Defaults: INFO level, console format, no source, no file.
// If File is set, a rotating JSON file writer is added next to the console.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
	// Console receives console output; nil means os.Stderr.
	Console io.Writer
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   *slog.Logger
	fileWriter      *lj.Logger
)

// L returns the default application logger, initializing from env if needed.
func L() *slog.Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultLoggerMu.RLock()
	l = defaultLogger
	defaultLoggerMu.RUnlock()
	return l
}

// Init configures the global logger and sets slog.Default as well.
// Calling Init again replaces the previous logger and closes its log file.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var handlers []slog.Handler
	var consoleHandler slog.Handler
	if format == "json" {
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource})
	} else {
		consoleHandler = &prettyTextHandler{opts: prettyOpts{Level: lvl, AddSource: opts.AddSource}, w: console}
	}
	handlers = append(handlers, consoleHandler)

	var fw *lj.Logger
	if strings.TrimSpace(opts.File) != "" {
		fw = &lj.Logger{Filename: opts.File, MaxSize: 5, MaxBackups: 3, MaxAge: 14, Compress: true}
		handlers = append(handlers, slog.NewJSONHandler(fw, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = multiHandler(handlers...)
	}

	logger := slog.New(h).With(
		slog.String("app", "quickpose"),
		slog.String("ver", version.Version),
	)

	defaultLoggerMu.Lock()
	old := fileWriter
	defaultLogger = logger
	fileWriter = fw
	defaultLoggerMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	slog.SetDefault(logger)
}

// Close flushes and closes the rotating log file, if any.
func Close() error {
	defaultLoggerMu.Lock()
	fw := fileWriter
	fileWriter = nil
	defaultLoggerMu.Unlock()
	if fw == nil {
		return nil
	}
	return fw.Close()
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv(EnvLevel, "info"),
		Format:    getenv(EnvFormat, "console"),
		AddSource: parseBool(getenv(EnvSource, "false")),
		File:      os.Getenv(EnvFile),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// multiHandler fans out log records to multiple handlers.
func multiHandler(handlers ...slog.Handler) slog.Handler { return &multi{hs: handlers} }

type multi struct{ hs []slog.Handler }

func (m *multi) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multi) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multi) WithAttrs(attrs []slog.Attr) slog.Handler {
	res := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		res[i] = h.WithAttrs(attrs)
	}
	return &multi{hs: res}
}

func (m *multi) WithGroup(name string) slog.Handler {
	res := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		res[i] = h.WithGroup(name)
	}
	return &multi{hs: res}
}

// prettyTextHandler prints one-line console logs: ts level msg key=val...
type prettyTextHandler struct {
	opts   prettyOpts
	w      io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

type prettyOpts struct {
	Level     slog.Leveler
	AddSource bool
}

func (h *prettyTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *prettyTextHandler) Handle(_ context.Context, r slog.Record) error {
	b := &strings.Builder{}
	b.Grow(256)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(levelString(r.Level))
	if r.Message != "" {
		b.WriteString(" ")
		b.WriteString(r.Message)
	}
	keyPrefix := ""
	if len(h.groups) > 0 {
		keyPrefix = strings.Join(h.groups, ".") + "."
	}
	write := func(a slog.Attr) {
		b.WriteString(" ")
		b.WriteString(keyPrefix)
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(attrValueString(a.Value))
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		if src, _ := frames.Next(); src.File != "" {
			b.WriteString(" src=")
			b.WriteString(src.File)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(src.Line))
		}
	}
	b.WriteString("\n")
	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	na := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	na = append(na, h.attrs...)
	na = append(na, attrs...)
	return &prettyTextHandler{opts: h.opts, w: h.w, mu: h.mutex(), attrs: na, groups: append([]string(nil), h.groups...)}
}

func (h *prettyTextHandler) WithGroup(name string) slog.Handler {
	ng := append([]string(nil), h.groups...)
	ng = append(ng, name)
	return &prettyTextHandler{opts: h.opts, w: h.w, mu: h.mutex(), attrs: append([]slog.Attr(nil), h.attrs...), groups: ng}
}

func (h *prettyTextHandler) mutex() *sync.Mutex {
	if h.mu == nil {
		h.mu = &sync.Mutex{}
	}
	return h.mu
}

func levelString(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DBG"
	case slog.LevelInfo:
		return "INF"
	case slog.LevelWarn:
		return "WRN"
	case slog.LevelError:
		return "ERR"
	default:
		return l.String()
	}
}

func attrValueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\"") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return v.Resolve().String()
	}
}
