/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quickpose/internal/config"
	"quickpose/internal/crash"
	"quickpose/internal/history"
	"quickpose/internal/library"
	applog "quickpose/internal/log"
	"quickpose/internal/settings"
	"quickpose/internal/slideshow"
)

var errUsage = errors.New("usage")

// tickInterval is shortened by tests.
var tickInterval = time.Second

// runPlay runs a headless session: it prints every image as it comes up and
// the countdown in place, and returns when the session completes or ctx ends.
func runPlay(ctx context.Context, out io.Writer, cfg config.AppConfig, args []string, guard *crash.Guard) error {
	l := applog.WithComponent("cli")
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(out)
	secs := fs.Int("s", 0, "pose time in seconds (default: last used)")
	var dir string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		dir, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if dir == "" {
		dir = fs.Arg(0)
	}
	if dir == "" {
		return fmt.Errorf("%w: play requires <dir>", errUsage)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	loop := slideshow.NewLoop()
	opts := slideshow.Options{
		Scheduler:      slideshow.NewTimeScheduler(loop.Dispatch),
		Settings:       settings.NewStore(cfg.Paths.Settings),
		LoopOnComplete: cfg.Session.LoopOnComplete(),
		MaxPoseSeconds: cfg.Session.MaxPoseSeconds,
		Interval:       tickInterval,
	}
	if cfg.Session.History {
		h, err := history.Open(cfg.Paths.History)
		if err != nil {
			l.Warn("practice log unavailable", slog.Any("err", err))
		} else {
			defer h.Close()
			opts.Recorder = h
		}
	}
	ctrl := slideshow.New(opts)
	if guard != nil {
		guard.Save = ctrl.Close
	}

	completed := false
	ctrl.Subscribe(func(u slideshow.Update) {
		st := u.State
		switch u.Event {
		case slideshow.EventStarted, slideshow.EventAdvanced:
			_, _ = fmt.Fprintf(out, "\n[%s] %s\n", st.CounterText(), st.Current)
		case slideshow.EventTick:
			_, _ = fmt.Fprintf(out, "\r%6s", st.TimerText())
		case slideshow.EventCompleted:
			completed = true
			_, _ = fmt.Fprintln(out, "\nSession complete")
			cancel()
		}
	})

	if err := ctrl.LoadFolder(ctx, dir); err != nil {
		return err
	}
	n := *secs
	if n == 0 {
		n = ctrl.Settings().PoseSeconds
	}
	if err := ctrl.Start(n); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d images, %ds each. Ctrl-C to stop.", ctrl.State().Total, ctrl.State().PoseSeconds)

	err := loop.Run(ctx)
	if cerr := ctrl.Close(); cerr != nil {
		l.Warn("save settings failed", slog.Any("err", cerr))
	}
	if !completed {
		_, _ = fmt.Fprintln(out, "\nStopped")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// runScan prints the shuffled image list the way a session would see it.
func runScan(ctx context.Context, out io.Writer, dir string) error {
	set, err := library.Load(ctx, dir, nil)
	if err != nil {
		return err
	}
	for i, p := range set.Paths {
		_, _ = fmt.Fprintf(out, "%4d  %s\n", i+1, p)
	}
	_, _ = fmt.Fprintf(out, "%d images in %s\n", set.Len(), set.Root)
	return nil
}

func runHistory(ctx context.Context, out io.Writer, cfg config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(out)
	n := fs.Int("n", 5, "number of recent poses to list")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if !cfg.Session.History {
		_, _ = fmt.Fprintln(out, "Practice log is disabled (session.history: false)")
		return nil
	}
	if _, err := os.Stat(cfg.Paths.History); errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(out, "No practice recorded yet")
		return nil
	}
	h, err := history.Open(cfg.Paths.History)
	if err != nil {
		return err
	}
	defer h.Close()

	today, err := h.Today(ctx)
	if err != nil {
		return err
	}
	total, err := h.StatsSince(ctx, time.Time{})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Today: %d poses, %s\n", today.Poses, today.Duration())
	_, _ = fmt.Fprintf(out, "Total: %d poses, %s, %d sessions\n", total.Poses, total.Duration(), total.Sessions)
	if *n <= 0 {
		return nil
	}
	recent, err := h.Recent(ctx, *n)
	if err != nil {
		return err
	}
	for _, p := range recent {
		_, _ = fmt.Fprintf(out, "  %s  %4ds  %s\n", p.FinishedAt.Format("2006-01-02 15:04"), p.Seconds, p.Path)
	}
	return nil
}

// runConfig prints the effective configuration; "init" writes the defaults
// unless a config file already exists.
func runConfig(out io.Writer, cfg config.AppConfig, args []string) error {
	if len(args) > 0 && args[0] == "init" {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			_, _ = fmt.Fprintf(out, "Config already exists: %s\n", path)
			return nil
		}
		if err := config.Save(config.Defaults()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Wrote %s\n", path)
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if path, err := config.ConfigPath(); err == nil {
		_, _ = fmt.Fprintf(out, "# %s\n", path)
	}
	_, err = out.Write(data)
	return err
}
