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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"quickpose/internal/config"
	"quickpose/internal/crash"
	"quickpose/internal/library"
	applog "quickpose/internal/log"
	"quickpose/internal/ui"
	"quickpose/internal/version"
)

func usage() {
	fmt.Println("QuickPose - timed figure drawing practice")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quickpose [ui] [<dir>]                Launch desktop UI (build with -tags fyne for full UI)")
	fmt.Println("  quickpose play <dir> [-s seconds]     Run a session in the terminal")
	fmt.Println("  quickpose scan <dir>                  List the images a session would show")
	fmt.Println("  quickpose history [-n count]          Show practice statistics")
	fmt.Println("  quickpose config [init]               Print the effective config, or write it to disk")
	fmt.Println("  quickpose version|-v|--version        Show version")
}

func main() {
	cfg, cfgErr := config.Load()
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config unavailable, using defaults", slog.Any("err", cfgErr))
	}
	if cfg.Paths.Settings == "" {
		cfg.Paths.Settings = config.SettingsFileName
	}
	if cfg.Paths.History == "" {
		cfg.Paths.History = config.HistoryFileName
	}
	reportDir := filepath.Dir(cfg.Paths.Settings)
	guard := &crash.Guard{ReportDir: reportDir}
	defer crash.Recover(guard)

	args := os.Args[1:]
	cmd := "ui"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}
	l.Debug("start", slog.String("cmd", cmd), slog.Int("args", len(args)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("QuickPose")
		fmt.Println(version.String())
		return
	case "help", "--help", "-h":
		usage()
		return
	case "ui":
		var dir string
		if len(args) > 0 {
			dir = args[0]
		}
		err = runUI(cfg, reportDir, dir)
	case "play":
		err = runPlay(ctx, os.Stdout, cfg, args, guard)
	case "scan":
		if len(args) < 1 {
			fmt.Println("scan requires <dir>")
			usage()
			os.Exit(2)
		}
		err = runScan(ctx, os.Stdout, args[0])
	case "history":
		err = runHistory(ctx, os.Stdout, cfg, args)
	case "config":
		err = runConfig(os.Stdout, cfg, args)
	default:
		// "quickpose <dir>" opens the UI on that folder
		if fi, serr := os.Stat(cmd); serr == nil && fi.IsDir() {
			err = runUI(cfg, reportDir, cmd)
			break
		}
		fmt.Printf("unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		l.Error("command failed", slog.String("cmd", cmd), slog.Any("err", err))
		fmt.Println("Error:", err)
		_ = applog.Close()
		if errors.Is(err, library.ErrNoImages) || errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	_ = applog.Close()
}

func runUI(cfg config.AppConfig, reportDir, dir string) error {
	opts := ui.Options{
		Folder:         dir,
		SettingsPath:   cfg.Paths.Settings,
		LoopOnComplete: cfg.Session.LoopOnComplete(),
		MaxPoseSeconds: cfg.Session.MaxPoseSeconds,
		ReportDir:      reportDir,
	}
	if cfg.Session.History {
		opts.HistoryPath = cfg.Paths.History
	}
	return ui.Run(opts)
}
