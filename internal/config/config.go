/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	applog "quickpose/internal/log"
)

// AppConfig is the user-editable configuration persisted to config.yaml in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// The pose time and last folder are not part of this file; they live in settings.json.

type SessionConfig struct {
	OnComplete     string `yaml:"on_complete"` // "stop" | "loop"
	MaxPoseSeconds int    `yaml:"max_pose_seconds"`
	History        bool   `yaml:"history"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type PathsConfig struct {
	Settings string `yaml:"settings"`
	History  string `yaml:"history"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Session       SessionConfig `yaml:"session"`
	Logging       LoggingConfig `yaml:"logging"`
	Paths         PathsConfig   `yaml:"paths"`
}

const (
	OnCompleteStop = "stop"
	OnCompleteLoop = "loop"
)

// Defaults returns the application defaults. Empty paths resolve against Dir().
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Session:       SessionConfig{OnComplete: OnCompleteStop, MaxPoseSeconds: 3600, History: true},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir      = "QP_CONFIG_DIR"
	EnvOnComplete     = "QP_ON_COMPLETE"
	EnvMaxPoseSeconds = "QP_MAX_POSE_SECONDS"
	EnvHistory        = "QP_HISTORY"
	EnvSettingsFile   = "QP_SETTINGS_FILE"
	EnvHistoryFile    = "QP_HISTORY_FILE"
	EnvLogLevel       = applog.EnvLevel
	EnvLogFormat      = applog.EnvFormat
	EnvLogSource      = applog.EnvSource
	EnvLogFile        = applog.EnvFile
)

const (
	ConfigFileName   = "config.yaml"
	SettingsFileName = "settings.json"
	HistoryFileName  = "history.sqlite"
)

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "QuickPose")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "QuickPose")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "quickpose")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "quickpose")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the user config file (if present), applies defaults, merges environment
// overrides and resolves empty paths. A malformed file is ignored in favour of defaults.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		// seed with defaults so keys absent from the file keep their default values
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	cfg.normalize()
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LogOptions converts the logging section into logger options.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.Source,
		File:      c.Logging.File,
	}
}

// LoopOnComplete reports whether an expired countdown on the last image restarts at the first.
func (s SessionConfig) LoopOnComplete() bool { return s.OnComplete == OnCompleteLoop }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.ToLower(strings.TrimSpace(src.Session.OnComplete)); v != "" {
		dst.Session.OnComplete = v
	}
	if src.Session.MaxPoseSeconds != 0 {
		dst.Session.MaxPoseSeconds = src.Session.MaxPoseSeconds
	}
	dst.Session.History = src.Session.History
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	if strings.TrimSpace(src.Paths.Settings) != "" {
		dst.Paths.Settings = strings.TrimSpace(src.Paths.Settings)
	}
	if strings.TrimSpace(src.Paths.History) != "" {
		dst.Paths.History = strings.TrimSpace(src.Paths.History)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvOnComplete)); v != "" {
		cfg.Session.OnComplete = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxPoseSeconds)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.MaxPoseSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistory)); v != "" {
		cfg.Session.History = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSettingsFile)); v != "" {
		cfg.Paths.Settings = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryFile)); v != "" {
		cfg.Paths.History = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// normalize replaces out-of-range values with defaults.
func (c *AppConfig) normalize() {
	def := Defaults()
	if c.Session.OnComplete != OnCompleteStop && c.Session.OnComplete != OnCompleteLoop {
		c.Session.OnComplete = def.Session.OnComplete
	}
	if c.Session.MaxPoseSeconds <= 0 {
		c.Session.MaxPoseSeconds = def.Session.MaxPoseSeconds
	}
}

func (c *AppConfig) resolvePaths(dir string) {
	if c.Paths.Settings == "" {
		c.Paths.Settings = filepath.Join(dir, SettingsFileName)
	}
	if c.Paths.History == "" {
		c.Paths.History = filepath.Join(dir, HistoryFileName)
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	var name string
	switch key {
	case "session.on_complete":
		name = EnvOnComplete
	case "session.max_pose_seconds":
		name = EnvMaxPoseSeconds
	case "session.history":
		name = EnvHistory
	case "paths.settings":
		name = EnvSettingsFile
	case "paths.history":
		name = EnvHistoryFile
	case "logging.level":
		name = EnvLogLevel
	case "logging.format":
		name = EnvLogFormat
	case "logging.source":
		name = EnvLogSource
	case "logging.file":
		name = EnvLogFile
	default:
		return "", false
	}
	if os.Getenv(name) != "" {
		return name, true
	}
	return "", false
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}
