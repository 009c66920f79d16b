/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package settings persists the user's session defaults (pose time and last
// folder) as an indented JSON file. Writes are transactional: temp file,
// fsync, rename, with the previous file kept as a .bak copy. A file that is
// missing, unparseable or fails schema validation yields defaults.
package settings

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	applog "quickpose/internal/log"
)

// DefaultPoseSeconds is the pose time used when nothing is stored.
const DefaultPoseSeconds = 60

//go:embed settings.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Settings are the persisted session defaults.
type Settings struct {
	PoseSeconds int    `json:"pose_time"`
	LastFolder  string `json:"last_folder"`
}

// Defaults returns the settings used on first run.
func Defaults() Settings {
	return Settings{PoseSeconds: DefaultPoseSeconds, LastFolder: ""}
}

// ErrInvalid wraps parse and schema failures.
var ErrInvalid = errors.New("invalid settings file")

// Store reads and writes one settings file.
type Store struct {
	path string
}

// NewStore returns a store bound to path.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

func (s *Store) backupPath() string { return s.path + ".bak" }

// Load reads the settings file. Missing keys take default values.
// A missing file returns defaults and no error. An invalid file falls back to
// the .bak copy and then to defaults; the returned error describes the
// failure while the returned Settings are always usable.
func (s *Store) Load() (Settings, error) {
	l := applog.WithOperation(applog.WithComponent("settings"), "load").With(slog.String("path", s.path))
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		l.Debug("settings file missing, using defaults")
		return Defaults(), nil
	}
	if err != nil {
		l.Warn("read settings failed, using defaults", slog.Any("err", err))
		return Defaults(), fmt.Errorf("read settings: %w", err)
	}
	st, perr := Decode(b)
	if perr == nil {
		return st, nil
	}
	l.Warn("settings file invalid", slog.Any("err", perr))
	if bb, berr := os.ReadFile(s.backupPath()); berr == nil {
		if bst, derr := Decode(bb); derr == nil {
			l.Info("settings restored from backup", slog.String("backup", s.backupPath()))
			return bst, perr
		}
	}
	return Defaults(), perr
}

// Decode validates data against the settings schema and unmarshals it over defaults.
func Decode(data []byte) (Settings, error) {
	if err := Validate(data); err != nil {
		return Defaults(), err
	}
	st := Defaults()
	if err := json.Unmarshal(data, &st); err != nil {
		return Defaults(), fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return st, nil
}

// Validate checks data against the embedded JSON schema.
func Validate(data []byte) error {
	sc, err := compiledSchema()
	if err != nil {
		return err
	}
	res, err := sc.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Save writes st transactionally, keeping the previous file as a backup.
func (s *Store) Save(st Settings) error {
	if strings.TrimSpace(s.path) == "" {
		return errors.New("settings path is empty")
	}
	if st.PoseSeconds <= 0 {
		return fmt.Errorf("pose time must be positive, got %d", st.PoseSeconds)
	}
	data, err := json.MarshalIndent(st, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure settings dir: %w", err)
	}
	// only a valid file may replace the backup
	if cur, rerr := os.ReadFile(s.path); rerr == nil && Validate(cur) == nil {
		if cerr := copyFile(s.path, s.backupPath()); cerr != nil {
			return fmt.Errorf("backup settings: %w", cerr)
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(s.path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp settings: %w", werr)
	}
	if rerr := os.Rename(temp, s.path); rerr != nil {
		// Windows cannot rename over an existing file
		_ = os.Remove(s.path)
		if rerr2 := os.Rename(temp, s.path); rerr2 != nil {
			_ = os.Remove(temp)
			return fmt.Errorf("replace settings: %w", rerr2)
		}
	}
	applog.WithComponent("settings").Debug("settings saved",
		slog.String("path", s.path), slog.Int("pose_time", st.PoseSeconds), slog.String("last_folder", st.LastFolder))
	return nil
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
