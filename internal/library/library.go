/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package library discovers reference images on disk and produces the
// shuffled image set a practice session runs through.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	applog "quickpose/internal/log"
)

// ErrNoImages is returned when a folder holds no supported image files.
var ErrNoImages = errors.New("no supported images found")

// SupportedExt holds lower-case extensions; matching is case-insensitive.
var SupportedExt = mapset.NewSet(".jpg", ".jpeg", ".png")

// ImageSet is an ordered list of image paths. The order is fixed once loaded.
type ImageSet struct {
	Root  string
	Paths []string
}

// Len returns the number of images.
func (s ImageSet) Len() int { return len(s.Paths) }

// Empty reports whether the set has no images.
func (s ImageSet) Empty() bool { return len(s.Paths) == 0 }

// IsSupported reports whether name carries one of the supported extensions.
func IsSupported(name string) bool {
	return SupportedExt.Contains(strings.ToLower(filepath.Ext(name)))
}

// Scan walks root recursively and returns the full paths of supported images,
// sorted lexically. Unreadable subdirectories are logged and skipped.
func Scan(ctx context.Context, root string) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("library"), "scan").With(slog.String("root", root))
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("folder path is required")
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if path == root {
				return err
			}
			l.Warn("skipping unreadable entry", slog.String("path", path), slog.Any("err", err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if IsSupported(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(out)
	l.Debug("scan done", slog.Int("count", len(out)))
	return out, nil
}

// Shuffle permutes paths uniformly in place. A nil r uses the global source.
func Shuffle(paths []string, r *rand.Rand) {
	swap := func(i, j int) { paths[i], paths[j] = paths[j], paths[i] }
	if r == nil {
		rand.Shuffle(len(paths), swap)
		return
	}
	r.Shuffle(len(paths), swap)
}

// Load scans root and returns a shuffled ImageSet.
// It returns ErrNoImages when nothing qualifies.
func Load(ctx context.Context, root string, r *rand.Rand) (ImageSet, error) {
	paths, err := Scan(ctx, root)
	if err != nil {
		return ImageSet{}, err
	}
	if len(paths) == 0 {
		return ImageSet{}, fmt.Errorf("%s: %w", root, ErrNoImages)
	}
	Shuffle(paths, r)
	return ImageSet{Root: root, Paths: paths}, nil
}
