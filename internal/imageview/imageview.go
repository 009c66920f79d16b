/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imageview decodes reference images and scales them to fit a
// viewport without cropping (letterboxing).
package imageview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	applog "quickpose/internal/log"
)

// MinViewport is the smallest usable viewport edge in pixels.
// Anything smaller is treated as a window that is not laid out yet.
const MinViewport = 10

// ErrDegenerateViewport is returned when the viewport is too small to draw into.
var ErrDegenerateViewport = errors.New("viewport too small")

// Fit returns the largest size with the source aspect ratio that fits inside
// the viewport. When the source is relatively wider than the viewport the
// width is pinned; otherwise the height is. The free edge is floored.
func Fit(srcW, srcH, viewW, viewH int) (w, h int, ok bool) {
	if viewW < MinViewport || viewH < MinViewport || srcW <= 0 || srcH <= 0 {
		return 0, 0, false
	}
	imgRatio := float64(srcW) / float64(srcH)
	viewRatio := float64(viewW) / float64(viewH)
	if imgRatio > viewRatio {
		w = viewW
		h = int(float64(viewW) / imgRatio)
	} else {
		h = viewH
		w = int(float64(viewH) * imgRatio)
	}
	return max(w, 1), max(h, 1), true
}

// Decode reads an image file, applying EXIF orientation so phone photos show upright.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Scale resamples src to exactly w×h.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

var (
	placeholderBG   = color.RGBA{R: 0x1F, G: 0x1F, B: 0x1F, A: 0xFF}
	placeholderMark = color.RGBA{R: 0x9E, G: 0x9E, B: 0x9E, A: 0xFF}
)

// Placeholder draws a neutral panel with a diagonal cross, shown in place of
// an image that failed to decode.
func Placeholder(w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), &image.Uniform{C: placeholderBG}, image.Point{}, xdraw.Src)
	if w < 2 || h < 2 {
		return dst
	}
	steps := max(w, h)
	for i := 0; i <= steps; i++ {
		x := i * (w - 1) / steps
		y := i * (h - 1) / steps
		dst.SetRGBA(x, y, placeholderMark)
		dst.SetRGBA(w-1-x, y, placeholderMark)
	}
	return dst
}

// Frame is one rendered image ready for display.
type Frame struct {
	Path        string
	Image       image.Image
	Width       int
	Height      int
	SrcWidth    int
	SrcHeight   int
	Placeholder bool
}

type decoded struct {
	path string
	img  image.Image
	err  error
}

type scaledKey struct {
	path string
	w, h int
}

// Renderer decodes and scales images, remembering the most recent source and
// output so repeated resizes and redraws stay cheap. Safe for concurrent use.
type Renderer struct {
	mu     sync.Mutex
	decode func(string) (image.Image, error)
	last   decoded
	key    scaledKey
	frame  Frame
}

// NewRenderer returns a renderer using Decode.
func NewRenderer() *Renderer { return &Renderer{decode: Decode} }

// NewRendererWith returns a renderer with a custom decoder.
func NewRendererWith(decode func(string) (image.Image, error)) *Renderer {
	return &Renderer{decode: decode}
}

// Render returns path letterboxed into a viewW×viewH viewport.
// On decode failure it returns a placeholder frame together with the error;
// the frame is still displayable.
func (r *Renderer) Render(path string, viewW, viewH int) (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if viewW < MinViewport || viewH < MinViewport {
		return Frame{}, ErrDegenerateViewport
	}
	if r.last.path != path || (r.last.img == nil && r.last.err == nil) {
		img, err := r.decode(path)
		r.last = decoded{path: path, img: img, err: err}
		r.key = scaledKey{}
		if err != nil {
			applog.WithComponent("imageview").Warn("image decode failed", slog.String("path", path), slog.Any("err", err))
		}
	}
	if r.last.err != nil {
		w, h, _ := Fit(4, 3, viewW, viewH)
		return Frame{Path: path, Image: Placeholder(w, h), Width: w, Height: h, Placeholder: true}, r.last.err
	}

	b := r.last.img.Bounds()
	w, h, ok := Fit(b.Dx(), b.Dy(), viewW, viewH)
	if !ok {
		return Frame{}, fmt.Errorf("%s: empty image", path)
	}
	k := scaledKey{path: path, w: w, h: h}
	if r.key == k {
		return r.frame, nil
	}
	r.key = k
	r.frame = Frame{
		Path:      path,
		Image:     Scale(r.last.img, w, h),
		Width:     w,
		Height:    h,
		SrcWidth:  b.Dx(),
		SrcHeight: b.Dy(),
	}
	return r.frame, nil
}

// Forget drops cached data, forcing the next Render to decode again.
func (r *Renderer) Forget() {
	r.mu.Lock()
	r.last = decoded{}
	r.key = scaledKey{}
	r.frame = Frame{}
	r.mu.Unlock()
}
