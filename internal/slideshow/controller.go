/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package slideshow holds the practice-session state machine: the shuffled
// image set, the current position and the per-image countdown.
//
// A Controller is not safe for concurrent use. Every call, including the
// countdown callbacks delivered through its Scheduler, must happen on one
// goroutine.
package slideshow

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"quickpose/internal/imageview"
	"quickpose/internal/library"
	applog "quickpose/internal/log"
	"quickpose/internal/settings"
)

// SettingsStore persists session defaults.
type SettingsStore interface {
	Load() (settings.Settings, error)
	Save(settings.Settings) error
}

// FrameRenderer turns an image path into a frame fitted to a viewport.
type FrameRenderer interface {
	Render(path string, viewW, viewH int) (imageview.Frame, error)
}

// PoseRecorder receives every pose whose countdown ran out.
type PoseRecorder interface {
	RecordPose(ctx context.Context, sessionID, path string, seconds int) error
}

// Options wires a Controller. Scheduler and Settings are required.
type Options struct {
	Scheduler Scheduler
	Settings  SettingsStore
	Renderer  FrameRenderer
	Recorder  PoseRecorder
	Rand      *rand.Rand
	// LoopOnComplete restarts at the first image when the last countdown ends.
	LoopOnComplete bool
	// MaxPoseSeconds clamps requested pose times; zero means no limit.
	MaxPoseSeconds int
	// Interval between ticks; defaults to one second.
	Interval     time.Duration
	NewSessionID func() string
}

// Controller owns the image set, the session state and the countdown.
type Controller struct {
	opts      Options
	log       *slog.Logger
	set       library.ImageSet
	st        State
	prefs     settings.Settings
	sessionS  int
	sessionID string

	pending Timer
	gen     uint64

	viewW, viewH int
	listeners    map[int]Listener
	nextID       int
}

// New creates a controller and loads persisted settings.
// An unreadable settings file is logged and replaced by defaults.
func New(opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	if opts.Renderer == nil {
		opts.Renderer = imageview.NewRenderer()
	}
	c := &Controller{
		opts:      opts,
		log:       applog.WithComponent("slideshow"),
		listeners: map[int]Listener{},
	}
	prefs, err := opts.Settings.Load()
	if err != nil {
		c.log.Warn("settings unusable, continuing with fallback", slog.Any("err", err))
	}
	if prefs.PoseSeconds <= 0 {
		prefs.PoseSeconds = settings.DefaultPoseSeconds
	}
	c.prefs = prefs
	c.st.PoseSeconds = c.clamp(prefs.PoseSeconds)
	return c
}

// Subscribe registers l and returns a function that removes it.
func (c *Controller) Subscribe(l Listener) func() {
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() { delete(c.listeners, id) }
}

// State returns a snapshot of the session.
func (c *Controller) State() State { return c.st }

// Settings returns the in-memory copy of the persisted defaults.
func (c *Controller) Settings() settings.Settings { return c.prefs }

// Images returns the loaded image paths in display order.
func (c *Controller) Images() []string { return append([]string(nil), c.set.Paths...) }

// LoadFolder scans path recursively and replaces the image set with a
// shuffled copy of what it finds. An empty folder returns
// library.ErrNoImages wrapped with ErrNoImages and leaves the session untouched.
func (c *Controller) LoadFolder(ctx context.Context, path string) error {
	l := applog.WithOperation(c.log, "load_folder").With(slog.String("folder", path))
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	set, err := library.Load(ctx, path, c.opts.Rand)
	if err != nil {
		if errors.Is(err, library.ErrNoImages) {
			l.Info("folder has no images, keeping current session")
			return errors.Join(ErrNoImages, err)
		}
		l.Error("scan failed", slog.Any("err", err))
		return err
	}
	c.cancel()
	c.set = set
	c.sessionS = 0
	c.st = State{
		Index:       0,
		Total:       set.Len(),
		PoseSeconds: c.clamp(c.prefs.PoseSeconds),
		Current:     set.Paths[0],
		Folder:      path,
	}
	c.prefs.LastFolder = path
	c.save()
	l.Info("folder loaded", slog.Int("images", set.Len()))
	c.emit(EventLoaded)
	c.renderCurrent()
	return nil
}

// Start begins a session at the current image with the given pose time and
// stores it as the new default. Starting again restarts the current countdown.
func (c *Controller) Start(poseSeconds int) error {
	if c.set.Empty() {
		return ErrNoImages
	}
	if poseSeconds <= 0 {
		return ErrInvalidPoseTime
	}
	poseSeconds = c.clamp(poseSeconds)
	c.cancel()
	c.sessionS = poseSeconds
	c.sessionID = c.opts.NewSessionID()
	c.st.Running = true
	c.st.Paused = false
	c.st.Complete = false
	c.st.PoseSeconds = poseSeconds
	c.st.TimeLeft = poseSeconds
	c.prefs.PoseSeconds = poseSeconds
	c.save()
	c.log.Info("session started", slog.Int("pose_time", poseSeconds), slog.String("session", c.sessionID), slog.Int("images", c.set.Len()))
	c.schedule()
	c.emit(EventStarted)
	return nil
}

// Tick advances the countdown by one step. It is a no-op unless the session
// is running and not paused. At zero the pose is recorded and the next image
// is shown; on the last image the session completes (or loops).
func (c *Controller) Tick() {
	if !c.st.Running || c.st.Paused {
		return
	}
	c.cancel()
	if c.st.TimeLeft > 0 {
		c.st.TimeLeft--
	}
	if c.st.TimeLeft > 0 {
		c.schedule()
		c.emit(EventTick)
		return
	}
	c.emit(EventTick)
	c.record()
	c.expire()
}

// TogglePause pauses or resumes the countdown. Resuming continues from the
// remaining time.
func (c *Controller) TogglePause() error {
	if !c.st.Running {
		return ErrNotRunning
	}
	c.st.Paused = !c.st.Paused
	if c.st.Paused {
		c.cancel()
		c.log.Debug("paused", slog.Int("time_left", c.st.TimeLeft))
		c.emit(EventPaused)
		return nil
	}
	c.schedule()
	c.log.Debug("resumed", slog.Int("time_left", c.st.TimeLeft))
	c.emit(EventResumed)
	return nil
}

// Next shows the following image; false at the last image or when idle.
func (c *Controller) Next() bool { return c.Advance(1) }

// Prev shows the preceding image; false at the first image or when idle.
func (c *Controller) Prev() bool { return c.Advance(-1) }

// Advance moves by dir (+1 or -1) without wrapping. The countdown restarts
// at the session pose time; a paused session stays paused.
func (c *Controller) Advance(dir int) bool {
	if !c.st.Running {
		return false
	}
	switch {
	case dir > 0:
		dir = 1
	case dir < 0:
		dir = -1
	default:
		return false
	}
	next := c.st.Index + dir
	if next < 0 || next >= c.set.Len() {
		return false
	}
	c.moveTo(next)
	return true
}

// Render fits the current image into the viewport and publishes the frame.
// The viewport is remembered so image changes render at the same size.
// A degenerate viewport is ignored.
func (c *Controller) Render(viewW, viewH int) (imageview.Frame, error) {
	if viewW < imageview.MinViewport || viewH < imageview.MinViewport {
		return imageview.Frame{}, imageview.ErrDegenerateViewport
	}
	c.viewW, c.viewH = viewW, viewH
	if c.set.Empty() {
		return imageview.Frame{}, ErrNoImages
	}
	return c.renderCurrent()
}

// SetPoseSeconds stores a new default pose time without touching a running
// session. It is persisted on the next save.
func (c *Controller) SetPoseSeconds(n int) error {
	if n <= 0 {
		return ErrInvalidPoseTime
	}
	n = c.clamp(n)
	c.prefs.PoseSeconds = n
	if !c.st.Running {
		c.st.PoseSeconds = n
	}
	return nil
}

// Close stops the countdown and saves settings.
func (c *Controller) Close() error {
	c.cancel()
	if err := c.opts.Settings.Save(c.prefs); err != nil {
		c.log.Error("final settings save failed", slog.Any("err", err))
		return err
	}
	return nil
}

func (c *Controller) moveTo(idx int) {
	c.st.Index = idx
	c.st.Current = c.set.Paths[idx]
	c.st.Complete = false
	c.cancel()
	c.st.TimeLeft = c.sessionS
	if !c.st.Paused {
		c.schedule()
	}
	c.log.Debug("advanced", slog.Int("index", idx), slog.String("path", c.st.Current))
	c.emit(EventAdvanced)
	c.renderCurrent()
}

func (c *Controller) expire() {
	if c.st.Index < c.set.Len()-1 {
		c.moveTo(c.st.Index + 1)
		return
	}
	if c.opts.LoopOnComplete {
		c.log.Info("last pose finished, looping")
		c.moveTo(0)
		return
	}
	c.st.Running = false
	c.st.Paused = false
	c.st.Complete = true
	c.st.TimeLeft = 0
	c.log.Info("session complete", slog.String("session", c.sessionID), slog.Int("images", c.set.Len()))
	c.emit(EventCompleted)
}

func (c *Controller) record() {
	if c.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.opts.Recorder.RecordPose(ctx, c.sessionID, c.st.Current, c.sessionS); err != nil {
		c.log.Warn("record pose failed", slog.Any("err", err))
	}
}

// schedule arms the single pending tick. Callbacks from an older generation
// are ignored, so a Stop that loses the race cannot cause a double tick.
func (c *Controller) schedule() {
	c.cancel()
	gen := c.gen
	c.pending = c.opts.Scheduler.After(c.opts.Interval, func() {
		if gen != c.gen {
			return
		}
		c.pending = nil
		c.Tick()
	})
}

func (c *Controller) cancel() {
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) renderCurrent() (imageview.Frame, error) {
	if c.set.Empty() || c.viewW < imageview.MinViewport || c.viewH < imageview.MinViewport {
		return imageview.Frame{}, imageview.ErrDegenerateViewport
	}
	fr, err := c.opts.Renderer.Render(c.st.Current, c.viewW, c.viewH)
	if err != nil && !fr.Placeholder {
		return fr, err
	}
	c.emitUpdate(Update{Event: EventRendered, State: c.st, Frame: fr, RenderErr: err})
	return fr, err
}

func (c *Controller) save() {
	if err := c.opts.Settings.Save(c.prefs); err != nil {
		c.log.Warn("settings save failed", slog.Any("err", err))
	}
}

func (c *Controller) clamp(n int) int {
	if c.opts.MaxPoseSeconds > 0 && n > c.opts.MaxPoseSeconds {
		return c.opts.MaxPoseSeconds
	}
	return n
}

func (c *Controller) emit(e Event) { c.emitUpdate(Update{Event: e, State: c.st}) }

func (c *Controller) emitUpdate(u Update) {
	for _, l := range c.listeners {
		l(u)
	}
}
