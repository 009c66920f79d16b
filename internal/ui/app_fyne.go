//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"quickpose/internal/crash"
	"quickpose/internal/history"
	"quickpose/internal/imageview"
	applog "quickpose/internal/log"
	"quickpose/internal/settings"
	"quickpose/internal/slideshow"
)

var (
	bgColor     = color.RGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	accentColor = color.RGBA{R: 0xED, G: 0xED, B: 0xED, A: 0xFF}
	mutedColor  = color.RGBA{R: 0x9E, G: 0x9E, B: 0x9E, A: 0xFF}
)

// Run opens the practice window and blocks until it is closed.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	guard := &crash.Guard{ReportDir: opts.ReportDir}
	defer crash.Recover(guard)

	fyneApp := app.NewWithID("io.github.quickpose")
	w := fyneApp.NewWindow("QuickPose")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1000)
	winH := prefs.IntWithFallback("window.height", 700)
	if winW < 640 {
		winW = 640
	}
	if winH < 480 {
		winH = 480
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	var hist *history.Store
	ctrlOpts := slideshow.Options{
		Scheduler:      slideshow.NewTimeScheduler(fyne.Do),
		Settings:       settings.NewStore(opts.SettingsPath),
		Renderer:       imageview.NewRenderer(),
		LoopOnComplete: opts.LoopOnComplete,
		MaxPoseSeconds: opts.MaxPoseSeconds,
	}
	if opts.HistoryPath != "" {
		h, err := history.Open(opts.HistoryPath)
		if err != nil {
			l.Warn("practice log unavailable", slog.Any("err", err))
		} else {
			hist = h
			ctrlOpts.Recorder = h
		}
	}
	ctrl := slideshow.New(ctrlOpts)
	guard.Save = ctrl.Close

	timerText := canvas.NewText(ctrl.State().TimerText(), accentColor)
	timerText.TextSize = 34
	timerText.TextStyle = fyne.TextStyle{Bold: true, Monospace: true}
	counterText := canvas.NewText(ctrl.State().CounterText(), mutedColor)
	counterText.TextSize = 14
	status := widget.NewLabel("Choose a folder to begin")
	status.Truncation = fyne.TextTruncateEllipsis

	secondsEntry := widget.NewEntry()
	secondsEntry.SetText(strconv.Itoa(ctrl.State().PoseSeconds))

	todayText := func() string {
		if hist == nil {
			return ""
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		st, err := hist.Today(ctx)
		if err != nil {
			l.Warn("read practice log failed", slog.Any("err", err))
			return ""
		}
		return fmt.Sprintf("%d poses today (%s)", st.Poses, st.Duration().Round(time.Second))
	}

	var pauseBtn *widget.Button
	view := newImageView(func(pw, ph int) {
		if _, err := ctrl.Render(pw, ph); err != nil && !errors.Is(err, slideshow.ErrNoImages) && !errors.Is(err, imageview.ErrDegenerateViewport) {
			l.Debug("render skipped", slog.Any("err", err))
		}
	})

	ctrl.Subscribe(func(u slideshow.Update) {
		timerText.Text = u.State.TimerText()
		timerText.Refresh()
		counterText.Text = u.State.CounterText()
		counterText.Refresh()
		switch u.Event {
		case slideshow.EventRendered:
			view.SetFrame(u.Frame)
			if u.RenderErr != nil {
				l.Warn("image could not be shown", slog.String("path", u.State.Current), slog.Any("err", u.RenderErr))
				status.SetText(fmt.Sprintf("Could not open %s", filepath.Base(u.State.Current)))
			}
		case slideshow.EventLoaded:
			pauseBtn.Disable()
			pauseBtn.SetText("Pause")
			pauseBtn.SetIcon(theme.MediaPauseIcon())
			w.SetTitle("QuickPose - " + filepath.Base(u.State.Folder))
			status.SetText(fmt.Sprintf("Loaded %d images from %s", u.State.Total, u.State.Folder))
		case slideshow.EventStarted, slideshow.EventResumed:
			pauseBtn.Enable()
			pauseBtn.SetText("Pause")
			pauseBtn.SetIcon(theme.MediaPauseIcon())
			if u.Event == slideshow.EventStarted {
				secondsEntry.SetText(strconv.Itoa(u.State.PoseSeconds))
				status.SetText(todayText())
			}
		case slideshow.EventPaused:
			pauseBtn.SetText("Resume")
			pauseBtn.SetIcon(theme.MediaPlayIcon())
		case slideshow.EventAdvanced:
			status.SetText(todayText())
		case slideshow.EventCompleted:
			pauseBtn.Disable()
			msg := "Session complete"
			if t := todayText(); t != "" {
				msg += ". " + t
			}
			status.SetText(msg)
		}
	})

	loadFolder := func(dir string, quiet bool) {
		err := ctrl.LoadFolder(context.Background(), dir)
		switch {
		case err == nil:
		case errors.Is(err, slideshow.ErrNoImages):
			if !quiet {
				dialog.ShowInformation("No images", fmt.Sprintf("No .jpg, .jpeg or .png files were found in\n%s", dir), w)
			}
		default:
			l.Error("load folder failed", slog.String("folder", dir), slog.Any("err", err))
			if !quiet {
				dialog.ShowError(err, w)
			}
		}
	}

	start := func() {
		n, err := slideshow.ParsePoseSeconds(secondsEntry.Text)
		if err != nil {
			dialog.ShowError(fmt.Errorf("Please enter the pose time as a positive number of seconds."), w)
			return
		}
		if err := ctrl.Start(n); err != nil {
			if errors.Is(err, slideshow.ErrNoImages) {
				dialog.ShowInformation("Start", "Choose a folder with images first.", w)
				return
			}
			dialog.ShowError(err, w)
		}
	}

	togglePause := func() {
		if err := ctrl.TogglePause(); err != nil && !errors.Is(err, slideshow.ErrNotRunning) {
			dialog.ShowError(err, w)
		}
	}

	folderBtn := widget.NewButtonWithIcon("Folder", theme.FolderOpenIcon(), func() {
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				l.Error("folder dialog error", slog.Any("err", err))
				return
			}
			if uri == nil {
				l.Debug("folder selection canceled")
				return
			}
			loadFolder(uri.Path(), false)
		}, w)
		if last := ctrl.State().Folder; last != "" {
			if lister, err := fstorage.ListerForURI(fstorage.NewFileURI(last)); err == nil {
				fd.SetLocation(lister)
			}
		}
		fd.Show()
	})
	prevBtn := widget.NewButtonWithIcon("Prev", theme.MediaSkipPreviousIcon(), func() { ctrl.Prev() })
	pauseBtn = widget.NewButtonWithIcon("Pause", theme.MediaPauseIcon(), togglePause)
	pauseBtn.Disable()
	nextBtn := widget.NewButtonWithIcon("Next", theme.MediaSkipNextIcon(), func() { ctrl.Next() })
	startBtn := widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), start)
	startBtn.Importance = widget.HighImportance
	secondsEntry.OnSubmitted = func(string) { start() }

	overlay := container.NewHBox(timerText, layout.NewSpacer(), counterText)
	buttons := container.NewCenter(container.NewHBox(folderBtn, prevBtn, pauseBtn, nextBtn))
	entryBox := container.NewGridWrap(fyne.NewSize(80, secondsEntry.MinSize().Height), secondsEntry)
	timeRow := container.NewCenter(container.NewHBox(widget.NewLabel("Seconds:"), entryBox, startBtn))
	bottom := container.NewVBox(container.NewPadded(overlay), buttons, timeRow, status)
	bg := canvas.NewRectangle(bgColor)
	w.SetContent(container.NewStack(bg, container.NewBorder(nil, bottom, nil, nil, view)))

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ActionForKey(string(ev.Name)) {
		case ActionTogglePause:
			togglePause()
		case ActionStart:
			start()
		case ActionPrev:
			ctrl.Prev()
		case ActionNext:
			ctrl.Next()
		case ActionToggleFullscreen:
			w.SetFullScreen(!w.FullScreen())
		case ActionExitFullscreen:
			w.SetFullScreen(false)
		}
	})

	w.SetCloseIntercept(func() {
		if n, err := slideshow.ParsePoseSeconds(secondsEntry.Text); err == nil {
			_ = ctrl.SetPoseSeconds(n)
		} else {
			l.Info("ignoring invalid seconds on close", slog.String("text", secondsEntry.Text))
		}
		if err := ctrl.Close(); err != nil {
			l.Error("save settings on close failed", slog.Any("err", err))
		}
		if hist != nil {
			if err := hist.Close(); err != nil {
				l.Warn("close practice log failed", slog.Any("err", err))
			}
		}
		if !w.FullScreen() {
			sz := w.Canvas().Size()
			prefs.SetInt("window.width", int(sz.Width))
			prefs.SetInt("window.height", int(sz.Height))
		}
		w.Close()
	})

	switch {
	case opts.Folder != "":
		loadFolder(opts.Folder, false)
	case ctrl.Settings().LastFolder != "":
		if fi, err := os.Stat(ctrl.Settings().LastFolder); err == nil && fi.IsDir() {
			loadFolder(ctrl.Settings().LastFolder, true)
		}
	}

	w.ShowAndRun()
	return nil
}

// imageView letterboxes the current frame and reports viewport changes in
// device pixels so the frame can be rendered at the new size.
type imageView struct {
	widget.BaseWidget
	bg       *canvas.Rectangle
	img      *canvas.Image
	onResize func(w, h int)
	frame    imageview.Frame
	last     fyne.Size
	scale    float32
}

func newImageView(onResize func(w, h int)) *imageView {
	v := &imageView{onResize: onResize, scale: 1}
	v.bg = canvas.NewRectangle(bgColor)
	v.img = canvas.NewImageFromImage(nil)
	v.img.FillMode = canvas.ImageFillStretch
	v.img.ScaleMode = canvas.ImageScaleSmooth
	v.img.Hide()
	v.ExtendBaseWidget(v)
	return v
}

// SetFrame shows fr centred in the view.
func (v *imageView) SetFrame(fr imageview.Frame) {
	v.frame = fr
	if fr.Image == nil {
		v.img.Hide()
		return
	}
	v.img.Image = fr.Image
	v.img.Show()
	v.place(v.Size())
	v.img.Refresh()
}

func (v *imageView) place(size fyne.Size) {
	if v.frame.Image == nil {
		return
	}
	w := float32(v.frame.Width) / v.scale
	h := float32(v.frame.Height) / v.scale
	v.img.Resize(fyne.NewSize(w, h))
	v.img.Move(fyne.NewPos((size.Width-w)/2, (size.Height-h)/2))
}

func (v *imageView) canvasScale() float32 {
	a := fyne.CurrentApp()
	if a == nil {
		return 1
	}
	if c := a.Driver().CanvasForObject(v); c != nil && c.Scale() > 0 {
		return c.Scale()
	}
	return 1
}

func (v *imageView) CreateRenderer() fyne.WidgetRenderer {
	return &imageViewRenderer{v: v, objects: []fyne.CanvasObject{v.bg, v.img}}
}

type imageViewRenderer struct {
	v       *imageView
	objects []fyne.CanvasObject
}

func (r *imageViewRenderer) Destroy()                     {}
func (r *imageViewRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *imageViewRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 240) }
func (r *imageViewRenderer) Refresh()                     { r.Layout(r.v.Size()); canvas.Refresh(r.v) }

// Layout runs on every resize, so the image is re-rendered for the new
// viewport and not only when the image changes.
func (r *imageViewRenderer) Layout(size fyne.Size) {
	r.v.bg.Resize(size)
	r.v.bg.Move(fyne.NewPos(0, 0))
	scale := r.v.canvasScale()
	if size == r.v.last && scale == r.v.scale {
		r.v.place(size)
		return
	}
	r.v.last = size
	r.v.scale = scale
	r.v.place(size)
	if r.v.onResize != nil {
		r.v.onResize(int(size.Width*scale), int(size.Height*scale))
	}
}
