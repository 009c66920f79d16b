/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package slideshow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"quickpose/internal/imageview"
)

var (
	ErrNoImages        = errors.New("no images loaded")
	ErrInvalidPoseTime = errors.New("pose time must be a positive whole number of seconds")
	ErrNotRunning      = errors.New("session not running")
)

// State is a snapshot of the session. Paused implies Running.
type State struct {
	Index       int
	Total       int
	TimeLeft    int
	PoseSeconds int // session pose time while running, otherwise the stored default
	Running     bool
	Paused      bool
	Complete    bool
	Current     string // path of the current image, empty when nothing is loaded
	Folder      string
}

// TimerText renders the countdown label, e.g. "42s".
func (s State) TimerText() string {
	if s.Running || s.Complete {
		return fmt.Sprintf("%ds", s.TimeLeft)
	}
	return fmt.Sprintf("%ds", s.PoseSeconds)
}

// CounterText renders the 1-based position, "0 / 0" when empty.
func (s State) CounterText() string {
	if s.Total == 0 {
		return "0 / 0"
	}
	return fmt.Sprintf("%d / %d", s.Index+1, s.Total)
}

// Event names what changed.
type Event int

const (
	EventLoaded Event = iota
	EventStarted
	EventTick
	EventPaused
	EventResumed
	EventAdvanced
	EventCompleted
	EventRendered
)

func (e Event) String() string {
	switch e {
	case EventLoaded:
		return "loaded"
	case EventStarted:
		return "started"
	case EventTick:
		return "tick"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventAdvanced:
		return "advanced"
	case EventCompleted:
		return "completed"
	case EventRendered:
		return "rendered"
	default:
		return "event(" + strconv.Itoa(int(e)) + ")"
	}
}

// Update is delivered to listeners after every mutation.
// Frame and RenderErr are only set for EventRendered.
type Update struct {
	Event     Event
	State     State
	Frame     imageview.Frame
	RenderErr error
}

// Listener observes updates. Listeners must not call back into the controller
// synchronously except for read-only State.
type Listener func(Update)

// ParsePoseSeconds validates free-text input from the seconds field.
func ParsePoseSeconds(text string) (int, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "s"))
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q: %w", text, ErrInvalidPoseTime)
	}
	return n, nil
}
