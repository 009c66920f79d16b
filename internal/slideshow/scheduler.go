/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package slideshow

import (
	"context"
	"time"
)

// Timer is a handle to one scheduled callback.
type Timer interface {
	// Stop cancels the callback; it reports false if it already ran or was stopped.
	Stop() bool
}

// Scheduler runs fn once after d on the controller's goroutine.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// NewTimeScheduler returns a Scheduler backed by time.AfterFunc.
// Callbacks are handed to dispatch, which must run them on the goroutine that
// owns the controller (fyne.Do in the desktop UI, Loop.Dispatch headless).
func NewTimeScheduler(dispatch func(func())) Scheduler {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return timeScheduler{dispatch: dispatch}
}

type timeScheduler struct {
	dispatch func(func())
}

func (s timeScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { s.dispatch(fn) })
}

// Loop serialises callbacks onto the goroutine calling Run.
type Loop struct {
	ch   chan func()
	done chan struct{}
}

// NewLoop returns a loop with a small buffer.
func NewLoop() *Loop {
	return &Loop{ch: make(chan func(), 16), done: make(chan struct{})}
}

// Dispatch queues fn. Callbacks queued after Run returned are dropped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case l.ch <- fn:
	case <-l.done:
	}
}

// Run executes queued callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.ch:
			fn()
		}
	}
}
