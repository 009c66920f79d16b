/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import "strings"

// Action is what a key press asks the window to do.
type Action int

const (
	ActionNone Action = iota
	ActionTogglePause
	ActionStart
	ActionPrev
	ActionNext
	ActionToggleFullscreen
	ActionExitFullscreen
)

// ActionForKey maps a toolkit key name ("Space", "Return", "Left", ...) to an
// Action. Letter keys match regardless of case.
func ActionForKey(name string) Action {
	switch strings.ToLower(name) {
	case "space", " ":
		return ActionTogglePause
	case "return", "enter":
		return ActionStart
	case "left":
		return ActionPrev
	case "right":
		return ActionNext
	case "f":
		return ActionToggleFullscreen
	case "escape":
		return ActionExitFullscreen
	default:
		return ActionNone
	}
}
