/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Script is a parsed gesture script: an ordered list of steps replayed
// against a canvas.
type Script struct {
	Steps []Step
}

// Action names the kind of a step.
type Action string

const (
	ActionSelect   Action = "select"
	ActionResize   Action = "resize"
	ActionRotate   Action = "rotate"
	ActionDrag     Action = "drag"
	ActionArrowTip Action = "arrowTip"
	ActionUndo     Action = "undo"
	ActionRedo     Action = "redo"
)

// Step is one scripted user action. Exactly one action key is set in the
// source; Action records which.
type Step struct {
	Action Action `yaml:"-"`
	LineNo int    `yaml:"-"` // 1-based line of the step in the source

	Select   []string `yaml:"select"`
	Resize   *Gesture `yaml:"resize"`
	Rotate   *Gesture `yaml:"rotate"`
	Drag     *Gesture `yaml:"drag"`
	ArrowTip *Gesture `yaml:"arrowTip"`
	Undo     int      `yaml:"undo"`
	Redo     int      `yaml:"redo"`
}

// Gesture is a pointer press at From followed by moves through To, then a
// release. Shift and Alt map to the usual modifiers.
type Gesture struct {
	Handle string       `yaml:"handle"`
	Layer  string       `yaml:"layer"`
	From   [2]float64   `yaml:"from"`
	To     [][2]float64 `yaml:"to"`
	Shift  bool         `yaml:"shift"`
	Alt    bool         `yaml:"alt"`
}

// Error represents a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmtError(e) }
