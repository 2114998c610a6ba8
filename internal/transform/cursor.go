/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"math"

	"layerforge/internal/vector"
)

// Cursor is a CSS-style cursor hint for the canvas.
type Cursor string

const (
	CursorDefault  Cursor = "default"
	CursorNWSE     Cursor = "nwse-resize"
	CursorNESW     Cursor = "nesw-resize"
	CursorEW       Cursor = "ew-resize"
	CursorNS       Cursor = "ns-resize"
	CursorMove     Cursor = "move"
	CursorGrabbing Cursor = "grabbing"
)

// compass lists the resize handles clockwise, 45 degrees apart.
var compass = [...]HandleType{HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW, HandleNW}

// ResizeCursor returns the cursor for a resize handle on a layer rotated by
// rotation degrees. The handle is advanced around the compass by the
// rotation snapped to 45 degrees, so an "n" handle at 90 degrees shows the
// horizontal cursor.
func ResizeCursor(h HandleType, rotation float64) Cursor {
	idx := -1
	for i, c := range compass {
		if c == h {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CursorDefault
	}
	steps := int(math.Round(vector.NormalizeDeg(rotation) / 45))
	switch compass[(idx+steps)%len(compass)] {
	case HandleN, HandleS:
		return CursorNS
	case HandleE, HandleW:
		return CursorEW
	case HandleNE, HandleSW:
		return CursorNESW
	default:
		return CursorNWSE
	}
}
