/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package transform turns pointer gestures into layer geometry. An Engine
// owns at most one gesture at a time (resize, rotate, drag or arrow-tip
// drag); every update is computed from the snapshot taken when the gesture
// started plus the total pointer delta, so long gestures do not drift.
package transform

import (
	"layerforge/internal/layer"
	"layerforge/internal/vector"
)

// Host is the editor that owns the layers and the selection.
type Host interface {
	Layer(id string) *layer.Layer
	Layers() []*layer.Layer
	SelectedLayerID() string
	SelectedLayerIDs() []string
}

// BoundsProvider supplies the unrotated box of a layer; rotation pivots on
// its center.
type BoundsProvider interface {
	Bounds(l *layer.Layer) (vector.Rect, bool)
}

// GridSnapper reports whether drags snap to a grid and its step.
type GridSnapper interface {
	GridSnapEnabled() bool
	GridSize() float64
}

// SmartGuides proposes aligned drag positions and manages their overlay.
type SmartGuides interface {
	Enabled() bool
	CanvasSnapEnabled() bool
	CalculateSnappedPosition(l *layer.Layer, x, y float64) (float64, float64)
	ClearGuides()
}

// Renderer is asked to repaint after every geometry change.
type Renderer interface {
	RequestRender()
}

// Committer records an undoable change under a human readable label.
type Committer interface {
	SaveState(label string)
}

// CursorSink receives cursor hints for the canvas.
type CursorSink interface {
	SetCursor(c Cursor)
}

// LayerUpdater is the authoritative write path of the layer collection.
type LayerUpdater interface {
	UpdateLayer(id string, p layer.Patch) bool
}

// NotificationSink receives live-update events.
type NotificationSink interface {
	Dispatch(ev Event) error
}

// ErrorReporter receives failures the engine contains instead of raising.
type ErrorReporter interface {
	Report(err error, component, category string)
}

// Commit labels.
const (
	LabelResize   = "Resize layer"
	LabelRotate   = "Rotate layer"
	LabelMove     = "Move layer"
	LabelArrowTip = "Move arrow tip"
)
