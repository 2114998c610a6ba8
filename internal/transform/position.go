/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import "layerforge/internal/layer"

// UpdateLayerPosition moves live to orig translated by (dx, dy). Unknown
// kinds are left alone. A marker's arrow tip is positioned independently
// and does not follow the body.
func UpdateLayerPosition(live, orig *layer.Layer, dx, dy float64) {
	if live == nil || orig == nil {
		return
	}
	switch live.Kind {
	case layer.KindRectangle, layer.KindCircle, layer.KindEllipse, layer.KindText, layer.KindTextbox,
		layer.KindPolygon, layer.KindStar, layer.KindCustomShape, layer.KindImage, layer.KindMarker:
		live.X = orig.X + dx
		live.Y = orig.Y + dy
	case layer.KindLine, layer.KindArrow:
		translateEndpoints(live, orig, dx, dy)
		if orig.HasControlPoint() {
			live.ControlX = layer.Float(*orig.ControlX + dx)
			live.ControlY = layer.Float(*orig.ControlY + dy)
		}
	case layer.KindDimension:
		translateEndpoints(live, orig, dx, dy)
	case layer.KindPath:
		if len(orig.Points) == 0 {
			return
		}
		pts := make([]layer.Point, len(orig.Points))
		for i, p := range orig.Points {
			pts[i] = layer.Point{X: p.X + dx, Y: p.Y + dy}
		}
		live.Points = pts
	}
}

func translateEndpoints(live, orig *layer.Layer, dx, dy float64) {
	live.X1 = orig.X1 + dx
	live.Y1 = orig.Y1 + dy
	live.X2 = orig.X2 + dx
	live.Y2 = orig.Y2 + dy
}
