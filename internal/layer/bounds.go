/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layer

import (
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"layerforge/internal/vector"
)

const (
	defaultFontSize = 16
	lineHeight      = 1.2
)

// Bounds returns the unrotated axis-aligned box of l. ok is false for kinds
// whose extent cannot be derived from the layer alone (groups, empty paths).
func Bounds(l *Layer) (r vector.Rect, ok bool) {
	if l == nil {
		return vector.Rect{}, false
	}
	switch l.Kind {
	case KindRectangle, KindTextbox, KindImage, KindCustomShape:
		return normRect(l.X, l.Y, l.Width, l.Height), true
	case KindCircle:
		return vector.R(l.X-l.Radius, l.Y-l.Radius, 2*l.Radius, 2*l.Radius), true
	case KindEllipse:
		return vector.R(l.X-l.RadiusX, l.Y-l.RadiusY, 2*l.RadiusX, 2*l.RadiusY), true
	case KindPolygon, KindStar:
		r := math.Max(l.Radius, l.OuterRadius)
		return vector.R(l.X-r, l.Y-r, 2*r, 2*r), true
	case KindLine, KindArrow, KindDimension:
		pts := []vector.Pt{{X: l.X1, Y: l.Y1}, {X: l.X2, Y: l.Y2}}
		if l.HasControlPoint() {
			pts = append(pts, vector.Pt{X: *l.ControlX, Y: *l.ControlY})
		}
		return vector.BoundsOf(pts)
	case KindPath:
		pts := make([]vector.Pt, len(l.Points))
		for i, p := range l.Points {
			pts[i] = vector.Pt{X: p.X, Y: p.Y}
		}
		return vector.BoundsOf(pts)
	case KindText:
		w, h := MeasureText(l.Text, l.FontSize)
		return vector.R(l.X, l.Y, w, h), true
	case KindMarker:
		r := math.Max(l.Radius, 12)
		return vector.R(l.X-r, l.Y-r, 2*r, 2*r), true
	default:
		return vector.Rect{}, false
	}
}

// MeasureText estimates the rendered size of text at fontSize using the
// metrics of a fixed 7x13 face scaled to the requested size.
func MeasureText(text string, fontSize float64) (w, h float64) {
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	face := basicfont.Face7x13
	scale := fontSize / float64(face.Height)
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		adv := font.MeasureString(face, line)
		w = math.Max(w, float64(adv.Ceil())*scale)
	}
	return w, float64(len(lines)) * fontSize * lineHeight
}

// Anchor returns the reference position used when snapping a dragged layer:
// the x/y origin for point-anchored kinds, the first endpoint for lines and
// the first vertex for paths.
func Anchor(l *Layer) (x, y float64, ok bool) {
	if l == nil {
		return 0, 0, false
	}
	switch l.Kind {
	case KindLine, KindArrow, KindDimension:
		return l.X1, l.Y1, true
	case KindPath:
		if len(l.Points) == 0 {
			return 0, 0, false
		}
		return l.Points[0].X, l.Points[0].Y, true
	case KindGroup:
		return 0, 0, false
	default:
		return l.X, l.Y, true
	}
}

func normRect(x, y, w, h float64) vector.Rect {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return vector.R(x, y, w, h)
}
