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

	"layerforge/internal/layer"
	"layerforge/internal/vector"
)

// HandleType names a selection handle: one of the eight compass points used
// for resizing, or the independent arrow tip of a marker.
type HandleType string

const (
	HandleN        HandleType = "n"
	HandleNE       HandleType = "ne"
	HandleE        HandleType = "e"
	HandleSE       HandleType = "se"
	HandleS        HandleType = "s"
	HandleSW       HandleType = "sw"
	HandleW        HandleType = "w"
	HandleNW       HandleType = "nw"
	HandleArrowTip HandleType = "arrowTip"
)

// Handle is the grabbed control. LayerID is optional and identifies the
// owner when it differs from the selection (arrow tips).
type Handle struct {
	Type    HandleType
	LayerID string
}

// Modifiers are the keyboard states that alter a gesture.
type Modifiers struct {
	Proportional bool // keep aspect ratio while resizing
	FromCenter   bool // resize symmetrically about the center
	SnapRotation bool // round rotation to 15 degree steps
}

// ModifiersFromKeys maps the usual shift/alt keys: shift keeps proportions
// and snaps rotation, alt resizes from the center.
func ModifiersFromKeys(shift, alt bool) Modifiers {
	return Modifiers{Proportional: shift, FromCenter: alt, SnapRotation: shift}
}

const (
	minRectSize    = 5
	minRadius      = 5
	minPolyRadius  = 10
	minFontSize    = 6
	maxFontSize    = 500
	maxCoord       = 10000
	minPathScale   = 0.1
	defaultFont    = 16
	starInnerRatio = 0.5
)

type sides struct{ west, east, north, south bool }

func sidesOf(h HandleType) (sides, bool) {
	switch h {
	case HandleN:
		return sides{north: true}, true
	case HandleS:
		return sides{south: true}, true
	case HandleE:
		return sides{east: true}, true
	case HandleW:
		return sides{west: true}, true
	case HandleNE:
		return sides{north: true, east: true}, true
	case HandleNW:
		return sides{north: true, west: true}, true
	case HandleSE:
		return sides{south: true, east: true}, true
	case HandleSW:
		return sides{south: true, west: true}, true
	default:
		return sides{}, false
	}
}

func (s sides) horizontal() bool { return s.east || s.west }
func (s sides) vertical() bool   { return s.north || s.south }

// growth converts a pointer delta into outward growth per axis: dragging an
// east or south side outward is positive, as is dragging a west or north
// side towards negative coordinates.
func (s sides) growth(dx, dy float64) (gx, gy float64) {
	switch {
	case s.east:
		gx = dx
	case s.west:
		gx = -dx
	}
	switch {
	case s.south:
		gy = dy
	case s.north:
		gy = -dy
	}
	return gx, gy
}

// CalculateResize maps an original shape, the grabbed handle and the total
// pointer delta (in the shape's local axes) to the geometry fields that
// change. It returns nil when the shape cannot be resized this way.
func CalculateResize(orig *layer.Layer, h HandleType, dx, dy float64, mods Modifiers) *layer.Patch {
	if orig == nil {
		return nil
	}
	switch orig.Kind {
	case layer.KindRectangle, layer.KindTextbox, layer.KindImage, layer.KindCustomShape:
		return resizeRect(orig, h, dx, dy, mods)
	case layer.KindCircle:
		return resizeRadius(orig.Radius, h, dx, dy, minRadius)
	case layer.KindEllipse:
		return resizeEllipse(orig, h, dx, dy)
	case layer.KindPolygon, layer.KindStar:
		return resizeRadius(orig.Radius, h, dx, dy, minPolyRadius)
	case layer.KindLine, layer.KindArrow, layer.KindDimension:
		return resizeLine(orig, h, dx, dy)
	case layer.KindPath:
		return resizePath(orig, dx, dy)
	case layer.KindText:
		return resizeText(orig, h, dx, dy)
	default:
		return nil
	}
}

func resizeRect(o *layer.Layer, h HandleType, dx, dy float64, mods Modifiers) *layer.Patch {
	sd, ok := sidesOf(h)
	if !ok {
		return nil
	}
	gx, gy := sd.growth(dx, dy)
	horiz, vert := sd.horizontal(), sd.vertical()

	if mods.Proportional && o.Width > 0 && o.Height > 0 {
		aspect := o.Width / o.Height
		switch {
		case horiz && vert:
			if math.Abs(gx) >= math.Abs(gy)*aspect {
				gy = gx / aspect
			} else {
				gx = gy * aspect
			}
		case horiz:
			gy, vert = gx/aspect, true
		case vert:
			gx, horiz = gy*aspect, true
		}
	}

	factor := 1.0
	if mods.FromCenter {
		factor = 2
	}
	p := &layer.Patch{}
	if horiz {
		w := math.Max(minRectSize, o.Width+factor*gx)
		p.Width = layer.Float(w)
		switch {
		case mods.FromCenter:
			p.X = layer.Float(clampCoord(o.X - (w-o.Width)/2))
		case sd.west:
			p.X = layer.Float(clampCoord(o.X + o.Width - w))
		}
	}
	if vert {
		hgt := math.Max(minRectSize, o.Height+factor*gy)
		p.Height = layer.Float(hgt)
		switch {
		case mods.FromCenter:
			p.Y = layer.Float(clampCoord(o.Y - (hgt-o.Height)/2))
		case sd.north:
			p.Y = layer.Float(clampCoord(o.Y + o.Height - hgt))
		}
	}
	return p
}

func resizeRadius(r float64, h HandleType, dx, dy, floor float64) *layer.Patch {
	sd, ok := sidesOf(h)
	if !ok {
		return nil
	}
	gx, gy := sd.growth(dx, dy)
	var g float64
	switch {
	case sd.horizontal() && sd.vertical():
		g = math.Max(gx, gy)
	case sd.horizontal():
		g = gx
	default:
		g = gy
	}
	return &layer.Patch{Radius: layer.Float(math.Max(floor, r+g))}
}

// resizeEllipse moves one radius per edge handle. Corner handles leave the
// ellipse unchanged.
func resizeEllipse(o *layer.Layer, h HandleType, dx, dy float64) *layer.Patch {
	p := &layer.Patch{}
	switch h {
	case HandleE:
		p.RadiusX = layer.Float(math.Max(minRadius, o.RadiusX+dx))
	case HandleW:
		p.RadiusX = layer.Float(math.Max(minRadius, o.RadiusX-dx))
	case HandleS:
		p.RadiusY = layer.Float(math.Max(minRadius, o.RadiusY+dy))
	case HandleN:
		p.RadiusY = layer.Float(math.Max(minRadius, o.RadiusY-dy))
	}
	return p
}

func resizeLine(o *layer.Layer, h HandleType, dx, dy float64) *layer.Patch {
	switch h {
	case HandleW, HandleNW, HandleSW:
		return &layer.Patch{X1: layer.Float(clampCoord(o.X1 + dx)), Y1: layer.Float(clampCoord(o.Y1 + dy))}
	default:
		return &layer.Patch{X2: layer.Float(clampCoord(o.X2 + dx)), Y2: layer.Float(clampCoord(o.Y2 + dy))}
	}
}

// resizePath scales every vertex about the top-left of the path's bounds.
func resizePath(o *layer.Layer, dx, dy float64) *layer.Patch {
	if len(o.Points) == 0 {
		return nil
	}
	sx := math.Max(minPathScale, 1+dx/100)
	sy := math.Max(minPathScale, 1+dy/100)
	minX, minY := o.Points[0].X, o.Points[0].Y
	for _, pt := range o.Points[1:] {
		minX = math.Min(minX, pt.X)
		minY = math.Min(minY, pt.Y)
	}
	pts := make([]layer.Point, len(o.Points))
	for i, pt := range o.Points {
		pts[i] = layer.Point{
			X: clampCoord(minX + (pt.X-minX)*sx),
			Y: clampCoord(minY + (pt.Y-minY)*sy),
		}
	}
	return &layer.Patch{Points: pts}
}

func resizeText(o *layer.Layer, h HandleType, dx, dy float64) *layer.Patch {
	sd, ok := sidesOf(h)
	if !ok {
		return nil
	}
	gx, gy := sd.growth(dx, dy)
	g := gy
	if sd.horizontal() && (!sd.vertical() || math.Abs(gx) > math.Abs(gy)) {
		g = gx
	}
	size := o.FontSize
	if size <= 0 {
		size = defaultFont
	}
	return &layer.Patch{FontSize: layer.Float(vector.Clamp(size+g, minFontSize, maxFontSize))}
}

// syncStarRadii keeps a star's dependent radii in step with a new radius.
func syncStarRadii(kind layer.Kind, p *layer.Patch) {
	if kind != layer.KindStar || p == nil || p.Radius == nil {
		return
	}
	r := *p.Radius
	p.OuterRadius = layer.Float(r)
	p.InnerRadius = layer.Float(r * starInnerRatio)
}

func clampCoord(v float64) float64 { return vector.Clamp(v, -maxCoord, maxCoord) }
