/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layer defines the shape records edited on a canvas and the
// collection that owns them. Layers are plain mutable structs: the transform
// engine updates their fields in place while a gesture is running.
package layer

// Kind discriminates the shape family of a layer.
type Kind string

const (
	KindRectangle   Kind = "rectangle"
	KindCircle      Kind = "circle"
	KindEllipse     Kind = "ellipse"
	KindPolygon     Kind = "polygon"
	KindStar        Kind = "star"
	KindLine        Kind = "line"
	KindArrow       Kind = "arrow"
	KindPath        Kind = "path"
	KindText        Kind = "text"
	KindTextbox     Kind = "textbox"
	KindImage       Kind = "image"
	KindMarker      Kind = "marker"
	KindCustomShape Kind = "customShape"
	KindDimension   Kind = "dimension"
	KindGroup       Kind = "group"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{
	KindRectangle, KindCircle, KindEllipse, KindPolygon, KindStar, KindLine, KindArrow, KindPath,
	KindText, KindTextbox, KindImage, KindMarker, KindCustomShape, KindDimension, KindGroup,
}

// Point is a vertex of a path or polygon layer.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layer is a single shape record. Which positional fields are meaningful
// depends on Kind:
//
//	rectangle, textbox, image, customShape: X, Y, Width, Height
//	circle: X, Y (center), Radius
//	ellipse: X, Y (center), RadiusX, RadiusY
//	polygon, star: X, Y (center), Radius (star also OuterRadius, InnerRadius)
//	line, arrow, dimension: X1, Y1, X2, Y2 (arrow may carry ControlX/ControlY)
//	path: Points
//	text: X, Y, FontSize, Text
//	marker: X, Y plus an independently placed ArrowX/ArrowY tip
//	group: Children, Expanded
type Layer struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"type"`
	Name        string  `json:"name,omitempty"`
	Locked      bool    `json:"locked,omitempty"`
	ParentGroup string  `json:"parentGroup,omitempty"`
	Rotation    float64 `json:"rotation,omitempty"`

	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	Radius      float64 `json:"radius,omitempty"`
	RadiusX     float64 `json:"radiusX,omitempty"`
	RadiusY     float64 `json:"radiusY,omitempty"`
	OuterRadius float64 `json:"outerRadius,omitempty"`
	InnerRadius float64 `json:"innerRadius,omitempty"`
	Sides       int     `json:"sides,omitempty"`

	X1       float64  `json:"x1,omitempty"`
	Y1       float64  `json:"y1,omitempty"`
	X2       float64  `json:"x2,omitempty"`
	Y2       float64  `json:"y2,omitempty"`
	ControlX *float64 `json:"controlX,omitempty"`
	ControlY *float64 `json:"controlY,omitempty"`

	ArrowX *float64 `json:"arrowX,omitempty"`
	ArrowY *float64 `json:"arrowY,omitempty"`

	Points []Point `json:"points,omitempty"`

	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`

	// Src holds inline image data; PathData holds an SVG path string for
	// custom shapes. Both can be large.
	Src      string `json:"src,omitempty"`
	PathData string `json:"path,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	Children []string `json:"children,omitempty"`
	Expanded bool     `json:"expanded,omitempty"`
}

// Float returns a pointer to v, for optional fields and patches.
func Float(v float64) *float64 { return &v }

// HasControlPoint reports whether a curved-arrow control point is present.
func (l *Layer) HasControlPoint() bool { return l.ControlX != nil && l.ControlY != nil }

// Clone returns a deep copy of l. A nil layer clones to nil.
func (l *Layer) Clone() *Layer {
	if l == nil {
		return nil
	}
	c := *l
	c.ControlX = clonePtr(l.ControlX)
	c.ControlY = clonePtr(l.ControlY)
	c.ArrowX = clonePtr(l.ArrowX)
	c.ArrowY = clonePtr(l.ArrowY)
	if l.Points != nil {
		c.Points = append([]Point(nil), l.Points...)
	}
	if l.Children != nil {
		c.Children = append([]string(nil), l.Children...)
	}
	return &c
}

// LightClone copies l one level deep but leaves out the bulky Src and
// PathData fields. It is meant for high-frequency live-update events.
func (l *Layer) LightClone() *Layer {
	c := l.Clone()
	if c != nil {
		c.Src = ""
		c.PathData = ""
	}
	return c
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
