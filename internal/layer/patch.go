/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layer

// Patch is a partial geometry update. Nil fields are left untouched, so a
// patch carries exactly the fields a resize or update actually changes.
type Patch struct {
	X, Y, Width, Height *float64

	Radius, RadiusX, RadiusY *float64
	OuterRadius, InnerRadius *float64

	X1, Y1, X2, Y2 *float64
	ArrowX, ArrowY *float64

	FontSize *float64
	Rotation *float64

	Points []Point
}

// IsZero reports whether the patch changes nothing.
func (p *Patch) IsZero() bool {
	if p == nil {
		return true
	}
	for _, f := range p.fields() {
		if f != nil {
			return false
		}
	}
	return p.Points == nil
}

func (p *Patch) fields() []*float64 {
	return []*float64{
		p.X, p.Y, p.Width, p.Height,
		p.Radius, p.RadiusX, p.RadiusY, p.OuterRadius, p.InnerRadius,
		p.X1, p.Y1, p.X2, p.Y2, p.ArrowX, p.ArrowY,
		p.FontSize, p.Rotation,
	}
}

// Apply writes the set fields of p into l.
func (p *Patch) Apply(l *Layer) {
	if p == nil || l == nil {
		return
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&l.X, p.X)
	set(&l.Y, p.Y)
	set(&l.Width, p.Width)
	set(&l.Height, p.Height)
	set(&l.Radius, p.Radius)
	set(&l.RadiusX, p.RadiusX)
	set(&l.RadiusY, p.RadiusY)
	set(&l.OuterRadius, p.OuterRadius)
	set(&l.InnerRadius, p.InnerRadius)
	set(&l.X1, p.X1)
	set(&l.Y1, p.Y1)
	set(&l.X2, p.X2)
	set(&l.Y2, p.Y2)
	set(&l.FontSize, p.FontSize)
	set(&l.Rotation, p.Rotation)
	if p.ArrowX != nil {
		l.ArrowX = Float(*p.ArrowX)
	}
	if p.ArrowY != nil {
		l.ArrowY = Float(*p.ArrowY)
	}
	if p.Points != nil {
		l.Points = append(l.Points[:0:0], p.Points...)
	}
}
