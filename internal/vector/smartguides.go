/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Smart-guide snapping for dragged layers. The computation is UI-agnostic:
// given the moving box and a set of reference boxes it proposes a snapped box
// and the guide lines that explain the snap.

import "math"

// DefaultSnapThreshold is used when SnapOptions.Threshold is not positive.
const DefaultSnapThreshold = 6

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance in canvas units at which snapping occurs.
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// Anchor is a static reference box (another layer, the canvas bounds).
// Higher Weight wins ties; use 1 when unsure.
type Anchor struct {
	Rect   Rect
	Weight float64
}

type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// GuideLine describes a visual guide generated by a snap. Position is the x
// (vertical) or y (horizontal) coordinate, rounded to 3 decimals.
type GuideLine struct {
	Orientation Orientation
	Kind        string // "edge" or "center"
	Position    float64
	From        Pt
	To          Pt
}

type candidate struct {
	delta float64
	dist  float64
	guide GuideLine
	found bool
}

func (c *candidate) consider(delta, threshold, weight float64, g GuideLine) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	if score := dist / math.Max(1, weight); !c.found || score < c.dist {
		c.delta, c.dist, c.guide, c.found = delta, score, g, true
	}
}

// ComputeSmartGuides snaps moving against anchors independently on X and Y.
// It returns the snapped box and the guides to render.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSnapThreshold
	}
	var bx, by candidate
	mL, mR, mCX := moving.X, moving.X+moving.W, moving.X+moving.W/2
	mT, mB, mCY := moving.Y, moving.Y+moving.H, moving.Y+moving.H/2

	for _, a := range anchors {
		aL, aR, aCX := a.Rect.X, a.Rect.X+a.Rect.W, a.Rect.X+a.Rect.W/2
		aT, aB, aCY := a.Rect.Y, a.Rect.Y+a.Rect.H, a.Rect.Y+a.Rect.H/2
		if opts.SnapToEdges {
			for _, pair := range [][2]float64{{mL, aL}, {mR, aR}, {mL, aR}, {mR, aL}} {
				bx.consider(pair[0]-pair[1], opts.Threshold, a.Weight, verticalGuide(pair[1], moving, a.Rect, "edge"))
			}
			for _, pair := range [][2]float64{{mT, aT}, {mB, aB}, {mT, aB}, {mB, aT}} {
				by.consider(pair[0]-pair[1], opts.Threshold, a.Weight, horizontalGuide(pair[1], moving, a.Rect, "edge"))
			}
		}
		if opts.SnapToCenters {
			bx.consider(mCX-aCX, opts.Threshold, a.Weight, verticalGuide(aCX, moving, a.Rect, "center"))
			by.consider(mCY-aCY, opts.Threshold, a.Weight, horizontalGuide(aCY, moving, a.Rect, "center"))
		}
	}

	snapped := moving
	var guides []GuideLine
	if bx.found {
		snapped.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.found {
		snapped.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return snapped, guides
}

func verticalGuide(x float64, a, b Rect, kind string) GuideLine {
	x = FloatRound(x, 3)
	return GuideLine{
		Orientation: Vertical,
		Kind:        kind,
		Position:    x,
		From:        Pt{x, math.Min(a.Y, b.Y)},
		To:          Pt{x, math.Max(a.Y+a.H, b.Y+b.H)},
	}
}

func horizontalGuide(y float64, a, b Rect, kind string) GuideLine {
	y = FloatRound(y, 3)
	return GuideLine{
		Orientation: Horizontal,
		Kind:        kind,
		Position:    y,
		From:        Pt{math.Min(a.X, b.X), y},
		To:          Pt{math.Max(a.X+a.W, b.X+b.W), y},
	}
}
