/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"log/slog"

	"layerforge/internal/canvas"
	"layerforge/internal/transform"
	"layerforge/internal/vector"
)

// Result summarizes a replay.
type Result struct {
	Applied int
	// Skipped lists the source lines of gestures the engine refused to
	// start, e.g. on locked layers.
	Skipped []int
}

// Run replays s against c through e. It stops at the first step that fails
// outright (unknown selection, undo restore error); refused gestures are
// recorded in Result.Skipped instead.
func Run(c *canvas.Canvas, e *transform.Engine, s Script, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	var res Result
	for _, st := range s.Steps {
		started, err := runStep(c, e, st)
		if err != nil {
			return res, fmt.Errorf("line %d: %s: %w", st.LineNo, st.Action, err)
		}
		if !started {
			log.Debug("gesture refused", slog.Int("line", st.LineNo), slog.String("action", string(st.Action)))
			res.Skipped = append(res.Skipped, st.LineNo)
			continue
		}
		res.Applied++
	}
	return res, nil
}

func pt(p [2]float64) vector.Pt { return vector.Pt{X: p[0], Y: p[1]} }

func runStep(c *canvas.Canvas, e *transform.Engine, st Step) (bool, error) {
	switch st.Action {
	case ActionSelect:
		return true, c.Select(st.Select...)
	case ActionResize:
		g := st.Resize
		mods := transform.ModifiersFromKeys(g.Shift, g.Alt)
		e.StartResize(transform.Handle{Type: transform.HandleType(g.Handle), LayerID: g.Layer}, pt(g.From))
		if !e.IsResizing() {
			return false, nil
		}
		for _, p := range g.To {
			e.HandleResize(pt(p), mods)
		}
		e.FinishResize()
	case ActionRotate:
		g := st.Rotate
		mods := transform.ModifiersFromKeys(g.Shift, g.Alt)
		e.StartRotation(pt(g.From))
		if !e.IsRotating() {
			return false, nil
		}
		for _, p := range g.To {
			e.HandleRotation(pt(p), mods)
		}
		e.FinishRotation()
	case ActionDrag:
		g := st.Drag
		e.StartDrag(pt(g.From))
		if !e.IsDragging() {
			return false, nil
		}
		for _, p := range g.To {
			e.HandleDrag(pt(p))
		}
		e.FinishDrag()
	case ActionArrowTip:
		g := st.ArrowTip
		e.StartArrowTipDrag(transform.Handle{Type: transform.HandleArrowTip, LayerID: g.Layer}, pt(g.From))
		if !e.IsArrowTipDragging() {
			return false, nil
		}
		for _, p := range g.To {
			e.HandleArrowTipDrag(pt(p))
		}
		e.FinishArrowTipDrag()
	case ActionUndo:
		for i := 0; i < st.Undo; i++ {
			if ok, err := c.Undo(); err != nil || !ok {
				return ok, err
			}
		}
	case ActionRedo:
		for i := 0; i < st.Redo; i++ {
			if ok, err := c.Redo(); err != nil || !ok {
				return ok, err
			}
		}
	default:
		return false, fmt.Errorf("unknown action %q", st.Action)
	}
	return true, nil
}
