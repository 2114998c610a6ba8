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

	"gopkg.in/yaml.v3"
)

var handles = map[string]bool{"n": true, "ne": true, "e": true, "se": true, "s": true, "sw": true, "w": true, "nw": true}

// Parse parses a YAML gesture script. Syntax:
//
//	steps:
//	  - select: [rect-1, circle-2]
//	  - resize: {handle: se, from: [300, 250], to: [[350, 300]], shift: true}
//	  - rotate: {from: [100, 50], to: [[50, 100]]}
//	  - drag: {from: [0, 0], to: [[10, 0], [20, 30]]}
//	  - arrowTip: {layer: marker-1, from: [150, 150], to: [[200, 180]]}
//	  - undo: 1
//	  - redo: 1
//
// Invalid steps are reported with their position and left out of the result.
func Parse(input string) (Script, []Error) {
	s := Script{Steps: []Step{}}
	var errs []Error

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(input), &root); err != nil {
		return s, []Error{{Line: 1, Column: 1, Message: err.Error()}}
	}
	if len(root.Content) == 0 {
		return s, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return s, []Error{{Line: doc.Line, Column: doc.Column, Message: "script must be a mapping with a steps list"}}
	}
	var steps *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "steps" {
			steps = doc.Content[i+1]
		}
	}
	if steps == nil {
		return s, []Error{{Line: doc.Line, Column: doc.Column, Message: "missing steps"}}
	}
	if steps.Kind != yaml.SequenceNode {
		return s, []Error{{Line: steps.Line, Column: steps.Column, Message: "steps must be a list"}}
	}

	for _, n := range steps.Content {
		var st Step
		if err := n.Decode(&st); err != nil {
			errs = append(errs, Error{Line: n.Line, Column: n.Column, Message: err.Error()})
			continue
		}
		st.LineNo = n.Line
		if msg := classify(&st, n); msg != "" {
			errs = append(errs, Error{Line: n.Line, Column: n.Column, Message: msg})
			continue
		}
		s.Steps = append(s.Steps, st)
	}
	return s, errs
}

// classify sets st.Action from the keys present in n and validates the step.
func classify(st *Step, n *yaml.Node) string {
	if n.Kind != yaml.MappingNode {
		return "step must be a mapping"
	}
	var keys []string
	for i := 0; i < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	if len(keys) != 1 {
		return fmt.Sprintf("step must have exactly one action, got %v", keys)
	}
	st.Action = Action(keys[0])
	switch st.Action {
	case ActionSelect:
		if len(st.Select) == 0 {
			return "select needs at least one layer id"
		}
	case ActionResize:
		if st.Resize == nil || !handles[st.Resize.Handle] {
			return "resize needs a compass handle (n, ne, e, se, s, sw, w, nw)"
		}
		return checkGesture(st.Resize)
	case ActionRotate:
		return checkGesture(st.Rotate)
	case ActionDrag:
		return checkGesture(st.Drag)
	case ActionArrowTip:
		return checkGesture(st.ArrowTip)
	case ActionUndo:
		if st.Undo <= 0 {
			return "undo count must be positive"
		}
	case ActionRedo:
		if st.Redo <= 0 {
			return "redo count must be positive"
		}
	default:
		return fmt.Sprintf("unknown action %q", keys[0])
	}
	return ""
}

func checkGesture(g *Gesture) string {
	if g == nil || len(g.To) == 0 {
		return "gesture needs at least one point in to"
	}
	return ""
}

func fmtError(e Error) string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
}
