/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layer

import (
	"encoding/json"
	"fmt"

	"layerforge/internal/vector"
)

// Collection owns the live layers of one document in z-order. It is the
// authoritative store the transform engine reads from and writes through.
// A Collection is not safe for concurrent use; editing is single-threaded.
type Collection struct {
	order []*Layer
	byID  map[string]*Layer
}

// NewCollection builds a collection from layers. Duplicate ids keep the first.
func NewCollection(layers ...*Layer) *Collection {
	c := &Collection{order: make([]*Layer, 0, len(layers)), byID: make(map[string]*Layer, len(layers))}
	for _, l := range layers {
		_ = c.Add(l)
	}
	return c
}

// Add appends l on top of the stack.
func (c *Collection) Add(l *Layer) error {
	if l == nil || l.ID == "" {
		return fmt.Errorf("add layer: missing id")
	}
	if _, dup := c.byID[l.ID]; dup {
		return fmt.Errorf("add layer %q: duplicate id", l.ID)
	}
	c.order = append(c.order, l)
	c.byID[l.ID] = l
	return nil
}

// Layer returns the live layer with id, or nil.
func (c *Collection) Layer(id string) *Layer {
	if c == nil {
		return nil
	}
	return c.byID[id]
}

// Layers returns the live layers in z-order. The slice is a copy; the
// layers are not.
func (c *Collection) Layers() []*Layer {
	if c == nil {
		return nil
	}
	return append([]*Layer(nil), c.order...)
}

// Len returns the number of layers.
func (c *Collection) Len() int { return len(c.order) }

// UpdateLayer applies p to the layer with id through the collection's own
// write path. It reports whether the layer exists.
func (c *Collection) UpdateLayer(id string, p Patch) bool {
	l := c.Layer(id)
	if l == nil {
		return false
	}
	p.Apply(l)
	return true
}

// IsEffectivelyLocked resolves l's lock state against this collection.
func (c *Collection) IsEffectivelyLocked(l *Layer) bool {
	return IsEffectivelyLocked(l, c.Layer)
}

// Snapshot deep-copies every layer.
func (c *Collection) Snapshot() []*Layer {
	out := make([]*Layer, len(c.order))
	for i, l := range c.order {
		out[i] = l.Clone()
	}
	return out
}

// Replace swaps the whole content for layers, e.g. when restoring history.
func (c *Collection) Replace(layers []*Layer) {
	c.order = c.order[:0]
	c.byID = make(map[string]*Layer, len(layers))
	for _, l := range layers {
		_ = c.Add(l)
	}
}

// MarshalJSON encodes the collection as a document.
func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(Document{Layers: c.order})
}

// Bounds extends the package-level Bounds with groups, whose box is the
// union of their resolvable children.
func (c *Collection) Bounds(l *Layer) (vector.Rect, bool) {
	return c.bounds(l, 0)
}

func (c *Collection) bounds(l *Layer, depth int) (vector.Rect, bool) {
	if l == nil || l.Kind != KindGroup {
		return Bounds(l)
	}
	if depth >= maxLockDepth {
		return vector.Rect{}, false
	}
	var out vector.Rect
	found := false
	for _, id := range l.Children {
		r, ok := c.bounds(c.Layer(id), depth+1)
		if !ok {
			continue
		}
		if !found {
			out, found = r, true
			continue
		}
		out = out.Union(r)
	}
	return out, found
}
