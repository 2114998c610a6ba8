/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas is an in-process editor host for the transform engine: it
// owns a layer collection and the selection, snaps drags to the grid or to
// smart guides, and records every commit into labeled undo history.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"layerforge/internal/journal"
	"layerforge/internal/layer"
	"layerforge/internal/transform"
	"layerforge/internal/undo"
	"layerforge/internal/vector"
)

// Journal persists commits; *journal.Journal satisfies it.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// Options configures a Canvas. Zero values disable grid snapping, smart
// guides and the journal.
type Options struct {
	DocID string

	GridSize      float64
	GridSnap      bool
	SmartGuides   bool
	CanvasSnap    bool
	SnapThreshold float64
	Width, Height float64

	History *undo.Manager
	Journal Journal
	Errors  transform.ErrorReporter
	Logger  *slog.Logger
	// Now stamps history snapshots; defaults to time.Now.
	Now func() time.Time
}

// Canvas hosts one document. It is not safe for concurrent use.
type Canvas struct {
	opts Options
	coll *layer.Collection
	log  *slog.Logger

	selected []string
	cursor   transform.Cursor
	renders  int
	guides   []vector.GuideLine

	base      []byte
	commits   []string
	events    int
	listeners []func(transform.Event) error
}

// New creates a canvas over coll. The current state of coll becomes the
// bottom of the undo history.
func New(coll *layer.Collection, opts Options) (*Canvas, error) {
	if coll == nil {
		coll = layer.NewCollection()
	}
	if opts.DocID == "" {
		opts.DocID = "untitled"
	}
	if opts.History == nil {
		opts.History = undo.NewManager(undo.Config{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := opts.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	base, err := layer.Encode(coll)
	if err != nil {
		return nil, fmt.Errorf("encode initial document: %w", err)
	}
	return &Canvas{
		opts:   opts,
		coll:   coll,
		log:    l.With(slog.String("component", "canvas"), slog.String("doc", opts.DocID)),
		cursor: transform.CursorDefault,
		base:   base,
	}, nil
}

// NewEngine returns a transform engine wired to every collaborator of c.
func (c *Canvas) NewEngine(maxDelta float64) *transform.Engine {
	return transform.New(c, transform.Options{
		Bounds:   c.coll,
		Grid:     c,
		Guides:   c,
		Renderer: c,
		History:  c,
		Cursor:   c,
		Updater:  c,
		Document: c,
		Errors:   c.opts.Errors,
		Logger:   c.log,
		MaxDelta: maxDelta,
	})
}

func (c *Canvas) Collection() *layer.Collection { return c.coll }
func (c *Canvas) DocID() string                  { return c.opts.DocID }

// Host

func (c *Canvas) Layer(id string) *layer.Layer { return c.coll.Layer(id) }
func (c *Canvas) Layers() []*layer.Layer       { return c.coll.Layers() }

func (c *Canvas) SelectedLayerID() string {
	if len(c.selected) == 0 {
		return ""
	}
	return c.selected[0]
}

func (c *Canvas) SelectedLayerIDs() []string { return append([]string(nil), c.selected...) }

// Select replaces the selection. Unknown ids are rejected.
func (c *Canvas) Select(ids ...string) error {
	for _, id := range ids {
		if c.coll.Layer(id) == nil {
			return fmt.Errorf("select: unknown layer %q", id)
		}
	}
	c.selected = append([]string(nil), ids...)
	return nil
}

// Grid

func (c *Canvas) GridSnapEnabled() bool { return c.opts.GridSnap }
func (c *Canvas) GridSize() float64     { return c.opts.GridSize }

// Smart guides

func (c *Canvas) Enabled() bool           { return c.opts.SmartGuides }
func (c *Canvas) CanvasSnapEnabled() bool { return c.opts.CanvasSnap && c.opts.Width > 0 && c.opts.Height > 0 }

// CalculateSnappedPosition places l with its anchor at (x, y) and aligns its
// box with the other unselected layers (when smart guides are enabled) and
// the canvas edges and center (when canvas snapping is enabled). The guides
// that explain the result are kept until ClearGuides.
func (c *Canvas) CalculateSnappedPosition(l *layer.Layer, x, y float64) (float64, float64) {
	ax, ay, ok := layer.Anchor(l)
	if !ok {
		return x, y
	}
	box, ok := c.coll.Bounds(l)
	if !ok {
		return x, y
	}
	moving := box.Translate(vector.Pt{X: x - ax, Y: y - ay})

	var anchors []vector.Anchor
	if c.opts.SmartGuides {
		skip := make(map[string]bool, len(c.selected)+1)
		skip[l.ID] = true
		for _, id := range c.selected {
			skip[id] = true
		}
		for _, other := range c.coll.Layers() {
			if skip[other.ID] || other.Kind == layer.KindGroup {
				continue
			}
			if r, ok := c.coll.Bounds(other); ok {
				anchors = append(anchors, vector.Anchor{Rect: r, Weight: 1})
			}
		}
	}
	if c.CanvasSnapEnabled() {
		anchors = append(anchors, vector.Anchor{Rect: vector.R(0, 0, c.opts.Width, c.opts.Height), Weight: 2})
	}
	if len(anchors) == 0 {
		return x, y
	}
	snapped, guides := vector.ComputeSmartGuides(moving, anchors, vector.SnapOptions{
		Threshold:     c.opts.SnapThreshold,
		SnapToEdges:   true,
		SnapToCenters: true,
	})
	c.guides = guides
	return x + snapped.X - moving.X, y + snapped.Y - moving.Y
}

// Guides returns the guide lines of the last snap.
func (c *Canvas) Guides() []vector.GuideLine { return append([]vector.GuideLine(nil), c.guides...) }

func (c *Canvas) ClearGuides() { c.guides = nil }

// Rendering and cursor

func (c *Canvas) RequestRender()                 { c.renders++ }
func (c *Canvas) Renders() int                   { return c.renders }
func (c *Canvas) SetCursor(cur transform.Cursor) { c.cursor = cur }
func (c *Canvas) Cursor() transform.Cursor       { return c.cursor }

// UpdateLayer is the collection's write path.
func (c *Canvas) UpdateLayer(id string, p layer.Patch) bool { return c.coll.UpdateLayer(id, p) }

// Events

// Subscribe registers fn for live-update events. Listener errors are
// returned from Dispatch after every listener ran.
func (c *Canvas) Subscribe(fn func(transform.Event) error) {
	c.listeners = append(c.listeners, fn)
}

func (c *Canvas) Dispatch(ev transform.Event) error {
	c.events++
	var errs []error
	for _, fn := range c.listeners {
		if err := fn(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Events counts dispatched live-update events.
func (c *Canvas) Events() int { return c.events }

// History

// SaveState records the current document under label in the undo history
// and, when configured, in the journal. Journal failures are reported and
// do not affect the in-memory history.
func (c *Canvas) SaveState(label string) {
	blob, err := layer.Encode(c.coll)
	if err != nil {
		c.report(fmt.Errorf("encode for %q: %w", label, err), "history")
		return
	}
	ts := c.opts.Now()
	c.opts.History.PushSnapshot(undo.Snapshot{Doc: c.opts.DocID, Label: label, Blob: blob, TS: ts})
	c.commits = append(c.commits, label)
	c.log.Debug("state saved", slog.String("label", label), slog.Int("bytes", len(blob)))
	if c.opts.Journal != nil {
		if _, err := c.opts.Journal.Append(context.Background(), journal.Entry{Doc: c.opts.DocID, Label: label, TS: ts, Blob: blob}); err != nil {
			c.report(err, "journal")
		}
	}
}

// Close drops the undo history of the document.
func (c *Canvas) Close() { c.opts.History.ClearDoc(c.opts.DocID) }

// Commits lists every label passed to SaveState, in order.
func (c *Canvas) Commits() []string { return append([]string(nil), c.commits...) }

// History lists the undoable labels, oldest first.
func (c *Canvas) History() []string { return c.opts.History.Labels(c.opts.DocID) }

// Undo reverts the newest commit. Below the oldest undoable commit lies
// the last snapshot the history evicted, or the document as opened. It
// reports false when there is nothing to undo.
func (c *Canvas) Undo() (bool, error) {
	if _, ok := c.opts.History.Undo(c.opts.DocID); !ok {
		return false, nil
	}
	blob := c.base
	if top, ok := c.opts.History.Top(c.opts.DocID); ok {
		blob = top.Blob
	} else if floor, ok := c.opts.History.Floor(c.opts.DocID); ok {
		blob = floor.Blob
	}
	return true, c.restore(blob)
}

// Redo reapplies the newest undone commit.
func (c *Canvas) Redo() (bool, error) {
	s, ok := c.opts.History.Redo(c.opts.DocID)
	if !ok {
		return false, nil
	}
	return true, c.restore(s.Blob)
}

func (c *Canvas) restore(blob []byte) error {
	doc, err := layer.Decode(blob)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	c.coll.Replace(doc.Layers())
	kept := c.selected[:0]
	for _, id := range c.selected {
		if c.coll.Layer(id) != nil {
			kept = append(kept, id)
		}
	}
	c.selected = kept
	c.RequestRender()
	return nil
}

func (c *Canvas) report(err error, category string) {
	c.log.Warn("canvas error", slog.String("category", category), slog.Any("err", err))
	if c.opts.Errors != nil {
		c.opts.Errors.Report(err, "Canvas", category)
	}
}
