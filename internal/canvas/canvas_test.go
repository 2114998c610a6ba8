/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"layerforge/internal/journal"
	"layerforge/internal/layer"
	"layerforge/internal/transform"
	"layerforge/internal/undo"
	"layerforge/internal/vector"
)

func rect(id string, x, y, w, h float64) *layer.Layer {
	return &layer.Layer{ID: id, Kind: layer.KindRectangle, X: x, Y: y, Width: w, Height: h}
}

func newCanvas(t *testing.T, opts Options, layers ...*layer.Layer) *Canvas {
	t.Helper()
	c, err := New(layer.NewCollection(layers...), opts)
	if err != nil {
		t.Fatalf("new canvas: %v", err)
	}
	return c
}

func TestDragSnapsToNeighbourEdge(t *testing.T) {
	c := newCanvas(t, Options{SmartGuides: true}, rect("a", 0, 0, 100, 100), rect("b", 200, 0, 50, 50))
	if err := c.Select("a"); err != nil {
		t.Fatalf("select: %v", err)
	}
	e := c.NewEngine(0)
	e.StartDrag(vector.Pt{})
	e.HandleDrag(vector.Pt{X: 97, Y: 40})
	a := c.Layer("a")
	if a.X != 100 || a.Y != 40 {
		t.Fatalf("a at %v,%v want 100,40", a.X, a.Y)
	}
	g := c.Guides()
	if len(g) != 1 || g[0].Orientation != vector.Vertical || g[0].Position != 200 {
		t.Fatalf("guides = %+v", g)
	}
	e.FinishDrag()
	if len(c.Guides()) != 0 {
		t.Fatalf("guides not cleared")
	}
	if got := c.Commits(); len(got) != 1 || got[0] != transform.LabelMove {
		t.Fatalf("commits = %v", got)
	}
	if c.Cursor() != transform.CursorDefault {
		t.Fatalf("cursor = %q", c.Cursor())
	}
}

func TestDragSnapsToCanvas(t *testing.T) {
	c := newCanvas(t, Options{CanvasSnap: true, Width: 1000, Height: 1000}, rect("a", 0, 0, 100, 100), rect("b", 445, 300, 10, 10))
	_ = c.Select("a")
	e := c.NewEngine(0)
	e.StartDrag(vector.Pt{})
	e.HandleDrag(vector.Pt{X: 448, Y: 3})
	a := c.Layer("a")
	if a.X != 450 || a.Y != 0 {
		t.Fatalf("a at %v,%v want 450,0", a.X, a.Y)
	}
	e.FinishDrag()
}

func TestSelectUnknownLayer(t *testing.T) {
	c := newCanvas(t, Options{}, rect("a", 0, 0, 1, 1))
	if err := c.Select("a", "zzz"); err == nil {
		t.Fatalf("expected error")
	}
	if c.SelectedLayerID() != "" {
		t.Fatalf("failed select changed the selection")
	}
}

func TestUndoRedoRestoresDocument(t *testing.T) {
	c := newCanvas(t, Options{}, rect("a", 0, 0, 100, 100))
	_ = c.Select("a")
	e := c.NewEngine(0)

	e.StartDrag(vector.Pt{})
	e.HandleDrag(vector.Pt{X: 10, Y: 10})
	e.FinishDrag()
	e.StartResize(transform.Handle{Type: transform.HandleSE}, vector.Pt{X: 110, Y: 110})
	e.HandleResize(vector.Pt{X: 160, Y: 110}, transform.Modifiers{})
	e.FinishResize()

	if h := c.History(); len(h) != 2 || h[1] != transform.LabelResize {
		t.Fatalf("history = %v", h)
	}
	if ok, err := c.Undo(); !ok || err != nil {
		t.Fatalf("undo: %v %v", ok, err)
	}
	if a := c.Layer("a"); a.X != 10 || a.Width != 100 {
		t.Fatalf("after first undo: %+v", *a)
	}
	if ok, _ := c.Undo(); !ok {
		t.Fatalf("second undo failed")
	}
	if a := c.Layer("a"); a.X != 0 || a.Y != 0 {
		t.Fatalf("after second undo: %+v", *a)
	}
	if ok, _ := c.Undo(); ok {
		t.Fatalf("undo past the base")
	}
	if ok, err := c.Redo(); !ok || err != nil {
		t.Fatalf("redo: %v %v", ok, err)
	}
	if a := c.Layer("a"); a.X != 10 {
		t.Fatalf("after redo: %+v", *a)
	}
	if c.SelectedLayerID() != "a" {
		t.Fatalf("selection lost across undo")
	}
}

func TestUndoPastEvictedCommitsStopsAtFloor(t *testing.T) {
	c := newCanvas(t, Options{History: undo.NewManager(undo.Config{MaxPerDoc: 2})}, rect("a", 0, 0, 10, 10))
	_ = c.Select("a")
	e := c.NewEngine(0)
	for i := 0; i < 3; i++ {
		e.StartDrag(vector.Pt{})
		e.HandleDrag(vector.Pt{X: 10})
		e.FinishDrag()
	}
	if a := c.Layer("a"); a.X != 30 {
		t.Fatalf("after drags: %+v", *a)
	}
	for _, want := range []float64{20, 10} {
		if ok, err := c.Undo(); !ok || err != nil {
			t.Fatalf("undo: %v %v", ok, err)
		}
		if a := c.Layer("a"); a.X != want {
			t.Fatalf("after undo x = %v, want %v", a.X, want)
		}
	}
	if ok, _ := c.Undo(); ok {
		t.Fatalf("evicted commits must not be undoable")
	}
	if a := c.Layer("a"); a.X != 10 {
		t.Fatalf("failed undo changed the document: %+v", *a)
	}
}

func TestSaveStateCoalescesSameLabel(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newCanvas(t, Options{
		History: undo.NewManager(undo.Config{MinInterval: time.Second}),
		Now:     func() time.Time { now = now.Add(100 * time.Millisecond); return now },
	}, rect("a", 0, 0, 10, 10))
	c.SaveState(transform.LabelMove)
	c.SaveState(transform.LabelMove)
	c.SaveState(transform.LabelRotate)
	if h := c.History(); len(h) != 2 {
		t.Fatalf("history = %v", h)
	}
	if len(c.Commits()) != 3 {
		t.Fatalf("commits = %v", c.Commits())
	}
}

func TestSaveStateWritesJournal(t *testing.T) {
	j, err := journal.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "j.sqlite"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()
	c := newCanvas(t, Options{DocID: "poster.json", Journal: j}, rect("a", 0, 0, 10, 10))
	_ = c.Select("a")
	e := c.NewEngine(0)
	e.StartRotation(vector.Pt{X: 10, Y: 5})
	e.HandleRotation(vector.Pt{X: 5, Y: 10}, transform.Modifiers{})
	e.FinishRotation()

	got, err := j.List(context.Background(), "poster.json", 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("journal = %+v, %v", got, err)
	}
	if got[0].Label != transform.LabelRotate {
		t.Fatalf("label = %q", got[0].Label)
	}
	doc, err := layer.Decode(got[0].Blob)
	if err != nil {
		t.Fatalf("decode journal blob: %v", err)
	}
	if r := doc.Layer("a").Rotation; r < 89.999 || r > 90.001 {
		t.Fatalf("journaled rotation = %v", r)
	}
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, journal.Entry) (journal.Entry, error) {
	return journal.Entry{}, errors.New("disk full")
}

type reports struct{ categories []string }

func (r *reports) Report(_ error, _ string, category string) {
	r.categories = append(r.categories, category)
}

func TestListenerAndJournalFailuresAreReported(t *testing.T) {
	rep := &reports{}
	c := newCanvas(t, Options{Journal: failingJournal{}, Errors: rep}, rect("a", 0, 0, 10, 10))
	_ = c.Select("a")
	c.Subscribe(func(transform.Event) error { return errors.New("listener down") })
	e := c.NewEngine(0)
	e.StartDrag(vector.Pt{})
	e.HandleDrag(vector.Pt{X: 1, Y: 1})
	e.FinishDrag()

	want := []string{transform.CategoryNotify, "journal"}
	if len(rep.categories) != 2 || rep.categories[0] != want[0] || rep.categories[1] != want[1] {
		t.Fatalf("reports = %v", rep.categories)
	}
	if c.Events() != 1 || c.Renders() == 0 {
		t.Fatalf("events=%d renders=%d", c.Events(), c.Renders())
	}
	if a := c.Layer("a"); a.X != 1 {
		t.Fatalf("drag lost: %+v", *a)
	}
}
