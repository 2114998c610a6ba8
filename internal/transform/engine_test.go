/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"errors"
	"math"
	"testing"

	"layerforge/internal/layer"
	"layerforge/internal/vector"
)

type fakeHost struct {
	coll     *layer.Collection
	selected []string
	renders  int
	cursor   Cursor
	commits  []string
	cleared  int
	events   []Event
	grid     float64
	guides   bool
	snapTo   *vector.Pt
	listed   int
}

func newFakeHost(layers ...*layer.Layer) *fakeHost {
	h := &fakeHost{coll: layer.NewCollection(layers...)}
	if len(layers) > 0 {
		h.selected = []string{layers[0].ID}
	}
	return h
}

func (h *fakeHost) Layer(id string) *layer.Layer { return h.coll.Layer(id) }
func (h *fakeHost) Layers() []*layer.Layer       { h.listed++; return h.coll.Layers() }
func (h *fakeHost) SelectedLayerID() string {
	if len(h.selected) == 0 {
		return ""
	}
	return h.selected[0]
}
func (h *fakeHost) SelectedLayerIDs() []string { return h.selected }

func (h *fakeHost) Bounds(l *layer.Layer) (vector.Rect, bool) { return h.coll.Bounds(l) }
func (h *fakeHost) RequestRender()                            { h.renders++ }
func (h *fakeHost) SaveState(label string)                    { h.commits = append(h.commits, label) }
func (h *fakeHost) SetCursor(c Cursor)                        { h.cursor = c }
func (h *fakeHost) Dispatch(ev Event) error {
	h.events = append(h.events, ev)
	return nil
}
func (h *fakeHost) UpdateLayer(id string, p layer.Patch) bool { return h.coll.UpdateLayer(id, p) }

func (h *fakeHost) GridSnapEnabled() bool { return h.grid > 0 }
func (h *fakeHost) GridSize() float64     { return h.grid }

func (h *fakeHost) Enabled() bool           { return h.guides }
func (h *fakeHost) CanvasSnapEnabled() bool { return false }
func (h *fakeHost) CalculateSnappedPosition(_ *layer.Layer, x, y float64) (float64, float64) {
	if h.snapTo != nil {
		return h.snapTo.X, h.snapTo.Y
	}
	return x, y
}
func (h *fakeHost) ClearGuides() { h.cleared++ }

func newEngine(h *fakeHost) *Engine {
	return New(h, Options{
		Bounds:   h,
		Grid:     h,
		Guides:   h,
		Renderer: h,
		History:  h,
		Cursor:   h,
		Updater:  h,
		Document: h,
	})
}

func pt(x, y float64) vector.Pt { return vector.Pt{X: x, Y: y} }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestResizeRectangleEndToEnd(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 100, Y: 100, Width: 200, Height: 150}
	h := newFakeHost(r)
	e := newEngine(h)

	e.StartResize(Handle{Type: HandleSE}, pt(300, 250))
	if !e.IsResizing() || !e.IsTransforming() {
		t.Fatalf("expected resizing, state=%v", e.State())
	}
	if h.cursor != CursorNWSE {
		t.Fatalf("cursor = %q", h.cursor)
	}
	e.HandleResize(pt(350, 300), Modifiers{})
	if r.Width != 250 || r.Height != 200 || r.X != 100 || r.Y != 100 {
		t.Fatalf("got %+v", *r)
	}
	if h.renders == 0 || len(h.events) == 0 {
		t.Fatalf("expected render and event, got %d/%d", h.renders, len(h.events))
	}
	if h.events[0].Type != EventTransforming || h.events[0].LayerID != "r" {
		t.Fatalf("event = %+v", h.events[0])
	}
	e.FinishResize()
	if e.IsResizing() || h.cursor != CursorDefault {
		t.Fatalf("expected idle with default cursor, state=%v cursor=%q", e.State(), h.cursor)
	}
	if len(h.commits) != 1 || h.commits[0] != LabelResize {
		t.Fatalf("commits = %v", h.commits)
	}
}

func TestResizeUsesTotalDeltaFromSnapshot(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 0, Y: 0, Width: 100, Height: 100}
	h := newFakeHost(r)
	e := newEngine(h)
	e.StartResize(Handle{Type: HandleE}, pt(100, 50))
	for x := 101.0; x <= 150; x++ {
		e.HandleResize(pt(x, 50), Modifiers{})
	}
	if r.Width != 150 {
		t.Fatalf("width = %v, want 150", r.Width)
	}
	e.HandleResize(pt(120, 50), Modifiers{})
	if r.Width != 120 {
		t.Fatalf("width after moving back = %v, want 120", r.Width)
	}
}

func TestResizeClampsDelta(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, Width: 100, Height: 100}
	h := newFakeHost(r)
	e := newEngine(h)
	e.StartResize(Handle{Type: HandleSE}, pt(100, 100))
	e.HandleResize(pt(1e9, 1e9), Modifiers{})
	if r.Width != 1100 || r.Height != 1100 {
		t.Fatalf("got %vx%v, want 1100x1100", r.Width, r.Height)
	}
}

func TestResizeStarSyncsRadii(t *testing.T) {
	s := &layer.Layer{ID: "s", Kind: layer.KindStar, X: 0, Y: 0, Radius: 50, OuterRadius: 50, InnerRadius: 25}
	h := newFakeHost(s)
	e := newEngine(h)
	e.StartResize(Handle{Type: HandleE}, pt(50, 0))
	e.HandleResize(pt(100, 0), Modifiers{})
	if s.Radius != 100 || s.OuterRadius != 100 || s.InnerRadius != 50 {
		t.Fatalf("got radius=%v outer=%v inner=%v", s.Radius, s.OuterRadius, s.InnerRadius)
	}
}

func TestResizeSkipsLockedAndMarkers(t *testing.T) {
	locked := &layer.Layer{ID: "l", Kind: layer.KindRectangle, Width: 10, Height: 10, Locked: true}
	h := newFakeHost(locked)
	e := newEngine(h)
	e.StartResize(Handle{Type: HandleSE}, pt(0, 0))
	if e.State() != Idle {
		t.Fatalf("locked layer entered %v", e.State())
	}

	m := &layer.Layer{ID: "m", Kind: layer.KindMarker, X: 1, Y: 1}
	h = newFakeHost(m)
	e = newEngine(h)
	e.StartResize(Handle{Type: HandleSE}, pt(0, 0))
	if e.State() != Idle {
		t.Fatalf("marker entered %v", e.State())
	}
}

func TestResizeRotatedRectKeepsOppositeCorner(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 0, Y: 0, Width: 100, Height: 50, Rotation: 90}
	h := newFakeHost(r)
	e := newEngine(h)

	// Rotated 90 degrees, local +x points down the screen.
	world := func(l *layer.Layer, lx, ly float64) vector.Pt {
		c := vector.Pt{X: l.X + l.Width/2, Y: l.Y + l.Height/2}
		v := vector.RotateDeg(l.Rotation).ApplyVector(vector.Pt{X: lx - l.Width/2, Y: ly - l.Height/2})
		return c.Add(v)
	}
	before := world(r, 0, 0)

	e.StartResize(Handle{Type: HandleE}, pt(0, 0))
	e.HandleResize(pt(0, 40), Modifiers{})
	if !near(r.Width, 140) || r.Height != 50 {
		t.Fatalf("got %vx%v, want 140x50", r.Width, r.Height)
	}
	after := world(r, 0, 0)
	if !near(before.X, after.X) || !near(before.Y, after.Y) {
		t.Fatalf("anchored corner moved from %+v to %+v", before, after)
	}
}

func TestFinishWithoutChangeDoesNotCommit(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 10, Y: 10, Width: 20, Height: 20}
	h := newFakeHost(r)
	e := newEngine(h)

	e.StartResize(Handle{Type: HandleSE}, pt(30, 30))
	e.FinishResize()
	e.StartRotation(pt(50, 20))
	e.FinishRotation()
	e.StartDrag(pt(15, 15))
	e.HandleDrag(pt(15, 15))
	e.FinishDrag()
	if len(h.commits) != 0 {
		t.Fatalf("unexpected commits %v", h.commits)
	}
}

func TestRotation(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 0, Y: 0, Width: 100, Height: 100}
	h := newFakeHost(r)
	e := newEngine(h)

	e.StartRotation(pt(100, 50))
	if !e.IsRotating() || h.cursor != CursorGrabbing {
		t.Fatalf("state=%v cursor=%q", e.State(), h.cursor)
	}
	e.HandleRotation(pt(50, 100), Modifiers{})
	if !near(r.Rotation, 90) {
		t.Fatalf("rotation = %v, want 90", r.Rotation)
	}
	// 40 degrees snaps to 45.
	a := vector.Radians(40)
	e.HandleRotation(pt(50+50*math.Cos(a), 50+50*math.Sin(a)), Modifiers{SnapRotation: true})
	if r.Rotation != 45 {
		t.Fatalf("snapped rotation = %v, want 45", r.Rotation)
	}
	e.HandleRotation(pt(50, 0), Modifiers{})
	if !near(r.Rotation, 270) {
		t.Fatalf("rotation = %v, want 270", r.Rotation)
	}
	e.FinishRotation()
	if len(h.commits) != 1 || h.commits[0] != LabelRotate {
		t.Fatalf("commits = %v", h.commits)
	}
}

func TestRotationNeedsBounds(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, Width: 10, Height: 10}
	h := newFakeHost(r)
	e := New(h, Options{})
	e.StartRotation(pt(0, 0))
	if e.IsRotating() {
		t.Fatalf("rotation started without a bounds provider")
	}

	g := &layer.Layer{ID: "g", Kind: layer.KindGroup}
	h = newFakeHost(g)
	e = newEngine(h)
	e.StartRotation(pt(0, 0))
	if e.IsRotating() {
		t.Fatalf("rotation started for a layer without bounds")
	}
}

func TestDragLockedSelectionStaysIdle(t *testing.T) {
	a := &layer.Layer{ID: "a", Kind: layer.KindRectangle, Locked: true}
	b := &layer.Layer{ID: "b", Kind: layer.KindCircle, ParentGroup: "g"}
	g := &layer.Layer{ID: "g", Kind: layer.KindGroup, Locked: true, Children: []string{"b"}}
	h := newFakeHost(a, b, g)
	h.selected = []string{"a", "b"}
	e := newEngine(h)
	e.StartDrag(pt(0, 0))
	if e.IsDragging() {
		t.Fatalf("drag started on a fully locked selection")
	}
}

func TestMultiDragSkipsLockedMembers(t *testing.T) {
	a := &layer.Layer{ID: "a", Kind: layer.KindRectangle, X: 10, Y: 10, Width: 5, Height: 5}
	b := &layer.Layer{ID: "b", Kind: layer.KindLine, X1: 0, Y1: 0, X2: 10, Y2: 10}
	c := &layer.Layer{ID: "c", Kind: layer.KindCircle, X: 50, Y: 50, Radius: 5, Locked: true}
	h := newFakeHost(a, b, c)
	h.selected = []string{"a", "b", "c"}
	e := newEngine(h)

	e.StartDrag(pt(0, 0))
	if !e.IsDragging() {
		t.Fatalf("expected dragging")
	}
	if h.cursor != CursorMove {
		t.Fatalf("cursor = %q", h.cursor)
	}
	if got := len(e.Session().OriginalMulti); got != 3 {
		t.Fatalf("snapshots = %d, want 3", got)
	}
	e.HandleDrag(pt(7, -3))
	if a.X != 17 || a.Y != 7 {
		t.Fatalf("a at %v,%v", a.X, a.Y)
	}
	if b.X1 != 7 || b.Y1 != -3 || b.X2 != 17 || b.Y2 != 7 {
		t.Fatalf("b = %+v", *b)
	}
	if c.X != 50 || c.Y != 50 {
		t.Fatalf("locked member moved to %v,%v", c.X, c.Y)
	}
	if h.listed != 0 {
		t.Fatalf("lock checks listed every layer %d times; want id lookups", h.listed)
	}
	e.FinishDrag()
	if h.cleared != 1 {
		t.Fatalf("guides cleared %d times", h.cleared)
	}
	if len(h.commits) != 1 || h.commits[0] != LabelMove {
		t.Fatalf("commits = %v", h.commits)
	}
	if e.Session().OriginalMulti != nil {
		t.Fatalf("multi snapshots survived finish")
	}
}

func TestDragSnapping(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 3, Y: 3, Width: 10, Height: 10}
	h := newFakeHost(r)
	h.grid = 10
	h.guides = true
	h.snapTo = &vector.Pt{X: 100, Y: 100}
	e := newEngine(h)

	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(8, 14))
	if r.X != 10 || r.Y != 20 {
		t.Fatalf("grid snap got %v,%v want 10,20", r.X, r.Y)
	}
	e.FinishDrag()

	h.grid = 0
	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(1, 1))
	if r.X != 100 || r.Y != 100 {
		t.Fatalf("guide snap got %v,%v want 100,100", r.X, r.Y)
	}
	e.FinishDrag()

	h.guides = false
	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(1, 2))
	if r.X != 101 || r.Y != 102 {
		t.Fatalf("unsnapped got %v,%v want 101,102", r.X, r.Y)
	}
	e.FinishDrag()
}

func TestMarkerBodyAndArrowTip(t *testing.T) {
	m := &layer.Layer{ID: "m", Kind: layer.KindMarker, X: 100, Y: 100, ArrowX: layer.Float(150), ArrowY: layer.Float(150)}
	h := newFakeHost(m)
	e := newEngine(h)

	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(20, 30))
	e.FinishDrag()
	if m.X != 120 || m.Y != 130 || *m.ArrowX != 150 || *m.ArrowY != 150 {
		t.Fatalf("after drag: %+v arrow=%v,%v", *m, *m.ArrowX, *m.ArrowY)
	}

	e.StartArrowTipDrag(Handle{Type: HandleArrowTip, LayerID: "m"}, pt(150, 150))
	if !e.IsArrowTipDragging() || e.IsTransforming() {
		t.Fatalf("state = %v", e.State())
	}
	e.HandleArrowTipDrag(pt(200, 180))
	if *m.ArrowX != 200 || *m.ArrowY != 180 || m.X != 120 || m.Y != 130 {
		t.Fatalf("after tip drag: x=%v y=%v arrow=%v,%v", m.X, m.Y, *m.ArrowX, *m.ArrowY)
	}
	e.FinishArrowTipDrag()
	want := []string{LabelMove, LabelArrowTip}
	if len(h.commits) != 2 || h.commits[0] != want[0] || h.commits[1] != want[1] {
		t.Fatalf("commits = %v", h.commits)
	}
}

func TestArrowTipDragRejectsNonMarkers(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle}
	h := newFakeHost(r)
	e := newEngine(h)
	e.StartArrowTipDrag(Handle{Type: HandleArrowTip}, pt(0, 0))
	if e.IsArrowTipDragging() {
		t.Fatalf("arrow tip drag started on a rectangle")
	}
}

func TestOneGestureAtATime(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, Width: 10, Height: 10}
	h := newFakeHost(r)
	e := newEngine(h)
	e.StartDrag(pt(0, 0))
	e.StartResize(Handle{Type: HandleSE}, pt(0, 0))
	e.StartRotation(pt(0, 0))
	if e.State() != Dragging {
		t.Fatalf("state = %v, want dragging", e.State())
	}
	// Handlers of other gestures are no-ops.
	e.HandleResize(pt(50, 50), Modifiers{})
	e.FinishResize()
	if e.State() != Dragging || r.Width != 10 {
		t.Fatalf("state=%v width=%v", e.State(), r.Width)
	}
}

func TestHandleWithoutSessionIsNoop(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, Width: 10, Height: 10}
	h := newFakeHost(r)
	e := newEngine(h)
	e.HandleResize(pt(5, 5), Modifiers{})
	e.HandleRotation(pt(5, 5), Modifiers{})
	e.HandleDrag(pt(5, 5))
	e.HandleArrowTipDrag(pt(5, 5))
	e.FinishResize()
	e.FinishRotation()
	e.FinishDrag()
	e.FinishArrowTipDrag()
	if h.renders != 0 || len(h.commits) != 0 || r.X != 0 {
		t.Fatalf("renders=%d commits=%v", h.renders, h.commits)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, Width: 10, Height: 10}
	h := newFakeHost(r)
	e := newEngine(h)
	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(5, 5))
	e.Destroy()
	e.Destroy()
	if e.State() != Idle || e.Session().Original != nil {
		t.Fatalf("destroy left state %v", e.State())
	}
	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(9, 9))
	e.FinishDrag()
	if e.IsDragging() || len(h.commits) != 0 || r.X != 5 {
		t.Fatalf("destroyed engine still active: x=%v commits=%v", r.X, h.commits)
	}
}

func TestSessionRollback(t *testing.T) {
	r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, X: 1, Y: 2, Width: 10, Height: 10}
	h := newFakeHost(r)
	e := newEngine(h)
	e.StartDrag(pt(0, 0))
	e.HandleDrag(pt(40, 40))
	orig := e.Session().Original
	orig.Width = 999 // session copies are independent
	if e.Session().Original.Width != 10 {
		t.Fatalf("session snapshot was aliased")
	}
	r.X, r.Y = orig.X, orig.Y
	e.FinishDrag()
	if len(h.commits) != 0 {
		t.Fatalf("rolled back drag committed %v", h.commits)
	}
}

type failingSink struct{ panicking bool }

func (f failingSink) Dispatch(Event) error {
	if f.panicking {
		panic("listener blew up")
	}
	return errors.New("listener failed")
}

type recordingReporter struct {
	errs       []error
	components []string
	categories []string
}

func (r *recordingReporter) Report(err error, component, category string) {
	r.errs = append(r.errs, err)
	r.components = append(r.components, component)
	r.categories = append(r.categories, category)
}

func TestNotifierFailuresAreReported(t *testing.T) {
	for _, panicking := range []bool{false, true} {
		r := &layer.Layer{ID: "r", Kind: layer.KindRectangle, Width: 10, Height: 10}
		h := newFakeHost(r)
		rep := &recordingReporter{}
		e := New(h, Options{Document: failingSink{panicking: panicking}, Errors: rep, History: h})
		e.StartDrag(pt(0, 0))
		e.HandleDrag(pt(3, 4))
		e.FinishDrag()
		if r.X != 3 || r.Y != 4 {
			t.Fatalf("panicking=%v: layer at %v,%v", panicking, r.X, r.Y)
		}
		if len(rep.errs) != 1 || rep.components[0] != ComponentName || rep.categories[0] != CategoryNotify {
			t.Fatalf("panicking=%v: reports %+v", panicking, rep)
		}
		if len(h.commits) != 1 {
			t.Fatalf("panicking=%v: commits %v", panicking, h.commits)
		}
	}
}

func TestNotifierFallsBackToContainer(t *testing.T) {
	h := newFakeHost()
	n := NewNotifier(nil, h, nil, nil)
	img := &layer.Layer{ID: "i", Kind: layer.KindImage, Src: "data:image/png;base64,AAAA", Points: []layer.Point{{X: 1}}}
	n.EmitTransforming(img)
	n.EmitTransforming(nil)
	if len(h.events) != 1 {
		t.Fatalf("events = %d, want 1", len(h.events))
	}
	got := h.events[0].Layer
	if got.Src != "" {
		t.Fatalf("light clone kept src")
	}
	got.Points[0].X = 9
	if img.Points[0].X != 1 {
		t.Fatalf("light clone shares points")
	}
}
