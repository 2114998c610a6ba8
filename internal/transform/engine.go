/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"log/slog"
	"math"

	"layerforge/internal/layer"
	"layerforge/internal/vector"
)

// State is the gesture the engine is currently running.
type State int

const (
	Idle State = iota
	Resizing
	Rotating
	Dragging
	ArrowTipDragging
)

func (s State) String() string {
	switch s {
	case Resizing:
		return "resizing"
	case Rotating:
		return "rotating"
	case Dragging:
		return "dragging"
	case ArrowTipDragging:
		return "arrowTipDragging"
	default:
		return "idle"
	}
}

const (
	defaultMaxDelta = 1000
	rotationStep    = 15
)

// Options wires the optional collaborators of an Engine. Nil members
// disable the matching behavior.
type Options struct {
	Bounds    BoundsProvider
	Grid      GridSnapper
	Guides    SmartGuides
	Renderer  Renderer
	History   Committer
	Cursor    CursorSink
	Updater   LayerUpdater
	Document  NotificationSink
	Container NotificationSink
	Errors    ErrorReporter
	Logger    *slog.Logger
	// MaxDelta bounds each pointer delta component; defaults to 1000.
	MaxDelta float64
}

// Session is the state of the running gesture.
type Session struct {
	Handle     Handle
	StartPoint vector.Pt
	LayerID    string
	// Original is the primary layer as it was when the gesture started.
	Original *layer.Layer
	// OriginalMulti holds a snapshot per selected layer during a
	// multi-selection drag.
	OriginalMulti map[string]*layer.Layer
	// SelectedIDs preserves the selection order of a drag.
	SelectedIDs []string

	center     vector.Pt
	startAngle float64
}

// Engine runs transform gestures against a host's layers. It mutates live
// layers in place and is meant to be driven from a single goroutine.
type Engine struct {
	host     Host
	opts     Options
	notifier *Notifier
	log      *slog.Logger

	state   State
	session Session
}

// New creates an engine bound to host.
func New(host Host, opts Options) *Engine {
	if opts.MaxDelta <= 0 {
		opts.MaxDelta = defaultMaxDelta
	}
	l := opts.Logger
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	l = l.With(slog.String("component", "transform"))
	return &Engine{
		host:     host,
		opts:     opts,
		notifier: NewNotifier(opts.Document, opts.Container, opts.Errors, l),
		log:      l,
	}
}

// State reports the running gesture.
func (e *Engine) State() State { return e.state }

func (e *Engine) IsResizing() bool         { return e.state == Resizing }
func (e *Engine) IsRotating() bool         { return e.state == Rotating }
func (e *Engine) IsDragging() bool         { return e.state == Dragging }
func (e *Engine) IsArrowTipDragging() bool { return e.state == ArrowTipDragging }

// IsTransforming reports a running resize, rotation or drag. Arrow-tip drags
// are tracked separately by IsArrowTipDragging.
func (e *Engine) IsTransforming() bool {
	return e.state == Resizing || e.state == Rotating || e.state == Dragging
}

// Session returns a copy of the running session with its snapshots cloned.
// Callers can use Original to roll a gesture back before finishing it.
func (e *Engine) Session() Session {
	s := e.session
	s.Original = s.Original.Clone()
	if s.OriginalMulti != nil {
		s.OriginalMulti = make(map[string]*layer.Layer, len(e.session.OriginalMulti))
		for id, l := range e.session.OriginalMulti {
			s.OriginalMulti[id] = l.Clone()
		}
	}
	s.SelectedIDs = append([]string(nil), e.session.SelectedIDs...)
	return s
}

// IsEffectivelyLocked reports whether l, directly or through its groups,
// may not be transformed.
func (e *Engine) IsEffectivelyLocked(l *layer.Layer) bool {
	if l == nil || e.host == nil {
		return l != nil && l.Locked
	}
	return layer.IsEffectivelyLocked(l, e.host.Layer)
}

// EmitTransforming notifies listeners that l changed during a gesture.
func (e *Engine) EmitTransforming(l *layer.Layer) { e.notifier.EmitTransforming(l) }

// StartResize begins resizing the selected layer from handle h. Locked
// layers and markers are not resized.
func (e *Engine) StartResize(h Handle, p vector.Pt) {
	if e.host == nil || e.state != Idle {
		return
	}
	l := e.primaryLayer(h.LayerID)
	if l == nil {
		return
	}
	if l.Kind == layer.KindMarker || e.IsEffectivelyLocked(l) {
		e.log.Debug("resize skipped", slog.String("layer", l.ID), slog.String("kind", string(l.Kind)))
		return
	}
	e.begin(Resizing, Session{Handle: h, StartPoint: p, LayerID: l.ID, Original: l.Clone()})
	e.setCursor(ResizeCursor(h.Type, l.Rotation))
}

// HandleResize applies the resize for pointer position p.
func (e *Engine) HandleResize(p vector.Pt, mods Modifiers) {
	if e.host == nil || e.state != Resizing {
		return
	}
	live := e.host.Layer(e.session.LayerID)
	orig := e.session.Original
	if live == nil || orig == nil {
		return
	}
	dx, dy := e.delta(p)
	local := vector.Pt{X: dx, Y: dy}
	if orig.Rotation != 0 {
		local = vector.RotateDeg(-orig.Rotation).ApplyVector(local)
	}
	patch := CalculateResize(orig, e.session.Handle.Type, local.X, local.Y, mods)
	if patch == nil {
		return
	}
	syncStarRadii(orig.Kind, patch)
	if orig.Rotation != 0 {
		pinRotatedBox(orig, patch)
	}
	restoreGeometry(live, orig)
	patch.Apply(live)
	e.changed(live)
}

// FinishResize ends the resize and commits it when geometry changed.
func (e *Engine) FinishResize() {
	if e.state != Resizing {
		return
	}
	e.finish(LabelResize)
}

// StartRotation begins rotating the selected layer around its center.
func (e *Engine) StartRotation(p vector.Pt) {
	if e.host == nil || e.state != Idle || e.opts.Bounds == nil {
		return
	}
	l := e.primaryLayer("")
	if l == nil || e.IsEffectivelyLocked(l) {
		return
	}
	box, ok := e.opts.Bounds.Bounds(l)
	if !ok {
		e.log.Debug("rotation skipped: no bounds", slog.String("layer", l.ID))
		return
	}
	c := box.Center()
	e.begin(Rotating, Session{
		StartPoint: p,
		LayerID:    l.ID,
		Original:   l.Clone(),
		center:     c,
		startAngle: math.Atan2(p.Y-c.Y, p.X-c.X),
	})
	e.setCursor(CursorGrabbing)
}

// HandleRotation rotates by the angle swept around the center since the
// gesture started. With SnapRotation the result is rounded to 15 degrees.
func (e *Engine) HandleRotation(p vector.Pt, mods Modifiers) {
	if e.host == nil || e.state != Rotating {
		return
	}
	live := e.host.Layer(e.session.LayerID)
	if live == nil {
		return
	}
	c := e.session.center
	swept := vector.Degrees(math.Atan2(p.Y-c.Y, p.X-c.X) - e.session.startAngle)
	rot := e.session.Original.Rotation + swept
	if mods.SnapRotation {
		rot = vector.SnapTo(rot, rotationStep)
	}
	live.Rotation = vector.FloatRound(vector.NormalizeDeg(rot), 6)
	e.changed(live)
}

// FinishRotation ends the rotation and commits it when the angle changed.
func (e *Engine) FinishRotation() {
	if e.state != Rotating {
		return
	}
	e.finish(LabelRotate)
}

// StartDrag begins moving the selection. It does nothing when every
// selected layer is locked.
func (e *Engine) StartDrag(p vector.Pt) {
	if e.host == nil || e.state != Idle {
		return
	}
	ids := e.selection()
	if len(ids) == 0 {
		return
	}
	primary := e.host.Layer(ids[0])
	if primary == nil {
		return
	}
	movable := false
	for _, id := range ids {
		if l := e.host.Layer(id); l != nil && !e.IsEffectivelyLocked(l) {
			movable = true
			break
		}
	}
	if !movable {
		e.log.Debug("drag skipped: selection locked", slog.Int("selected", len(ids)))
		return
	}
	s := Session{StartPoint: p, LayerID: primary.ID, Original: primary.Clone(), SelectedIDs: ids}
	if len(ids) > 1 {
		s.OriginalMulti = make(map[string]*layer.Layer, len(ids))
		for _, id := range ids {
			if l := e.host.Layer(id); l != nil {
				s.OriginalMulti[id] = l.Clone()
			}
		}
	}
	e.begin(Dragging, s)
	e.setCursor(CursorMove)
}

// HandleDrag moves the selection by the total delta since StartDrag, after
// grid or smart-guide snapping of the primary layer. In a multi-selection
// every unlocked member moves by the same delta; locked members stay.
func (e *Engine) HandleDrag(p vector.Pt) {
	if e.host == nil || e.state != Dragging {
		return
	}
	dx, dy := e.delta(p)
	dx, dy = e.snapDelta(e.session.Original, dx, dy)

	if e.session.OriginalMulti == nil {
		live := e.host.Layer(e.session.LayerID)
		if live == nil {
			return
		}
		UpdateLayerPosition(live, e.session.Original, dx, dy)
		e.changed(live)
		return
	}
	var moved []*layer.Layer
	for _, id := range e.session.SelectedIDs {
		orig, ok := e.session.OriginalMulti[id]
		if !ok {
			continue
		}
		live := e.host.Layer(id)
		if live == nil || e.IsEffectivelyLocked(live) {
			continue
		}
		UpdateLayerPosition(live, orig, dx, dy)
		moved = append(moved, live)
	}
	if len(moved) == 0 {
		return
	}
	e.render()
	for _, l := range moved {
		e.notifier.EmitTransforming(l)
	}
}

// FinishDrag ends the drag, clears smart guides and commits when anything
// moved.
func (e *Engine) FinishDrag() {
	if e.state != Dragging {
		return
	}
	if e.opts.Guides != nil {
		e.opts.Guides.ClearGuides()
	}
	e.finish(LabelMove)
}

// StartArrowTipDrag begins moving the arrow tip of a marker. The marker is
// h.LayerID when set, otherwise the selected layer.
func (e *Engine) StartArrowTipDrag(h Handle, p vector.Pt) {
	if e.host == nil || e.state != Idle {
		return
	}
	l := e.layerOrSelection(h.LayerID)
	if l == nil || l.Kind != layer.KindMarker || e.IsEffectivelyLocked(l) {
		return
	}
	if h.Type == "" {
		h.Type = HandleArrowTip
	}
	e.begin(ArrowTipDragging, Session{Handle: h, StartPoint: p, LayerID: l.ID, Original: l.Clone()})
	e.setCursor(CursorGrabbing)
}

// HandleArrowTipDrag places the arrow tip at p through the collection's
// update path.
func (e *Engine) HandleArrowTipDrag(p vector.Pt) {
	if e.host == nil || e.state != ArrowTipDragging {
		return
	}
	id := e.session.LayerID
	patch := layer.Patch{ArrowX: layer.Float(clampCoord(p.X)), ArrowY: layer.Float(clampCoord(p.Y))}
	if e.opts.Updater != nil {
		if !e.opts.Updater.UpdateLayer(id, patch) {
			return
		}
	} else {
		live := e.host.Layer(id)
		if live == nil {
			return
		}
		patch.Apply(live)
	}
	if live := e.host.Layer(id); live != nil {
		e.changed(live)
	}
}

// FinishArrowTipDrag ends the arrow-tip drag and commits when the tip moved.
func (e *Engine) FinishArrowTipDrag() {
	if e.state != ArrowTipDragging {
		return
	}
	e.finish(LabelArrowTip)
}

// Destroy drops any running gesture without committing and detaches the
// engine from its host. It is safe to call repeatedly.
func (e *Engine) Destroy() {
	e.state = Idle
	e.session = Session{}
	e.host = nil
}

func (e *Engine) begin(s State, sess Session) {
	e.state = s
	e.session = sess
	e.log.Debug("gesture started", slog.String("state", s.String()), slog.String("layer", sess.LayerID))
}

// finish clears the session and commits label if any snapshotted layer
// differs from its live counterpart.
func (e *Engine) finish(label string) {
	sess, state := e.session, e.state
	e.state = Idle
	e.session = Session{}
	e.setCursor(CursorDefault)
	if e.host == nil {
		return
	}
	if !e.sessionChanged(sess) {
		e.log.Debug("gesture finished without change", slog.String("state", state.String()))
		return
	}
	if e.opts.History != nil {
		e.opts.History.SaveState(label)
	}
	e.log.Debug("gesture committed", slog.String("state", state.String()), slog.String("label", label))
}

func (e *Engine) sessionChanged(s Session) bool {
	if s.OriginalMulti != nil {
		for id, orig := range s.OriginalMulti {
			if !sameGeometry(e.host.Layer(id), orig) {
				return true
			}
		}
		return false
	}
	return s.Original != nil && !sameGeometry(e.host.Layer(s.LayerID), s.Original)
}

func (e *Engine) changed(l *layer.Layer) {
	e.render()
	e.notifier.EmitTransforming(l)
}

func (e *Engine) render() {
	if e.opts.Renderer != nil {
		e.opts.Renderer.RequestRender()
	}
}

func (e *Engine) setCursor(c Cursor) {
	if e.opts.Cursor != nil {
		e.opts.Cursor.SetCursor(c)
	}
}

// delta returns the clamped pointer movement since the gesture started.
func (e *Engine) delta(p vector.Pt) (float64, float64) {
	m := e.opts.MaxDelta
	return vector.Clamp(p.X-e.session.StartPoint.X, -m, m), vector.Clamp(p.Y-e.session.StartPoint.Y, -m, m)
}

// snapDelta adjusts a drag delta so the primary layer lands on the grid or,
// failing that, on a smart-guide alignment. Grid snapping wins.
func (e *Engine) snapDelta(orig *layer.Layer, dx, dy float64) (float64, float64) {
	ax, ay, ok := layer.Anchor(orig)
	if !ok {
		return dx, dy
	}
	x, y := ax+dx, ay+dy
	switch g, sg := e.opts.Grid, e.opts.Guides; {
	case g != nil && g.GridSnapEnabled() && g.GridSize() > 0:
		x, y = vector.SnapTo(x, g.GridSize()), vector.SnapTo(y, g.GridSize())
	case sg != nil && (sg.Enabled() || sg.CanvasSnapEnabled()):
		x, y = sg.CalculateSnappedPosition(orig, x, y)
	default:
		return dx, dy
	}
	return x - ax, y - ay
}

func (e *Engine) selection() []string {
	ids := e.host.SelectedLayerIDs()
	if len(ids) == 0 {
		if id := e.host.SelectedLayerID(); id != "" {
			ids = []string{id}
		}
	}
	return append([]string(nil), ids...)
}

// primaryLayer resolves the selected layer, falling back to fallbackID.
func (e *Engine) primaryLayer(fallbackID string) *layer.Layer {
	if id := e.host.SelectedLayerID(); id != "" {
		return e.host.Layer(id)
	}
	if ids := e.host.SelectedLayerIDs(); len(ids) > 0 {
		return e.host.Layer(ids[0])
	}
	if fallbackID != "" {
		return e.host.Layer(fallbackID)
	}
	return nil
}

func (e *Engine) layerOrSelection(id string) *layer.Layer {
	if id != "" {
		return e.host.Layer(id)
	}
	return e.primaryLayer("")
}

// pinRotatedBox keeps the anchored side of a rotated box fixed on screen.
// The box is resized in its local axes, which moves its center; since the
// layer renders rotated about that center the origin is shifted by the
// difference between the rotated and unrotated center movement.
func pinRotatedBox(orig *layer.Layer, p *layer.Patch) {
	if p.Width == nil && p.Height == nil {
		return
	}
	switch orig.Kind {
	case layer.KindRectangle, layer.KindTextbox, layer.KindImage, layer.KindCustomShape:
	default:
		return
	}
	x, y, w, h := orig.X, orig.Y, orig.Width, orig.Height
	if p.X != nil {
		x = *p.X
	}
	if p.Y != nil {
		y = *p.Y
	}
	if p.Width != nil {
		w = *p.Width
	}
	if p.Height != nil {
		h = *p.Height
	}
	moved := vector.Pt{X: x + w/2 - (orig.X + orig.Width/2), Y: y + h/2 - (orig.Y + orig.Height/2)}
	shift := vector.RotateDeg(orig.Rotation).ApplyVector(moved).Sub(moved)
	p.X = layer.Float(clampCoord(x + shift.X))
	p.Y = layer.Float(clampCoord(y + shift.Y))
}

// restoreGeometry resets the positional fields of live to orig so a patch
// computed from the snapshot fully determines the result.
func restoreGeometry(live, orig *layer.Layer) {
	live.X, live.Y, live.Width, live.Height = orig.X, orig.Y, orig.Width, orig.Height
	live.Radius, live.RadiusX, live.RadiusY = orig.Radius, orig.RadiusX, orig.RadiusY
	live.OuterRadius, live.InnerRadius = orig.OuterRadius, orig.InnerRadius
	live.X1, live.Y1, live.X2, live.Y2 = orig.X1, orig.Y1, orig.X2, orig.Y2
	live.FontSize = orig.FontSize
	if orig.Points != nil {
		live.Points = append([]layer.Point(nil), orig.Points...)
	}
}

func sameGeometry(a, b *layer.Layer) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.X != b.X || a.Y != b.Y || a.Width != b.Width || a.Height != b.Height ||
		a.Radius != b.Radius || a.RadiusX != b.RadiusX || a.RadiusY != b.RadiusY ||
		a.OuterRadius != b.OuterRadius || a.InnerRadius != b.InnerRadius ||
		a.X1 != b.X1 || a.Y1 != b.Y1 || a.X2 != b.X2 || a.Y2 != b.Y2 ||
		a.FontSize != b.FontSize || a.Rotation != b.Rotation {
		return false
	}
	if !samePtr(a.ArrowX, b.ArrowX) || !samePtr(a.ArrowY, b.ArrowY) ||
		!samePtr(a.ControlX, b.ControlX) || !samePtr(a.ControlY, b.ControlY) {
		return false
	}
	if len(a.Points) != len(b.Points) {
		return false
	}
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			return false
		}
	}
	return true
}

func samePtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
