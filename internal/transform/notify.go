/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"fmt"
	"log/slog"

	"layerforge/internal/layer"
)

// EventTransforming is dispatched for every in-progress geometry change.
const EventTransforming = "layers:transforming"

// Component and category used when reporting notification failures.
const (
	ComponentName  = "TransformEngine"
	CategoryNotify = "event"
)

// Event is a live-update notification. Layer is a light copy and may be
// retained by the receiver.
type Event struct {
	Type    string
	LayerID string
	Layer   *layer.Layer
}

// Notifier emits transforming events synchronously. Events go to the
// document sink, or to the container sink when no document sink is set.
// Dispatch failures, panics included, are handed to the error reporter.
type Notifier struct {
	document  NotificationSink
	container NotificationSink
	errors    ErrorReporter
	log       *slog.Logger
}

func NewNotifier(document, container NotificationSink, errs ErrorReporter, log *slog.Logger) *Notifier {
	return &Notifier{document: document, container: container, errors: errs, log: log}
}

// EmitTransforming notifies listeners that l is being transformed. A nil
// layer emits nothing.
func (n *Notifier) EmitTransforming(l *layer.Layer) {
	if n == nil || l == nil {
		return
	}
	sink := n.document
	if sink == nil {
		sink = n.container
	}
	if sink == nil {
		return
	}
	ev := Event{Type: EventTransforming, LayerID: l.ID, Layer: l.LightClone()}
	if err := dispatch(sink, ev); err != nil {
		n.report(err)
	}
}

func dispatch(sink NotificationSink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification sink panicked: %v", r)
		}
	}()
	return sink.Dispatch(ev)
}

func (n *Notifier) report(err error) {
	if n.log != nil {
		n.log.Warn("emit transforming failed", slog.Any("err", err))
	}
	if n.errors != nil {
		n.errors.Report(err, ComponentName, CategoryNotify)
	}
}
