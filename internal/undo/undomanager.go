/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// Snapshot is the document state after a labeled change. Blob content is
// opaque to the manager; its size is estimated as len(Blob).
type Snapshot struct {
	Doc   string
	Label string
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerDoc limits the snapshots kept per document (0 means unlimited).
	MaxPerDoc int
	// MinInterval coalesces snapshots with the same label captured within
	// the interval for the same document, replacing the previous one.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per document.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-document stacks
	undo map[string][]Snapshot
	redo map[string][]Snapshot
	// floor holds the newest snapshot evicted by a cap, per document
	floor map[string]Snapshot
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{
		cfg:   cfg,
		undo:  make(map[string][]Snapshot),
		redo:  make(map[string][]Snapshot),
		floor: make(map[string]Snapshot),
	}
}

// PushSnapshot records a snapshot. If the previous snapshot of the same
// document carries the same label and is younger than MinInterval, it is
// replaced. Clears the redo stack of that document.
func (m *Manager) PushSnapshot(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[s.Doc]
	m.redo[s.Doc] = nil
	if n := len(stack); n > 0 {
		last := stack[n-1]
		if last.Label == s.Label && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			m.totalBytes += len(s.Blob) - len(last.Blob)
			stack[n-1] = s
			m.enforceCapsLocked(s.Doc)
			return
		}
	}
	m.undo[s.Doc] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(s.Doc)
}

// Undo moves the newest snapshot of doc onto its redo stack and returns it.
func (m *Manager) Undo(doc string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[doc]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[doc] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[doc] = append(m.redo[doc], s)
	return s, true
}

// Redo pops from redo and pushes back to undo.
func (m *Manager) Redo(doc string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[doc]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[doc] = r[:len(r)-1]
	m.undo[doc] = append(m.undo[doc], s)
	m.totalBytes += len(s.Blob)
	m.enforceCapsLocked(doc)
	return s, true
}

// Top returns the newest undoable snapshot of doc without removing it.
func (m *Manager) Top(doc string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[doc]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	return stack[len(stack)-1], true
}

// Floor returns the newest snapshot of doc that a depth or byte cap
// evicted. It is the state below the oldest undoable snapshot; floor blobs
// are not counted against MaxBytes.
func (m *Manager) Floor(doc string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.floor[doc]
	return s, ok
}

// Labels lists the undoable labels of doc, oldest first.
func (m *Manager) Labels(doc string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.undo[doc]))
	for _, s := range m.undo[doc] {
		out = append(out, s.Label)
	}
	return out
}

// ClearDoc clears the undo/redo stacks of a document to free memory.
func (m *Manager) ClearDoc(doc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[doc] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, doc)
	delete(m.redo, doc)
	delete(m.floor, doc)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, docs int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, docs, totalSnapshots
}

func (m *Manager) enforceCapsLocked(doc string) {
	if m.cfg.MaxPerDoc > 0 {
		stack := m.undo[doc]
		if len(stack) > m.cfg.MaxPerDoc {
			toDrop := len(stack) - m.cfg.MaxPerDoc
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.floor[doc] = stack[toDrop-1]
			m.undo[doc] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all documents
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestDoc := ""
		found := false
		var oldestTS time.Time
		for d, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestDoc, oldestTS, found = d, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestDoc]
		m.totalBytes -= len(stack[0].Blob)
		m.floor[oldestDoc] = stack[0]
		m.undo[oldestDoc] = stack[1:]
		if len(m.undo[oldestDoc]) == 0 {
			delete(m.undo, oldestDoc)
		}
	}
}
