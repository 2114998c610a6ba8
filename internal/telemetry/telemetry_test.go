/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"layerforge/internal/config"
)

type collector struct {
	mu      sync.Mutex
	batches []Batch
	crashes []string
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var b Batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.batches = append(c.batches, b)
		c.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.crashes = append(c.crashes, string(b))
		c.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (c *collector) events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, b := range c.batches {
		out = append(out, b.Events...)
	}
	return out
}

func TestEventsAreBatchedOnFlush(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	defer c.Close()

	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.Event("replay", map[string]any{"steps": 3})
	c.Event("replay", nil)
	c.Flush(context.Background())

	col.mu.Lock()
	nb := len(col.batches)
	col.mu.Unlock()
	if nb != 1 {
		t.Fatalf("expected one batch, got %d", nb)
	}
	evs := col.events()
	if len(evs) != 2 || evs[0].Name != "replay" || evs[0].Props["steps"] != float64(3) {
		t.Fatalf("events = %+v", evs)
	}
	if evs[0].TS.IsZero() {
		t.Fatalf("missing timestamp")
	}
	if col.batches[0].Version == "" || col.batches[0].OS == "" {
		t.Fatalf("batch envelope = %+v", col.batches[0])
	}
}

func TestFullBatchIsSentWithoutFlush(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	for i := 0; i < batchSize; i++ {
		c.Event("gesture", nil)
	}
	deadline := time.Now().Add(time.Second)
	for len(col.events()) < batchSize && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := len(col.events()); n != batchSize {
		t.Fatalf("sent %d events, want %d", n, batchSize)
	}
	c.Close()
	c.Close()
}

func TestCloseSendsPending(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	c.Event("last", nil)
	c.Close()
	if evs := col.events(); len(evs) != 1 || evs[0].Name != "last" {
		t.Fatalf("events after close = %+v", evs)
	}
	c.Flush(context.Background())
}

func TestDisabledClientSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))
	c.Close()

	c2 := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	c2.Event("", nil)
	c2.Flush(nil)
	c2.Close()

	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestUploadCrashIsSynchronous(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	c.UploadCrash([]byte("STACKTRACE"))
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.crashes) != 1 || col.crashes[0] != "STACKTRACE" {
		t.Fatalf("crashes = %q", col.crashes)
	}
}

func TestConfigSources(t *testing.T) {
	t.Setenv("LF_TELEMETRY_OPT_IN", "yes")
	t.Setenv("LF_TELEMETRY_URL", " http://127.0.0.1:0 ")
	t.Setenv("LF_CRASH_UPLOAD_URL", "")
	t.Setenv("LF_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://127.0.0.1:0" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv = %+v", cfg)
	}

	fc := FromConfig(config.TelemetryConfig{OptIn: true, EventsURL: "http://x/events"})
	if fc.Timeout != defaultTimeout || !fc.OptIn || fc.EventsURL != "http://x/events" {
		t.Fatalf("FromConfig = %+v", fc)
	}

	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default client should be enabled")
	}
	NewDefault(Config{})
	if Enabled() {
		t.Fatalf("replaced default client should be disabled")
	}
}
