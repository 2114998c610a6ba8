/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous usage events in batches and is
// the sink for errors that editor components contain instead of raising.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"layerforge/internal/config"
	applog "layerforge/internal/log"
	"layerforge/internal/version"
)

const (
	defaultTimeout = 1500 * time.Millisecond
	queueSize      = 64
	batchSize      = 16
	flushEvery     = 2 * time.Second
)

// Config controls the client. Nothing is sent unless OptIn is set and the
// matching URL is non-empty.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// FromEnv reads LF_TELEMETRY_OPT_IN, LF_TELEMETRY_URL, LF_CRASH_UPLOAD_URL,
// LF_TELEMETRY_TIMEOUT_MS and LF_TELEMETRY_DEBUG.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("LF_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("LF_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("LF_CRASH_UPLOAD_URL")),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv("LF_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("LF_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// FromConfig builds a Config from the telemetry section of the app config.
// LF_TELEMETRY_DEBUG still enables debug logging.
func FromConfig(tc config.TelemetryConfig) Config {
	cfg := Config{
		OptIn:        tc.OptIn,
		EventsURL:    strings.TrimSpace(tc.EventsURL),
		CrashURL:     strings.TrimSpace(tc.CrashURL),
		Timeout:      time.Duration(tc.TimeoutMs) * time.Millisecond,
		DebugLogging: os.Getenv("LF_TELEMETRY_DEBUG") != "",
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Event is one anonymous usage record. Props must not carry document
// content or user data.
type Event struct {
	Name  string         `json:"name"`
	TS    time.Time      `json:"ts"`
	Props map[string]any `json:"props,omitempty"`
}

// Batch is the body POSTed to the events URL.
type Batch struct {
	Version string  `json:"version"`
	OS      string  `json:"os"`
	Arch    string  `json:"arch"`
	Events  []Event `json:"events"`
}

// Client queues events and posts them from a background goroutine in
// batches of up to 16, or every two seconds. A full queue drops events.
type Client struct {
	cfg Config
	log *slog.Logger
	cli *http.Client

	q      chan Event
	flush  chan chan struct{}
	closed chan struct{}
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	reported map[string]int
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// InitDefault installs a default client configured from the environment
// unless one is already installed.
func InitDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
}

// NewDefault replaces the default client with one built from cfg. The
// previous client is closed.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Default returns the package-level client.
func Default() *Client {
	InitDefault()
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// New starts a client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:      cfg,
		log:      applog.WithComponent("telemetry"),
		cli:      &http.Client{Timeout: cfg.Timeout},
		q:        make(chan Event, queueSize),
		flush:    make(chan chan struct{}),
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		reported: make(map[string]int),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

func Enabled() bool { return Default().Enabled() }

// Event queues a usage event. Safe on a nil or disabled client.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{Name: name, TS: time.Now().UTC()}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	select {
	case c.q <- ev:
	default:
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry queue full, event dropped", slog.String("event", name))
		}
	}
}

func Event(name string, props map[string]any) { Default().Event(name, props) }

// Report implements the error sink of the transform engine and the canvas.
// The error is logged and counted. With telemetry enabled an "error" event
// carrying the component, the category and the Go type of err is queued;
// the error text is never sent.
func (c *Client) Report(err error, component, category string) {
	if err == nil {
		return
	}
	if c == nil {
		applog.WithComponent("telemetry").Warn("contained error", slog.String("source", component), slog.String("category", category), slog.Any("err", err))
		return
	}
	c.log.Warn("contained error", slog.String("source", component), slog.String("category", category), slog.Any("err", err))
	c.mu.Lock()
	c.reported[component+"/"+category]++
	c.mu.Unlock()
	c.Event("error", map[string]any{
		"component": component,
		"category":  category,
		"type":      fmt.Sprintf("%T", err),
	})
}

func Report(err error, component, category string) { Default().Report(err, component, category) }

// Reported returns how many errors were reported for component and category.
func (c *Client) Reported(component, category string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reported[component+"/"+category]
}

// Flush sends everything queued so far and waits until the post returned
// or ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ack := make(chan struct{})
	select {
	case c.flush <- ack:
	case <-c.done:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-c.done:
	case <-ctx.Done():
	}
}

// Close sends pending events and stops the client. It is idempotent.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
	<-c.done
}

func (c *Client) loop() {
	defer close(c.done)
	tick := time.NewTicker(flushEvery)
	defer tick.Stop()

	var pending []Event
	drain := func() {
		for {
			select {
			case ev := <-c.q:
				pending = append(pending, ev)
			default:
				return
			}
		}
	}
	send := func() {
		if len(pending) > 0 {
			c.post(pending)
			pending = nil
		}
	}
	for {
		select {
		case ev := <-c.q:
			pending = append(pending, ev)
			if len(pending) >= batchSize {
				send()
			}
		case <-tick.C:
			send()
		case ack := <-c.flush:
			drain()
			send()
			close(ack)
		case <-c.closed:
			drain()
			send()
			return
		}
	}
}

func (c *Client) post(events []Event) {
	body, err := json.Marshal(Batch{Version: version.String(), OS: runtime.GOOS, Arch: runtime.GOARCH, Events: events})
	if err != nil {
		return
	}
	if err := c.do(c.cfg.EventsURL, "application/json", body); err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Int("events", len(events)), slog.Any("err", err))
		}
		return
	}
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry batch sent", slog.Int("events", len(events)))
	}
}

func (c *Client) do(url, contentType string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: %s answered %s", url, resp.Status)
	}
	return nil
}

// UploadCrash posts a crash report to the crash URL when opted in. It blocks
// for at most the client timeout since the process exits right after.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	if err := c.do(c.cfg.CrashURL, "text/plain; charset=utf-8", report); err != nil {
		c.log.Debug("crash upload failed", slog.Any("err", err))
	}
}

func UploadCrash(report []byte) { Default().UploadCrash(report) }
