/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the layerforge YAML configuration. Environment
// variables are read-only overrides applied after the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// TransformConfig tunes the transform engine and the canvas host.
type TransformConfig struct {
	GridSize      float64 `yaml:"grid_size"`
	GridSnap      bool    `yaml:"grid_snap"`
	SmartGuides   bool    `yaml:"smart_guides"`
	CanvasSnap    bool    `yaml:"canvas_snap"`
	SnapThreshold float64 `yaml:"snap_threshold"`
	CanvasWidth   float64 `yaml:"canvas_width"`
	CanvasHeight  float64 `yaml:"canvas_height"`
	MaxDelta      float64 `yaml:"max_delta"`
}

// HistoryConfig controls the in-memory undo stacks and the optional journal.
// An empty JournalDSN disables the journal.
type HistoryConfig struct {
	MaxBytes      int    `yaml:"max_bytes"`
	MaxPerDoc     int    `yaml:"max_per_doc"`
	CoalesceMs    int    `yaml:"coalesce_ms"`
	JournalDriver string `yaml:"journal_driver"` // "sqlite" | "pgx"
	JournalDSN    string `yaml:"journal_dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type TelemetryConfig struct {
	OptIn     bool   `yaml:"opt_in"`
	EventsURL string `yaml:"events_url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// AppConfig is the user-editable configuration.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Transform     TransformConfig `yaml:"transform"`
	History       HistoryConfig   `yaml:"history"`
	Logging       LoggingConfig   `yaml:"logging"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Transform: TransformConfig{
			GridSize:      10,
			SmartGuides:   true,
			CanvasSnap:    true,
			SnapThreshold: 6,
			CanvasWidth:   1920,
			CanvasHeight:  1080,
			MaxDelta:      1000,
		},
		History:   HistoryConfig{MaxBytes: 16 * 1024 * 1024, MaxPerDoc: 100, CoalesceMs: 250, JournalDriver: "sqlite"},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{TimeoutMs: 1500},
	}
}

// Env var names used as overrides.
const (
	EnvGridSize      = "LF_GRID_SIZE"
	EnvGridSnap      = "LF_GRID_SNAP"
	EnvSmartGuides   = "LF_SMART_GUIDES"
	EnvJournalDriver = "LF_JOURNAL_DRIVER"
	EnvJournalDSN    = "LF_JOURNAL_DSN"
	EnvTelemetryOpt  = "LF_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "LF_LOG_LEVEL"
	EnvLogFormat = "LF_LOG_FORMAT"
	EnvLogSource = "LF_LOG_SOURCE"
	EnvLogFile   = "LF_LOG_FILE"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "LayerForge")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "LayerForge")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "layerforge")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "layerforge")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the config file at path (the per-user file when path is empty),
// applies defaults and merges environment overrides. A missing per-user file
// is not an error; a missing explicit path is.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies file values over defaults. src starts from Defaults, so
// fields absent from the file keep their default.
func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	t := src.Transform
	if t.GridSize > 0 {
		dst.Transform.GridSize = t.GridSize
	}
	dst.Transform.GridSnap = t.GridSnap
	dst.Transform.SmartGuides = t.SmartGuides
	dst.Transform.CanvasSnap = t.CanvasSnap
	if t.SnapThreshold > 0 {
		dst.Transform.SnapThreshold = t.SnapThreshold
	}
	if t.CanvasWidth > 0 {
		dst.Transform.CanvasWidth = t.CanvasWidth
	}
	if t.CanvasHeight > 0 {
		dst.Transform.CanvasHeight = t.CanvasHeight
	}
	if t.MaxDelta > 0 {
		dst.Transform.MaxDelta = t.MaxDelta
	}
	h := src.History
	if h.MaxBytes > 0 {
		dst.History.MaxBytes = h.MaxBytes
	}
	if h.MaxPerDoc >= 0 {
		dst.History.MaxPerDoc = h.MaxPerDoc
	}
	if h.CoalesceMs >= 0 {
		dst.History.CoalesceMs = h.CoalesceMs
	}
	if v := strings.ToLower(strings.TrimSpace(h.JournalDriver)); v != "" {
		dst.History.JournalDriver = v
	}
	dst.History.JournalDSN = strings.TrimSpace(h.JournalDSN)
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	dst.Telemetry.OptIn = src.Telemetry.OptIn
	dst.Telemetry.EventsURL = strings.TrimSpace(src.Telemetry.EventsURL)
	dst.Telemetry.CrashURL = strings.TrimSpace(src.Telemetry.CrashURL)
	if src.Telemetry.TimeoutMs > 0 {
		dst.Telemetry.TimeoutMs = src.Telemetry.TimeoutMs
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvGridSize)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.Transform.GridSize = n
		}
	}
	if v := os.Getenv(EnvGridSnap); strings.TrimSpace(v) != "" {
		cfg.Transform.GridSnap = parseBool(v)
	}
	if v := os.Getenv(EnvSmartGuides); strings.TrimSpace(v) != "" {
		cfg.Transform.SmartGuides = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournalDriver)); v != "" {
		cfg.History.JournalDriver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournalDSN)); v != "" {
		cfg.History.JournalDSN = v
	}
	if v := os.Getenv(EnvTelemetryOpt); strings.TrimSpace(v) != "" {
		cfg.Telemetry.OptIn = parseBool(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogSource); strings.TrimSpace(v) != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env := map[string]string{
		"transform.grid_size":    EnvGridSize,
		"transform.grid_snap":    EnvGridSnap,
		"transform.smart_guides": EnvSmartGuides,
		"history.journal_driver": EnvJournalDriver,
		"history.journal_dsn":    EnvJournalDSN,
		"telemetry.opt_in":       EnvTelemetryOpt,
		"logging.level":          EnvLogLevel,
		"logging.format":         EnvLogFormat,
		"logging.source":         EnvLogSource,
		"logging.file":           EnvLogFile,
	}[key]
	if env != "" && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}
