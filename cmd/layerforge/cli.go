/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"layerforge/internal/canvas"
	"layerforge/internal/config"
	"layerforge/internal/crash"
	"layerforge/internal/journal"
	"layerforge/internal/layer"
	applog "layerforge/internal/log"
	"layerforge/internal/script"
	"layerforge/internal/telemetry"
	"layerforge/internal/transform"
	"layerforge/internal/undo"
	"layerforge/internal/version"
)

type app struct {
	cfgPath string
	verbose bool
	cfg     config.AppConfig
	crash   *crash.Target
	log     *slog.Logger
}

func newRootCmd(target *crash.Target) *cobra.Command {
	a := &app{crash: target}
	root := &cobra.Command{
		Use:           "layerforge",
		Short:         "Replay shape-editor gestures against layer documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			telemetry.Default().Flush(ctx)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default: per-user config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.replayCmd(), a.cursorCmd(), a.historyCmd(), a.versionCmd())
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	opts := applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File}
	if a.verbose {
		opts.Level = "debug"
	}
	applog.Init(opts)
	a.log = applog.WithComponent("cli")
	telemetry.NewDefault(telemetry.FromConfig(cfg.Telemetry))
	return nil
}

func (a *app) openJournal(ctx context.Context) (*journal.Journal, error) {
	h := a.cfg.History
	if h.JournalDSN == "" {
		return nil, nil
	}
	return journal.Open(ctx, h.JournalDriver, h.JournalDSN)
}

func (a *app) replayCmd() *cobra.Command {
	var outPath, docID string
	cmd := &cobra.Command{
		Use:   "replay <doc.json> <gestures.yaml>",
		Short: "Run a gesture script against a layer document and print the result",
		Long: "Run a gesture script against a layer document and print the result.\n\n" +
			"The document is JSON of the form {\"layers\": [...]}; each layer has a \"type\" out of:\n  " +
			kindList() + "\n\nScript steps: select, resize, rotate, drag, arrowTip, undo, redo.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := applog.WithOperation(a.log, "replay").With(slog.String("doc", args[0]))

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			coll, err := layer.Decode(data)
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			s, errs := script.Parse(string(src))
			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", args[1], e)
				}
				return fmt.Errorf("%d invalid steps in %s", len(errs), args[1])
			}

			j, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			if j != nil {
				defer func() { _ = j.Close() }()
			}
			if docID == "" {
				docID = filepath.Base(args[0])
			}
			t, h := a.cfg.Transform, a.cfg.History
			hist := undo.NewManager(undo.Config{
				MaxBytes:    h.MaxBytes,
				MaxPerDoc:   h.MaxPerDoc,
				MinInterval: time.Duration(h.CoalesceMs) * time.Millisecond,
			})
			opts := canvas.Options{
				DocID:         docID,
				GridSize:      t.GridSize,
				GridSnap:      t.GridSnap,
				SmartGuides:   t.SmartGuides,
				CanvasSnap:    t.CanvasSnap,
				SnapThreshold: t.SnapThreshold,
				Width:         t.CanvasWidth,
				Height:        t.CanvasHeight,
				History: hist,
				Errors: telemetry.Default(),
				Logger: a.log,
			}
			if j != nil {
				opts.Journal = j
			}
			c, err := canvas.New(coll, opts)
			if err != nil {
				return err
			}
			defer c.Close()
			a.crash.DocPath = args[0]
			a.crash.Dump = func() ([]byte, error) { return layer.Encode(c.Collection()) }

			engine := c.NewEngine(t.MaxDelta)
			defer engine.Destroy()
			res, err := script.Run(c, engine, s, l)
			if err != nil {
				return err
			}

			out, err := layer.Encode(c.Collection())
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, append(out, '\n'), 0o644); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			for _, label := range c.Commits() {
				fmt.Fprintf(cmd.ErrOrStderr(), "commit: %s\n", label)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "applied %d steps, skipped %d\n", res.Applied, len(res.Skipped))
			histBytes, _, histSnaps := hist.Stats()
			l.Info("replay done", slog.Int("applied", res.Applied), slog.Any("skipped", res.Skipped), slog.Int("commits", len(c.Commits())),
				slog.Int("history_snapshots", histSnaps), slog.Int("history_bytes", histBytes))
			telemetry.Event("replay", map[string]any{"steps": len(s.Steps), "commits": len(c.Commits())})
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the resulting document here instead of stdout")
	cmd.Flags().StringVar(&docID, "doc-id", "", "history key (default: document file name)")
	return cmd
}

func kindList() string {
	names := make([]string, len(layer.Kinds))
	for i, k := range layer.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func (a *app) cursorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cursor <handle> <rotation-degrees>",
		Short: "Print the resize cursor for a handle on a rotated layer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deg, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("rotation: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), transform.ResizeCursor(transform.HandleType(args[0]), deg))
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit, keep int
	cmd := &cobra.Command{
		Use:   "history <doc-id>",
		Short: "List journaled commits of a document, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal(cmd.Context())
			if err != nil {
				return err
			}
			if j == nil {
				return fmt.Errorf("no journal configured (set history.journal_dsn or %s)", config.EnvJournalDSN)
			}
			defer func() { _ = j.Close() }()
			if keep > 0 {
				n, err := j.Prune(cmd.Context(), args[0], keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "pruned %d entries\n", n)
			}
			entries, err := j.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s  %s\n", e.TS.Local().Format(time.DateTime), e.Label, e.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	cmd.Flags().IntVar(&keep, "keep", 0, "delete all but the newest entries before listing (0 keeps everything)")
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "layerforge", version.String())
		},
	}
}
