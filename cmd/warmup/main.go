// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// KnowYourRights Now - Content Warm-up Command
//
// Standalone CLI tool that pre-generates legal cards and scripts into the
// content store so first requests are served from the cache. Intended for
// seeding new deployments.
//
// Usage:
//
//	go run ./cmd/warmup/ --kind legal_card [--keys california,texas] [--languages en,es] [--force]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kyrn/engine/internal/bootstrap"
	"github.com/kyrn/engine/internal/config"
	"github.com/kyrn/engine/internal/models"
	"github.com/kyrn/engine/internal/warmup"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	kindFlag := flag.String("kind", "", "Content kind to warm: legal_card or script (required)")
	keysFlag := flag.String("keys", "", "Comma-separated keys (optional; empty = every known jurisdiction or scenario)")
	langsFlag := flag.String("languages", "en,es", "Comma-separated languages")
	forceFlag := flag.Bool("force", false, "Regenerate even when a cached record exists")
	delayFlag := flag.Duration("delay", 0, "Pause between requests (default from config)")
	flag.Parse()

	kind := models.ContentKind(*kindFlag)
	if kind != models.KindLegalCard && kind != models.KindScript {
		fmt.Fprintf(os.Stderr, "Error: --kind must be legal_card or script\n\n")
		flag.Usage()
		os.Exit(1)
	}

	var langs []models.Language
	for _, s := range splitList(*langsFlag) {
		lang, err := models.ParseLanguage(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --languages value %q: %v\n", s, err)
			os.Exit(1)
		}
		langs = append(langs, lang)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	delay := cfg.Warmup.Delay
	if *delayFlag > 0 {
		delay = *delayFlag
	}

	// --- Run Warm-up ---
	runner := warmup.NewRunner(app.Pipeline, delay)
	result, err := runner.Run(ctx, warmup.Request{
		Kind:      kind,
		Keys:      splitList(*keysFlag),
		Languages: langs,
		Force:     *forceFlag,
	})
	if err != nil && result == nil {
		slog.Error("warm-up failed", "error", err)
		os.Exit(1)
	}

	// --- Summary ---
	for _, item := range result.Items {
		attrs := []any{"key", item.Key, "language", item.Language, "source", item.Source, "version", item.Version}
		if item.Err != nil {
			attrs = append(attrs, "error", item.Err)
		}
		slog.Info("item result", attrs...)
	}
	slog.Info("warm-up complete",
		"fresh", result.Fresh,
		"cached", result.Cached,
		"fallback", result.Fallback,
		"failed", result.Failed,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)

	if err != nil || result.Failed > 0 {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
