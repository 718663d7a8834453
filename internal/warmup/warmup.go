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

// Package warmup pre-generates content so that first requests are served
// from the cache instead of waiting on the language model.
package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyrn/engine/internal/generation"
	"github.com/kyrn/engine/internal/models"
)

// Generator produces content records. *generation.Pipeline satisfies it.
type Generator interface {
	Generate(ctx context.Context, req models.ContentRequest) (models.ContentRecord, models.GenSource, error)
}

// Request defines the scope of a warm-up run.
type Request struct {
	Kind      models.ContentKind
	Keys      []string // empty = every known key for Kind
	Languages []models.Language
	Force     bool // regenerate even when a cached record exists
}

// Result summarises a completed warm-up run.
type Result struct {
	Items    []ItemResult
	Fresh    int
	Cached   int
	Fallback int
	Failed   int
	Elapsed  time.Duration
}

// ItemResult tracks a single key and language.
type ItemResult struct {
	Key      string
	Language models.Language
	Source   models.GenSource
	Version  int
	Err      error
}

// DefaultKeys returns every key warm-up covers for kind.
func DefaultKeys(kind models.ContentKind) []string {
	switch kind {
	case models.KindLegalCard:
		return generation.Jurisdictions()
	case models.KindScript:
		return generation.Scenarios()
	}
	return nil
}

// Runner performs warm-up runs.
type Runner struct {
	gen   Generator
	delay time.Duration // pause between requests to respect provider rate limits
}

// NewRunner creates a warm-up runner. A zero delay defaults to 500ms.
func NewRunner(gen Generator, delay time.Duration) *Runner {
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &Runner{gen: gen, delay: delay}
}

// Run generates every key and language in req. Individual failures are
// recorded and the run continues; only cancellation stops it early.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Kind == models.KindEmergencyMessage {
		return nil, fmt.Errorf("%w: emergency messages are not cacheable", generation.ErrInvalidRequest)
	}
	keys := req.Keys
	if len(keys) == 0 {
		keys = DefaultKeys(req.Kind)
	}
	langs := req.Languages
	if len(langs) == 0 {
		langs = []models.Language{models.LanguageEnglish, models.LanguageSpanish}
	}

	start := time.Now()
	slog.Info("starting content warm-up",
		"kind", req.Kind,
		"keys", len(keys),
		"languages", len(langs),
		"force", req.Force,
	)

	result := &Result{}
	n := 0
	for _, key := range keys {
		for _, lang := range langs {
			if n > 0 {
				select {
				case <-ctx.Done():
					result.Elapsed = time.Since(start)
					return result, ctx.Err()
				case <-time.After(r.delay):
				}
			}
			n++

			item := r.warm(ctx, req.Kind, key, lang, req.Force)
			result.Items = append(result.Items, item)
			switch {
			case item.Err != nil:
				result.Failed++
			case item.Source == models.SourceFresh:
				result.Fresh++
			case item.Source == models.SourceCache:
				result.Cached++
			default:
				result.Fallback++
			}
		}
	}

	result.Elapsed = time.Since(start)
	slog.Info("content warm-up complete",
		"kind", req.Kind,
		"fresh", result.Fresh,
		"cached", result.Cached,
		"fallback", result.Fallback,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

func (r *Runner) warm(ctx context.Context, kind models.ContentKind, key string, lang models.Language, force bool) ItemResult {
	item := ItemResult{Key: key, Language: lang}
	rec, src, err := r.gen.Generate(ctx, models.ContentRequest{
		Kind:         kind,
		Key:          key,
		Language:     lang,
		ForceRefresh: force,
	})
	if err != nil {
		slog.Warn("warm-up item failed", "kind", kind, "key", key, "language", lang, "error", err)
		item.Err = err
		return item
	}
	item.Source = src
	item.Version = rec.Version
	if src == models.SourceFallback {
		slog.Warn("warm-up item fell back", "kind", kind, "key", key, "language", lang)
	}
	return item
}

// Scheduler repeats warm-up runs on a fixed interval.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	requests []Request
}

// NewScheduler creates a scheduler that runs each request every interval.
func NewScheduler(runner *Runner, interval time.Duration, requests ...Request) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, requests: requests}
}

// Run starts the loop. It blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("warm-up scheduler starting", "interval", s.interval, "requests", len(s.requests))

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("warm-up scheduler stopping")
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, req := range s.requests {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.runner.Run(ctx, req); err != nil {
			slog.Error("warm-up run failed", "kind", req.Kind, "error", err)
		}
	}
}
