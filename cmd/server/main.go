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

// KnowYourRights Now - Content and Emergency Dispatch Engine
//
// Entry point for the engine service. It:
//  1. Loads configuration from config.yaml
//  2. Opens the content store (PostgreSQL or SQLite) and, optionally, Redis
//  3. Builds the generation pipeline and the alert dispatcher
//  4. Serves the content, alert, health and metrics endpoints
//  5. Optionally refreshes cached content on a schedule
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kyrn/engine/internal/bootstrap"
	"github.com/kyrn/engine/internal/config"
	"github.com/kyrn/engine/internal/httpapi"
	"github.com/kyrn/engine/internal/models"
	"github.com/kyrn/engine/internal/warmup"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting KnowYourRights Now engine",
		"database", cfg.Database.Driver,
		"provider", cfg.Generation.Provider,
		"sms", cfg.SMS.Enabled(),
		"email", cfg.Email.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var idem httpapi.Idempotency
	if app.Idempotency != nil {
		idem = app.Idempotency
	}
	handler := httpapi.NewHandler(app.Engine, idem, app.Checks...)
	metrics := promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})

	ready, stopped, err := httpapi.Serve(ctx, cfg.Port, handler.Routes(metrics))
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Scheduled warm-up ---
	if cfg.Warmup.Interval > 0 {
		runner := warmup.NewRunner(app.Pipeline, cfg.Warmup.Delay)
		sched := warmup.NewScheduler(runner, cfg.Warmup.Interval,
			warmup.Request{Kind: models.KindLegalCard, Force: true},
			warmup.Request{Kind: models.KindScript, Force: true},
		)
		go sched.Run(ctx)
	}

	<-ctx.Done()
	slog.Info("received shutdown signal")
	<-stopped

	slog.Info("engine stopped")
}
