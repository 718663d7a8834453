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

// Package bootstrap builds the engine and its collaborators from
// configuration. Both the server and the warm-up command use it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kyrn/engine/internal/audit"
	"github.com/kyrn/engine/internal/channel"
	"github.com/kyrn/engine/internal/config"
	"github.com/kyrn/engine/internal/dedup"
	"github.com/kyrn/engine/internal/dispatch"
	"github.com/kyrn/engine/internal/engine"
	"github.com/kyrn/engine/internal/fallback"
	"github.com/kyrn/engine/internal/generation"
	"github.com/kyrn/engine/internal/httpapi"
	"github.com/kyrn/engine/internal/llm"
	"github.com/kyrn/engine/internal/metrics"
	"github.com/kyrn/engine/internal/queue"
	"github.com/kyrn/engine/internal/store/postgres"
	"github.com/kyrn/engine/internal/store/rediscache"
	"github.com/kyrn/engine/internal/store/sqlite"
)

const appName = "KnowYourRights Now"

// Store is a durable content and audit store.
type Store interface {
	generation.Cache
	audit.Sink
	Ping(ctx context.Context) error
}

// App holds the wired engine. Close releases every connection it opened.
type App struct {
	Engine   *engine.Engine
	Pipeline *generation.Pipeline
	Registry *prometheus.Registry
	Checks   []httpapi.Check

	// Idempotency is nil when Redis is not configured.
	Idempotency *dedup.Filter

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build wires the engine from cfg.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(app.Registry)

	store, closeStore, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeStore)
	app.Checks = append(app.Checks, httpapi.Check{Name: cfg.Database.Driver, Ping: store.Ping})

	var (
		cache generation.Cache = store
		sink  audit.Sink       = store
	)
	if cfg.Redis.URL != "" {
		rdb, err := OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() { rdb.Close() })

		publisher := queue.NewPublisher(rdb, cfg.Redis.AuditQueue)
		cache = rediscache.NewLayer(rdb, store, cfg.Redis.CacheTTL)
		sink = audit.NewFanout(store, publisher)
		app.Idempotency = dedup.NewFilter(rdb, cfg.Redis.IdempotencyTTL)
		app.Checks = append(app.Checks, httpapi.Check{Name: "redis", Ping: publisher.Ping})
		slog.Info("redis cache, idempotency and audit relay enabled", "audit_queue", cfg.Redis.AuditQueue)
	}

	client, premium, err := LLMClients(ctx, cfg.Generation)
	if err != nil {
		app.Close()
		return nil, err
	}

	library := fallback.Default()
	app.Pipeline = generation.NewPipeline(generation.PipelineConfig{
		Client:        client,
		PremiumClient: premium,
		Cache:         cache,
		Audit:         sink,
		Fallback:      library,
		Metrics:       m,
		Timeout:       cfg.Generation.Timeout,
	})

	dcfg := dispatch.Config{
		Messages:       app.Pipeline,
		Audit:          sink,
		Fallback:       library,
		Metrics:        m,
		ChannelTimeout: cfg.Dispatch.ChannelTimeout,
		MessageTimeout: cfg.Dispatch.MessageTimeout,
	}
	if cfg.SMS.Enabled() {
		dcfg.SMS = channel.NewTwilioSender(channel.TwilioConfig{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			FromNumber: cfg.SMS.FromNumber,
			BaseURL:    cfg.SMS.BaseURL,
			Timeout:    cfg.Dispatch.ChannelTimeout,
		})
	} else {
		slog.Warn("sms channel disabled, twilio credentials missing")
	}
	if cfg.Email.Enabled() {
		dcfg.Email = channel.NewGraphMailer(graphClient(ctx, cfg.Email), cfg.Email.GraphBaseURL, cfg.Email.Sender)
	} else {
		slog.Warn("email channel disabled, graph credentials missing")
	}

	app.Engine = engine.New(app.Pipeline, dispatch.NewDispatcher(dcfg), cfg.Dispatch.AlertTimeout)
	return app, nil
}

// OpenStore connects to the configured database and ensures its schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		store, err := postgres.NewStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("connected to PostgreSQL")
		return store, pool.Close, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.NewStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("opened sqlite store", "path", cfg.SQLitePath)
		return store, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// OpenRedis parses url and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	slog.Info("connected to Redis")
	return rdb, nil
}

// LLMClients builds the standard and premium generation clients. The
// premium client is nil unless a distinct premium model is configured.
func LLMClients(ctx context.Context, cfg config.GenerationConfig) (llm.Client, llm.Client, error) {
	build := func(model string) (llm.Client, error) {
		switch cfg.Provider {
		case "gemini":
			return llm.NewGeminiClient(ctx, llm.GeminiConfig{
				APIKey:  cfg.APIKey,
				Model:   model,
				BaseURL: cfg.BaseURL,
			})
		case "openai":
			return llm.NewOpenAIClient(llm.OpenAIConfig{
				BaseURL: cfg.BaseURL,
				APIKey:  cfg.APIKey,
				Model:   model,
				Timeout: cfg.Timeout,
				AppName: appName,
			}), nil
		}
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}

	client, err := build(cfg.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("build generation client: %w", err)
	}
	if cfg.PremiumModel == "" || cfg.PremiumModel == cfg.Model {
		return client, nil, nil
	}
	premium, err := build(cfg.PremiumModel)
	if err != nil {
		return nil, nil, fmt.Errorf("build premium generation client: %w", err)
	}
	return client, premium, nil
}

// graphClient returns an HTTP client carrying an application token for
// Microsoft Graph.
func graphClient(ctx context.Context, cfg config.EmailConfig) *http.Client {
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return creds.Client(ctx)
}
