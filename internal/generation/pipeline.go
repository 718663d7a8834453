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

// Package generation turns content requests into structured content. Each
// request is served from the cache, from a single fresh generation call, or
// from the static fallback library, in that order of preference. Only
// malformed requests fail; every other failure degrades to fallback content.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kyrn/engine/internal/audit"
	"github.com/kyrn/engine/internal/fallback"
	"github.com/kyrn/engine/internal/llm"
	"github.com/kyrn/engine/internal/metrics"
	"github.com/kyrn/engine/internal/models"
	"github.com/kyrn/engine/internal/schema"
)

// ErrInvalidRequest is returned for requests rejected before any I/O.
var ErrInvalidRequest = errors.New("invalid content request")

const (
	// DefaultTimeout bounds the single outbound generation call.
	DefaultTimeout = 20 * time.Second

	maxKeyLength = 100
	premiumKey   = "premium/"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Cache is the versioned content store.
type Cache interface {
	GetLatest(ctx context.Context, kind models.ContentKind, key string, lang models.Language) (*models.ContentRecord, error)
	Put(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error)
}

// PipelineConfig holds the pipeline's collaborators.
type PipelineConfig struct {
	Client llm.Client
	// PremiumClient serves premium scripts; nil uses Client.
	PremiumClient llm.Client
	Cache         Cache
	// Audit receives every freshly generated record; nil disables it.
	Audit    audit.Sink
	Fallback *fallback.Library
	Metrics  *metrics.Metrics
	Timeout  time.Duration
}

// Pipeline orchestrates cache, generation, validation and fallback.
type Pipeline struct {
	client        llm.Client
	premiumClient llm.Client
	cache         Cache
	audit         audit.Sink
	library       *fallback.Library
	metrics       *metrics.Metrics
	timeout       time.Duration
	now           func() time.Time
}

// NewPipeline creates a generation pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		client:        cfg.Client,
		premiumClient: cfg.PremiumClient,
		cache:         cfg.Cache,
		audit:         cfg.Audit,
		library:       cfg.Fallback,
		metrics:       cfg.Metrics,
		timeout:       cfg.Timeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if p.premiumClient == nil {
		p.premiumClient = p.client
	}
	if p.library == nil {
		p.library = fallback.Default()
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	return p
}

// Normalize validates req and canonicalises its key and language.
func Normalize(req models.ContentRequest) (models.ContentRequest, error) {
	if !req.Kind.Valid() {
		return req, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}

	lang, err := models.ParseLanguage(string(req.Language))
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Language = lang

	key := strings.ToLower(strings.TrimSpace(req.Key))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	switch {
	case key == "":
		return req, fmt.Errorf("%w: empty key", ErrInvalidRequest)
	case len(key) > maxKeyLength:
		return req, fmt.Errorf("%w: key longer than %d characters", ErrInvalidRequest, maxKeyLength)
	case !keyPattern.MatchString(key):
		return req, fmt.Errorf("%w: key %q has invalid characters", ErrInvalidRequest, req.Key)
	}
	req.Key = key

	switch req.Kind {
	case models.KindLegalCard:
		if !jurisdictionSet[key] {
			return req, fmt.Errorf("%w: unknown jurisdiction %q", ErrInvalidRequest, key)
		}
	case models.KindScript:
		if _, ok := scenarios[key]; !ok {
			return req, fmt.Errorf("%w: unknown scenario %q", ErrInvalidRequest, key)
		}
	}
	if req.Kind != models.KindScript {
		req.Premium = false
	}
	return req, nil
}

// storageKey is the cache key for a normalized request. Premium scripts are
// versioned separately from basic ones.
func storageKey(req models.ContentRequest) string {
	if req.Kind == models.KindScript && req.Premium {
		return premiumKey + req.Key
	}
	return req.Key
}

// Generate serves one content request. The returned error is non-nil only
// for ErrInvalidRequest.
func (p *Pipeline) Generate(ctx context.Context, req models.ContentRequest) (models.ContentRecord, models.GenSource, error) {
	start := time.Now()

	req, err := Normalize(req)
	if err != nil {
		return models.ContentRecord{}, "", err
	}

	rec, src := p.generate(ctx, req)
	p.metrics.ObserveGeneration(req.Kind, src, time.Since(start))
	return rec, src, nil
}

func (p *Pipeline) generate(ctx context.Context, req models.ContentRequest) (models.ContentRecord, models.GenSource) {
	key := storageKey(req)

	if p.cache != nil && !req.ForceRefresh {
		cached, err := p.cache.GetLatest(ctx, req.Kind, key, req.Language)
		if err != nil {
			slog.Warn("content cache lookup failed",
				"kind", req.Kind,
				"key", key,
				"language", req.Language,
				"error", err,
			)
		} else if cached != nil {
			return *cached, models.SourceCache
		}
	}

	client := p.client
	if req.Premium {
		client = p.premiumClient
	}
	if client == nil {
		return p.fallbackRecord(req, errors.New("no generation client configured")), models.SourceFallback
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	raw, err := client.Complete(callCtx, buildPrompt(req))
	cancel()
	if err != nil {
		return p.fallbackRecord(req, err), models.SourceFallback
	}

	payload, err := schema.Decode(req.Kind, raw)
	if err != nil {
		return p.fallbackRecord(req, err), models.SourceFallback
	}
	p.complete(req, payload)

	rec := models.ContentRecord{
		Kind:     req.Kind,
		Key:      key,
		Language: req.Language,
		Payload:  payload,
		Verified: false,
	}
	return p.persist(ctx, rec), models.SourceFresh
}

// complete fills payload fields that come from the request rather than the
// generated text.
func (p *Pipeline) complete(req models.ContentRequest, payload models.Payload) {
	switch v := payload.(type) {
	case *models.ScriptPayload:
		v.Scenario = req.Key
		v.Language = req.Language
		v.IsPremiumTier = req.Premium
	case *models.EmergencyMessagePayload:
		if v.Subject == "" {
			v.Subject = p.library.Subject(req.Language)
		}
	}
}

// persist stores a fresh record and appends it to the audit log. Storage
// failures are logged; the caller still receives the generated content.
func (p *Pipeline) persist(ctx context.Context, rec models.ContentRecord) models.ContentRecord {
	saved := rec
	if p.cache != nil {
		var err error
		if saved, err = p.cache.Put(ctx, rec); err != nil {
			slog.Error("failed to store generated content",
				"kind", rec.Kind,
				"key", rec.Key,
				"language", rec.Language,
				"error", err,
			)
			saved = rec
		}
	}
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = p.now()
	}

	if p.audit != nil {
		entry, err := audit.NewEntry(models.AuditContent, saved.ID, saved)
		if err == nil {
			err = p.audit.Append(ctx, entry)
		}
		if err != nil {
			slog.Error("failed to audit generated content",
				"record_id", saved.ID,
				"kind", saved.Kind,
				"error", err,
			)
		}
	}

	return saved
}

func (p *Pipeline) fallbackRecord(req models.ContentRequest, cause error) models.ContentRecord {
	slog.Warn("serving fallback content",
		"kind", req.Kind,
		"key", req.Key,
		"language", req.Language,
		"error", cause,
	)
	return models.ContentRecord{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Key:       storageKey(req),
		Language:  req.Language,
		Version:   0,
		Payload:   p.library.Payload(req),
		Verified:  false,
		CreatedAt: p.now(),
	}
}
