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

// Package httpapi exposes the engine over HTTP: content requests, emergency
// alerts, health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kyrn/engine/internal/dispatch"
	"github.com/kyrn/engine/internal/engine"
	"github.com/kyrn/engine/internal/generation"
	"github.com/kyrn/engine/internal/models"
)

const (
	maxBodyBytes = 64 << 10
	maxContacts  = 25

	idempotencyHeader = "Idempotency-Key"
)

// Service is the engine API the handlers call.
type Service interface {
	RequestContent(ctx context.Context, req models.ContentRequest) (engine.ContentResult, error)
	RaiseAlert(ctx context.Context, req engine.AlertRequest) (models.DispatchResult, error)
}

// Idempotency claims alert idempotency keys.
type Idempotency interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Check is a named dependency probe for /health.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler serves the engine's HTTP endpoints.
type Handler struct {
	svc    Service
	idem   Idempotency
	checks []Check
}

// NewHandler creates the HTTP handler. idem may be nil to disable
// idempotency keys.
func NewHandler(svc Service, idem Idempotency, checks ...Check) *Handler {
	return &Handler{svc: svc, idem: idem, checks: checks}
}

// Routes returns the request multiplexer. metrics may be nil.
func (h *Handler) Routes(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/content", h.ServeContent)
	mux.HandleFunc("POST /v1/alerts", h.ServeAlert)
	mux.HandleFunc("GET /health", h.ServeHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ServeContent handles POST /v1/content.
func (h *Handler) ServeContent(w http.ResponseWriter, r *http.Request) {
	var req models.ContentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.svc.RequestContent(r.Context(), req)
	if err != nil {
		if errors.Is(err, generation.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("content request failed", "kind", req.Kind, "key", req.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ServeAlert handles POST /v1/alerts.
//
// Status codes:
//   - 200: at least one contact was reached
//   - 409: the idempotency key was already used
//   - 422: no contacts, or no contact with a usable address
//   - 502: every attempt failed; the body still carries the result
func (h *Handler) ServeAlert(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idem != nil {
		claimed, err := h.idem.Claim(r.Context(), key)
		switch {
		case err != nil:
			slog.Warn("idempotency check failed, proceeding", "error", err)
			key = ""
		case !claimed:
			writeError(w, http.StatusConflict, "alert already submitted")
			return
		}
	} else {
		key = ""
	}

	var req engine.AlertRequest
	if err := decode(w, r, &req); err != nil {
		h.release(key)
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Contacts) > maxContacts {
		h.release(key)
		writeError(w, http.StatusBadRequest, "too many contacts")
		return
	}
	lang, err := models.ParseLanguage(string(req.Language))
	if err != nil {
		h.release(key)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Language = lang

	res, err := h.svc.RaiseAlert(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, dispatch.ErrNoContacts), errors.Is(err, dispatch.ErrNoChannelsAvailable):
		h.release(key)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, dispatch.ErrAllChannelsFailed):
		writeJSON(w, http.StatusBadGateway, res)
	default:
		slog.Error("alert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) release(key string) {
	if key == "" || h.idem == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.idem.Release(ctx, key); err != nil {
		slog.Warn("failed to release idempotency key", "error", err)
	}
}

// ServeHealth handles GET /health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.Ping(r.Context()); err != nil {
			slog.Warn("health check failed", "check", c.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": c.Name + " unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
