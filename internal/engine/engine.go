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

// Package engine is the caller-facing API: content requests and emergency
// alerts.
package engine

import (
	"context"
	"time"

	"github.com/kyrn/engine/internal/models"
)

// DefaultAlertTimeout bounds a whole alert from message generation to the
// last channel attempt.
const DefaultAlertTimeout = 30 * time.Second

// ContentGenerator serves content requests.
type ContentGenerator interface {
	Generate(ctx context.Context, req models.ContentRequest) (models.ContentRecord, models.GenSource, error)
}

// AlertDispatcher fans alerts out to contacts.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, contacts []models.EmergencyContact, loc models.Location, user models.UserInfo, lang models.Language) (models.DispatchResult, error)
}

// ContentResult is a served record and where it came from.
type ContentResult struct {
	Record models.ContentRecord `json:"record"`
	Source models.GenSource     `json:"source"`
}

// AlertRequest is one emergency alert.
type AlertRequest struct {
	Contacts []models.EmergencyContact `json:"contacts"`
	Location models.Location           `json:"location"`
	User     models.UserInfo           `json:"user"`
	Language models.Language           `json:"language"`
}

// Engine wires content generation and alert dispatch behind one API.
type Engine struct {
	content      ContentGenerator
	alerts       AlertDispatcher
	alertTimeout time.Duration
}

// New creates an engine. A non-positive alertTimeout uses DefaultAlertTimeout.
func New(content ContentGenerator, alerts AlertDispatcher, alertTimeout time.Duration) *Engine {
	if alertTimeout <= 0 {
		alertTimeout = DefaultAlertTimeout
	}
	return &Engine{content: content, alerts: alerts, alertTimeout: alertTimeout}
}

// RequestContent serves a legal card, script or emergency message. It fails
// only for invalid requests.
func (e *Engine) RequestContent(ctx context.Context, req models.ContentRequest) (ContentResult, error) {
	rec, src, err := e.content.Generate(ctx, req)
	if err != nil {
		return ContentResult{}, err
	}
	return ContentResult{Record: rec, Source: src}, nil
}

// RaiseAlert notifies the request's contacts within the alert timeout.
func (e *Engine) RaiseAlert(ctx context.Context, req AlertRequest) (models.DispatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.alertTimeout)
	defer cancel()
	return e.alerts.Dispatch(ctx, req.Contacts, req.Location, req.User, req.Language)
}
