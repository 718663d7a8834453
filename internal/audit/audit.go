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

// Package audit writes immutable records of generated content and alert
// dispatches. The durable store is authoritative; mirrors such as the
// Redis relay are best-effort.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kyrn/engine/internal/models"
)

// Sink accepts audit entries. Implementations must not modify stored entries.
type Sink interface {
	Append(ctx context.Context, entry models.AuditEntry) error
}

// NewEntry builds an entry whose payload is the JSON encoding of v.
func NewEntry(kind models.AuditKind, subjectID string, v any) (models.AuditEntry, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	return models.AuditEntry{
		ID:         uuid.NewString(),
		Kind:       kind,
		SubjectID:  subjectID,
		Payload:    payload,
		RecordedAt: time.Now().UTC(),
	}, nil
}

// Fanout writes to a primary sink and then to any mirrors.
type Fanout struct {
	primary Sink
	mirrors []Sink
}

// NewFanout creates a sink that requires primary to succeed.
func NewFanout(primary Sink, mirrors ...Sink) *Fanout {
	return &Fanout{primary: primary, mirrors: mirrors}
}

// Append fails only if the primary write fails. Mirror failures are logged.
func (f *Fanout) Append(ctx context.Context, entry models.AuditEntry) error {
	if err := f.primary.Append(ctx, entry); err != nil {
		return err
	}
	for _, m := range f.mirrors {
		if err := m.Append(ctx, entry); err != nil {
			slog.Warn("audit mirror write failed",
				"audit_id", entry.ID,
				"subject_id", entry.SubjectID,
				"error", err,
			)
		}
	}
	return nil
}
