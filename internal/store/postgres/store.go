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

// Package postgres provides the Postgres-backed content cache and audit log.
//
// Content records form an append-only version sequence per (kind, key,
// language). Versions are assigned by the insert itself, without a lock;
// two concurrent writers may produce the same version, in which case the
// later insert wins on read.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyrn/engine/internal/models"
)

// Store persists content records and audit entries in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by the given pool and ensures its tables
// exist.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure content schema: %w", err)
	}
	slog.Info("postgres content store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS content_records (
			seq        BIGSERIAL PRIMARY KEY,
			id         TEXT NOT NULL UNIQUE,
			kind       TEXT NOT NULL,
			key        TEXT NOT NULL,
			language   TEXT NOT NULL,
			version    INTEGER NOT NULL,
			payload    JSONB NOT NULL,
			verified   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_content_lookup
			ON content_records(kind, key, language, version DESC, seq DESC);

		CREATE TABLE IF NOT EXISTS audit_entries (
			seq         BIGSERIAL PRIMARY KEY,
			id          TEXT NOT NULL UNIQUE,
			kind        TEXT NOT NULL,
			subject_id  TEXT NOT NULL,
			payload     JSONB NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_entries(subject_id);
	`)
	return err
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetLatest returns the highest version for (kind, key, language), or nil
// if none exists.
func (s *Store) GetLatest(ctx context.Context, kind models.ContentKind, key string, lang models.Language) (*models.ContentRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, kind, key, language, version, payload, verified, created_at
		FROM content_records
		WHERE kind = $1 AND key = $2 AND language = $3
		ORDER BY version DESC, seq DESC
		LIMIT 1
	`, string(kind), key, string(lang))

	var (
		rec     models.ContentRecord
		payload []byte
	)
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Key, &rec.Language, &rec.Version, &payload, &rec.Verified, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest %s/%s/%s: %w", kind, key, lang, err)
	}

	rec.Payload, err = models.DecodePayload(rec.Kind, payload)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put appends rec as the next version of its (kind, key, language) and
// returns it with ID, Version and CreatedAt assigned.
func (s *Store) Put(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return rec, fmt.Errorf("encode payload: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO content_records (id, kind, key, language, version, payload, verified)
		SELECT $1::text, $2::text, $3::text, $4::text, COALESCE(MAX(version), 0) + 1, $5::jsonb, $6::boolean
		FROM content_records
		WHERE kind = $2 AND key = $3 AND language = $4
		RETURNING version, created_at
	`, rec.ID, string(rec.Kind), rec.Key, string(rec.Language), string(payload), rec.Verified).
		Scan(&rec.Version, &rec.CreatedAt)
	if err != nil {
		return rec, fmt.Errorf("insert content record: %w", err)
	}
	return rec, nil
}

// Append writes an immutable audit entry.
func (s *Store) Append(ctx context.Context, e models.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, kind, subject_id, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, string(e.Kind), e.SubjectID, string(e.Payload), e.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
