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

// Package sqlite provides a single-node content cache and audit log on an
// embedded SQLite database. It mirrors the Postgres store's semantics and
// is used for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kyrn/engine/internal/models"
)

// Open opens the database at path. Use ":memory:" for a private in-memory
// database.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps an in-memory database shared and serialises
	// writers the way SQLite expects.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Store persists content records and audit entries in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store on db and ensures its tables exist.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure content schema: %w", err)
	}
	slog.Info("sqlite content store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS content_records (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			kind       TEXT NOT NULL,
			key        TEXT NOT NULL,
			language   TEXT NOT NULL,
			version    INTEGER NOT NULL,
			payload    TEXT NOT NULL,
			verified   INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_content_lookup
			ON content_records(kind, key, language, version DESC, seq DESC);

		CREATE TABLE IF NOT EXISTS audit_entries (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			kind        TEXT NOT NULL,
			subject_id  TEXT NOT NULL,
			payload     TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_entries(subject_id);
	`)
	return err
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetLatest returns the highest version for (kind, key, language), or nil
// if none exists.
func (s *Store) GetLatest(ctx context.Context, kind models.ContentKind, key string, lang models.Language) (*models.ContentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, key, language, version, payload, verified, created_at
		FROM content_records
		WHERE kind = ? AND key = ? AND language = ?
		ORDER BY version DESC, seq DESC
		LIMIT 1
	`, string(kind), key, string(lang))

	var (
		rec       models.ContentRecord
		payload   string
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Key, &rec.Language, &rec.Version, &payload, &rec.Verified, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest %s/%s/%s: %w", kind, key, lang, err)
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if rec.Payload, err = models.DecodePayload(rec.Kind, []byte(payload)); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put appends rec as the next version of its (kind, key, language).
func (s *Store) Put(ctx context.Context, rec models.ContentRecord) (models.ContentRecord, error) {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return rec, fmt.Errorf("encode payload: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = s.now()

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO content_records (id, kind, key, language, version, payload, verified, created_at)
		SELECT ?1, ?2, ?3, ?4, COALESCE(MAX(version), 0) + 1, ?5, ?6, ?7
		FROM content_records
		WHERE kind = ?2 AND key = ?3 AND language = ?4
		RETURNING version
	`, rec.ID, string(rec.Kind), rec.Key, string(rec.Language), string(payload), rec.Verified,
		rec.CreatedAt.Format(time.RFC3339Nano)).
		Scan(&rec.Version)
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
		e.RecordedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, kind, subject_id, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, string(e.Kind), e.SubjectID, string(e.Payload), e.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the audit entries for a subject in insertion order.
func (s *Store) ListAudit(ctx context.Context, subjectID string) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, subject_id, payload, recorded_at
		FROM audit_entries
		WHERE subject_id = ?
		ORDER BY seq
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e          models.AuditEntry
			payload    string
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.SubjectID, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
