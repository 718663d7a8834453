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

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyrn/engine/internal/models"
)

// setupTestStore connects to the database named by KYRN_TEST_POSTGRES_URL.
// Tests are skipped when it is unset or unreachable.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("KYRN_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("KYRN_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("could not create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("could not ping test database: %v", err)
	}

	s, err := NewStore(ctx, pool)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "TRUNCATE TABLE content_records, audit_entries")
		pool.Close()
	})
	return s
}

func TestStore_PutAssignsIncreasingVersions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	rec := models.ContentRecord{
		Kind:     models.KindScript,
		Key:      "traffic_stop",
		Language: models.LanguageEnglish,
		Payload:  &models.ScriptPayload{Scenario: "traffic_stop", Language: models.LanguageEnglish, Text: "v1"},
	}

	first, err := s.Put(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.NotEmpty(t, first.ID)

	rec.Payload = &models.ScriptPayload{Scenario: "traffic_stop", Language: models.LanguageEnglish, Text: "v2"}
	second, err := s.Put(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	latest, err := s.GetLatest(ctx, models.KindScript, "traffic_stop", models.LanguageEnglish)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "v2", latest.Payload.(*models.ScriptPayload).Text)
}

func TestStore_GetLatestMissing(t *testing.T) {
	s := setupTestStore(t)

	rec, err := s.GetLatest(context.Background(), models.KindLegalCard, "ohio", models.LanguageSpanish)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_AppendAudit(t *testing.T) {
	s := setupTestStore(t)

	err := s.Append(context.Background(), models.AuditEntry{
		Kind:      models.AuditDispatch,
		SubjectID: "d1",
		Payload:   []byte(`{"ok":true}`),
	})
	assert.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}
