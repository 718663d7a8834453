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

package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyrn/engine/internal/models"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
}

func (s *recordingSink) Append(_ context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

// TestNewEntry_EncodesPayload verifies ids, timestamps and payload encoding.
func TestNewEntry_EncodesPayload(t *testing.T) {
	e, err := NewEntry(models.AuditDispatch, "d1", map[string]bool{"anySucceeded": true})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "d1", e.SubjectID)
	assert.False(t, e.RecordedAt.IsZero())
	assert.JSONEq(t, `{"anySucceeded":true}`, string(e.Payload))
}

// TestNewEntry_Unencodable verifies marshal failures are returned.
func TestNewEntry_Unencodable(t *testing.T) {
	_, err := NewEntry(models.AuditDispatch, "d1", make(chan int))
	assert.Error(t, err)
}

// TestFanout_MirrorFailureIsIgnored verifies mirrors are best-effort.
func TestFanout_MirrorFailureIsIgnored(t *testing.T) {
	primary := &recordingSink{}
	broken := &recordingSink{err: errors.New("redis down")}
	healthy := &recordingSink{}

	err := NewFanout(primary, broken, healthy).Append(context.Background(), models.AuditEntry{ID: "a1"})
	require.NoError(t, err)
	assert.Len(t, primary.entries, 1)
	assert.Len(t, healthy.entries, 1)
}

// TestFanout_PrimaryFailureIsReturned verifies mirrors are skipped.
func TestFanout_PrimaryFailureIsReturned(t *testing.T) {
	primary := &recordingSink{err: errors.New("db down")}
	mirror := &recordingSink{}

	err := NewFanout(primary, mirror).Append(context.Background(), models.AuditEntry{ID: "a1"})
	assert.Error(t, err)
	assert.Empty(t, mirror.entries)
}
