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

package warmup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyrn/engine/internal/generation"
	"github.com/kyrn/engine/internal/llm"
	"github.com/kyrn/engine/internal/models"
	"github.com/kyrn/engine/internal/store/sqlite"
)

type fakeGenerator struct {
	mu   sync.Mutex
	reqs []models.ContentRequest
	fail map[string]bool
	src  models.GenSource
}

func (g *fakeGenerator) Generate(_ context.Context, req models.ContentRequest) (models.ContentRecord, models.GenSource, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.fail[req.Key] {
		return models.ContentRecord{}, "", errors.New("invalid")
	}
	src := g.src
	if src == "" {
		src = models.SourceFresh
	}
	return models.ContentRecord{Kind: req.Kind, Key: req.Key, Language: req.Language, Version: 1}, src, nil
}

func (g *fakeGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

func TestRun_EveryKeyAndLanguage(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, time.Millisecond)

	res, err := r.Run(context.Background(), Request{
		Kind:  models.KindLegalCard,
		Keys:  []string{"california", "texas"},
		Force: true,
	})
	require.NoError(t, err)

	assert.Len(t, res.Items, 4)
	assert.Equal(t, 4, res.Fresh)
	for _, req := range gen.reqs {
		assert.True(t, req.ForceRefresh)
		assert.Equal(t, models.KindLegalCard, req.Kind)
	}
	assert.Equal(t, models.LanguageEnglish, gen.reqs[0].Language)
	assert.Equal(t, models.LanguageSpanish, gen.reqs[1].Language)
}

func TestRun_DefaultKeys(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, time.Millisecond)

	res, err := r.Run(context.Background(), Request{
		Kind:      models.KindScript,
		Languages: []models.Language{models.LanguageEnglish},
	})
	require.NoError(t, err)
	assert.Len(t, res.Items, len(generation.Scenarios()))
	assert.NotEmpty(t, DefaultKeys(models.KindLegalCard))
	assert.Contains(t, DefaultKeys(models.KindLegalCard), "federal")
}

func TestRun_ContinuesPastFailures(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]bool{"bogus": true}}
	r := NewRunner(gen, time.Millisecond)

	res, err := r.Run(context.Background(), Request{
		Kind:      models.KindLegalCard,
		Keys:      []string{"bogus", "ohio"},
		Languages: []models.Language{models.LanguageEnglish},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Fresh)
	assert.Error(t, res.Items[0].Err)
}

func TestRun_CountsFallbacks(t *testing.T) {
	gen := &fakeGenerator{src: models.SourceFallback}
	r := NewRunner(gen, time.Millisecond)

	res, err := r.Run(context.Background(), Request{Kind: models.KindScript, Keys: []string{"traffic_stop"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fallback)
}

func TestRun_StopsOnCancel(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res, err := r.Run(ctx, Request{Kind: models.KindLegalCard, Keys: []string{"ohio", "utah"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, res.Items, 1)
}

func TestRun_RejectsEmergencyMessages(t *testing.T) {
	r := NewRunner(&fakeGenerator{}, time.Millisecond)

	_, err := r.Run(context.Background(), Request{Kind: models.KindEmergencyMessage})
	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
}

type cannedClient struct{ out string }

func (c cannedClient) Complete(context.Context, llm.Prompt) (string, error) { return c.out, nil }

func TestRun_SecondPassServedFromCache(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := sqlite.NewStore(ctx, db)
	require.NoError(t, err)

	pipeline := generation.NewPipeline(generation.PipelineConfig{
		Client: cannedClient{out: `{"script":"Officer, I do not consent to searches.","context":"traffic stop"}`},
		Cache:  store,
	})
	r := NewRunner(pipeline, time.Millisecond)
	req := Request{Kind: models.KindScript, Keys: []string{"traffic_stop"}, Languages: []models.Language{models.LanguageEnglish}}

	first, err := r.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Fresh)

	second, err := r.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Cached)
	assert.Equal(t, 1, second.Items[0].Version)

	req.Force = true
	third, err := r.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Fresh)
	assert.Equal(t, 2, third.Items[0].Version)
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewScheduler(NewRunner(gen, time.Millisecond), 10*time.Millisecond,
		Request{Kind: models.KindScript, Keys: []string{"traffic_stop"}, Languages: []models.Language{models.LanguageEnglish}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return gen.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
