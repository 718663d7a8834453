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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, body string, check func(r *http.Request, req chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if check != nil {
			check(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestOpenAIClient_Complete verifies request shape and content extraction.
func TestOpenAIClient_Complete(t *testing.T) {
	var gotPath, gotAuth, gotTitle string
	var got chatRequest
	srv := chatServer(t, http.StatusOK, `{"choices":[{"message":{"content":"  {\"script\":\"hi\"}  "}}]}`,
		func(r *http.Request, req chatRequest) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			gotTitle = r.Header.Get("X-Title")
			got = req
		})

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "m1", AppName: "kyrn"})
	out, err := c.Complete(context.Background(), Prompt{
		System: "sys", User: "user", MaxTokens: 800, Temperature: 0.2, JSON: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"script":"hi"}`, out)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "kyrn", gotTitle)
	assert.Equal(t, "m1", got.Model)
	assert.Equal(t, 800, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

// TestOpenAIClient_Failures verifies every failure maps to ErrGenerationUnavailable.
func TestOpenAIClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"rate limited", http.StatusTooManyRequests, `{}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.body, nil)
			c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})

			_, err := c.Complete(context.Background(), Prompt{User: "x"})
			assert.True(t, errors.Is(err, ErrGenerationUnavailable), "got %v", err)
		})
	}
}

// TestOpenAIClient_Timeout verifies a slow provider is reported unavailable.
func TestOpenAIClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "m"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Prompt{User: "x"})
	assert.True(t, errors.Is(err, ErrGenerationUnavailable), "got %v", err)
}

// TestGeminiClient_Complete verifies text is read from the first candidate.
func TestGeminiClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"message\":\"help\"}"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Prompt{System: "s", User: "u", MaxTokens: 300, Temperature: 0.1, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"help"}`, out)
}

// TestGeminiClient_ServerError verifies provider errors are unavailable.
func TestGeminiClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":503,"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), Prompt{User: "u"})
	assert.True(t, errors.Is(err, ErrGenerationUnavailable), "got %v", err)
}

// TestNewGeminiClient_RequiresKey verifies construction fails without a key.
func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// "é" is two bytes; cutting at byte 2 would split it.
	got := truncate("aé tarifa excedida", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))

	got = truncate("límite de solicitudes", 3)
	assert.Equal(t, "lí...", got)
}
