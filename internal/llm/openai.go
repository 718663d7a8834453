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
	"net/http"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultOpenRouterURL is the OpenAI-compatible endpoint used when no base
// URL is configured.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenAIConfig configures an OpenAI-compatible chat completions client.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// AppName and AppURL are sent as attribution headers to OpenRouter.
	AppName string
	AppURL  string
}

// OpenAIClient calls a /chat/completions endpoint.
type OpenAIClient struct {
	client *resty.Client
	model  string
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultOpenRouterURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetTimeout(timeout)
	if cfg.AppURL != "" {
		c.SetHeader("HTTP-Referer", cfg.AppURL)
	}
	if cfg.AppName != "" {
		c.SetHeader("X-Title", cfg.AppName)
	}

	return &OpenAIClient{client: c, model: cfg.Model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (string, error) {
	body := chatRequest{
		Model:       c.model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if p.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: p.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: p.User})
	if p.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post("/chat/completions")
	if err != nil {
		return "", unavailable("chat completion request: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", unavailable("chat completion returned HTTP %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", unavailable("decode chat completion: %v", err)
	}
	if len(cr.Choices) == 0 {
		return "", unavailable("chat completion returned no choices")
	}

	content := strings.TrimSpace(cr.Choices[0].Message.Content)
	if content == "" {
		return "", unavailable("chat completion returned empty content")
	}
	return content, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
