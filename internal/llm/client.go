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

// Package llm provides the Generation Client: a single completion call
// against an external text-generation provider. Providers never retry;
// every failure is reported as ErrGenerationUnavailable so callers can
// degrade to static content.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrGenerationUnavailable covers transport errors, timeouts, provider
// rejections and empty output.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// Prompt is one structured completion request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider to constrain output to a JSON document when it
	// supports doing so.
	JSON bool
}

// Client produces raw text for a prompt.
type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrGenerationUnavailable, fmt.Sprintf(format, args...))
}
