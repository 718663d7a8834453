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

// Package schema validates generation output against the shape each content
// kind requires. Parsing is strict first; if that fails the first embedded
// JSON payload is extracted from surrounding prose and parsed again.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kyrn/engine/internal/models"
)

// ErrMalformedOutput is returned when no valid payload can be recovered.
var ErrMalformedOutput = errors.New("malformed generation output")

// Decode turns raw generation output into a payload for kind. Script
// payloads carry only the generated text and context; the caller fills in
// scenario, language and tier.
func Decode(kind models.ContentKind, raw string) (models.Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	p, err := decodeStrict(kind, trimmed)
	if err == nil {
		return p, nil
	}
	firstErr := err

	for _, c := range candidates(trimmed) {
		if c == trimmed {
			continue
		}
		if p, err := decodeStrict(kind, c); err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, firstErr)
}

func decodeStrict(kind models.ContentKind, doc string) (models.Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", kind, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("parse %s: not an object", kind)
	}

	switch kind {
	case models.KindLegalCard:
		return decodeLegalCard(fields)
	case models.KindScript:
		return decodeScript(fields)
	case models.KindEmergencyMessage:
		return decodeEmergencyMessage(fields)
	}
	return nil, fmt.Errorf("unknown content kind %q", kind)
}

func decodeLegalCard(fields map[string]json.RawMessage) (models.Payload, error) {
	// Some providers nest dos and donts under a single object.
	if nested, ok := fields["dosDonts"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			for _, k := range []string{"dos", "donts"} {
				if _, present := fields[k]; !present {
					if v, ok := inner[k]; ok {
						fields[k] = v
					}
				}
			}
		}
	}

	card := &models.LegalCardPayload{}
	targets := []struct {
		key string
		dst *[]string
	}{
		{"rights", &card.Rights},
		{"dos", &card.Dos},
		{"donts", &card.Donts},
		{"keyLaws", &card.KeyLaws},
		{"emergencyNumbers", &card.EmergencyNumbers},
	}
	for _, t := range targets {
		if err := requireList(fields, t.key, t.dst); err != nil {
			return nil, err
		}
	}
	card.Normalize()
	return card, nil
}

func decodeScript(fields map[string]json.RawMessage) (models.Payload, error) {
	text, err := requireString(fields, "script")
	if err != nil {
		return nil, err
	}
	usage, err := optionalString(fields, "context")
	if err != nil {
		return nil, err
	}
	return &models.ScriptPayload{Text: text, UsageContext: usage}, nil
}

func decodeEmergencyMessage(fields map[string]json.RawMessage) (models.Payload, error) {
	text, err := requireString(fields, "message")
	if err != nil {
		return nil, err
	}
	subject, err := optionalString(fields, "subject")
	if err != nil {
		return nil, err
	}
	return &models.EmergencyMessagePayload{Subject: subject, Text: text}, nil
}

// requireList decodes a required list of strings. A present null is an
// empty list.
func requireList(fields map[string]json.RawMessage, key string, dst *[]string) error {
	v, ok := fields[key]
	if !ok {
		return fmt.Errorf("missing field %q", key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func requireString(fields map[string]json.RawMessage, key string) (string, error) {
	s, err := optionalString(fields, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("missing field %q", key)
	}
	return s, nil
}

func optionalString(fields map[string]json.RawMessage, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", nil
	}
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	if s == nil {
		return "", nil
	}
	return strings.TrimSpace(*s), nil
}
