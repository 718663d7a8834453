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

package models

import (
	"encoding/json"
	"fmt"
)

// Payload is the kind-specific body of a ContentRecord.
type Payload interface {
	ContentKind() ContentKind
}

// LegalCardPayload is a jurisdiction's rights card. Every list is
// insertion-ordered and never nil.
type LegalCardPayload struct {
	Rights           []string `json:"rights"`
	Dos              []string `json:"dos"`
	Donts            []string `json:"donts"`
	KeyLaws          []string `json:"keyLaws"`
	EmergencyNumbers []string `json:"emergencyNumbers"`
}

func (*LegalCardPayload) ContentKind() ContentKind { return KindLegalCard }

// Normalize replaces nil lists with empty ones.
func (p *LegalCardPayload) Normalize() {
	for _, l := range []*[]string{&p.Rights, &p.Dos, &p.Donts, &p.KeyLaws, &p.EmergencyNumbers} {
		if *l == nil {
			*l = []string{}
		}
	}
}

// ScriptPayload is a short de-escalation script for one scenario.
type ScriptPayload struct {
	Scenario      string   `json:"scenario"`
	Language      Language `json:"language"`
	Text          string   `json:"text"`
	UsageContext  string   `json:"usageContext"`
	IsPremiumTier bool     `json:"isPremiumTier"`
}

func (*ScriptPayload) ContentKind() ContentKind { return KindScript }

// EmergencyMessagePayload is the text sent to emergency contacts.
type EmergencyMessagePayload struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (*EmergencyMessagePayload) ContentKind() ContentKind { return KindEmergencyMessage }

// DecodePayload unmarshals a stored payload document for the given kind.
func DecodePayload(kind ContentKind, data []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindLegalCard:
		p = &LegalCardPayload{}
	case KindScript:
		p = &ScriptPayload{}
	case KindEmergencyMessage:
		p = &EmergencyMessagePayload{}
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	if card, ok := p.(*LegalCardPayload); ok {
		card.Normalize()
	}
	return p, nil
}

// UnmarshalJSON decodes a record whose payload shape depends on Kind.
func (r *ContentRecord) UnmarshalJSON(data []byte) error {
	type plain ContentRecord
	var aux struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ContentRecord(aux.plain)
	r.Payload = nil
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		return nil
	}
	p, err := DecodePayload(r.Kind, aux.Payload)
	if err != nil {
		return err
	}
	r.Payload = p
	return nil
}
