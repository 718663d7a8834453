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

// Package models defines the data structures shared across the engine.
//
// The JSON serialisation of these types is the wire contract of the HTTP
// API and the payload format of the content and audit stores.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ContentKind identifies one of the generated content families.
type ContentKind string

const (
	KindLegalCard        ContentKind = "legal_card"
	KindScript           ContentKind = "script"
	KindEmergencyMessage ContentKind = "emergency_message"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	switch k {
	case KindLegalCard, KindScript, KindEmergencyMessage:
		return true
	}
	return false
}

// Language is a supported content language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

// ParseLanguage normalises s and rejects anything other than en or es.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageSpanish:
		return LanguageSpanish, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// GenSource records where a returned ContentRecord came from.
type GenSource string

const (
	SourceCache    GenSource = "cache"
	SourceFresh    GenSource = "fresh"
	SourceFallback GenSource = "fallback"
)

// ContentRequest asks for one piece of content. Key is a jurisdiction for
// legal cards and a scenario for scripts.
type ContentRequest struct {
	Kind         ContentKind       `json:"kind"`
	Key          string            `json:"key"`
	Language     Language          `json:"language"`
	ForceRefresh bool              `json:"forceRefresh"`
	Premium      bool              `json:"premium,omitempty"`
	Emergency    *EmergencyContext `json:"emergency,omitempty"`
}

// EmergencyContext carries the per-alert facts an emergency message is
// written from. It is never part of the cache key.
type EmergencyContext struct {
	User       UserInfo  `json:"user"`
	Location   Location  `json:"location"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ContentRecord is one immutable, versioned piece of generated content.
// A refresh produces a new record with a higher Version; records are never
// updated in place.
type ContentRecord struct {
	ID        string      `json:"id"`
	Kind      ContentKind `json:"kind"`
	Key       string      `json:"key"`
	Language  Language    `json:"language"`
	Version   int         `json:"version"`
	Payload   Payload     `json:"payload"`
	Verified  bool        `json:"verified"`
	CreatedAt time.Time   `json:"createdAt"`
}
