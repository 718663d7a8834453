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

package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyrn/engine/internal/models"
)

// TestDefault_EmbeddedLibraryIsValid verifies the embedded asset parses.
func TestDefault_EmbeddedLibraryIsValid(t *testing.T) {
	_, err := Parse(embedded)
	require.NoError(t, err)
	require.NotNil(t, Default())
}

// TestLegalCard_AllListsPopulated verifies every language has a complete card.
func TestLegalCard_AllListsPopulated(t *testing.T) {
	for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageSpanish} {
		card := Default().LegalCard(lang)
		assert.NotEmpty(t, card.Rights, lang)
		assert.NotEmpty(t, card.Dos, lang)
		assert.NotEmpty(t, card.Donts, lang)
		assert.NotEmpty(t, card.KeyLaws, lang)
		assert.Contains(t, card.EmergencyNumbers, "911", lang)
	}
}

// TestLegalCard_ReturnsCopies verifies callers cannot mutate library content.
func TestLegalCard_ReturnsCopies(t *testing.T) {
	a := Default().LegalCard(models.LanguageEnglish)
	a.Rights[0] = "mutated"

	b := Default().LegalCard(models.LanguageEnglish)
	assert.Equal(t, "You have the right to remain silent", b.Rights[0])
}

// TestScript_UnknownScenarioUsesDefault verifies the general_interaction default.
func TestScript_UnknownScenarioUsesDefault(t *testing.T) {
	s := Default().Script("checkpoint", models.LanguageSpanish, true)
	def := Default().Script(DefaultScenario, models.LanguageSpanish, true)

	assert.Equal(t, "checkpoint", s.Scenario)
	assert.Equal(t, def.Text, s.Text)
	assert.Equal(t, models.LanguageSpanish, s.Language)
	assert.True(t, s.IsPremiumTier)
}

// TestScript_KnownScenario verifies a scenario with its own entry is used.
func TestScript_KnownScenario(t *testing.T) {
	s := Default().Script("traffic_stop", models.LanguageEnglish, false)
	assert.Contains(t, s.Text, "keep my hands visible")
	assert.False(t, s.IsPremiumTier)
}

// TestEmergencyMessage_RendersContext verifies name, location, phone and time.
func TestEmergencyMessage_RendersContext(t *testing.T) {
	ec := &models.EmergencyContext{
		User:       models.UserInfo{Name: "Dana", Phone: "+15551234567"},
		Location:   models.Location{Latitude: 34.05, Longitude: -118.25},
		OccurredAt: time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC),
	}

	msg := Default().EmergencyMessage(models.LanguageEnglish, ec)
	assert.Equal(t, "Emergency Alert - KnowYourRights Now", msg.Subject)
	assert.Contains(t, msg.Text, "Dana has triggered an emergency alert")
	assert.Contains(t, msg.Text, "Phone: +15551234567")
	assert.Contains(t, msg.Text, "Location: 34.050000, -118.250000")
	assert.Contains(t, msg.Text, "Time: Mar 1, 2026 18:30 UTC")
}

// TestEmergencyMessage_SpanishAddress verifies address preference and localisation.
func TestEmergencyMessage_SpanishAddress(t *testing.T) {
	ec := &models.EmergencyContext{
		User:     models.UserInfo{Name: "Luis"},
		Location: models.Location{Address: "123 Main St, Austin, TX"},
	}

	msg := Default().EmergencyMessage(models.LanguageSpanish, ec)
	assert.Equal(t, "Alerta de Emergencia - KnowYourRights Now", msg.Subject)
	assert.Contains(t, msg.Text, "Ubicación: 123 Main St, Austin, TX")
	assert.NotContains(t, msg.Text, "Teléfono")
}

// TestEmergencyMessage_NilContext verifies placeholders are used.
func TestEmergencyMessage_NilContext(t *testing.T) {
	msg := Default().EmergencyMessage(models.LanguageEnglish, nil)
	assert.Contains(t, msg.Text, "Unknown has triggered")
}

// TestParse_RejectsIncompleteLibrary verifies missing languages are caught.
func TestParse_RejectsIncompleteLibrary(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"no spanish card", `
legal_cards:
  en: {rights: [a]}
scripts:
  en: {general_interaction: {text: hi}}
  es: {general_interaction: {text: hola}}
alerts:
  en: {subject: s, template: t}
  es: {subject: s, template: t}
`},
		{"bad template", `
legal_cards:
  en: {rights: [a]}
  es: {rights: [a]}
scripts:
  en: {general_interaction: {text: hi}}
  es: {general_interaction: {text: hola}}
alerts:
  en: {subject: s, template: "{{.Name"}
  es: {subject: s, template: t}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

// TestPayload_DispatchesByKind verifies request routing to the right entry.
func TestPayload_DispatchesByKind(t *testing.T) {
	lib := Default()

	_, ok := lib.Payload(models.ContentRequest{Kind: models.KindLegalCard, Key: "ohio"}).(*models.LegalCardPayload)
	assert.True(t, ok)

	_, ok = lib.Payload(models.ContentRequest{Kind: models.KindScript, Key: "checkpoint"}).(*models.ScriptPayload)
	assert.True(t, ok)

	_, ok = lib.Payload(models.ContentRequest{Kind: models.KindEmergencyMessage, Key: "ohio"}).(*models.EmergencyMessagePayload)
	assert.True(t, ok)
}
