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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"en", LanguageEnglish, false},
		{" ES ", LanguageSpanish, false},
		{"fr", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodePayload_LegalCardListsNeverNil(t *testing.T) {
	p, err := DecodePayload(KindLegalCard, []byte(`{"rights":["Remain silent"],"dos":null}`))
	require.NoError(t, err)

	card := p.(*LegalCardPayload)
	assert.Equal(t, []string{"Remain silent"}, card.Rights)
	assert.NotNil(t, card.Dos)
	assert.NotNil(t, card.Donts)
	assert.NotNil(t, card.KeyLaws)
	assert.NotNil(t, card.EmergencyNumbers)
}

func TestDecodePayload_UnknownKind(t *testing.T) {
	_, err := DecodePayload(ContentKind("poem"), []byte(`{}`))
	assert.Error(t, err)
}

func TestContentRecord_UnmarshalDispatchesOnKind(t *testing.T) {
	data := []byte(`{"id":"r1","kind":"script","key":"traffic_stop","language":"es","version":3,
		"payload":{"scenario":"traffic_stop","language":"es","text":"Oficial, no doy mi consentimiento.","isPremiumTier":true}}`)

	var rec ContentRecord
	require.NoError(t, json.Unmarshal(data, &rec))

	assert.Equal(t, 3, rec.Version)
	script, ok := rec.Payload.(*ScriptPayload)
	require.True(t, ok)
	assert.True(t, script.IsPremiumTier)
	assert.Equal(t, LanguageSpanish, script.Language)
}

func TestContentRecord_UnmarshalNullPayload(t *testing.T) {
	var rec ContentRecord
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"legal_card","payload":null}`), &rec))
	assert.Nil(t, rec.Payload)
}

func TestEmergencyContact_Addresses(t *testing.T) {
	c := EmergencyContact{Phone: " ", Email: "a@example.org"}
	assert.False(t, c.HasPhone())
	assert.True(t, c.HasEmail())
}
