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

// Package fallback serves hand-authored content when generation fails.
// Lookups never fail: unknown scenarios resolve to general_interaction and
// unknown languages resolve to English.
package fallback

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kyrn/engine/internal/models"
)

// DefaultScenario is the script served for scenarios without their own entry.
const DefaultScenario = "general_interaction"

// timeLayout formats the alert time in emergency messages.
const timeLayout = "Jan 2, 2006 15:04 MST"

//go:embed library.yaml
var embedded []byte

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the library built from the embedded content. It panics if
// the embedded asset is invalid, which the package tests guard against.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("fallback: embedded library: %v", err))
		}
		defaultLib = lib
	})
	return defaultLib
}

type rawCard struct {
	Rights           []string `yaml:"rights"`
	Dos              []string `yaml:"dos"`
	Donts            []string `yaml:"donts"`
	KeyLaws          []string `yaml:"key_laws"`
	EmergencyNumbers []string `yaml:"emergency_numbers"`
}

type rawScript struct {
	Text    string `yaml:"text"`
	Context string `yaml:"context"`
}

type rawAlert struct {
	Subject  string `yaml:"subject"`
	Template string `yaml:"template"`
}

type rawLibrary struct {
	LegalCards map[models.Language]rawCard              `yaml:"legal_cards"`
	Scripts    map[models.Language]map[string]rawScript `yaml:"scripts"`
	Alerts     map[models.Language]rawAlert             `yaml:"alerts"`
}

type alert struct {
	subject string
	tmpl    *template.Template
}

// Library is an immutable set of fallback content.
type Library struct {
	cards   map[models.Language]rawCard
	scripts map[models.Language]map[string]rawScript
	alerts  map[models.Language]alert
}

// Parse builds a library from YAML and checks that every supported language
// is complete.
func Parse(data []byte) (*Library, error) {
	var raw rawLibrary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fallback library: %w", err)
	}

	lib := &Library{
		cards:   raw.LegalCards,
		scripts: raw.Scripts,
		alerts:  make(map[models.Language]alert),
	}

	for _, lang := range []models.Language{models.LanguageEnglish, models.LanguageSpanish} {
		if _, ok := raw.LegalCards[lang]; !ok {
			return nil, fmt.Errorf("fallback library: no legal card for %q", lang)
		}
		if s, ok := raw.Scripts[lang][DefaultScenario]; !ok || s.Text == "" {
			return nil, fmt.Errorf("fallback library: no %s script for %q", DefaultScenario, lang)
		}
		a, ok := raw.Alerts[lang]
		if !ok || a.Template == "" {
			return nil, fmt.Errorf("fallback library: no alert template for %q", lang)
		}
		tmpl, err := template.New(string(lang)).Option("missingkey=error").Parse(a.Template)
		if err != nil {
			return nil, fmt.Errorf("fallback library: alert template %q: %w", lang, err)
		}
		lib.alerts[lang] = alert{subject: a.Subject, tmpl: tmpl}
	}

	return lib, nil
}

func resolve(lang models.Language) models.Language {
	if lang == models.LanguageSpanish {
		return lang
	}
	return models.LanguageEnglish
}

// LegalCard returns a fresh copy of the fallback card for lang.
func (l *Library) LegalCard(lang models.Language) *models.LegalCardPayload {
	c := l.cards[resolve(lang)]
	card := &models.LegalCardPayload{
		Rights:           clone(c.Rights),
		Dos:              clone(c.Dos),
		Donts:            clone(c.Donts),
		KeyLaws:          clone(c.KeyLaws),
		EmergencyNumbers: clone(c.EmergencyNumbers),
	}
	card.Normalize()
	return card
}

// Script returns the fallback script for scenario, or the default scenario's
// script when none exists.
func (l *Library) Script(scenario string, lang models.Language, premium bool) *models.ScriptPayload {
	lang = resolve(lang)
	s, ok := l.scripts[lang][scenario]
	if !ok {
		s = l.scripts[lang][DefaultScenario]
	}
	return &models.ScriptPayload{
		Scenario:      scenario,
		Language:      lang,
		Text:          s.Text,
		UsageContext:  s.Context,
		IsPremiumTier: premium,
	}
}

type alertData struct {
	Name     string
	Phone    string
	Location string
	Time     string
}

// EmergencyMessage renders the alert template for lang. A nil context yields
// a message with placeholder details.
func (l *Library) EmergencyMessage(lang models.Language, ec *models.EmergencyContext) *models.EmergencyMessagePayload {
	lang = resolve(lang)
	a := l.alerts[lang]

	data := alertData{Name: "Unknown", Location: "Unknown", Time: time.Now().UTC().Format(timeLayout)}
	if ec != nil {
		if name := strings.TrimSpace(ec.User.Name); name != "" {
			data.Name = name
		}
		data.Phone = strings.TrimSpace(ec.User.Phone)
		data.Location = DescribeLocation(ec.Location)
		if !ec.OccurredAt.IsZero() {
			data.Time = ec.OccurredAt.UTC().Format(timeLayout)
		}
	}

	var b strings.Builder
	if err := a.tmpl.Execute(&b, data); err != nil {
		return &models.EmergencyMessagePayload{
			Subject: a.subject,
			Text:    fmt.Sprintf("EMERGENCY ALERT: %s needs help. Location: %s. Time: %s.", data.Name, data.Location, data.Time),
		}
	}
	return &models.EmergencyMessagePayload{Subject: a.subject, Text: b.String()}
}

// Subject returns the localized alert subject line.
func (l *Library) Subject(lang models.Language) string {
	return l.alerts[resolve(lang)].subject
}

// Payload returns the fallback payload for a request.
func (l *Library) Payload(req models.ContentRequest) models.Payload {
	switch req.Kind {
	case models.KindScript:
		return l.Script(req.Key, req.Language, req.Premium)
	case models.KindEmergencyMessage:
		return l.EmergencyMessage(req.Language, req.Emergency)
	default:
		return l.LegalCard(req.Language)
	}
}

// DescribeLocation prefers the street address and falls back to coordinates.
func DescribeLocation(loc models.Location) string {
	if addr := strings.TrimSpace(loc.Address); addr != "" {
		return addr
	}
	return fmt.Sprintf("%.6f, %.6f", loc.Latitude, loc.Longitude)
}

func clone(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
