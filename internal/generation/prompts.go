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

package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/kyrn/engine/internal/fallback"
	"github.com/kyrn/engine/internal/llm"
	"github.com/kyrn/engine/internal/models"
)

const (
	legalCardSystem = "You are a legal expert specializing in civil rights and police interaction law. " +
		"Provide accurate, up-to-date legal information that could help protect someone's rights during a police encounter. " +
		"Respond with a single JSON object and nothing else."

	scriptSystem = "You are an expert in conflict de-escalation and civil rights. " +
		"Create scripts that help people communicate effectively with law enforcement while protecting their rights. " +
		"Respond with a single JSON object and nothing else."

	emergencySystem = "You are creating emergency alert messages that need to be clear, urgent, and actionable. " +
		"Respond with a single JSON object and nothing else."
)

const legalCardSchema = `{
  "rights": ["right1", "right2"],
  "dos": ["do1", "do2"],
  "donts": ["dont1", "dont2"],
  "keyLaws": ["law1", "law2"],
  "emergencyNumbers": ["911", "local_number"]
}`

const scriptSchema = `{
  "script": "The actual script text with clear phrases",
  "context": "Brief explanation of when and how to use this script"
}`

const emergencySchema = `{
  "subject": "Short subject line for email",
  "message": "The alert text, suitable for SMS"
}`

func languageName(lang models.Language) string {
	if lang == models.LanguageSpanish {
		return "Spanish"
	}
	return "English"
}

// buildPrompt returns the kind-specific prompt for a normalized request.
func buildPrompt(req models.ContentRequest) llm.Prompt {
	switch req.Kind {
	case models.KindScript:
		return scriptPrompt(req)
	case models.KindEmergencyMessage:
		return emergencyPrompt(req)
	default:
		return legalCardPrompt(req)
	}
}

func legalCardPrompt(req models.ContentRequest) llm.Prompt {
	user := fmt.Sprintf(`Generate legal rights information for the %s jurisdiction in %s.

Include:
1. Core constitutional rights during police interactions
2. State-specific laws and regulations
3. Clear dos and don'ts
4. Emergency contact numbers

Return JSON with exactly this structure:
%s

Keep it concise, accurate, and mobile-friendly. Focus on practical, actionable information.`,
		displayName(req.Key), languageName(req.Language), legalCardSchema)

	return llm.Prompt{System: legalCardSystem, User: user, MaxTokens: 2000, Temperature: 0.3, JSON: true}
}

func scriptPrompt(req models.ContentRequest) llm.Prompt {
	note := "This is a basic script. Keep it simple and straightforward."
	if req.Premium {
		note = "This is a premium script. Include more detailed, nuanced language and specific legal references."
	}

	user := fmt.Sprintf(`Generate a de-escalation script %s in %s.

%s

The script should:
1. Be respectful and non-confrontational
2. Assert rights clearly but politely
3. De-escalate tension
4. Be easy to remember under stress
5. Include specific phrases to use

Return JSON with exactly this structure:
%s

Keep the script concise but effective.`,
		scenarios[req.Key], languageName(req.Language), note, scriptSchema)

	return llm.Prompt{System: scriptSystem, User: user, MaxTokens: 800, Temperature: 0.2, JSON: true}
}

func emergencyPrompt(req models.ContentRequest) llm.Prompt {
	name, phone, where, when := "Unknown name", "No phone provided", "Unknown location", time.Now().UTC()
	if ec := req.Emergency; ec != nil {
		if s := strings.TrimSpace(ec.User.Name); s != "" {
			name = s
		}
		if s := strings.TrimSpace(ec.User.Phone); s != "" {
			phone = s
		}
		where = fallback.DescribeLocation(ec.Location)
		if !ec.OccurredAt.IsZero() {
			when = ec.OccurredAt.UTC()
		}
	}

	user := fmt.Sprintf(`Generate an emergency alert message in %s for someone who has triggered an emergency alert during a police interaction.

Include:
- Clear emergency indicator
- Person's information: %s, %s
- Location: %s
- Time: %s
- Instructions for the recipient
- App identification (KnowYourRights Now)

Return JSON with exactly this structure:
%s

Keep it urgent but clear, suitable for SMS.`,
		languageName(req.Language), name, phone, where, when.Format(time.RFC1123), emergencySchema)

	return llm.Prompt{System: emergencySystem, User: user, MaxTokens: 300, Temperature: 0.1, JSON: true}
}
