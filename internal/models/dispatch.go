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
	"strings"
	"time"
)

// EmergencyContact is a person to notify when an alert is raised.
type EmergencyContact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	IsPrimary    bool   `json:"isPrimary"`
}

// HasPhone reports whether the contact can be reached by SMS.
func (c EmergencyContact) HasPhone() bool { return strings.TrimSpace(c.Phone) != "" }

// HasEmail reports whether the contact can be reached by email.
func (c EmergencyContact) HasEmail() bool { return strings.TrimSpace(c.Email) != "" }

// Location is where the user was when the alert was raised.
type Location struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Jurisdiction string  `json:"jurisdiction,omitempty"`
}

// UserInfo identifies the person raising the alert.
type UserInfo struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Channel is a delivery channel for an emergency message.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Outcome is the settled state of one dispatch attempt.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// DispatchAttempt is the result of sending to one contact over one channel.
type DispatchAttempt struct {
	ContactID   string  `json:"contactId"`
	Channel     Channel `json:"channel"`
	Outcome     Outcome `json:"outcome"`
	ErrorDetail string  `json:"errorDetail,omitempty"`
}

// DispatchResult aggregates every attempt made for a single alert.
type DispatchResult struct {
	ID            string            `json:"id"`
	Attempts      []DispatchAttempt `json:"attempts"`
	AnySucceeded  bool              `json:"anySucceeded"`
	DispatchedAt  time.Time         `json:"dispatchedAt"`
	Language      Language          `json:"language"`
	MessageSource GenSource         `json:"messageSource"`
}

// AuditKind classifies an audit entry.
type AuditKind string

const (
	AuditContent  AuditKind = "content"
	AuditDispatch AuditKind = "dispatch"
)

// AuditEntry is an immutable, append-only record of something the engine
// produced or did. SubjectID is the content record or dispatch result ID.
type AuditEntry struct {
	ID         string          `json:"id"`
	Kind       AuditKind       `json:"kind"`
	SubjectID  string          `json:"subjectId"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recordedAt"`
}
