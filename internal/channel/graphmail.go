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

package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGraphURL is the Microsoft Graph v1.0 root.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

// GraphMailer sends email through Microsoft Graph sendMail on behalf of a
// fixed sender mailbox. The HTTP client must carry an application token,
// typically from clientcredentials.Config.Client.
type GraphMailer struct {
	httpClient   *http.Client
	graphBaseURL string
	sender       string
}

// NewGraphMailer creates an email sender.
func NewGraphMailer(httpClient *http.Client, graphBaseURL, sender string) *GraphMailer {
	if graphBaseURL == "" {
		graphBaseURL = DefaultGraphURL
	}
	return &GraphMailer{
		httpClient:   httpClient,
		graphBaseURL: strings.TrimRight(graphBaseURL, "/"),
		sender:       sender,
	}
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
	Importance   string           `json:"importance"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

// Send delivers a plain-text email to address.
func (m *GraphMailer) Send(ctx context.Context, address, subject, body string) error {
	to, err := NormalizeEmail(address)
	if err != nil {
		return err
	}

	var msg sendMailRequest
	msg.Message.Subject = subject
	msg.Message.Body.ContentType = "Text"
	msg.Message.Body.Content = body
	msg.Message.Importance = "high"
	var rcpt graphRecipient
	rcpt.EmailAddress.Address = to
	msg.Message.ToRecipients = []graphRecipient{rcpt}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sendMail request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", m.graphBaseURL, url.PathEscape(m.sender))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph API returned HTTP %d for sendMail: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
