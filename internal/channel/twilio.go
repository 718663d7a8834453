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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTwilioURL is the Twilio REST API root.
const DefaultTwilioURL = "https://api.twilio.com"

// TwilioConfig configures the SMS channel.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	client     *resty.Client
	accountSID string
	from       string
}

// NewTwilioSender creates an SMS sender.
func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultTwilioURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := resty.New().
		SetBaseURL(base).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	return &TwilioSender{client: c, accountSID: cfg.AccountSID, from: cfg.FromNumber}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send delivers body to phone. The subject is not used.
func (s *TwilioSender) Send(ctx context.Context, phone, _, body string) error {
	to, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.from,
			"Body": body,
		}).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.accountSID))
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}

	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		var te twilioError
		if json.Unmarshal(resp.Body(), &te) == nil && te.Message != "" {
			return fmt.Errorf("twilio returned HTTP %d: %d %s", resp.StatusCode(), te.Code, te.Message)
		}
		return fmt.Errorf("twilio returned HTTP %d", resp.StatusCode())
	}
	return nil
}
