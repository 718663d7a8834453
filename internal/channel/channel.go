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

// Package channel delivers emergency messages over independent transports.
// Every transport satisfies Sender; a failure in one never affects another.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// ErrInvalidAddress is returned when an address cannot be used by a channel.
var ErrInvalidAddress = errors.New("invalid address")

// Sender delivers one message to one address. Subject is ignored by
// channels that have no notion of one.
type Sender interface {
	Send(ctx context.Context, address, subject, body string) error
}

var (
	phoneChars = regexp.MustCompile(`^\+?[\d\s\-().]{10,}$`)
	nonDigits  = regexp.MustCompile(`\D`)
)

// NormalizePhone converts a user-entered phone number to E.164. Ten-digit
// numbers without a country code are assumed to be North American.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !phoneChars.MatchString(s) {
		return "", fmt.Errorf("%w: phone %q", ErrInvalidAddress, raw)
	}

	digits := nonDigits.ReplaceAllString(s, "")
	switch {
	case strings.HasPrefix(s, "+"):
	case len(digits) == 10:
		digits = "1" + digits
	case len(digits) == 11 && digits[0] == '1':
	default:
		return "", fmt.Errorf("%w: phone %q has no country code", ErrInvalidAddress, raw)
	}

	if len(digits) < 11 || len(digits) > 15 {
		return "", fmt.Errorf("%w: phone %q", ErrInvalidAddress, raw)
	}
	return "+" + digits, nil
}

// NormalizeEmail validates a bare email address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", fmt.Errorf("%w: email %q", ErrInvalidAddress, raw)
	}
	return addr.Address, nil
}
