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

// Package dispatch fans an emergency message out to every contact over
// every channel they can be reached on, concurrently, and records the
// outcome.
//
// Each (contact, channel) pair is one attempt running in its own goroutine
// with its own timeout. Attempts report into a buffered channel so a
// goroutine never blocks after the caller has stopped waiting. If the
// caller's context ends first, unsettled attempts are recorded as timed
// out. The aggregate result is always written to the audit sink before
// Dispatch returns.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kyrn/engine/internal/audit"
	"github.com/kyrn/engine/internal/channel"
	"github.com/kyrn/engine/internal/fallback"
	"github.com/kyrn/engine/internal/metrics"
	"github.com/kyrn/engine/internal/models"
)

var (
	// ErrNoContacts is returned when the contact list is empty.
	ErrNoContacts = errors.New("no emergency contacts")

	// ErrNoChannelsAvailable is returned when no contact has an address for
	// any configured channel.
	ErrNoChannelsAvailable = errors.New("no delivery channels available")

	// ErrAllChannelsFailed is returned, together with the result, when every
	// attempt failed.
	ErrAllChannelsFailed = errors.New("all delivery channels failed")
)

const (
	// DefaultChannelTimeout bounds a single send.
	DefaultChannelTimeout = 10 * time.Second

	// DefaultMessageTimeout bounds emergency message generation.
	DefaultMessageTimeout = 8 * time.Second

	// auditTimeout bounds the audit write, which runs even after the
	// caller's context has ended.
	auditTimeout = 5 * time.Second

	// messageKey is the content key emergency messages are stored under.
	messageKey = "alert"

	detailTimeout = "timeout"

	// joinGrace is how long fanOut waits, after the caller's context ends,
	// for cancelled senders to return.
	joinGrace = 200 * time.Millisecond
)

// MessageSource produces the emergency message text.
type MessageSource interface {
	Generate(ctx context.Context, req models.ContentRequest) (models.ContentRecord, models.GenSource, error)
}

// Config holds the dispatcher's collaborators. A nil sender disables that
// channel.
type Config struct {
	Messages       MessageSource
	SMS            channel.Sender
	Email          channel.Sender
	Audit          audit.Sink
	Fallback       *fallback.Library
	Metrics        *metrics.Metrics
	ChannelTimeout time.Duration
	MessageTimeout time.Duration
}

// Dispatcher sends emergency alerts.
type Dispatcher struct {
	messages       MessageSource
	senders        map[models.Channel]channel.Sender
	audit          audit.Sink
	library        *fallback.Library
	metrics        *metrics.Metrics
	channelTimeout time.Duration
	messageTimeout time.Duration
	now            func() time.Time
}

// NewDispatcher creates an alert dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{
		messages:       cfg.Messages,
		senders:        make(map[models.Channel]channel.Sender),
		audit:          cfg.Audit,
		library:        cfg.Fallback,
		metrics:        cfg.Metrics,
		channelTimeout: cfg.ChannelTimeout,
		messageTimeout: cfg.MessageTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
	if cfg.SMS != nil {
		d.senders[models.ChannelSMS] = cfg.SMS
	}
	if cfg.Email != nil {
		d.senders[models.ChannelEmail] = cfg.Email
	}
	if d.library == nil {
		d.library = fallback.Default()
	}
	if d.channelTimeout <= 0 {
		d.channelTimeout = DefaultChannelTimeout
	}
	if d.messageTimeout <= 0 {
		d.messageTimeout = DefaultMessageTimeout
	}
	return d
}

// job is one planned (contact, channel) attempt.
type job struct {
	slot      int
	contactID string
	channel   models.Channel
	address   string
}

type settled struct {
	slot    int
	attempt models.DispatchAttempt
}

// plan lists every attempt to make, in contact order with SMS before email.
func (d *Dispatcher) plan(contacts []models.EmergencyContact) []job {
	var jobs []job
	for i, c := range contacts {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("contact-%d", i)
		}
		if c.HasPhone() && d.senders[models.ChannelSMS] != nil {
			jobs = append(jobs, job{slot: len(jobs), contactID: id, channel: models.ChannelSMS, address: c.Phone})
		}
		if c.HasEmail() && d.senders[models.ChannelEmail] != nil {
			jobs = append(jobs, job{slot: len(jobs), contactID: id, channel: models.ChannelEmail, address: c.Email})
		}
	}
	return jobs
}

// Dispatch notifies contacts that user raised an alert at loc. It returns
// ErrNoContacts or ErrNoChannelsAvailable without sending or recording
// anything. Otherwise the result is always audited, and
// ErrAllChannelsFailed accompanies a result with no successful attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, contacts []models.EmergencyContact, loc models.Location, user models.UserInfo, lang models.Language) (models.DispatchResult, error) {
	start := time.Now()

	if len(contacts) == 0 {
		d.metrics.ObserveDispatch("rejected", time.Since(start))
		return models.DispatchResult{}, ErrNoContacts
	}
	jobs := d.plan(contacts)
	if len(jobs) == 0 {
		d.metrics.ObserveDispatch("rejected", time.Since(start))
		return models.DispatchResult{}, ErrNoChannelsAvailable
	}

	if parsed, err := models.ParseLanguage(string(lang)); err == nil {
		lang = parsed
	} else {
		slog.Warn("unsupported alert language, sending in English", "language", lang)
		lang = models.LanguageEnglish
	}

	result := models.DispatchResult{
		ID:           uuid.NewString(),
		DispatchedAt: d.now(),
		Language:     lang,
	}

	msg, src := d.message(ctx, loc, user, lang, result.DispatchedAt)
	result.MessageSource = src

	slog.Info("dispatching emergency alert",
		"dispatch_id", result.ID,
		"contacts", len(contacts),
		"attempts", len(jobs),
		"message_source", src,
	)

	result.Attempts = d.fanOut(ctx, jobs, msg)
	for _, a := range result.Attempts {
		d.metrics.ObserveAttempt(a)
		if a.Outcome == models.OutcomeSent {
			result.AnySucceeded = true
		}
	}

	d.record(ctx, result)

	outcome := "delivered"
	var err error
	if !result.AnySucceeded {
		outcome = "all_failed"
		err = ErrAllChannelsFailed
	}
	d.metrics.ObserveDispatch(outcome, time.Since(start))

	slog.Info("emergency alert dispatched",
		"dispatch_id", result.ID,
		"any_succeeded", result.AnySucceeded,
		"elapsed", time.Since(start),
	)
	return result, err
}

// message obtains the alert text, degrading to the static template.
func (d *Dispatcher) message(ctx context.Context, loc models.Location, user models.UserInfo, lang models.Language, at time.Time) (*models.EmergencyMessagePayload, models.GenSource) {
	ec := &models.EmergencyContext{User: user, Location: loc, OccurredAt: at}

	if d.messages != nil {
		mctx, cancel := context.WithTimeout(ctx, d.messageTimeout)
		defer cancel()

		rec, src, err := d.messages.Generate(mctx, models.ContentRequest{
			Kind:         models.KindEmergencyMessage,
			Key:          messageKey,
			Language:     lang,
			ForceRefresh: true,
			Emergency:    ec,
		})
		if err == nil {
			if p, ok := rec.Payload.(*models.EmergencyMessagePayload); ok && p.Text != "" {
				return p, src
			}
		} else {
			slog.Warn("emergency message generation rejected", "error", err)
		}
	}
	return d.library.EmergencyMessage(lang, ec), models.SourceFallback
}

// fanOut runs every job concurrently and returns one attempt per job in
// job order. Once ctx ends it waits at most joinGrace for the remaining
// senders; attempts still unsettled after that are recorded as timed out.
func (d *Dispatcher) fanOut(ctx context.Context, jobs []job, msg *models.EmergencyMessagePayload) []models.DispatchAttempt {
	results := make(chan settled, len(jobs))

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			results <- settled{slot: j.slot, attempt: d.attempt(ctx, j, msg)}
		}(j)
	}

	attempts := make([]models.DispatchAttempt, len(jobs))
	done := make([]bool, len(jobs))
	remaining := len(jobs)

collect:
	for remaining > 0 {
		select {
		case s := <-results:
			attempts[s.slot] = s.attempt
			done[s.slot] = true
			remaining--
		case <-ctx.Done():
			break collect
		}
	}

	if remaining > 0 {
		joined := make(chan struct{})
		go func() {
			wg.Wait()
			close(joined)
		}()
		select {
		case <-joined:
		case <-time.After(joinGrace):
			slog.Warn("channel senders ignored cancellation", "unsettled", remaining)
		}
	drain:
		for {
			select {
			case s := <-results:
				attempts[s.slot] = s.attempt
				done[s.slot] = true
			default:
				break drain
			}
		}
	}

	for i, j := range jobs {
		if !done[i] {
			attempts[i] = models.DispatchAttempt{
				ContactID:   j.contactID,
				Channel:     j.channel,
				Outcome:     models.OutcomeFailed,
				ErrorDetail: detailTimeout,
			}
		}
	}
	return attempts
}

// attempt performs one send under the per-channel timeout.
func (d *Dispatcher) attempt(ctx context.Context, j job, msg *models.EmergencyMessagePayload) (a models.DispatchAttempt) {
	a = models.DispatchAttempt{ContactID: j.contactID, Channel: j.channel, Outcome: models.OutcomeFailed}

	defer func() {
		if r := recover(); r != nil {
			a.Outcome = models.OutcomeFailed
			a.ErrorDetail = fmt.Sprintf("sender panic: %v", r)
		}
	}()

	actx, cancel := context.WithTimeout(ctx, d.channelTimeout)
	defer cancel()

	err := d.senders[j.channel].Send(actx, j.address, msg.Subject, msg.Text)
	switch {
	case err == nil:
		a.Outcome = models.OutcomeSent
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded):
		a.ErrorDetail = detailTimeout
	default:
		a.ErrorDetail = err.Error()
	}

	if err != nil {
		slog.Warn("alert delivery attempt failed",
			"contact_id", j.contactID,
			"channel", j.channel,
			"error", a.ErrorDetail,
		)
	}
	return a
}

// record writes the result to the audit sink. The write is detached from
// ctx so that a caller deadline cannot prevent it.
func (d *Dispatcher) record(ctx context.Context, result models.DispatchResult) {
	if d.audit == nil {
		return
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	entry, err := audit.NewEntry(models.AuditDispatch, result.ID, result)
	if err == nil {
		err = d.audit.Append(actx, entry)
	}
	if err != nil {
		slog.Error("failed to audit dispatch result",
			"dispatch_id", result.ID,
			"any_succeeded", result.AnySucceeded,
			"error", err,
		)
	}
}
