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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/kyrn/engine/internal/models"
)

// TestMetrics_Counters verifies label routing of each observer.
func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveGeneration(models.KindLegalCard, models.SourceFallback, time.Second)
	m.ObserveGeneration(models.KindLegalCard, models.SourceFallback, time.Second)
	m.ObserveAttempt(models.DispatchAttempt{Channel: models.ChannelSMS, Outcome: models.OutcomeSent})
	m.ObserveDispatch("delivered", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GenerationTotal.WithLabelValues("legal_card", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("sms", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchesTotal.WithLabelValues("delivered")))
}

// TestMetrics_NilIsNoop verifies a nil receiver is safe.
func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveGeneration(models.KindScript, models.SourceCache, 0)
		m.ObserveAttempt(models.DispatchAttempt{})
		m.ObserveDispatch("rejected", 0)
	})
}
