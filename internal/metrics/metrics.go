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

// Package metrics defines the Prometheus collectors for content generation
// and alert dispatch. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kyrn/engine/internal/models"
)

const namespace = "kyrn"

// Metrics holds the engine's collectors.
type Metrics struct {
	GenerationTotal    *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	AttemptsTotal      *prometheus.CounterVec
	DispatchesTotal    *prometheus.CounterVec
	DispatchDuration   prometheus.Histogram
}

// New creates and registers all collectors on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		GenerationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Content requests by kind and provenance",
			},
			[]string{"kind", "source"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Time to serve a content request",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Channel send attempts by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "alerts_total",
				Help:      "Alerts by final result",
			},
			[]string{"result"},
		),
		DispatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Time from alert receipt to audit write",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// ObserveGeneration records one served content request.
func (m *Metrics) ObserveGeneration(kind models.ContentKind, source models.GenSource, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(string(kind), string(source)).Inc()
	m.GenerationDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveAttempt records one settled channel attempt.
func (m *Metrics) ObserveAttempt(a models.DispatchAttempt) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(string(a.Channel), string(a.Outcome)).Inc()
}

// ObserveDispatch records an alert's final result: delivered, all_failed or
// rejected.
func (m *Metrics) ObserveDispatch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(result).Inc()
	m.DispatchDuration.Observe(elapsed.Seconds())
}
