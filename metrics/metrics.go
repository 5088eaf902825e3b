// Package metrics exports recovery flow activity as Prometheus metrics.
package metrics

import (
	"context"
	"sync"
	"time"

	recovery "github.com/goliatone/go-auth-recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "recovery"
	subsystem = "flow"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Sink is a recovery.ActivitySink backed by Prometheus collectors.
type Sink struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
	handoffs  *prometheus.CounterVec
	abandoned *prometheus.CounterVec
	duration  *prometheus.HistogramVec

	mu      sync.Mutex
	pending map[pendingKey]time.Time
}

type pendingKey struct {
	flowID string
	slot   recovery.Slot
}

var _ recovery.ActivitySink = (*Sink)(nil)

// NewSink registers the collectors on reg. A nil reg uses the default
// registerer.
func NewSink(reg prometheus.Registerer) *Sink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Sink{
		started: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "actions_started_total",
				Help:      "Total number of remote actions started",
			},
			[]string{"flow", "slot"},
		),
		completed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "actions_completed_total",
				Help:      "Total number of actions settled by outcome and error category",
			},
			[]string{"flow", "slot", "outcome", "category"},
		),
		handoffs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "handoffs_total",
				Help:      "Total number of navigation handoffs delivered",
			},
			[]string{"flow", "route"},
		),
		abandoned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "actions_abandoned_total",
				Help:      "Total number of actions still pending when their flow closed",
			},
			[]string{"flow", "slot"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "action_duration_seconds",
				Help:      "Time from action start to settlement in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"flow", "slot", "outcome"},
		),
		pending: make(map[pendingKey]time.Time),
	}
}

// Record implements recovery.ActivitySink.
func (s *Sink) Record(_ context.Context, evt recovery.ActivityEvent) error {
	flow := string(evt.Flow)
	slot := string(evt.Slot)

	switch evt.EventType {
	case recovery.ActivityEventActionStarted:
		s.started.WithLabelValues(flow, slot).Inc()
		s.mu.Lock()
		s.pending[pendingKey{evt.FlowID, evt.Slot}] = evt.OccurredAt
		s.mu.Unlock()
	case recovery.ActivityEventActionSucceeded:
		s.settle(evt, OutcomeSucceeded)
	case recovery.ActivityEventActionFailed:
		s.settle(evt, OutcomeFailed)
	case recovery.ActivityEventActionRejected:
		s.completed.WithLabelValues(flow, slot, OutcomeRejected, string(evt.Category)).Inc()
	case recovery.ActivityEventHandoff:
		s.handoffs.WithLabelValues(flow, string(evt.Route)).Inc()
	case recovery.ActivityEventFlowClosed:
		s.evict(evt)
	}
	return nil
}

// evict drops the start times of a closed flow. Its in-flight actions never
// settle.
func (s *Sink) evict(evt recovery.ActivityEvent) {
	var slots []recovery.Slot
	s.mu.Lock()
	for key := range s.pending {
		if key.flowID == evt.FlowID {
			slots = append(slots, key.slot)
			delete(s.pending, key)
		}
	}
	s.mu.Unlock()

	for _, slot := range slots {
		s.abandoned.WithLabelValues(string(evt.Flow), string(slot)).Inc()
	}
}

func (s *Sink) settle(evt recovery.ActivityEvent, outcome string) {
	flow := string(evt.Flow)
	slot := string(evt.Slot)
	s.completed.WithLabelValues(flow, slot, outcome, string(evt.Category)).Inc()

	key := pendingKey{evt.FlowID, evt.Slot}
	s.mu.Lock()
	startedAt, ok := s.pending[key]
	delete(s.pending, key)
	s.mu.Unlock()

	if ok && !evt.OccurredAt.Before(startedAt) {
		s.duration.WithLabelValues(flow, slot, outcome).
			Observe(evt.OccurredAt.Sub(startedAt).Seconds())
	}
}
