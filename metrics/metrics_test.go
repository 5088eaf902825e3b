package metrics

import (
	"context"
	"testing"
	"time"

	recovery "github.com/goliatone/go-auth-recovery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(kind recovery.ActivityEventType, slot recovery.Slot, at time.Time) recovery.ActivityEvent {
	return recovery.ActivityEvent{
		EventType:  kind,
		FlowID:     "flow-1",
		Flow:       recovery.FlowActivation,
		Slot:       slot,
		OccurredAt: at,
	}
}

func TestSinkCountsActionLifecycle(t *testing.T) {
	sink := NewSink(prometheus.NewRegistry())
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Record(ctx, event(recovery.ActivityEventActionStarted, recovery.SlotSubmit, t0)))

	failed := event(recovery.ActivityEventActionFailed, recovery.SlotSubmit, t0.Add(250*time.Millisecond))
	failed.Category = recovery.CategoryUnreachable
	require.NoError(t, sink.Record(ctx, failed))

	require.NoError(t, sink.Record(ctx, event(recovery.ActivityEventActionStarted, recovery.SlotSubmit, t0.Add(time.Second))))
	require.NoError(t, sink.Record(ctx, event(recovery.ActivityEventActionSucceeded, recovery.SlotSubmit, t0.Add(2*time.Second))))

	activation := string(recovery.FlowActivation)
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.started.WithLabelValues(activation, "submit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.completed.WithLabelValues(activation, "submit", OutcomeFailed, "unreachable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.completed.WithLabelValues(activation, "submit", OutcomeSucceeded, "")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.duration))
	assert.Empty(t, sink.pending)
}

func TestSinkCountsRejectionsAndHandoffs(t *testing.T) {
	sink := NewSink(prometheus.NewRegistry())
	ctx := context.Background()
	now := time.Now()

	rejected := event(recovery.ActivityEventActionRejected, recovery.SlotResend, now)
	rejected.Category = recovery.CategoryValidation
	require.NoError(t, sink.Record(ctx, rejected))

	handoff := event(recovery.ActivityEventHandoff, "", now)
	handoff.Route = recovery.RouteLogin
	require.NoError(t, sink.Record(ctx, handoff))

	activation := string(recovery.FlowActivation)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.completed.WithLabelValues(activation, "resend", OutcomeRejected, "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.handoffs.WithLabelValues(activation, "login")))
	assert.Equal(t, 0, testutil.CollectAndCount(sink.duration))
}

func TestSinkRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewSink(reg)
	require.NoError(t, sink.Record(context.Background(),
		event(recovery.ActivityEventActionStarted, recovery.SlotSubmit, time.Now())))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "recovery_flow_actions_started_total")

	assert.Panics(t, func() { NewSink(reg) }, "collectors are registered once per registry")
}

func TestSinkEvictsPendingOnFlowClose(t *testing.T) {
	sink := NewSink(prometheus.NewRegistry())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Record(ctx, event(recovery.ActivityEventActionStarted, recovery.SlotSubmit, now)))
	other := event(recovery.ActivityEventActionStarted, recovery.SlotSubmit, now)
	other.FlowID = "flow-2"
	require.NoError(t, sink.Record(ctx, other))

	require.NoError(t, sink.Record(ctx, event(recovery.ActivityEventFlowClosed, "", now)))

	activation := string(recovery.FlowActivation)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.abandoned.WithLabelValues(activation, "submit")))
	assert.Len(t, sink.pending, 1)
	assert.Contains(t, sink.pending, pendingKey{"flow-2", recovery.SlotSubmit})

	require.NoError(t, sink.Record(ctx, event(recovery.ActivityEventActionSucceeded, recovery.SlotSubmit, now)))
	assert.Equal(t, 0, testutil.CollectAndCount(sink.duration))
}
