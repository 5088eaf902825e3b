package recovery

import (
	"context"
	"errors"
	"time"
)

// ActivityEventType enumerates flow lifecycle events.
type ActivityEventType string

const (
	ActivityEventActionStarted   ActivityEventType = "recovery.action.started"
	ActivityEventActionSucceeded ActivityEventType = "recovery.action.succeeded"
	ActivityEventActionFailed    ActivityEventType = "recovery.action.failed"
	ActivityEventActionRejected  ActivityEventType = "recovery.action.rejected"
	ActivityEventHandoff         ActivityEventType = "recovery.handoff"
	ActivityEventFlowClosed      ActivityEventType = "recovery.flow.closed"
)

// ActivityEvent describes something that happened inside a flow. Field
// values are never included.
type ActivityEvent struct {
	EventType  ActivityEventType
	FlowID     string
	Flow       FlowKind
	Slot       Slot
	Category   ErrorCategory
	Route      Route
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// MultiSink fans events out to every non-nil sink. All sinks are called;
// their errors are joined.
func MultiSink(sinks ...ActivitySink) ActivitySink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multiSink []ActivitySink

func (m multiSink) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
