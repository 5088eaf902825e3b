package recovery

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Slot names an independently submittable action of a flow.
type Slot string

const (
	SlotSubmit Slot = "submit"
	SlotResend Slot = "resend"
)

// ActionStatus is the lifecycle status of a single action slot.
type ActionStatus string

const (
	StatusIdle      ActionStatus = "idle"
	StatusPending   ActionStatus = "pending"
	StatusSucceeded ActionStatus = "succeeded"
	StatusFailed    ActionStatus = "failed"
)

const (
	eventBegin   = "begin"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventReject  = "reject"
	eventReset   = "reset"
)

// ActionState tracks the request lifecycle of one action slot.
//
//	idle -> pending -> succeeded | failed
//	succeeded | failed -> pending (resubmit) | idle (edit)
//
// reject moves a settled or idle slot straight to failed; it is used for
// local validation failures that never reach the remote service.
type ActionState struct {
	slot           Slot
	machine        *fsm.FSM
	message        string
	category       ErrorCategory
	defaultSuccess string
}

// NewActionState returns an idle slot. defaultSuccess is used when Succeed
// receives an empty message.
func NewActionState(slot Slot, defaultSuccess string) *ActionState {
	settled := []string{string(StatusIdle), string(StatusSucceeded), string(StatusFailed)}
	return &ActionState{
		slot:           slot,
		defaultSuccess: defaultSuccess,
		machine: fsm.NewFSM(
			string(StatusIdle),
			fsm.Events{
				{Name: eventBegin, Src: settled, Dst: string(StatusPending)},
				{Name: eventSucceed, Src: []string{string(StatusPending)}, Dst: string(StatusSucceeded)},
				{Name: eventFail, Src: []string{string(StatusPending)}, Dst: string(StatusFailed)},
				{Name: eventReject, Src: settled, Dst: string(StatusFailed)},
				{Name: eventReset, Src: settled, Dst: string(StatusIdle)},
			},
			fsm.Callbacks{},
		),
	}
}

// Slot returns the slot name.
func (a *ActionState) Slot() Slot { return a.slot }

// Status returns the current status.
func (a *ActionState) Status() ActionStatus { return ActionStatus(a.machine.Current()) }

// Message returns the success or error text of a settled slot.
func (a *ActionState) Message() string { return a.message }

// Category returns the failure category, empty unless failed.
func (a *ActionState) Category() ErrorCategory { return a.category }

// Pending reports whether a request is in flight.
func (a *ActionState) Pending() bool { return a.Status() == StatusPending }

// Begin moves the slot to pending and clears its message.
func (a *ActionState) Begin(ctx context.Context) error {
	if err := a.fire(ctx, eventBegin); err != nil {
		return err
	}
	a.message = ""
	a.category = CategoryNone
	return nil
}

// Succeed settles a pending slot.
func (a *ActionState) Succeed(ctx context.Context, message string) error {
	if err := a.fire(ctx, eventSucceed); err != nil {
		return err
	}
	if message == "" {
		message = a.defaultSuccess
	}
	a.message = message
	a.category = CategoryNone
	return nil
}

// Fail settles a pending slot with a classified error.
func (a *ActionState) Fail(ctx context.Context, category ErrorCategory, message string) error {
	if err := a.fire(ctx, eventFail); err != nil {
		return err
	}
	a.message = message
	a.category = category
	return nil
}

// Reject records a local validation failure without a pending phase.
func (a *ActionState) Reject(ctx context.Context, message string) error {
	if err := a.fire(ctx, eventReject); err != nil {
		return err
	}
	a.message = message
	a.category = CategoryValidation
	return nil
}

// Reset returns the slot to idle. Resetting an idle slot is a no-op.
func (a *ActionState) Reset(ctx context.Context) error {
	if err := a.fire(ctx, eventReset); err != nil {
		return err
	}
	a.message = ""
	a.category = CategoryNone
	return nil
}

// View returns a read-only copy of the slot for rendering.
func (a *ActionState) View() ActionView {
	return ActionView{
		Status:   a.Status(),
		Message:  a.message,
		Category: a.category,
	}
}

func (a *ActionState) fire(ctx context.Context, event string) error {
	from := a.machine.Current()
	// a cancelled context would leave the machine stuck mid transition
	err := a.machine.Event(context.WithoutCancel(ctx), event)
	if err == nil {
		return nil
	}

	// same source and destination, e.g. reset on idle or reject on failed
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) && noTransition.Err == nil {
		return nil
	}

	return withMeta(ErrInvalidTransition, map[string]any{
		"slot":  a.slot,
		"from":  from,
		"event": event,
		"cause": err.Error(),
	})
}

// ActionSet owns the slots of one flow and applies the cross-slot side
// effects: starting one slot, or editing a field, clears settled messages of
// every slot.
type ActionSet struct {
	order []Slot
	slots map[Slot]*ActionState
}

// NewActionSet groups slots in the given order.
func NewActionSet(states ...*ActionState) *ActionSet {
	set := &ActionSet{slots: make(map[Slot]*ActionState, len(states))}
	for _, st := range states {
		set.order = append(set.order, st.slot)
		set.slots[st.slot] = st
	}
	return set
}

// Get returns the slot state or nil.
func (s *ActionSet) Get(slot Slot) *ActionState {
	return s.slots[slot]
}

// Slots returns the slot names in declaration order.
func (s *ActionSet) Slots() []Slot {
	out := make([]Slot, len(s.order))
	copy(out, s.order)
	return out
}

// Busy reports whether any slot is pending.
func (s *ActionSet) Busy() bool {
	for _, st := range s.slots {
		if st.Pending() {
			return true
		}
	}
	return false
}

// CanBegin reports ErrInvalidTransition when slot itself is pending and
// ErrFlowBusy when a sibling slot is.
func (s *ActionSet) CanBegin(slot Slot) error {
	st, ok := s.slots[slot]
	if !ok {
		return withMeta(ErrInvalidTransition, map[string]any{"slot": slot, "reason": "unknown slot"})
	}
	if st.Pending() {
		return withMeta(ErrInvalidTransition, map[string]any{"slot": slot, "from": StatusPending, "event": eventBegin})
	}
	for name, other := range s.slots {
		if name != slot && other.Pending() {
			return withMeta(ErrFlowBusy, map[string]any{"slot": slot, "pending": name})
		}
	}
	return nil
}

// Begin starts slot and clears the messages of its siblings.
func (s *ActionSet) Begin(ctx context.Context, slot Slot) error {
	st, ok := s.slots[slot]
	if !ok {
		return withMeta(ErrInvalidTransition, map[string]any{"slot": slot, "reason": "unknown slot"})
	}
	if err := st.Begin(ctx); err != nil {
		return err
	}
	s.clear(ctx, slot)
	return nil
}

// ClearMessages resets every settled slot to idle. Pending slots keep their
// in-flight request.
func (s *ActionSet) ClearMessages(ctx context.Context) {
	s.clear(ctx, "")
}

func (s *ActionSet) clear(ctx context.Context, except Slot) {
	for _, name := range s.order {
		st := s.slots[name]
		if name == except || st.Pending() {
			continue
		}
		_ = st.Reset(ctx)
	}
}
