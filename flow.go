package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// FlowKind identifies the flow implementation.
type FlowKind string

const (
	FlowActivation   FlowKind = "activation"
	FlowResetRequest FlowKind = "reset_request"
)

// FieldView is the rendering view of a form field.
type FieldView struct {
	Value  string `json:"value"`
	Locked bool   `json:"locked"`
}

// ActionView is the rendering view of an action slot.
type ActionView struct {
	Status   ActionStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Category ErrorCategory `json:"category,omitempty"`
	// Enabled is false while any action of the flow is pending.
	Enabled bool `json:"enabled"`
}

// Snapshot is the read-only state handed to observers. Version increases
// with every change so late notifications can be discarded.
type Snapshot struct {
	FlowID  string               `json:"flow_id"`
	Flow    FlowKind             `json:"flow"`
	Version uint64               `json:"version"`
	Fields  map[string]FieldView `json:"fields"`
	Actions map[Slot]ActionView  `json:"actions"`
	Busy    bool                 `json:"busy"`
	Closed  bool                 `json:"closed"`
}

// Observer is notified after each state change.
type Observer func(Snapshot)

// FlowOption customizes flow construction.
type FlowOption func(*flow)

// WithLogger overrides the default stdout logger.
func WithLogger(logger Logger) FlowOption {
	return func(f *flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithNavigator sets the receiver of handoffs.
func WithNavigator(nav Navigator) FlowOption {
	return func(f *flow) {
		if nav != nil {
			f.navigator = nav
		}
	}
}

// WithScheduler overrides the timer used for deferred handoffs.
func WithScheduler(s Scheduler) FlowOption {
	return func(f *flow) {
		if s != nil {
			f.scheduler = s
		}
	}
}

// WithActivitySink sets the sink used to publish flow events.
func WithActivitySink(sink ActivitySink) FlowOption {
	return func(f *flow) {
		f.activity = normalizeActivitySink(sink)
	}
}

// WithConfig sets timing and messages. Zero fields keep their
// DefaultConfig values.
func WithConfig(cfg Config) FlowOption {
	return func(f *flow) {
		f.cfg = cfg.WithDefaults()
	}
}

// WithPrefill initializes the form with values carried from a previous
// step. Prefilled fields are locked.
func WithPrefill(values map[string]string) FlowOption {
	return func(f *flow) {
		f.prefill = values
	}
}

// WithContext sets the parent context of remote calls and handoffs.
func WithContext(ctx context.Context) FlowOption {
	return func(f *flow) {
		if ctx != nil {
			f.parent = ctx
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) FlowOption {
	return func(f *flow) {
		if clock != nil {
			f.now = clock
		}
	}
}

// WithFlowID overrides the generated flow identifier.
func WithFlowID(id string) FlowOption {
	return func(f *flow) {
		if id != "" {
			f.id = id
		}
	}
}

type remoteCall func(ctx context.Context) (*Response, error)

type flow struct {
	id      string
	kind    FlowKind
	cfg     Config
	prefill map[string]string

	service   Service
	navigator Navigator
	scheduler Scheduler
	activity  ActivitySink
	logger    Logger
	now       func() time.Time

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	form      *FormState
	actions   *ActionSet
	observers map[int]Observer
	nextObs   int
	version   uint64
	handoff   CancelFunc
	handoffID uint64
	firedID   uint64
	closed    bool

	inflight sync.WaitGroup
}

func newFlow(kind FlowKind, service Service, fields []string, slots func(cfg Config) *ActionSet, opts []FlowOption) (*flow, error) {
	f := &flow{
		id:        uuid.NewString(),
		kind:      kind,
		cfg:       DefaultConfig(),
		service:   service,
		navigator: noopNavigator{},
		scheduler: timerScheduler{},
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
		parent:    context.Background(),
		form:      NewFormState(fields...),
		observers: map[int]Observer{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	if f.service == nil {
		return nil, goerrors.New("recovery flow requires a remote service", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"flow": kind})
	}

	if err := f.form.Initialize(f.prefill); err != nil {
		return nil, err
	}
	f.actions = slots(f.cfg)
	f.form.onChange = func(string) {
		f.actions.ClearMessages(f.ctx)
	}

	f.ctx, f.cancel = context.WithCancel(f.parent)
	return f, nil
}

// update collects the effects of a state change that must run after the
// flow lock is released.
type update struct {
	changed bool
	events  []ActivityEvent
	after   []func()
}

func (u *update) emit(evt ActivityEvent) {
	u.events = append(u.events, evt)
}

func (f *flow) apply(fn func(u *update) error) error {
	u := &update{}

	f.mu.Lock()
	err := fn(u)
	var (
		snap      Snapshot
		observers []Observer
	)
	if u.changed {
		f.version++
		snap = f.snapshotLocked()
		observers = make([]Observer, 0, len(f.observers))
		for i := 0; i < f.nextObs; i++ {
			if obs, ok := f.observers[i]; ok {
				observers = append(observers, obs)
			}
		}
	}
	f.mu.Unlock()

	for _, evt := range u.events {
		f.record(evt)
	}
	for _, obs := range observers {
		obs(snap)
	}
	for _, fn := range u.after {
		fn()
	}
	return err
}

// ID returns the flow identifier.
func (f *flow) ID() string { return f.id }

// Kind returns the flow kind.
func (f *flow) Kind() FlowKind { return f.kind }

// Subscribe registers an observer. The returned function removes it.
func (f *flow) Subscribe(obs Observer) func() {
	if obs == nil {
		return func() {}
	}
	f.mu.Lock()
	key := f.nextObs
	f.nextObs++
	f.observers[key] = obs
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.observers, key)
		f.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (f *flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Field returns the current value of a field.
func (f *flow) Field(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form.Get(name)
}

// IsLocked reports whether a field was prefilled.
func (f *flow) IsLocked(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form.IsLocked(name)
}

// OnFieldChange applies user input. Any accepted edit clears the messages
// of every action slot.
func (f *flow) OnFieldChange(name, value string) error {
	return f.apply(func(u *update) error {
		if f.closed {
			return ErrFlowClosed
		}
		if err := f.form.Set(name, value); err != nil {
			return err
		}
		u.changed = true
		return nil
	})
}

// Close tears the flow down: the pending handoff is revoked, in-flight
// remote calls are cancelled and their completions ignored.
func (f *flow) Close() error {
	return f.apply(func(u *update) error {
		if f.closed {
			return nil
		}
		f.closed = true
		f.revokeHandoffLocked(u)
		f.cancel()
		u.changed = true
		u.emit(f.event(ActivityEventFlowClosed, "", CategoryNone, nil))
		return nil
	})
}

// Wait blocks until every in-flight remote call settled.
func (f *flow) Wait() {
	f.inflight.Wait()
}

func (f *flow) snapshotLocked() Snapshot {
	busy := f.actions.Busy()
	snap := Snapshot{
		FlowID:  f.id,
		Flow:    f.kind,
		Version: f.version,
		Fields:  map[string]FieldView{},
		Actions: map[Slot]ActionView{},
		Busy:    busy,
		Closed:  f.closed,
	}
	for _, name := range f.form.Names() {
		snap.Fields[name] = FieldView{
			Value:  f.form.Get(name),
			Locked: f.form.IsLocked(name),
		}
	}
	for _, slot := range f.actions.Slots() {
		view := f.actions.Get(slot).View()
		view.Enabled = !busy && !f.closed
		snap.Actions[slot] = view
	}
	return snap
}

// reject records a local validation failure on slot.
func (f *flow) reject(u *update, slot Slot, field, message string, cause error) error {
	if err := f.actions.Get(slot).Reject(f.ctx, message); err != nil {
		return err
	}
	u.changed = true
	u.emit(f.event(ActivityEventActionRejected, slot, CategoryValidation, map[string]any{"field": field}))

	meta := map[string]any{"slot": slot, "field": field}
	if cause != nil {
		meta["reason"] = cause.Error()
	}
	return withMeta(ErrValidation, meta)
}

// start moves slot to pending and launches call. validate runs under the
// flow lock after the busy checks and may reject the slot.
func (f *flow) start(slot Slot, validate func(u *update) error, call remoteCall, onSuccess func(u *update, resp *Response)) error {
	return f.apply(func(u *update) error {
		if f.closed {
			return ErrFlowClosed
		}
		if err := f.actions.CanBegin(slot); err != nil {
			return err
		}
		if validate != nil {
			if err := validate(u); err != nil {
				return err
			}
		}
		if err := f.actions.Begin(f.ctx, slot); err != nil {
			return err
		}
		u.changed = true
		u.emit(f.event(ActivityEventActionStarted, slot, CategoryNone, nil))

		f.inflight.Add(1)
		ctx := f.ctx
		u.after = append(u.after, func() {
			go f.invoke(ctx, slot, call, onSuccess)
		})
		return nil
	})
}

func (f *flow) invoke(ctx context.Context, slot Slot, call remoteCall, onSuccess func(u *update, resp *Response)) {
	defer f.inflight.Done()

	callCtx := ctx
	if f.cfg.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.cfg.RemoteTimeout)
		defer cancel()
	}

	resp, err := f.safeCall(callCtx, call)
	f.complete(slot, resp, err, onSuccess)
}

func (f *flow) safeCall(ctx context.Context, call remoteCall) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("remote call panicked: %v", r)
		}
	}()
	return call(ctx)
}

func (f *flow) complete(slot Slot, resp *Response, callErr error, onSuccess func(u *update, resp *Response)) {
	err := f.apply(func(u *update) error {
		if f.closed {
			f.logger.Warn("flow %s: %s completion ignored, flow closed", f.id, slot)
			return nil
		}

		state := f.actions.Get(slot)
		if callErr != nil {
			cls := f.classifierFor(slot).Classify(callErr)
			if cls.Category == CategoryUnexpected {
				f.logger.Error("flow %s: %s failed unexpectedly: %v", f.id, slot, cls.Cause)
			} else {
				f.logger.Info("flow %s: %s failed (%s): %v", f.id, slot, cls.Category, cls.Cause)
			}
			if err := state.Fail(f.ctx, cls.Category, cls.Message); err != nil {
				return err
			}
			u.changed = true
			u.emit(f.event(ActivityEventActionFailed, slot, cls.Category, nil))
			return nil
		}

		if resp == nil {
			resp = &Response{}
		}
		f.logger.Debug("flow %s: %s succeeded: %s", f.id, slot, print.MaybePrettyJSON(resp))
		if err := state.Succeed(f.ctx, resp.Message); err != nil {
			return err
		}
		u.changed = true
		u.emit(f.event(ActivityEventActionSucceeded, slot, CategoryNone, nil))
		if onSuccess != nil {
			onSuccess(u, resp)
		}
		return nil
	})

	if err != nil {
		f.logger.Error("flow %s: %s completion rejected: %v", f.id, slot, err)
	}
}

func (f *flow) classifierFor(slot Slot) ErrorClassifier {
	return f.messagesFor(slot).classifier()
}

func (f *flow) messagesFor(slot Slot) ActionMessages {
	switch {
	case slot == SlotResend:
		return f.cfg.Resend
	case f.kind == FlowResetRequest:
		return f.cfg.Reset
	default:
		return f.cfg.Activation
	}
}

// scheduleHandoff arms the deferred navigation. Must hold f.mu. The
// scheduler is called from u.after so it may run the task inline.
func (f *flow) scheduleHandoff(u *update, delay time.Duration, handoff Handoff) {
	f.revokeHandoffLocked(u)
	handoff.FlowID = f.id
	f.handoffID++
	id := f.handoffID

	u.after = append(u.after, func() {
		cancel := f.scheduler.Schedule(delay, func() {
			f.fireHandoff(id, handoff)
		})
		if cancel == nil {
			return
		}

		f.mu.Lock()
		armed := !f.closed && id == f.handoffID && id != f.firedID
		if armed {
			f.handoff = cancel
		}
		f.mu.Unlock()

		if !armed {
			cancel()
		}
	})
}

// revokeHandoffLocked cancels the armed handoff once the lock is released.
func (f *flow) revokeHandoffLocked(u *update) {
	if f.handoff == nil {
		return
	}
	cancel := f.handoff
	f.handoff = nil
	u.after = append(u.after, func() { cancel() })
}

func (f *flow) fireHandoff(id uint64, handoff Handoff) {
	fire := false
	_ = f.apply(func(u *update) error {
		if f.closed {
			f.logger.Warn("flow %s: handoff to %s ignored, flow closed", f.id, handoff.Route)
			return nil
		}
		if id != f.handoffID || id == f.firedID {
			// superseded by a later success
			return nil
		}
		f.handoff = nil
		f.firedID = id
		fire = true
		evt := f.event(ActivityEventHandoff, "", CategoryNone, nil)
		evt.Route = handoff.Route
		u.emit(evt)
		return nil
	})

	if fire {
		f.navigator.Navigate(f.ctx, handoff)
	}
}

func (f *flow) event(kind ActivityEventType, slot Slot, category ErrorCategory, meta map[string]any) ActivityEvent {
	return ActivityEvent{
		EventType:  kind,
		FlowID:     f.id,
		Flow:       f.kind,
		Slot:       slot,
		Category:   category,
		Metadata:   meta,
		OccurredAt: f.now(),
	}
}

func (f *flow) record(evt ActivityEvent) {
	if err := normalizeActivitySink(f.activity).Record(f.parent, evt); err != nil {
		f.logger.Warn("flow %s: activity sink error: %v", f.id, err)
	}
}
