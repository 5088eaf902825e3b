package recovery_test

import (
	"context"
	"sync"
	"time"

	recovery "github.com/goliatone/go-auth-recovery"
	"github.com/stretchr/testify/mock"
)

// MockService implements recovery.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ActivateAccount(ctx context.Context, email, code string) (*recovery.Response, error) {
	args := m.Called(ctx, email, code)
	return responseArg(args), args.Error(1)
}

func (m *MockService) ResendActivationCode(ctx context.Context, email string) (*recovery.Response, error) {
	args := m.Called(ctx, email)
	return responseArg(args), args.Error(1)
}

func (m *MockService) RequestPasswordReset(ctx context.Context, email string) (*recovery.Response, error) {
	args := m.Called(ctx, email)
	return responseArg(args), args.Error(1)
}

func responseArg(args mock.Arguments) *recovery.Response {
	if resp, ok := args.Get(0).(*recovery.Response); ok {
		return resp
	}
	return nil
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type fakeTask struct {
	at        time.Duration
	fn        func()
	fired     bool
	cancelled bool
}

// fakeScheduler fires tasks only when Advance moves its clock past them.
type fakeScheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	tasks   []*fakeTask
}

func (s *fakeScheduler) Schedule(delay time.Duration, fn func()) recovery.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &fakeTask{at: s.elapsed + delay, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task.fired || task.cancelled {
			return false
		}
		task.cancelled = true
		return true
	}
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.elapsed += d
	var due []*fakeTask
	for _, task := range s.tasks {
		if !task.fired && !task.cancelled && task.at <= s.elapsed {
			task.fired = true
			due = append(due, task)
		}
	}
	s.mu.Unlock()

	for _, task := range due {
		task.fn()
	}
}

func (s *fakeScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// inlineScheduler runs every task on the calling goroutine.
type inlineScheduler struct{}

func (inlineScheduler) Schedule(_ time.Duration, fn func()) recovery.CancelFunc {
	fn()
	return func() bool { return false }
}

type recordingNavigator struct {
	mu       sync.Mutex
	handoffs []recovery.Handoff
}

func (n *recordingNavigator) Navigate(_ context.Context, h recovery.Handoff) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handoffs = append(n.handoffs, h)
}

func (n *recordingNavigator) Handoffs() []recovery.Handoff {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]recovery.Handoff, len(n.handoffs))
	copy(out, n.handoffs)
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []recovery.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, evt recovery.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) Types() []recovery.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recovery.ActivityEventType, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.EventType)
	}
	return out
}
