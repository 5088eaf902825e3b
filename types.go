package recovery

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Response is the success payload shared by every remote recovery call.
type Response struct {
	Message string `json:"message,omitempty"`
}

// Service is the remote authentication service contract consumed by flows.
// Rejections must surface as *ServerError, transport failures as
// *TransportError; anything else is treated as unexpected.
type Service interface {
	ActivateAccount(ctx context.Context, email, code string) (*Response, error)
	ResendActivationCode(ctx context.Context, email string) (*Response, error)
	RequestPasswordReset(ctx context.Context, email string) (*Response, error)
}

// Route names a navigation target handed to the presentation layer.
type Route string

const (
	RouteLogin             Route = "login"
	RouteResetConfirmation Route = "reset-confirmation"
)

// Handoff is the deferred navigation signal emitted after a successful flow.
type Handoff struct {
	FlowID  string
	Route   Route
	Context map[string]string
}

// Navigator receives handoffs once their grace delay elapsed.
type Navigator interface {
	Navigate(ctx context.Context, handoff Handoff)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, handoff Handoff)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, handoff Handoff) {
	if f == nil {
		return
	}
	f(ctx, handoff)
}

type noopNavigator struct{}

func (noopNavigator) Navigate(context.Context, Handoff) {}

// CancelFunc revokes a scheduled task. It reports whether the task was
// stopped before it fired.
type CancelFunc func() bool

// Scheduler runs one-shot deferred tasks.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) CancelFunc
}

type timerScheduler struct{}

func (timerScheduler) Schedule(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return t.Stop
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] RECOVERY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] RECOVERY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] RECOVERY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] RECOVERY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
