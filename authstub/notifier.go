package authstub

import (
	"context"
	"fmt"
	"io"
	"os"
)

// MailKind identifies the template of an outgoing mail.
type MailKind string

const (
	MailActivation    MailKind = "activation"
	MailPasswordReset MailKind = "password_reset"
)

// Mail is a code delivery to an account email.
type Mail struct {
	Kind MailKind
	To   string
	Code string
}

// Notifier delivers codes to account holders.
type Notifier interface {
	Send(ctx context.Context, mail Mail) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, mail Mail) error

// Send calls f(ctx, mail).
func (f NotifierFunc) Send(ctx context.Context, mail Mail) error {
	if f == nil {
		return nil
	}
	return f(ctx, mail)
}

// ConsoleNotifier prints mails instead of sending them.
type ConsoleNotifier struct {
	Out io.Writer
}

// Send writes the mail to Out, or stdout.
func (n ConsoleNotifier) Send(_ context.Context, mail Mail) error {
	out := n.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintln(out, "====== SENDING EMAIL NOTIFICATION =======")
	fmt.Fprintf(out, "to: %s\n", mail.To)
	fmt.Fprintf(out, "kind: %s\n", mail.Kind)
	fmt.Fprintf(out, "code: %s\n", mail.Code)
	return nil
}
