// Command recoveryctl drives the account recovery flows from a terminal.
//
//	recoveryctl [global flags] activate -email a@b.com -code 0123456789abcdef
//	recoveryctl [global flags] resend -email a@b.com
//	recoveryctl [global flags] reset -email a@b.com
//
// Every state change is printed, followed by the navigation handoff once its
// grace delay elapsed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	recovery "github.com/goliatone/go-auth-recovery"
	"github.com/goliatone/go-auth-recovery/activitymap"
	"github.com/goliatone/go-auth-recovery/logging"
	"github.com/goliatone/go-auth-recovery/metrics"
	"github.com/goliatone/go-auth-recovery/remote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	errUsage        = errors.New("usage")
	errActionFailed = errors.New("action failed")
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	api         string
	logLevel    string
	jsonOutput  bool
	showMetrics bool
	activity    bool
	noWait      bool
	email       string
	code        string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := options{}

	global := flag.NewFlagSet("recoveryctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.StringVar(&opts.api, "api", "", "authentication service base URL (default: RECOVERY_API_URL)")
	global.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	global.BoolVar(&opts.jsonOutput, "json", false, "print snapshots as JSON")
	global.BoolVar(&opts.showMetrics, "metrics", false, "print flow metrics on exit")
	global.BoolVar(&opts.activity, "activity", false, "print normalized activity events to stderr")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: recoveryctl [flags] <activate|resend|reset> [-email addr] [-code code]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return errUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errUsage
	}

	command := rest[0]
	sub := flag.NewFlagSet(command, flag.ContinueOnError)
	sub.SetOutput(stderr)
	sub.StringVar(&opts.email, "email", "", "account email")
	sub.StringVar(&opts.code, "code", "", "activation code (activate only)")
	sub.BoolVar(&opts.noWait, "no-wait", false, "exit without waiting for the handoff")
	if err := sub.Parse(rest[1:]); err != nil {
		return errUsage
	}

	logger, flush, err := logging.NewDevelopment(opts.logLevel)
	if err != nil {
		return err
	}
	defer flush()

	cfg, err := recovery.LoadConfig()
	if err != nil {
		return err
	}
	remoteCfg, err := remote.LoadConfig()
	if err != nil {
		return err
	}
	if opts.api != "" {
		remoteCfg.BaseURL = opts.api
	}

	reg := prometheus.NewRegistry()
	sinks := []recovery.ActivitySink{metrics.NewSink(reg)}
	if opts.activity {
		sinks = append(sinks, activitymap.NewWriterSink(stderr))
	}
	handoffs := make(chan recovery.Handoff, 1)
	client := remote.NewClient(remoteCfg, remote.WithLogger(logger.Named("remote")))

	flowOpts := []recovery.FlowOption{
		recovery.WithConfig(cfg),
		recovery.WithContext(ctx),
		recovery.WithLogger(logger.Named("flow")),
		recovery.WithActivitySink(recovery.MultiSink(sinks...)),
		recovery.WithNavigator(recovery.NavigatorFunc(func(_ context.Context, h recovery.Handoff) {
			handoffs <- h
		})),
	}

	p := printer{out: stdout, json: opts.jsonOutput}

	switch command {
	case "activate":
		err = runActivation(ctx, opts, client, flowOpts, p, handoffs, cfg.ActivationHandoffDelay, false)
	case "resend":
		err = runActivation(ctx, opts, client, flowOpts, p, handoffs, 0, true)
	case "reset":
		err = runReset(ctx, opts, client, flowOpts, p, handoffs, cfg.ResetHandoffDelay)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		global.Usage()
		return errUsage
	}

	if opts.showMetrics {
		if merr := p.metrics(reg); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

// controller is the part of a flow the CLI drives.
type controller interface {
	Subscribe(obs recovery.Observer) func()
	Snapshot() recovery.Snapshot
	OnFieldChange(name, value string) error
	Wait()
	Close() error
}

func runActivation(ctx context.Context, opts options, client recovery.Service, flowOpts []recovery.FlowOption, p printer, handoffs <-chan recovery.Handoff, delay time.Duration, resend bool) error {
	flowOpts = append(flowOpts, recovery.WithPrefill(map[string]string{recovery.FieldEmail: opts.email}))
	flow, err := recovery.NewActivationFlow(client, flowOpts...)
	if err != nil {
		return err
	}
	defer flow.Close()
	defer flow.Subscribe(p.snapshot)()

	if resend {
		return drive(ctx, flow, recovery.SlotResend, flow.ResendCode, p, nil, 0)
	}

	if opts.code != "" {
		if err := flow.OnFieldChange(recovery.FieldCode, opts.code); err != nil {
			return err
		}
	}
	if opts.noWait {
		handoffs = nil
	}
	return drive(ctx, flow, recovery.SlotSubmit, flow.SubmitActivation, p, handoffs, delay)
}

func runReset(ctx context.Context, opts options, client recovery.Service, flowOpts []recovery.FlowOption, p printer, handoffs <-chan recovery.Handoff, delay time.Duration) error {
	flow, err := recovery.NewResetRequestFlow(client, flowOpts...)
	if err != nil {
		return err
	}
	defer flow.Close()
	defer flow.Subscribe(p.snapshot)()

	if opts.email != "" {
		if err := flow.OnFieldChange(recovery.FieldEmail, opts.email); err != nil {
			return err
		}
	}
	if opts.noWait {
		handoffs = nil
	}
	return drive(ctx, flow, recovery.SlotSubmit, flow.RequestReset, p, handoffs, delay)
}

func drive(ctx context.Context, flow controller, slot recovery.Slot, action func() error, p printer, handoffs <-chan recovery.Handoff, delay time.Duration) error {
	if err := action(); err != nil {
		if view := flow.Snapshot().Actions[slot]; view.Message != "" {
			return fmt.Errorf("%w: %s", errActionFailed, view.Message)
		}
		return err
	}
	flow.Wait()

	view := flow.Snapshot().Actions[slot]
	if view.Status != recovery.StatusSucceeded {
		return fmt.Errorf("%w: %s", errActionFailed, view.Message)
	}
	if handoffs == nil {
		return nil
	}

	select {
	case h := <-handoffs:
		p.handoff(h)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("handoff interrupted: %w", ctx.Err())
	case <-time.After(delay + 5*time.Second):
		return errors.New("handoff not delivered")
	}
}

type printer struct {
	out  io.Writer
	json bool
}

func (p printer) snapshot(s recovery.Snapshot) {
	if p.json {
		data, err := json.Marshal(s)
		if err == nil {
			fmt.Fprintln(p.out, string(data))
		}
		return
	}

	slots := make([]string, 0, len(s.Actions))
	for slot := range s.Actions {
		slots = append(slots, string(slot))
	}
	sort.Strings(slots)

	parts := make([]string, 0, len(slots))
	for _, name := range slots {
		view := s.Actions[recovery.Slot(name)]
		part := fmt.Sprintf("%s=%s", name, view.Status)
		if view.Message != "" {
			part += fmt.Sprintf(" (%q)", view.Message)
		}
		parts = append(parts, part)
	}
	fmt.Fprintf(p.out, "[v%d] %s\n", s.Version, strings.Join(parts, " "))
}

func (p printer) handoff(h recovery.Handoff) {
	if p.json {
		data, err := json.Marshal(map[string]any{
			"handoff": h.Route,
			"context": h.Context,
		})
		if err == nil {
			fmt.Fprintln(p.out, string(data))
		}
		return
	}
	fmt.Fprintf(p.out, "handoff -> %s", h.Route)
	if email := h.Context["email"]; email != "" {
		fmt.Fprintf(p.out, " (email=%s)", email)
	}
	fmt.Fprintln(p.out)
}

func (p printer) metrics(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(p.out, mf); err != nil {
			return err
		}
	}
	return nil
}
