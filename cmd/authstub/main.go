// Command authstub runs the development authentication service used by
// recoveryctl. Configuration comes from AUTHSTUB_* variables; flags override
// them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-auth-recovery/authstub"
	"github.com/goliatone/go-auth-recovery/logging"
)

func main() {
	cfg, err := authstub.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var logLevel string
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.DSN, "dsn", cfg.DSN, "sqlite data source name")
	flag.DurationVar(&cfg.CodeTTL, "code-ttl", cfg.CodeTTL, "activation code lifetime (0 = never expires)")
	flag.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	if err := run(cfg, logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg authstub.Config, logLevel string) error {
	logger, flush, err := logging.NewDevelopment(logLevel)
	if err != nil {
		return err
	}
	defer flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := authstub.OpenStore(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := authstub.NewServer(cfg, store, authstub.WithLogger(logger.Named("authstub")))
	for _, rt := range srv.Routes() {
		logger.Debug("route %s %s (%s)", rt.Method, rt.Path, rt.Name)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
