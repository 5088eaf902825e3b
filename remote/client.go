package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	recovery "github.com/goliatone/go-auth-recovery"
)

// Config holds the endpoints of the authentication service.
type Config struct {
	BaseURL      string        `env:"RECOVERY_API_URL" envDefault:"http://localhost:8080"`
	ActivatePath string        `env:"RECOVERY_API_ACTIVATE_PATH" envDefault:"/auth/activate"`
	ResendPath   string        `env:"RECOVERY_API_RESEND_PATH" envDefault:"/auth/resend-activation"`
	ResetPath    string        `env:"RECOVERY_API_RESET_PATH" envDefault:"/auth/request-password-reset"`
	Timeout      time.Duration `env:"RECOVERY_API_TIMEOUT" envDefault:"10s"`
	// MaxRetries bounds retries of transport failures. Rejections are never
	// retried.
	MaxRetries uint64 `env:"RECOVERY_API_MAX_RETRIES" envDefault:"2"`
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger recovery.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBackOff overrides the retry policy factory.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		if fn != nil {
			c.newBackOff = fn
		}
	}
}

// Client implements recovery.Service over JSON HTTP.
type Client struct {
	cfg        Config
	http       *http.Client
	logger     recovery.Logger
	newBackOff func() backoff.BackOff
}

var _ recovery.Service = (*Client)(nil)

// NewClient returns a client for the service at cfg.BaseURL.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: nopLogger{},
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type activateRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type errorBody struct {
	Error string `json:"error"`
}

// ActivateAccount implements recovery.Service.
func (c *Client) ActivateAccount(ctx context.Context, email, code string) (*recovery.Response, error) {
	return c.post(ctx, c.cfg.ActivatePath, activateRequest{Email: email, Code: code})
}

// ResendActivationCode implements recovery.Service.
func (c *Client) ResendActivationCode(ctx context.Context, email string) (*recovery.Response, error) {
	return c.post(ctx, c.cfg.ResendPath, emailRequest{Email: email})
}

// RequestPasswordReset implements recovery.Service.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*recovery.Response, error) {
	return c.post(ctx, c.cfg.ResetPath, emailRequest{Email: email})
}

func (c *Client) post(ctx context.Context, path string, payload any) (*recovery.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	var out *recovery.Response

	operation := func() error {
		resp, err := c.do(ctx, endpoint, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return out, nil
}

// do performs one attempt. Only transport failures are returned as
// retryable errors.
func (c *Client) do(ctx context.Context, endpoint string, body []byte) (*recovery.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("POST %s transport failure: %v", endpoint, err)
		transportErr := &recovery.TransportError{Err: err}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(transportErr)
		}
		return nil, transportErr
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("read response: %w", err))
	}
	c.logger.Debug("POST %s -> %d", endpoint, res.StatusCode)

	if res.StatusCode >= http.StatusBadRequest {
		rejected := &recovery.ServerError{StatusCode: res.StatusCode}
		var payload errorBody
		if len(data) > 0 && json.Unmarshal(data, &payload) == nil {
			rejected.Message = payload.Error
		}
		return nil, backoff.Permanent(rejected)
	}

	out := &recovery.Response{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
