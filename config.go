package recovery

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// ActionMessages holds the user-facing strings of one action slot.
type ActionMessages struct {
	Success      string `env:"SUCCESS_MESSAGE"`
	Unreachable  string `env:"UNREACHABLE_MESSAGE"`
	Unexpected   string `env:"UNEXPECTED_MESSAGE"`
	MissingEmail string `env:"MISSING_EMAIL_MESSAGE"`
	InvalidCode  string `env:"INVALID_CODE_MESSAGE"`
}

func (m ActionMessages) classifier() ErrorClassifier {
	return ErrorClassifier{
		UnreachableMessage: m.Unreachable,
		UnexpectedMessage:  m.Unexpected,
	}
}

// Config controls flow timing and messages.
type Config struct {
	ActivationHandoffDelay time.Duration `env:"RECOVERY_ACTIVATION_HANDOFF_DELAY"`
	ResetHandoffDelay      time.Duration `env:"RECOVERY_RESET_HANDOFF_DELAY"`
	RemoteTimeout          time.Duration `env:"RECOVERY_REMOTE_TIMEOUT"`

	Activation ActionMessages `envPrefix:"RECOVERY_ACTIVATION_"`
	Resend     ActionMessages `envPrefix:"RECOVERY_RESEND_"`
	Reset      ActionMessages `envPrefix:"RECOVERY_RESET_"`
}

// DefaultConfig returns the built in timing and English messages.
func DefaultConfig() Config {
	return Config{
		ActivationHandoffDelay: 3 * time.Second,
		ResetHandoffDelay:      2 * time.Second,
		RemoteTimeout:          10 * time.Second,
		Activation: ActionMessages{
			Success:      "Account activated. Welcome!",
			Unreachable:  "Could not connect to the server. Please try again later.",
			Unexpected:   "An unexpected error occurred. Please try again.",
			MissingEmail: "Please enter your email address.",
			InvalidCode:  "The activation code must be 16 hexadecimal characters.",
		},
		Resend: ActionMessages{
			Success:      "Activation code resent. Check your email.",
			Unreachable:  "Could not connect to the server to resend the code.",
			Unexpected:   "An unexpected error occurred while resending the code. Please try again.",
			MissingEmail: "Please enter your email address to resend the code.",
		},
		Reset: ActionMessages{
			Success:      "Recovery code sent. Check your email.",
			Unreachable:  "Could not connect to the server. Please try again later.",
			Unexpected:   "An unexpected error occurred. Please try again.",
			MissingEmail: "Please enter your email address.",
		},
	}
}

// WithDefaults fills zero durations and empty messages from DefaultConfig.
// A negative handoff delay hands off immediately and a negative
// RemoteTimeout disables the call deadline.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ActivationHandoffDelay == 0 {
		c.ActivationHandoffDelay = def.ActivationHandoffDelay
	}
	if c.ResetHandoffDelay == 0 {
		c.ResetHandoffDelay = def.ResetHandoffDelay
	}
	if c.RemoteTimeout == 0 {
		c.RemoteTimeout = def.RemoteTimeout
	}
	c.Activation = c.Activation.withDefaults(def.Activation)
	c.Resend = c.Resend.withDefaults(def.Resend)
	c.Reset = c.Reset.withDefaults(def.Reset)
	return c
}

func (m ActionMessages) withDefaults(def ActionMessages) ActionMessages {
	if m.Success == "" {
		m.Success = def.Success
	}
	if m.Unreachable == "" {
		m.Unreachable = def.Unreachable
	}
	if m.Unexpected == "" {
		m.Unexpected = def.Unexpected
	}
	if m.MissingEmail == "" {
		m.MissingEmail = def.MissingEmail
	}
	if m.InvalidCode == "" {
		m.InvalidCode = def.InvalidCode
	}
	return m
}

// LoadConfig overlays RECOVERY_* environment variables on DefaultConfig.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse recovery config from environment")
	}
	return cfg, nil
}
