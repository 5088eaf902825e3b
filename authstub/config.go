package authstub

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// Config configures the stub service.
type Config struct {
	Addr       string        `env:"AUTHSTUB_ADDR" envDefault:":8080"`
	DSN        string        `env:"AUTHSTUB_DSN" envDefault:"file:authstub.db?cache=shared"`
	CodeTTL    time.Duration `env:"AUTHSTUB_CODE_TTL" envDefault:"24h"`
	BcryptCost int           `env:"AUTHSTUB_BCRYPT_COST" envDefault:"10"`

	ActivatePath string `env:"AUTHSTUB_ACTIVATE_PATH" envDefault:"/auth/activate"`
	ResendPath   string `env:"AUTHSTUB_RESEND_PATH" envDefault:"/auth/resend-activation"`
	ResetPath    string `env:"AUTHSTUB_RESET_PATH" envDefault:"/auth/request-password-reset"`
	RegisterPath string `env:"AUTHSTUB_REGISTER_PATH" envDefault:"/auth/register"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid authstub configuration")
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.ActivatePath == "" {
		c.ActivatePath = "/auth/activate"
	}
	if c.ResendPath == "" {
		c.ResendPath = "/auth/resend-activation"
	}
	if c.ResetPath == "" {
		c.ResetPath = "/auth/request-password-reset"
	}
	if c.RegisterPath == "" {
		c.RegisterPath = "/auth/register"
	}
	return c
}
