package remote

import (
	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// LoadConfig reads RECOVERY_API_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse remote client config from environment")
	}
	return cfg, nil
}
