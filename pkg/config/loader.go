package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from environment variables using `env` struct tags.
// cfg must be a pointer to a struct; defaults come from `envDefault` and
// required variables are marked with the `required` tag option.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
