package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds the TBRSCAN_* environment overrides. Unset variables leave the
// zero value, which Apply ignores.
type Env struct {
	Template string        `env:"TBRSCAN_TEMPLATE"`
	Solver   string        `env:"TBRSCAN_SOLVER"`
	Threads  int           `env:"TBRSCAN_SOLVER_THREADS"`
	Timeout  time.Duration `env:"TBRSCAN_TIMEOUT"`
	WorkDir  string        `env:"TBRSCAN_WORKDIR"`
	DBDir    string        `env:"TBRSCAN_DB_DIR"`
}

// LoadEnv reads the overrides from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// ParseEnv reads the overrides from environ instead of the process
// environment.
func ParseEnv(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply copies every set override into cfg.
func (e Env) Apply(cfg *Config) {
	if e.Template != "" {
		cfg.TemplatePath = e.Template
	}
	if e.Solver != "" {
		cfg.Solver = e.Solver
	}
	if e.Threads != 0 {
		cfg.Threads = e.Threads
	}
	if e.Timeout != 0 {
		cfg.Timeout = e.Timeout
	}
	if e.WorkDir != "" {
		cfg.WorkDir = e.WorkDir
	}
	if e.DBDir != "" {
		cfg.DBDir = e.DBDir
	}
}
