package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/lazypower/trustledger/internal/trust"
	"gopkg.in/yaml.v3"
)

// Config holds all trustledger configuration.
// Defaults come from Default(); Load() overlays TRUSTLEDGER_* environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Log        LogConfig
	Ledger     LedgerConfig
	Governance GovernanceConfig
}

type ServerConfig struct {
	Bind string `env:"TRUSTLEDGER_BIND"`
	Port int    `env:"TRUSTLEDGER_PORT"`
}

type DatabaseConfig struct {
	Path string `env:"TRUSTLEDGER_DB"` // audit log; empty disables it
}

type LogConfig struct {
	Level       string `env:"TRUSTLEDGER_LOG_LEVEL"`
	Development bool   `env:"TRUSTLEDGER_LOG_DEV"`
}

type LedgerConfig struct {
	InitialTrustScore float64       `env:"TRUSTLEDGER_INITIAL_SCORE"`
	MaxInviteDepth    int           `env:"TRUSTLEDGER_MAX_INVITE_DEPTH"`
	SweepInterval     time.Duration `env:"TRUSTLEDGER_SWEEP_INTERVAL"`
	EventBuffer       int           `env:"TRUSTLEDGER_EVENT_BUFFER"`
}

type GovernanceConfig struct {
	File string `env:"TRUSTLEDGER_GOVERNANCE_FILE"` // YAML seed for the parameter table
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Log: LogConfig{
			Level: "info",
		},
		Ledger: LedgerConfig{
			InitialTrustScore: trust.DefaultInitialTrustScore,
			MaxInviteDepth:    trust.DefaultMaxInviteDepth,
			SweepInterval:     trust.DefaultSweepInterval,
			EventBuffer:       trust.DefaultEventBuffer,
		},
	}
}

// Load returns Default() overlaid with the environment.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// GovernanceParameters returns the launch parameter table: the ledger
// defaults, with any keys present in the seed file overriding them.
func (c *Config) GovernanceParameters() (trust.Parameters, error) {
	params := trust.DefaultParameters()
	if c.Governance.File == "" {
		return params, nil
	}

	data, err := os.ReadFile(c.Governance.File)
	if err != nil {
		return params, fmt.Errorf("read governance file: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("parse governance file %s: %w", c.Governance.File, err)
	}
	return params, nil
}
