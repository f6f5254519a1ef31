package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37780", cfg.ListenAddr())
	assert.Equal(t, 100.0, cfg.Ledger.InitialTrustScore)
	assert.Equal(t, time.Hour, cfg.Ledger.SweepInterval)
	assert.Empty(t, cfg.Database.Path)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRUSTLEDGER_PORT", "9090")
	t.Setenv("TRUSTLEDGER_DB", "/tmp/audit.db")
	t.Setenv("TRUSTLEDGER_MAX_INVITE_DEPTH", "4")
	t.Setenv("TRUSTLEDGER_SWEEP_INTERVAL", "15m")
	t.Setenv("TRUSTLEDGER_LOG_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr())
	assert.Equal(t, "/tmp/audit.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Ledger.MaxInviteDepth)
	assert.Equal(t, 15*time.Minute, cfg.Ledger.SweepInterval)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "info", cfg.Log.Level, "unset vars keep defaults")
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("TRUSTLEDGER_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestGovernanceParametersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxDailyBurn: 25\npropagationEnabled: false\n"), 0o644))

	cfg := Default()
	cfg.Governance.File = path
	params, err := cfg.GovernanceParameters()
	require.NoError(t, err)
	assert.Equal(t, 25.0, params.MaxDailyBurn)
	assert.False(t, params.PropagationEnabled)
	assert.Equal(t, 10.0, params.MinimumThreshold, "keys absent from the file keep defaults")
}

func TestGovernanceParametersMissingFile(t *testing.T) {
	cfg := Default()
	cfg.Governance.File = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := cfg.GovernanceParameters()
	assert.Error(t, err)
}
