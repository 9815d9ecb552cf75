package meshconfig

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig("/does/not/exist")
	require.Error(t, err)
}

func TestReadConfigDefaults(t *testing.T) {
	f, err := os.CreateTemp("", "meshconfig")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	cfg, err := ReadConfig(f.Name())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestReadConfigOverridesDefaults(t *testing.T) {
	f, err := os.CreateTemp("", "meshconfig")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	_, err = f.WriteString(`
node_id: node-1
relay:
  interval: 20s
  max_consecutive_fails: 5
scorer:
  formula: "internet * 50"
`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := ReadConfig(f.Name())
	require.NoError(t, err)
	require.Equal(t, "node-1", cfg.NodeID)
	require.Equal(t, 20*time.Second, cfg.Relay.Interval)
	require.Equal(t, 5, cfg.Relay.MaxConsecutiveFails)
	require.Equal(t, "internet * 50", cfg.Scorer.Formula)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Outbox.SeenCacheSize = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Relay.Interval = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.NodeTable.SweepInterval = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Metrics.ListenAddress = ""
	require.Error(t, cfg.Validate())
}
