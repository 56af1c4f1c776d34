package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "paper", c.TradingMode)
	assert.Equal(t, "ws://localhost:8090/stream", c.Engine.StreamURL)
	assert.Equal(t, 500, c.Reconnect.BaseDelayMs)
	assert.Equal(t, 30000, c.Reconnect.MaxDelayMs)
	assert.Equal(t, 10, c.Reconnect.MaxAttempts)
	assert.Equal(t, 60, c.Commands.SweepAfterSecs)
	assert.Equal(t, 1200, c.Gate.SignalTTLMs)
	assert.Equal(t, 800, c.Gate.ArmedUnderMs)
	assert.Equal(t, 800, c.Gate.GreenAboveMs)
	assert.Equal(t, 400, c.Gate.YellowAboveMs)
	assert.False(t, c.Gate.UseEnginePolicy)
	assert.Equal(t, "data/slots.json", c.Slots.StatePath)
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
trading_mode: live
engine:
  stream_url: ws://desk-engine:9000/stream
reconnect:
  base_delay_ms: 250
gate:
  signal_ttl_ms: 2000
  use_engine_policy: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "live", c.TradingMode)
	assert.Equal(t, "ws://desk-engine:9000/stream", c.Engine.StreamURL)
	assert.Equal(t, "http://localhost:8090/commands", c.Engine.CommandURL, "unset fields keep defaults")
	assert.Equal(t, 250, c.Reconnect.BaseDelayMs)
	assert.Equal(t, 30000, c.Reconnect.MaxDelayMs)
	assert.Equal(t, 2000, c.Gate.SignalTTLMs)
	assert.Equal(t, 800, c.Gate.ArmedUnderMs)
	assert.True(t, c.Gate.UseEnginePolicy)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading_mode: [oops"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
