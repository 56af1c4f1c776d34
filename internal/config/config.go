package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Engine struct {
	StreamURL   string `yaml:"stream_url"`
	CommandURL  string `yaml:"command_url"`
	SnapshotURL string `yaml:"snapshot_url"`
}

type Reconnect struct {
	BaseDelayMs int `yaml:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

type Commands struct {
	TimeoutMs      int     `yaml:"timeout_ms"`
	SweepAfterSecs int     `yaml:"sweep_after_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	RateBurst      int     `yaml:"rate_burst"`
}

type Gate struct {
	SignalTTLMs     int  `yaml:"signal_ttl_ms"`
	ArmedUnderMs    int  `yaml:"armed_under_ms"`
	GreenAboveMs    int  `yaml:"green_above_ms"`
	YellowAboveMs   int  `yaml:"yellow_above_ms"`
	UseEnginePolicy bool `yaml:"use_engine_policy"`
}

type Slots struct {
	StatePath string `yaml:"state_path"`
}

type Root struct {
	TradingMode string    `yaml:"trading_mode"` // paper | live
	Engine      Engine    `yaml:"engine"`
	Reconnect   Reconnect `yaml:"reconnect"`
	Commands    Commands  `yaml:"commands"`
	Gate        Gate      `yaml:"gate"`
	Slots       Slots     `yaml:"slots"`
	MetricsAddr string    `yaml:"metrics_addr"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	c.applyDefaults()
	return c, nil
}

// Default returns the config used when no file is given.
func Default() Root {
	var c Root
	c.applyDefaults()
	return c
}

func (c *Root) applyDefaults() {
	if c.TradingMode == "" {
		c.TradingMode = "paper"
	}
	if c.Engine.StreamURL == "" {
		c.Engine.StreamURL = "ws://localhost:8090/stream"
	}
	if c.Engine.CommandURL == "" {
		c.Engine.CommandURL = "http://localhost:8090/commands"
	}
	if c.Engine.SnapshotURL == "" {
		c.Engine.SnapshotURL = "http://localhost:8090/snapshot"
	}
	if c.Reconnect.BaseDelayMs == 0 {
		c.Reconnect.BaseDelayMs = 500
	}
	if c.Reconnect.MaxDelayMs == 0 {
		c.Reconnect.MaxDelayMs = 30000
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 10
	}
	if c.Commands.TimeoutMs == 0 {
		c.Commands.TimeoutMs = 10000
	}
	if c.Commands.SweepAfterSecs == 0 {
		c.Commands.SweepAfterSecs = 60
	}
	if c.Commands.RatePerSecond == 0 {
		c.Commands.RatePerSecond = 5
	}
	if c.Commands.RateBurst == 0 {
		c.Commands.RateBurst = 10
	}
	if c.Gate.SignalTTLMs == 0 {
		c.Gate.SignalTTLMs = 1200
	}
	if c.Gate.ArmedUnderMs == 0 {
		c.Gate.ArmedUnderMs = 800
	}
	if c.Gate.GreenAboveMs == 0 {
		c.Gate.GreenAboveMs = 800
	}
	if c.Gate.YellowAboveMs == 0 {
		c.Gate.YellowAboveMs = 400
	}
	if c.Slots.StatePath == "" {
		c.Slots.StatePath = "data/slots.json"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = "localhost:8099"
	}
}
