package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 10000, cfg.Attack.WEP.CrackAtIVs)
	assert.Equal(t, wifi.DefaultWEPTechniques(), cfg.Attack.WEP.Techniques)
	assert.Equal(t, 500*time.Second, cfg.Attack.WPA.HandshakeTimeout)
	assert.Zero(t, cfg.Scan.Pillage)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BYTEBUGGY_RESULTS", "/tmp/out.json")
	t.Setenv("BYTEBUGGY_HS_DIR", "")

	cfg := DefaultConfig()
	assert.Equal(t, "/tmp/out.json", cfg.Output.ResultsFile)
	assert.Equal(t, "./hs", cfg.Output.HandshakeDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"exclusive families", func(c *Config) { c.Attack.WEPOnly, c.Attack.WPAOnly = true, true }, "mutually exclusive"},
		{"no techniques", func(c *Config) { c.Attack.WEP.Techniques = nil }, "WEP technique"},
		{"zero pps", func(c *Config) { c.Attack.WEP.PPS = 0 }, "packets per second"},
		{"bad channel", func(c *Config) { c.Scan.Channel = 400 }, "invalid channel"},
		{"negative pillage", func(c *Config) { c.Scan.Pillage = -time.Second }, "pillage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}
