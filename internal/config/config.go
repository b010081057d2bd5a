package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

type Config struct {
	Interface   string
	Wordlist    string
	MetricsAddr string

	Scan   ScanConfig
	Attack AttackConfig
	Output OutputConfig
}

type ScanConfig struct {
	// Pillage is the scan-time budget. When non-zero every target found in that
	// time is attacked without a selection prompt.
	Pillage time.Duration
	Channel int
	BSSID   string
	ESSID   string
	WPSOnly bool

	// ClientsOnly hides targets without associated clients from the menu.
	ClientsOnly bool

	PollInterval time.Duration
}

type AttackConfig struct {
	WEP WEPConfig
	WPA WPAConfig

	WEPOnly bool
	WPAOnly bool
}

type WEPConfig struct {
	Techniques      []wifi.WEPTechnique
	PPS             int
	CrackAtIVs      int
	RestartStaleIVs time.Duration
	RestartRecovery time.Duration
	FakeAuthTimeout time.Duration
	RequireFakeAuth bool
	KeepIVs         bool
	// Timeout bounds a single technique; zero disables it.
	Timeout time.Duration
}

type WPAConfig struct {
	HandshakeTimeout    time.Duration
	DeauthInterval      time.Duration
	DeauthCount         int
	NoDeauth            bool
	IgnoreOldHandshakes bool
}

type OutputConfig struct {
	ResultsFile  string
	HandshakeDir string
	SessionFile  string
	Verbose      int
}

func DefaultConfig() *Config {
	return &Config{
		Wordlist: getEnv("BYTEBUGGY_WORDLIST", "/usr/share/wordlists/rockyou.txt"),
		Scan: ScanConfig{
			PollInterval: time.Second,
		},
		Attack: AttackConfig{
			WEP: WEPConfig{
				Techniques:      wifi.DefaultWEPTechniques(),
				PPS:             600,
				CrackAtIVs:      10000,
				RestartStaleIVs: 11 * time.Second,
				RestartRecovery: 30 * time.Second,
				FakeAuthTimeout: 5 * time.Second,
				Timeout:         600 * time.Second,
			},
			WPA: WPAConfig{
				HandshakeTimeout: 500 * time.Second,
				DeauthInterval:   15 * time.Second,
				DeauthCount:      5,
			},
		},
		Output: OutputConfig{
			ResultsFile:  getEnv("BYTEBUGGY_RESULTS", "./cracked.json"),
			HandshakeDir: getEnv("BYTEBUGGY_HS_DIR", "./hs"),
			SessionFile:  "./.bytebuggy-session.json",
			Verbose:      1,
		},
	}
}

// Validate rejects settings the attack loops cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Attack.WEPOnly && c.Attack.WPAOnly {
		errs = append(errs, errors.New("--wep-only and --wpa-only are mutually exclusive"))
	}
	if c.Scan.Pillage < 0 {
		errs = append(errs, fmt.Errorf("pillage budget must not be negative (got %s)", c.Scan.Pillage))
	}
	if c.Scan.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if len(c.Attack.WEP.Techniques) == 0 {
		errs = append(errs, errors.New("at least one WEP technique is required"))
	}
	if c.Attack.WEP.CrackAtIVs < 0 {
		errs = append(errs, fmt.Errorf("crack-at-ivs must not be negative (got %d)", c.Attack.WEP.CrackAtIVs))
	}
	if c.Attack.WEP.PPS <= 0 {
		errs = append(errs, fmt.Errorf("packets per second must be positive (got %d)", c.Attack.WEP.PPS))
	}
	if c.Attack.WPA.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("handshake timeout must be positive"))
	}
	if c.Attack.WPA.DeauthCount < 1 {
		errs = append(errs, fmt.Errorf("deauth count must be at least 1 (got %d)", c.Attack.WPA.DeauthCount))
	}
	if c.Scan.Channel < 0 || c.Scan.Channel > 196 {
		errs = append(errs, fmt.Errorf("invalid channel %d", c.Scan.Channel))
	}
	if c.Output.ResultsFile == "" {
		errs = append(errs, errors.New("results file path is empty"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
