package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var monIfaceRe = regexp.MustCompile(`monitor mode (?:vif )?enabled (?:for \[\w+\]\w+ )?on (?:\[\w+\])?([^)\s]+)\)`)

// Airmon wraps airmon-ng for monitor mode management.
type Airmon struct {
	tool *ExternalTool
}

func NewAirmon() *Airmon {
	return &Airmon{
		tool: &ExternalTool{Name: "airmon-ng", Required: false},
	}
}

func (a *Airmon) Available() bool {
	return a.tool.Exists()
}

// Start enables monitor mode on iface and returns the monitor interface name
// (e.g. "wlan0mon").
func (a *Airmon) Start(ctx context.Context, iface string) (string, error) {
	out, err := RunCapture(ctx, "airmon-ng", "start", iface)
	if err != nil {
		return "", fmt.Errorf("airmon-ng start: %w: %s", err, lastLine(out))
	}
	return monitorName(out, iface), nil
}

// Stop disables monitor mode.
func (a *Airmon) Stop(ctx context.Context, iface string) error {
	if out, err := RunCapture(ctx, "airmon-ng", "stop", iface); err != nil {
		return fmt.Errorf("airmon-ng stop: %w: %s", err, lastLine(out))
	}
	return nil
}

// CheckKill kills processes known to fight over the interface.
func (a *Airmon) CheckKill(ctx context.Context) error {
	_, err := RunCapture(ctx, "airmon-ng", "check", "kill")
	return err
}

// monitorName parses the monitor interface from airmon-ng output. Older
// versions print "(monitor mode enabled on mon0)", newer ones
// "(mac80211 monitor mode vif enabled for [phy0]wlan0 on [phy0]wlan0mon)".
func monitorName(out, iface string) string {
	if match := monIfaceRe.FindStringSubmatch(out); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	// Some drivers switch the interface in place.
	if strings.Contains(out, "monitor mode already enabled") {
		return iface
	}
	return iface + "mon"
}
