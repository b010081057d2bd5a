//go:build linux

package iface

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytebuggy/bytebuggy/internal/tools"
)

// Processes known to interfere with monitor mode and packet injection.
var interferingProcesses = []string{
	"NetworkManager",
	"wpa_supplicant",
	"dhclient",
	"dhcpcd",
	"avahi-daemon",
}

var sysClassNet = "/sys/class/net"

func detectInterfaces() ([]WirelessInterface, error) {
	var ifaces []WirelessInterface

	entries, err := os.ReadDir(sysClassNet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sysClassNet, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		wirelessPath := filepath.Join(sysClassNet, name, "wireless")
		if _, err := os.Stat(wirelessPath); os.IsNotExist(err) {
			phyPath := filepath.Join(sysClassNet, name, "phy80211")
			if _, err := os.Stat(phyPath); os.IsNotExist(err) {
				continue
			}
		}

		iface := WirelessInterface{Name: name}

		macBytes, err := os.ReadFile(filepath.Join(sysClassNet, name, "address"))
		if err == nil {
			mac, err := net.ParseMAC(strings.TrimSpace(string(macBytes)))
			if err == nil {
				iface.MAC = mac
			}
		}

		phyLink, err := os.Readlink(filepath.Join(sysClassNet, name, "phy80211"))
		if err == nil {
			iface.PHY = filepath.Base(phyLink)
		}

		driverLink, err := os.Readlink(filepath.Join(sysClassNet, name, "device", "driver"))
		if err == nil {
			iface.Driver = filepath.Base(driverLink)
		}

		// ARPHRD_IEEE80211_RADIOTAP
		typeBytes, err := os.ReadFile(filepath.Join(sysClassNet, name, "type"))
		if err == nil && strings.TrimSpace(string(typeBytes)) == "803" {
			iface.IsMonitor = true
		}

		ifaces = append(ifaces, iface)
	}

	return ifaces, nil
}

// platformSwitcher uses iw and ip when airmon-ng is not installed.
type platformSwitcher struct{}

func (platformSwitcher) Enable(ctx context.Context, iface string) (string, error) {
	for _, proc := range interferingProcesses {
		_ = tools.RunSilent(ctx, "systemctl", "stop", proc)
		_ = tools.RunSilent(ctx, "pkill", proc)
	}

	if _, err := tools.RunCapture(ctx, "ip", "link", "set", iface, "down"); err != nil {
		return "", fmt.Errorf("bring interface down: %w", err)
	}

	if _, err := tools.RunCapture(ctx, "iw", "dev", iface, "set", "type", "monitor"); err != nil {
		if _, err2 := tools.RunCapture(ctx, "iwconfig", iface, "mode", "monitor"); err2 != nil {
			_, _ = tools.RunCapture(ctx, "ip", "link", "set", iface, "up")
			return "", fmt.Errorf("set monitor mode: %w (iwconfig fallback: %w)", err, err2)
		}
	}

	if _, err := tools.RunCapture(ctx, "ip", "link", "set", iface, "up"); err != nil {
		return "", fmt.Errorf("bring interface up: %w", err)
	}

	return iface, nil
}

func (platformSwitcher) Disable(ctx context.Context, iface string) error {
	_, _ = tools.RunCapture(ctx, "ip", "link", "set", iface, "down")
	_, err := tools.RunCapture(ctx, "iw", "dev", iface, "set", "type", "managed")
	_, _ = tools.RunCapture(ctx, "ip", "link", "set", iface, "up")
	_ = tools.RunSilent(ctx, "systemctl", "start", "NetworkManager")
	return err
}
