//go:build darwin

package iface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/bytebuggy/bytebuggy/internal/tools"
)

var macAddrRe = regexp.MustCompile(`ether\s+([0-9a-fA-F:]{17})`)

func detectInterfaces() ([]WirelessInterface, error) {
	ctx := context.Background()
	out, err := tools.RunCapture(ctx, "networksetup", "-listallhardwareports")
	if err != nil {
		return nil, fmt.Errorf("list hardware ports: %w", err)
	}

	var ifaces []WirelessInterface
	isWifi := false
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if port, ok := strings.CutPrefix(line, "Hardware Port:"); ok {
			port = strings.ToLower(port)
			isWifi = strings.Contains(port, "wi-fi") || strings.Contains(port, "airport")
		}
		if dev, ok := strings.CutPrefix(line, "Device:"); ok && isWifi {
			iface := WirelessInterface{Name: strings.TrimSpace(dev), Driver: "apple80211"}
			if ifOut, err := tools.RunCapture(ctx, "ifconfig", iface.Name); err == nil {
				if match := macAddrRe.FindStringSubmatch(ifOut); len(match) > 1 {
					iface.MAC, _ = net.ParseMAC(match[1])
				}
			}
			ifaces = append(ifaces, iface)
			isWifi = false
		}
	}

	return ifaces, nil
}

// platformSwitcher refuses: macOS has no usable monitor mode for injection.
type platformSwitcher struct{}

func (platformSwitcher) Enable(context.Context, string) (string, error) {
	return "", errors.New("monitor mode is not supported on macOS.\n" +
		"  WiFi packet injection requires Linux with a compatible wireless adapter.\n" +
		"  You can still use 'bytebuggy cracked', 'bytebuggy check', 'bytebuggy crack' and 'bytebuggy deps' on macOS")
}

func (platformSwitcher) Disable(context.Context, string) error {
	return nil
}
