package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// Tshark wraps tshark for handshake validation and WPS detection.
type Tshark struct {
	tool *ExternalTool
}

func NewTshark() *Tshark {
	return &Tshark{
		tool: &ExternalTool{Name: "tshark", Required: false},
	}
}

func (t *Tshark) Available() bool {
	return t.tool.Exists()
}

// HasHandshake checks if a cap file holds a usable part of the 4-way handshake
// for bssid: message 2 together with message 1 or 3.
func (t *Tshark) HasHandshake(ctx context.Context, capFile, bssid string) (bool, error) {
	out, err := RunCapture(ctx, "tshark",
		"-r", capFile,
		"-n",
		"-Y", "eapol && wlan.bssid == "+strings.ToLower(bssid),
		"-T", "fields",
		"-e", "wlan_rsna_eapol.keydes.msgnr",
	)
	if err != nil {
		return false, err
	}
	return completeHandshake(parseEAPOLMessages(out)), nil
}

// CountEAPOLFrames returns the number of EAPOL frames for bssid in a capture.
func (t *Tshark) CountEAPOLFrames(ctx context.Context, capFile, bssid string) (int, error) {
	out, err := RunCapture(ctx, "tshark",
		"-r", capFile,
		"-n",
		"-Y", "eapol && wlan.bssid == "+strings.ToLower(bssid),
		"-T", "fields",
		"-e", "frame.number",
	)
	if err != nil {
		return 0, err
	}
	return len(nonEmptyLines(out)), nil
}

// WPSStates lists the WPS state advertised in the beacons of a capture, keyed
// by canonical BSSID.
func (t *Tshark) WPSStates(ctx context.Context, capFile string) (map[string]wifi.WPSState, error) {
	out, err := RunCapture(ctx, "tshark",
		"-r", capFile,
		"-n",
		"-Y", "wps.wifi_protected_setup_state && wlan.da == ff:ff:ff:ff:ff:ff",
		"-T", "fields",
		"-E", "separator=,",
		"-e", "wlan.ta",
		"-e", "wps.ap_setup_locked",
	)
	if err != nil {
		return nil, err
	}
	return parseWPSFields(out), nil
}

func parseEAPOLMessages(out string) map[int]bool {
	seen := map[int]bool{}
	for _, line := range nonEmptyLines(out) {
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= 4 {
			seen[n] = true
		}
	}
	return seen
}

func completeHandshake(msgs map[int]bool) bool {
	return msgs[2] && (msgs[1] || msgs[3])
}

func parseWPSFields(out string) map[string]wifi.WPSState {
	states := map[string]wifi.WPSState{}
	for _, line := range nonEmptyLines(out) {
		fields := strings.Split(line, ",")
		bssid := normalizeBSSID(fields[0])
		if bssid == "" {
			continue
		}
		state := wifi.WPSUnlocked
		if len(fields) > 1 {
			switch strings.TrimSpace(fields[1]) {
			case "1", "0x01", "0x1", "True":
				state = wifi.WPSLocked
			}
		}
		// A locked beacon wins over an earlier unlocked one.
		if states[bssid] != wifi.WPSLocked {
			states[bssid] = state
		}
	}
	return states
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimRight(line, "\r"))
		}
	}
	return out
}
