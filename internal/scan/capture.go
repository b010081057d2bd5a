package scan

import (
	"context"
	"net"
	"strings"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// Snapshot is one reading of the capture tool's view of the air.
type Snapshot struct {
	Targets []*wifi.Target
	Clients []*wifi.Client
}

// Find returns the snapshot's entry for bssid, or nil.
func (s Snapshot) Find(bssid string) *wifi.Target {
	key := normalizeMAC(bssid)
	for _, t := range s.Targets {
		if t.Key() == key {
			return t
		}
	}
	return nil
}

// CaptureRequest scopes a capture. Zero Channel hops, empty BSSID captures every AP.
type CaptureRequest struct {
	Channel int
	BSSID   string
	IVsOnly bool
	Prefix  string
}

// CaptureHandle is a running capture process and its output files.
type CaptureHandle interface {
	Snapshot() (Snapshot, error)
	// Artifacts lists output files ending in suffix, sorted by name.
	Artifacts(suffix string) ([]string, error)
	Alive() bool
	Stop() error
}

type CaptureController interface {
	Start(ctx context.Context, req CaptureRequest) (CaptureHandle, error)
}

// Prompter asks the operator a question and returns the answer line.
type Prompter interface {
	Ask(ctx context.Context, message string) (string, error)
}

func normalizeMAC(s string) string {
	s = strings.TrimSpace(s)
	if hw, err := net.ParseMAC(s); err == nil {
		return wifi.CanonicalMAC(hw)
	}
	return strings.ToUpper(s)
}
