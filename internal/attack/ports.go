package attack

import (
	"context"
	"time"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// InjectionRequest describes one injection process. ClientMAC is the source
// address to inject as; empty means none is fixed. ReplayFile is only used by
// TechForgedReplay.
type InjectionRequest struct {
	Target     *wifi.Target
	Technique  wifi.WEPTechnique
	ClientMAC  string
	ReplayFile string
}

// InjectionHandle is a running injection process.
type InjectionHandle interface {
	// Status is the latest progress line the tool printed, or "".
	Status() string
	Alive() bool
	Stop() error
}

// Deauther forces clients off an access point. An empty clientMAC deauths broadcast.
type Deauther interface {
	Deauth(ctx context.Context, bssid, clientMAC, essid string) error
}

type InjectionController interface {
	Deauther

	// FakeAuth tries to associate with the target within timeout.
	FakeAuth(ctx context.Context, target *wifi.Target, timeout time.Duration) bool
	Start(ctx context.Context, req InjectionRequest) (InjectionHandle, error)
	// ForgePacket builds a replayable ARP request from a keystream file and
	// returns the path of the forged packet.
	ForgePacket(ctx context.Context, xorFile, bssid, clientMAC string) (string, error)
	// FindXor returns the newest keystream file left by chopchop or fragment.
	FindXor() (string, bool)
}

// RecoveryHandle is a running key recovery process.
type RecoveryHandle interface {
	Alive() bool
	Cracked() bool
	// Key returns the recovered key as colon separated hex and, when every byte
	// is printable, as ASCII.
	Key() (hex, ascii string)
	RunningTime() time.Duration
	Stop() error
}

type RecoveryController interface {
	Start(ctx context.Context, files []string) (RecoveryHandle, error)
}

// HandshakeValidator reports whether capFile holds a usable handshake for the AP.
type HandshakeValidator interface {
	Validate(ctx context.Context, capFile, bssid, essid string) (bool, error)
}

// Prompter asks the operator a question and returns the answer line.
type Prompter interface {
	Ask(ctx context.Context, message string) (string, error)
}
