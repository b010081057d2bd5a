package attack

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bytebuggy/bytebuggy/internal/clock"
	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/scan"
	"github.com/bytebuggy/bytebuggy/internal/session"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

const (
	attackerMAC = "02:00:00:00:00:99"
	apMAC       = "AA:BB:CC:DD:EE:01"
	clientMAC   = "00:11:22:33:44:55"
)

func hw(t testing.TB, s string) net.HardwareAddr {
	t.Helper()
	m, err := net.ParseMAC(s)
	require.NoError(t, err)
	return m
}

func wepTarget(t testing.TB) *wifi.Target {
	return &wifi.Target{
		BSSID:      hw(t, apMAC),
		ESSID:      "Test Router",
		ESSIDKnown: true,
		Channel:    6,
		Encryption: wifi.EncWEP,
		Power:      -58,
		IVs:        4000,
	}
}

func wpaTarget(t testing.TB) *wifi.Target {
	tg := wepTarget(t)
	tg.ESSID = "My Net!"
	tg.Encryption = wifi.EncWPA2
	tg.IVs = 0
	return tg
}

// ivSnap is a capture reading of the AP with the given IV count.
func ivSnap(t testing.TB, ivs int, clients ...string) scan.Snapshot {
	tg := wepTarget(t)
	tg.IVs = ivs
	snap := scan.Snapshot{Targets: []*wifi.Target{tg}}
	for _, c := range clients {
		snap.Clients = append(snap.Clients, &wifi.Client{Station: hw(t, c), BSSID: hw(t, apMAC)})
	}
	return snap
}

type fakeCapture struct {
	snaps     []scan.Snapshot
	artifacts map[string][]string
	dead      bool

	calls    int
	requests []scan.CaptureRequest
	stops    int
}

func (f *fakeCapture) Start(_ context.Context, req scan.CaptureRequest) (scan.CaptureHandle, error) {
	f.requests = append(f.requests, req)
	return f, nil
}

func (f *fakeCapture) Snapshot() (scan.Snapshot, error) {
	f.calls++
	if len(f.snaps) == 0 {
		return scan.Snapshot{}, errors.New("no csv yet")
	}
	return f.snaps[min(f.calls-1, len(f.snaps)-1)], nil
}

func (f *fakeCapture) Artifacts(suffix string) ([]string, error) {
	return f.artifacts[suffix], nil
}

func (f *fakeCapture) Alive() bool { return !f.dead }

func (f *fakeCapture) Stop() error {
	f.stops++
	return nil
}

type fakeProc struct {
	// live is how many Alive checks succeed; negative means forever.
	live    int
	checks  int
	stopped bool
	status  string
}

func (p *fakeProc) Status() string { return p.status }

func (p *fakeProc) Alive() bool {
	if p.stopped {
		return false
	}
	p.checks++
	return p.live < 0 || p.checks <= p.live
}

func (p *fakeProc) Stop() error {
	p.stopped = true
	return nil
}

type fakeInjection struct {
	fakeAuthOK bool
	// live sets how long each technique's process stays up; unset means forever.
	live     map[wifi.WEPTechnique]int
	xor      string
	forgeErr error

	starts  []InjectionRequest
	procs   []*fakeProc
	deauths []string
	forged  []string
}

func (f *fakeInjection) FakeAuth(context.Context, *wifi.Target, time.Duration) bool {
	return f.fakeAuthOK
}

func (f *fakeInjection) Start(_ context.Context, req InjectionRequest) (InjectionHandle, error) {
	f.starts = append(f.starts, req)
	live, ok := f.live[req.Technique]
	if !ok {
		live = -1
	}
	p := &fakeProc{live: live, status: "sent 1200 packets"}
	f.procs = append(f.procs, p)
	return p, nil
}

func (f *fakeInjection) Deauth(_ context.Context, _, client, _ string) error {
	if client == "" {
		client = "broadcast"
	}
	f.deauths = append(f.deauths, client)
	return nil
}

func (f *fakeInjection) ForgePacket(_ context.Context, xorFile, bssid, client string) (string, error) {
	f.forged = append(f.forged, xorFile+"|"+bssid+"|"+client)
	if f.forgeErr != nil {
		return "", f.forgeErr
	}
	return "forged-arp.cap", nil
}

func (f *fakeInjection) FindXor() (string, bool) {
	return f.xor, f.xor != ""
}

func (f *fakeInjection) techniques() []wifi.WEPTechnique {
	out := make([]wifi.WEPTechnique, 0, len(f.starts))
	for _, s := range f.starts {
		out = append(out, s.Technique)
	}
	return out
}

func (f *fakeInjection) allStopped() bool {
	for _, p := range f.procs {
		if !p.stopped {
			return false
		}
	}
	return true
}

type fakeRecoveryProc struct {
	crackAfter int
	polls      int
	stopped    bool
}

func (p *fakeRecoveryProc) Alive() bool { return !p.stopped }

func (p *fakeRecoveryProc) Cracked() bool {
	p.polls++
	return p.crackAfter > 0 && p.polls >= p.crackAfter
}

func (p *fakeRecoveryProc) Key() (string, string) {
	return "31:32:33:34:35", "12345"
}

func (p *fakeRecoveryProc) RunningTime() time.Duration { return time.Duration(p.polls) * time.Second }

func (p *fakeRecoveryProc) Stop() error {
	p.stopped = true
	return nil
}

type fakeRecovery struct {
	crackAfter int
	starts     [][]string
	procs      []*fakeRecoveryProc
}

func (f *fakeRecovery) Start(_ context.Context, files []string) (RecoveryHandle, error) {
	f.starts = append(f.starts, files)
	p := &fakeRecoveryProc{crackAfter: f.crackAfter}
	f.procs = append(f.procs, p)
	return p, nil
}

type fakeValidator struct {
	// okFrom is the first call that reports a handshake; zero never does.
	okFrom int
	calls  int
	files  []string
}

func (v *fakeValidator) Validate(_ context.Context, capFile, _, _ string) (bool, error) {
	v.calls++
	v.files = append(v.files, capFile)
	return v.okFrom > 0 && v.calls >= v.okFrom, nil
}

type scriptedPrompter struct {
	answers  []string
	messages []string
}

func (p *scriptedPrompter) Ask(_ context.Context, msg string) (string, error) {
	p.messages = append(p.messages, msg)
	if len(p.answers) == 0 {
		return "", errors.New("prompt interrupted")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

type harness struct {
	cfg       *config.Config
	clock     *clock.Fake
	sess      *session.Session
	capture   *fakeCapture
	injection *fakeInjection
	recovery  *fakeRecovery
	validator *fakeValidator
	prompter  *scriptedPrompter
	status    chan StatusUpdate
}

func newHarness(t *testing.T) *harness {
	cfg := config.DefaultConfig()
	cfg.Output.HandshakeDir = t.TempDir()
	cfg.Output.ResultsFile = t.TempDir() + "/cracked.json"

	return &harness{
		cfg:       cfg,
		clock:     clock.NewFake(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		sess:      session.New("wlan0mon", attackerMAC, ""),
		capture:   &fakeCapture{},
		injection: &fakeInjection{fakeAuthOK: true},
		recovery:  &fakeRecovery{},
		validator: &fakeValidator{},
		prompter:  &scriptedPrompter{},
		status:    make(chan StatusUpdate, 1024),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Capture:   h.capture,
		Injection: h.injection,
		Recovery:  h.recovery,
		Validator: h.validator,
		Prompter:  h.prompter,
		Clock:     h.clock,
		Session:   h.sess,
		Status:    h.status,
	}
}

// interruptAt delivers an operator interrupt after the given sleeps.
func (h *harness) interruptAt(sleeps ...int) {
	h.clock.OnSleep = func(n int) {
		for _, s := range sleeps {
			if n == s {
				h.sess.Interrupt()
			}
		}
	}
}
