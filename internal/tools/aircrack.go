package tools

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytebuggy/bytebuggy/internal/attack"
)

var (
	keyFoundRe   = regexp.MustCompile(`KEY FOUND!\s*\[\s*(.+?)\s*\]`)
	handshakesRe = regexp.MustCompile(`(?i)([0-9A-F:]{17})\s+.*\((\d+) handshake`)
)

// Aircrack wraps aircrack-ng as an attack.RecoveryController for WEP keys.
type Aircrack struct {
	tool    *ExternalTool
	workDir string
}

func NewAircrack(workDir string) *Aircrack {
	return &Aircrack{
		tool:    &ExternalTool{Name: "aircrack-ng", Required: true},
		workDir: workDir,
	}
}

func (a *Aircrack) Available() bool {
	return a.tool.Exists()
}

// Start runs aircrack-ng in WEP mode over files, writing a found key to a key file.
func (a *Aircrack) Start(ctx context.Context, files []string) (attack.RecoveryHandle, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("aircrack: no input files")
	}
	keyFile := filepath.Join(a.workDir, "wepkey-"+strconv.FormatInt(time.Now().UnixNano(), 36)+".txt")

	args := append([]string{"-a", "1", "-l", keyFile}, files...)
	proc, err := StartProcess(ctx, "aircrack-ng", args...)
	if err != nil {
		return nil, fmt.Errorf("start aircrack: %w", err)
	}
	return &Recovery{proc: proc, keyFile: keyFile}, nil
}

// HasHandshake asks aircrack-ng whether capFile holds a handshake for bssid.
func (a *Aircrack) HasHandshake(ctx context.Context, capFile, bssid string) (bool, error) {
	// Without a wordlist aircrack-ng lists the networks and exits with an error.
	out, _ := RunCapture(ctx, "aircrack-ng", "-a", "2", "-b", bssid, capFile)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return handshakeCount(out, bssid) > 0, nil
}

// CrackWPA runs a dictionary attack against a handshake and returns the key.
func (a *Aircrack) CrackWPA(ctx context.Context, capFile, bssid, wordlist string) (string, error) {
	out, err := RunCapture(ctx, "aircrack-ng", "-a", "2", "-b", bssid, "-w", wordlist, capFile)
	if match := keyFoundRe.FindStringSubmatch(out); len(match) > 1 {
		return match[1], nil
	}
	if strings.Contains(out, "No valid WPA handshakes found") {
		return "", fmt.Errorf("no valid handshake in %s", filepath.Base(capFile))
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

func handshakeCount(out, bssid string) int {
	for _, m := range handshakesRe.FindAllStringSubmatch(out, -1) {
		if strings.EqualFold(m[1], bssid) {
			n, _ := strconv.Atoi(m[2])
			return n
		}
	}
	return 0
}

// Recovery is a running aircrack-ng WEP crack.
type Recovery struct {
	proc    *Process
	keyFile string
}

func (r *Recovery) Alive() bool {
	return r.proc.Alive()
}

func (r *Recovery) RunningTime() time.Duration {
	return r.proc.RunningTime()
}

func (r *Recovery) Stop() error {
	return r.proc.Stop()
}

// Cracked reports whether aircrack-ng has written the key file.
func (r *Recovery) Cracked() bool {
	info, err := os.Stat(r.keyFile)
	return err == nil && info.Size() > 0
}

// Key returns the recovered key as colon hex and, when printable, ASCII.
func (r *Recovery) Key() (string, string) {
	data, err := os.ReadFile(r.keyFile)
	if err != nil {
		return "", ""
	}
	return FormatWEPKey(string(data))
}

// FormatWEPKey turns aircrack-ng's bare hex key into "AB:CD:.." plus its ASCII
// rendering when every byte is printable.
func FormatWEPKey(raw string) (hexKey, asciiKey string) {
	raw = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ":", ""))
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) == 0 {
		return raw, ""
	}

	pairs := make([]string, len(b))
	printable := true
	for i, c := range b {
		pairs[i] = fmt.Sprintf("%02X", c)
		if c < 0x20 || c > 0x7e {
			printable = false
		}
	}
	hexKey = strings.Join(pairs, ":")
	if printable {
		asciiKey = string(b)
	}
	return hexKey, asciiKey
}
