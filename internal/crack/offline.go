package crack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/internal/telemetry"
)

// HandshakeCracker recovers a passphrase from a handshake capture.
type HandshakeCracker interface {
	CrackHandshake(ctx context.Context, capFile, bssid, essid, wordlist string) (string, error)
}

// PMKIDCracker recovers a passphrase from a hashcat 22000 hash file. An empty
// key with a nil error means the wordlist was exhausted.
type PMKIDCracker interface {
	CrackPMKID(ctx context.Context, hashFile, wordlist string) (string, error)
}

// ResultSaver persists recovered keys.
type ResultSaver interface {
	Save(r *result.CrackResult) (bool, error)
}

// Runner cracks stored results that have no key yet.
type Runner struct {
	Handshakes HandshakeCracker
	// PMKID may be nil when hashcat is not installed; PMKID results are skipped.
	PMKID PMKIDCracker
	Store ResultSaver
}

// Pending returns WPA and PMKID results without a key, one per capture file.
// A file that already has a cracked record is left out.
func Pending(results []*result.CrackResult) []*result.CrackResult {
	cracked := make(map[string]bool)
	for _, r := range results {
		if r.Kind != result.KindWEP && r.Cracked() {
			cracked[r.File] = true
		}
	}

	seen := make(map[string]bool)
	var pending []*result.CrackResult
	for _, r := range results {
		if r.Kind == result.KindWEP || r.Cracked() || cracked[r.File] || seen[r.File] {
			continue
		}
		seen[r.File] = true
		pending = append(pending, r)
	}
	return pending
}

// Run tries wordlist against every pending result and saves each recovered
// key as a new record. It returns the new records.
func (r *Runner) Run(ctx context.Context, results []*result.CrackResult, wordlist string) ([]*result.CrackResult, error) {
	if _, err := os.Stat(wordlist); err != nil {
		return nil, fmt.Errorf("wordlist: %w", err)
	}

	var recovered []*result.CrackResult
	for _, res := range Pending(results) {
		if err := ctx.Err(); err != nil {
			return recovered, err
		}

		key, err := r.crackOne(ctx, res, wordlist)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return recovered, err
		case err != nil:
			slog.Warn("offline crack failed", "bssid", res.BSSID, "kind", res.Kind, "file", res.File, "err", err)
			continue
		case key == "":
			slog.Info("key not in wordlist", "bssid", res.BSSID, "essid", res.ESSID)
			continue
		}

		var out *result.CrackResult
		if res.Kind == result.KindPMKID {
			out = result.NewPMKID(res.BSSID, res.ESSID, res.File, key)
		} else {
			out = result.NewWPA(res.BSSID, res.ESSID, res.File, key)
		}
		recovered = append(recovered, out)

		if r.Store == nil {
			continue
		}
		saved, err := r.Store.Save(out)
		if err != nil {
			slog.Warn("could not save result", "bssid", out.BSSID, "err", err)
			continue
		}
		if saved {
			telemetry.ResultsSaved.WithLabelValues(string(out.Kind)).Inc()
		}
	}
	return recovered, nil
}

func (r *Runner) crackOne(ctx context.Context, res *result.CrackResult, wordlist string) (string, error) {
	switch res.Kind {
	case result.KindWPA:
		key, err := r.Handshakes.CrackHandshake(ctx, res.File, res.BSSID, res.ESSID, wordlist)
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return key, err
	case result.KindPMKID:
		if r.PMKID == nil {
			return "", errors.New("hashcat not available")
		}
		return r.PMKID.CrackPMKID(ctx, res.File, wordlist)
	case result.KindWEP:
	}
	return "", fmt.Errorf("cannot crack %s results offline", res.Kind)
}
