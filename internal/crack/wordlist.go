// Package crack recovers WPA passphrases offline from stored handshakes and
// PMKID hashes.
package crack

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/bytebuggy/bytebuggy/internal/handshake"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// ErrNotFound means every candidate in the wordlist was tried.
var ErrNotFound = errors.New("key not found (wordlist exhausted)")

// ErrNoHandshake means the capture holds nothing crackable for the AP.
var ErrNoHandshake = errors.New("no complete handshake")

// WPA passphrases are 8 to 63 characters.
const (
	minPassphrase = 8
	maxPassphrase = 63
)

// Wordlist runs dictionary attacks against captured handshakes in-process.
type Wordlist struct {
	// Workers defaults to the number of CPUs.
	Workers int
	// OnProgress, when set, is called from the feeding goroutine every
	// ProgressEvery candidates.
	OnProgress    func(tried int64)
	ProgressEvery int64

	tried atomic.Int64
}

func NewWordlist() *Wordlist {
	return &Wordlist{
		Workers:       runtime.NumCPU(),
		ProgressEvery: 10000,
	}
}

// Tried is the number of candidates tested by the last or current run.
func (w *Wordlist) Tried() int64 {
	return w.tried.Load()
}

// CrackHandshake reads the handshake for bssid from capFile and tests every
// candidate in wordlistPath. essid may be empty when the capture carries a
// beacon.
func (w *Wordlist) CrackHandshake(ctx context.Context, capFile, bssid, essid, wordlistPath string) (string, error) {
	c, err := handshake.ScanCapFile(capFile, bssid)
	if err != nil {
		return "", fmt.Errorf("read capture: %w", err)
	}
	complete := c.Complete()
	if len(complete) == 0 {
		return "", fmt.Errorf("%s: %w", capFile, ErrNoHandshake)
	}
	if essid == "" {
		essid = c.ESSID
	}
	if essid == "" {
		return "", fmt.Errorf("%s: ESSID unknown", capFile)
	}

	km, err := complete[0].KeyMaterial()
	if err != nil {
		return "", err
	}
	slog.Debug("cracking handshake", "bssid", bssid, "station", complete[0].Station.String(), "essid", essid)
	return w.Crack(ctx, km, essid, wordlistPath)
}

// Crack tests each wordlist line as a passphrase for km.
func (w *Wordlist) Crack(ctx context.Context, km *wifi.KeyMaterial, essid, wordlistPath string) (string, error) {
	f, err := os.Open(wordlistPath)
	if err != nil {
		return "", fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	workers := w.Workers
	if workers < 1 {
		workers = 1
	}
	w.tried.Store(0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	words := make(chan string, workers*4)
	var found atomic.Value
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for word := range words {
				if ctx.Err() != nil {
					continue
				}
				if km.CheckPassphrase(word, essid) {
					found.Store(word)
					cancel()
					return
				}
			}
		}()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

feed:
	for scanner.Scan() {
		word := scanner.Text()
		if len(word) < minPassphrase || len(word) > maxPassphrase {
			continue
		}
		select {
		case words <- word:
		case <-ctx.Done():
			break feed
		}
		n := w.tried.Add(1)
		if w.OnProgress != nil && w.ProgressEvery > 0 && n%w.ProgressEvery == 0 {
			w.OnProgress(n)
		}
	}
	close(words)
	wg.Wait()

	if key, ok := found.Load().(string); ok {
		return key, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read wordlist: %w", err)
	}
	return "", ErrNotFound
}
