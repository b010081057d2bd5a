package crack

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuggy/bytebuggy/internal/handshake/handshaketest"
)

const bssid = "AA:BB:CC:DD:EE:01"

func writeHandshake(t *testing.T, beacon bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hs.cap")
	handshaketest.WritePcap(t, path, handshaketest.Handshake{
		AP:         bssid,
		Station:    "00:11:22:33:44:55",
		ESSID:      "Test Router",
		Passphrase: "correct horse",
		Messages:   []int{1, 2, 3, 4},
		Beacon:     beacon,
	})
	return path
}

func writeWordlist(t *testing.T, words ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0o644))
	return path
}

func TestWordlistCrackHandshake(t *testing.T) {
	capFile := writeHandshake(t, true)
	words := writeWordlist(t, "short", "password1", "letmein!!", "correct horse", "qwertyuiop")

	w := NewWordlist()
	w.Workers = 2
	key, err := w.CrackHandshake(context.Background(), capFile, bssid, "", words)
	require.NoError(t, err)
	assert.Equal(t, "correct horse", key)
	assert.LessOrEqual(t, w.Tried(), int64(4), "short is skipped")
}

func TestWordlistExhausted(t *testing.T) {
	capFile := writeHandshake(t, true)
	words := writeWordlist(t, "password1", "letmein!!", strings.Repeat("x", 64))

	var progress []int64
	w := NewWordlist()
	w.Workers = 1
	w.ProgressEvery = 1
	w.OnProgress = func(n int64) { progress = append(progress, n) }

	_, err := w.CrackHandshake(context.Background(), capFile, bssid, "Test Router", words)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(2), w.Tried())
	assert.Equal(t, []int64{1, 2}, progress)
}

func TestWordlistNeedsESSID(t *testing.T) {
	capFile := writeHandshake(t, false)
	words := writeWordlist(t, "correct horse")

	_, err := NewWordlist().CrackHandshake(context.Background(), capFile, bssid, "", words)
	assert.ErrorContains(t, err, "ESSID unknown")

	key, err := NewWordlist().CrackHandshake(context.Background(), capFile, bssid, "Test Router", words)
	require.NoError(t, err)
	assert.Equal(t, "correct horse", key)
}

func TestWordlistNoHandshake(t *testing.T) {
	capFile := writeHandshake(t, true)
	words := writeWordlist(t, "correct horse")

	_, err := NewWordlist().CrackHandshake(context.Background(), capFile, "AA:BB:CC:DD:EE:99", "", words)
	assert.ErrorIs(t, err, ErrNoHandshake)
}

func TestWordlistCanceled(t *testing.T) {
	capFile := writeHandshake(t, true)
	words := writeWordlist(t, "password1", "correct horse")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWordlist().CrackHandshake(ctx, capFile, bssid, "", words)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWordlistMissingFile(t *testing.T) {
	capFile := writeHandshake(t, true)
	_, err := NewWordlist().CrackHandshake(context.Background(), capFile, bssid, "", filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorContains(t, err, "open wordlist")
}
