package crack

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuggy/bytebuggy/internal/result"
)

type fakeHandshakes struct {
	keys  map[string]string
	err   error
	calls []string
}

func (f *fakeHandshakes) CrackHandshake(_ context.Context, capFile, _, _, _ string) (string, error) {
	f.calls = append(f.calls, capFile)
	if f.err != nil {
		return "", f.err
	}
	if k, ok := f.keys[capFile]; ok {
		return k, nil
	}
	return "", ErrNotFound
}

type fakePMKID struct {
	key   string
	calls int
}

func (f *fakePMKID) CrackPMKID(context.Context, string, string) (string, error) {
	f.calls++
	return f.key, nil
}

func TestPending(t *testing.T) {
	results := []*result.CrackResult{
		result.NewWEP("AA:BB:CC:DD:EE:01", "wep", "31:32:33:34:35", "12345"),
		result.NewWPA("AA:BB:CC:DD:EE:02", "open-hs", "hs/a.cap", ""),
		result.NewWPA("AA:BB:CC:DD:EE:02", "open-hs", "hs/a.cap", ""),
		result.NewWPA("AA:BB:CC:DD:EE:03", "done", "hs/b.cap", ""),
		result.NewWPA("AA:BB:CC:DD:EE:03", "done", "hs/b.cap", "hunter22"),
		result.NewPMKID("AA:BB:CC:DD:EE:04", "pmkid", "hs/c.22000", ""),
	}

	pending := Pending(results)
	require.Len(t, pending, 2)
	assert.Equal(t, "hs/a.cap", pending[0].File)
	assert.Equal(t, result.KindPMKID, pending[1].Kind)
}

func TestRunnerSavesRecoveredKeys(t *testing.T) {
	dir := t.TempDir()
	store := result.NewStore(filepath.Join(dir, "cracked.json"))
	words := writeWordlist(t, "hunter22")

	hs := &fakeHandshakes{keys: map[string]string{"hs/a.cap": "hunter22"}}
	pmkid := &fakePMKID{key: "pmkidpass"}
	r := &Runner{Handshakes: hs, PMKID: pmkid, Store: store}

	pending := []*result.CrackResult{
		result.NewWPA("AA:BB:CC:DD:EE:02", "open-hs", "hs/a.cap", ""),
		result.NewWPA("AA:BB:CC:DD:EE:05", "strong", "hs/d.cap", ""),
		result.NewPMKID("AA:BB:CC:DD:EE:04", "pmkid", "hs/c.22000", ""),
	}
	recovered, err := r.Run(context.Background(), pending, words)
	require.NoError(t, err)
	require.Len(t, recovered, 2)
	assert.Equal(t, "hunter22", recovered[0].Key)
	assert.Equal(t, result.KindWPA, recovered[0].Kind)
	assert.Equal(t, "pmkidpass", recovered[1].Key)
	assert.Equal(t, result.KindPMKID, recovered[1].Kind)
	assert.Equal(t, []string{"hs/a.cap", "hs/d.cap"}, hs.calls)
	assert.Equal(t, 1, pmkid.calls)

	stored, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestRunnerSkipsPMKIDWithoutHashcat(t *testing.T) {
	words := writeWordlist(t, "hunter22")
	r := &Runner{Handshakes: &fakeHandshakes{}}

	recovered, err := r.Run(context.Background(), []*result.CrackResult{
		result.NewPMKID("AA:BB:CC:DD:EE:04", "pmkid", "hs/c.22000", ""),
	}, words)
	require.NoError(t, err)
	assert.Empty(t, recovered)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	words := writeWordlist(t, "hunter22")
	hs := &fakeHandshakes{err: context.Canceled}
	r := &Runner{Handshakes: hs}

	_, err := r.Run(context.Background(), []*result.CrackResult{
		result.NewWPA("AA:BB:CC:DD:EE:02", "a", "hs/a.cap", ""),
		result.NewWPA("AA:BB:CC:DD:EE:03", "b", "hs/b.cap", ""),
	}, words)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, hs.calls, 1)
}

func TestRunnerContinuesAfterFailure(t *testing.T) {
	words := writeWordlist(t, "hunter22")
	hs := &fakeHandshakes{err: errors.New("corrupt capture")}
	r := &Runner{Handshakes: hs}

	recovered, err := r.Run(context.Background(), []*result.CrackResult{
		result.NewWPA("AA:BB:CC:DD:EE:02", "a", "hs/a.cap", ""),
		result.NewWPA("AA:BB:CC:DD:EE:03", "b", "hs/b.cap", ""),
	}, words)
	require.NoError(t, err)
	assert.Empty(t, recovered)
	assert.Len(t, hs.calls, 2)
}

func TestRunnerMissingWordlist(t *testing.T) {
	r := &Runner{Handshakes: &fakeHandshakes{}}
	_, err := r.Run(context.Background(), nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRecoveredTimestamps(t *testing.T) {
	words := writeWordlist(t, "hunter22")
	r := &Runner{Handshakes: &fakeHandshakes{keys: map[string]string{"hs/a.cap": "hunter22"}}}

	before := time.Now().Add(-time.Second)
	recovered, err := r.Run(context.Background(), []*result.CrackResult{
		result.NewWPA("AA:BB:CC:DD:EE:02", "a", "hs/a.cap", ""),
	}, words)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.True(t, recovered[0].Timestamp.After(before))
}
