package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "cracked.json"))
}

func TestSaveIgnoresTimestampForDuplicates(t *testing.T) {
	store := newTestStore(t)

	first := NewWEP("AA:BB:CC:DD:EE:FF", "lab", "12:34:56:78:90", "")
	first.Timestamp = time.Unix(1000, 0)
	second := NewWEP("AA:BB:CC:DD:EE:FF", "lab", "12:34:56:78:90", "")
	second.Timestamp = time.Unix(2000, 0)

	saved, err := store.Save(first)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = store.Save(second)
	require.NoError(t, err)
	assert.False(t, saved)

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1000), all[0].Timestamp.Unix())
}

func TestSaveDistinctPayloads(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(NewWPA("AA:BB:CC:DD:EE:FF", "lab", "hs/a.cap", ""))
	require.NoError(t, err)
	// Same network, now with the passphrase recovered.
	saved, err := store.Save(NewWPA("AA:BB:CC:DD:EE:FF", "lab", "hs/a.cap", "hunter22"))
	require.NoError(t, err)
	assert.True(t, saved)
	// PMKID with the same file name is a different kind.
	saved, err = store.Save(NewPMKID("AA:BB:CC:DD:EE:FF", "lab", "hs/a.cap", "hunter22"))
	require.NoError(t, err)
	assert.True(t, saved)

	all, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadAllNewestFirstAndByKind(t *testing.T) {
	store := newTestStore(t)

	old := NewWEP("00:11:22:33:44:55", "old", "AB:CD:EF:01:23", "")
	old.Timestamp = time.Unix(100, 0)
	mid := NewPMKID("00:11:22:33:44:66", "mid", "hs/pmkid.22000", "")
	mid.Timestamp = time.Unix(200, 0)
	latest := NewWPA("00:11:22:33:44:77", "new", "hs/new.cap", "letmein!")
	latest.Timestamp = time.Unix(300, 0)

	for _, r := range []*CrackResult{old, latest, mid} {
		_, err := store.Save(r)
		require.NoError(t, err)
	}

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []Kind{KindWPA, KindPMKID, KindWEP}, []Kind{all[0].Kind, all[1].Kind, all[2].Kind})
	assert.Equal(t, "hs/pmkid.22000", all[1].File)
	assert.Equal(t, "AB:CD:EF:01:23", all[2].HexKey)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "nested", "cracked.json"))

	_, err := store.Save(NewWPA("AA:BB:CC:DD:EE:FF", "lab", "hs/a.cap", ""))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cracked.json", entries[0].Name())
}

func TestUnknownKindIsSkipped(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`[
  {"type": "WPS", "date": 10, "bssid": "AA", "essid": "x"},
  {"type": "WPA", "date": 20, "bssid": "BB", "essid": "y", "handshake_file": "hs/y.cap"}
]`), 0o644))

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "BB", all[0].BSSID)
}

func TestSaveKeepsUnknownKinds(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`[
  {"type": "WPS", "date": 10, "bssid": "AA", "essid": "x", "pin": "12345670"}
]`), 0o644))

	saved, err := store.Save(NewWEP("BB:BB:BB:BB:BB:BB", "y", "12:34:56:78:90", ""))
	require.NoError(t, err)
	require.True(t, saved)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "WPS", entries[0]["type"])
	assert.Equal(t, "12345670", entries[0]["pin"])
	assert.Equal(t, "WEP", entries[1]["type"])

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "BB:BB:BB:BB:BB:BB", all[0].BSSID)
}

func TestMissingFileIsEmpty(t *testing.T) {
	all, err := newTestStore(t).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFormatAlignsColumns(t *testing.T) {
	a := NewWEP("AA:BB:CC:DD:EE:FF", "x", "12:34:56:78:90", "4Vx")
	b := NewWPA("00:11:22:33:44:55", "a much longer name", "hs/b.cap", "")

	out := Format([]*CrackResult{a, b})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	col := strings.Index(lines[0], "BSSID")
	assert.Equal(t, col, strings.Index(lines[2], "AA:BB:CC:DD:EE:FF"))
	assert.Equal(t, col, strings.Index(lines[3], "00:11:22:33:44:55"))
	assert.Contains(t, lines[2], "12:34:56:78:90 (4Vx)")
	assert.Contains(t, lines[3], "(not cracked)")

	assert.Equal(t, "No cracked networks.\n", Format(nil))
}
