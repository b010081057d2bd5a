package scan

import (
	"fmt"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

func mac(t testing.TB, s string) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC(s)
	require.NoError(t, err)
	return hw
}

func ap(t testing.TB, bssid, essid string, enc wifi.EncryptionType) *wifi.Target {
	return &wifi.Target{
		BSSID:      mac(t, bssid),
		ESSID:      essid,
		ESSIDKnown: essid != "",
		Channel:    6,
		Encryption: enc,
		Power:      -60,
	}
}

func station(t testing.TB, sta, bssid string) *wifi.Client {
	return &wifi.Client{Station: mac(t, sta), BSSID: mac(t, bssid), Power: -50}
}

func TestMergeRetainsAbsentTargetsAndClients(t *testing.T) {
	db := NewTargetDB()

	first := ap(t, "aa:aa:aa:aa:aa:01", "one", wifi.EncWEP)
	first.Clients = []*wifi.Client{station(t, "00:00:00:00:00:01", "aa:aa:aa:aa:aa:01")}
	assert.Equal(t, 2, db.Merge(Snapshot{Targets: []*wifi.Target{first, ap(t, "aa:aa:aa:aa:aa:02", "two", wifi.EncWPA2)}}))

	// Next tick: only the second AP, and the first AP's client is gone too.
	assert.Equal(t, 0, db.Merge(Snapshot{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:02", "two", wifi.EncWPA2)}}))

	require.Equal(t, 2, db.Count())
	got := db.Get("AA:AA:AA:AA:AA:01")
	require.NotNil(t, got)
	require.Len(t, got.Clients, 1)
	assert.Equal(t, "00:00:00:00:00:01", got.Clients[0].Key())
}

func TestMergeESSIDOnlyBecomesKnown(t *testing.T) {
	db := NewTargetDB()
	db.Merge(Snapshot{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "", wifi.EncWPA2)}})
	assert.False(t, db.Get("aa:aa:aa:aa:aa:01").ESSIDKnown)

	db.Merge(Snapshot{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "revealed", wifi.EncWPA2)}})
	db.Merge(Snapshot{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "", wifi.EncWPA2)}})

	got := db.Get("aa:aa:aa:aa:aa:01")
	assert.True(t, got.ESSIDKnown)
	assert.Equal(t, "revealed", got.ESSID)
}

func TestMergeUpdatesLiveFields(t *testing.T) {
	db := NewTargetDB()
	db.Merge(Snapshot{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "x", wifi.EncWEP)}})

	upd := ap(t, "aa:aa:aa:aa:aa:01", "x", wifi.EncOpen)
	upd.Channel, upd.Power, upd.IVs, upd.WPS = 11, -40, 5000, wifi.WPSLocked
	db.Merge(Snapshot{Targets: []*wifi.Target{upd}})

	got := db.Get("aa:aa:aa:aa:aa:01")
	assert.Equal(t, 11, got.Channel)
	assert.Equal(t, -40, got.Power)
	assert.Equal(t, 5000, got.IVs)
	assert.Equal(t, wifi.WPSLocked, got.WPS)
	assert.Equal(t, wifi.EncWEP, got.Encryption, "an Open reading never downgrades a known encryption")
}

func TestOrphanClientsAttachLater(t *testing.T) {
	db := NewTargetDB()
	db.Merge(Snapshot{Clients: []*wifi.Client{station(t, "00:00:00:00:00:09", "aa:aa:aa:aa:aa:05")}})
	assert.Equal(t, 0, db.Count())

	db.Merge(Snapshot{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:05", "late", wifi.EncWPA)}})
	got := db.Get("aa:aa:aa:aa:aa:05")
	require.NotNil(t, got)
	require.Len(t, got.Clients, 1)
	assert.Equal(t, "00:00:00:00:00:09", got.Clients[0].Key())
}

func TestSeedDoesNotShareClients(t *testing.T) {
	orig := ap(t, "aa:aa:aa:aa:aa:01", "x", wifi.EncWEP)
	orig.Clients = []*wifi.Client{station(t, "00:00:00:00:00:01", "aa:aa:aa:aa:aa:01")}

	db := NewTargetDB()
	db.Seed(orig)
	db.Get("aa:aa:aa:aa:aa:01").Clients[0].Power = -10
	assert.Equal(t, -50, orig.Clients[0].Power)
}

// Random snapshot sequences: nothing observed is ever lost and ESSIDs never
// go back to unknown.
func TestMergeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bssids := make([]string, 8)
	for i := range bssids {
		bssids[i] = fmt.Sprintf("aa:bb:cc:00:00:%02x", i)
	}

	for run := 0; run < 50; run++ {
		db := NewTargetDB()
		seen := map[string]bool{}
		known := map[string]string{}

		for tick := 0; tick < 30; tick++ {
			var snap Snapshot
			for _, b := range bssids {
				if rng.Intn(3) != 0 {
					continue
				}
				essid := ""
				if rng.Intn(2) == 0 {
					essid = "net-" + b[len(b)-2:]
				}
				snap.Targets = append(snap.Targets, ap(t, b, essid, wifi.EncWPA2))
			}
			db.Merge(snap)

			for _, tg := range snap.Targets {
				seen[tg.Key()] = true
				if tg.ESSIDKnown {
					known[tg.Key()] = tg.ESSID
				}
			}
			for key := range seen {
				got := db.Get(key)
				require.NotNil(t, got, "target %s was dropped", key)
				if essid, ok := known[key]; ok {
					require.True(t, got.ESSIDKnown)
					require.Equal(t, essid, got.ESSID)
				}
			}
			require.Equal(t, len(seen), db.Count())
		}
	}
}

func TestTargetsSortedByPower(t *testing.T) {
	db := NewTargetDB()
	weak := ap(t, "aa:aa:aa:aa:aa:01", "weak", wifi.EncWPA2)
	weak.Power = -80
	strong := ap(t, "aa:aa:aa:aa:aa:02", "strong", wifi.EncWPA2)
	strong.Power = -30
	db.Merge(Snapshot{Targets: []*wifi.Target{weak, strong}})

	got := db.Targets()
	require.Len(t, got, 2)
	assert.Equal(t, "strong", got[0].ESSID)
}
