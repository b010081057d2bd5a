package scan

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// TargetDB is the merged view of every snapshot seen so far. Targets and
// clients are never removed: capture tools drop beacons and stations
// transiently, and later stages rely on the first known client staying known.
type TargetDB struct {
	targets map[string]*wifi.Target // keyed by canonical BSSID
	orphans map[string]*wifi.Client // clients of APs not seen yet, keyed by station
	mu      sync.RWMutex

	onNewTarget func(*wifi.Target)
}

func NewTargetDB() *TargetDB {
	return &TargetDB{
		targets: make(map[string]*wifi.Target),
		orphans: make(map[string]*wifi.Client),
	}
}

// OnNewTarget sets a callback run (synchronously, under no lock) for each newly discovered target.
func (db *TargetDB) OnNewTarget(fn func(*wifi.Target)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.onNewTarget = fn
}

// Seed adds a target that was discovered elsewhere, e.g. by the scan that
// preceded an attack.
func (db *TargetDB) Seed(t *wifi.Target) {
	db.Merge(Snapshot{Targets: []*wifi.Target{t}})
}

// Merge folds a snapshot into the view and returns the number of new targets.
func (db *TargetDB) Merge(snap Snapshot) int {
	db.mu.Lock()
	var added []*wifi.Target
	for _, in := range snap.Targets {
		if t := db.mergeTarget(in); t != nil {
			added = append(added, t)
		}
	}
	for _, in := range snap.Targets {
		for _, c := range in.Clients {
			db.mergeClient(c)
		}
	}
	for _, c := range snap.Clients {
		db.mergeClient(c)
	}
	db.adoptOrphans()
	cb := db.onNewTarget
	db.mu.Unlock()

	if cb != nil {
		for _, t := range added {
			cb(t)
		}
	}
	return len(added)
}

// mergeTarget returns the stored target when it was newly created.
func (db *TargetDB) mergeTarget(in *wifi.Target) *wifi.Target {
	key := in.Key()
	t, exists := db.targets[key]
	if !exists {
		t = in.Clone()
		t.Clients = nil
		if t.FirstSeen.IsZero() {
			t.FirstSeen = time.Now()
		}
		if t.LastSeen.IsZero() {
			t.LastSeen = t.FirstSeen
		}
		db.targets[key] = t
		return t
	}

	if !t.ESSIDKnown && in.ESSIDKnown {
		t.ESSID = in.ESSID
		t.ESSIDKnown = true
	}
	if in.Channel > 0 {
		t.Channel = in.Channel
	}
	if in.Power != 0 {
		t.Power = in.Power
	}
	if in.Encryption != wifi.EncOpen {
		t.Encryption = in.Encryption
	}
	if in.Cipher != wifi.CipherNone {
		t.Cipher = in.Cipher
	}
	if in.WPS != wifi.WPSNone {
		t.WPS = in.WPS
	}
	t.IVs = in.IVs
	t.Beacons = max(t.Beacons, in.Beacons)
	if in.LastSeen.After(t.LastSeen) {
		t.LastSeen = in.LastSeen
	}
	return nil
}

func (db *TargetDB) mergeClient(in *wifi.Client) {
	if len(in.BSSID) == 0 {
		return
	}
	t, ok := db.targets[wifi.CanonicalMAC(in.BSSID)]
	if !ok {
		cp := *in
		db.orphans[in.Key()] = &cp
		return
	}

	if c := t.Client(in.Key()); c != nil {
		if in.Power != 0 {
			c.Power = in.Power
		}
		c.Packets = max(c.Packets, in.Packets)
		if in.LastSeen.After(c.LastSeen) {
			c.LastSeen = in.LastSeen
		}
		return
	}
	cp := *in
	t.Clients = append(t.Clients, &cp)
}

func (db *TargetDB) adoptOrphans() {
	for key, c := range db.orphans {
		if _, ok := db.targets[wifi.CanonicalMAC(c.BSSID)]; ok {
			delete(db.orphans, key)
			db.mergeClient(c)
		}
	}
}

// Targets returns all targets sorted by signal strength (strongest first).
func (db *TargetDB) Targets() []*wifi.Target {
	db.mu.RLock()
	defer db.mu.RUnlock()

	targets := make([]*wifi.Target, 0, len(db.targets))
	for _, t := range db.targets {
		targets = append(targets, t)
	}

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Power != targets[j].Power {
			return targets[i].Power > targets[j].Power
		}
		return bytes.Compare(targets[i].BSSID, targets[j].BSSID) < 0
	})
	return targets
}

// Get returns a target by BSSID in any case.
func (db *TargetDB) Get(bssid string) *wifi.Target {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.targets[normalizeMAC(bssid)]
}

func (db *TargetDB) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.targets)
}
