package tools

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytebuggy/bytebuggy/internal/scan"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// wpsEvery is how many snapshots pass between WPS lookups on the pcap.
const wpsEvery = 5

// WPSDetector reports the WPS state of the access points beaconing in a capture.
type WPSDetector interface {
	WPSStates(ctx context.Context, capFile string) (map[string]wifi.WPSState, error)
}

// Airodump wraps airodump-ng as a scan.CaptureController.
type Airodump struct {
	tool  *ExternalTool
	iface string

	// Band is passed to --band when set ("a", "bg", "abg").
	Band string
	// WPS enriches scan snapshots with WPS state when set.
	WPS WPSDetector
	// KeepFiles leaves the capture directory behind after Stop.
	KeepFiles bool
}

func NewAirodump(iface string) *Airodump {
	return &Airodump{
		tool:  &ExternalTool{Name: "airodump-ng", Required: true},
		iface: iface,
	}
}

func (a *Airodump) Available() bool {
	return a.tool.Exists()
}

// Args builds the airodump-ng command line for a capture written under prefix.
func (a *Airodump) Args(req scan.CaptureRequest, prefix string) []string {
	format := "csv,pcap"
	if req.IVsOnly {
		format = "csv,ivs"
	}
	args := []string{
		"--write", prefix,
		"--output-format", format,
		"--write-interval", "1",
	}
	if req.BSSID != "" {
		args = append(args, "--bssid", req.BSSID)
	}
	if req.Channel > 0 {
		args = append(args, "--channel", strconv.Itoa(req.Channel))
	} else if a.Band != "" {
		args = append(args, "--band", a.Band)
	}
	return append(args, a.iface)
}

// Start launches airodump-ng in a fresh temp directory.
func (a *Airodump) Start(ctx context.Context, req scan.CaptureRequest) (scan.CaptureHandle, error) {
	name := req.Prefix
	if name == "" {
		name = "capture"
	}
	dir, err := os.MkdirTemp("", "bytebuggy-"+name+"-*")
	if err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}

	proc, err := StartProcess(ctx, "airodump-ng", a.Args(req, filepath.Join(dir, name))...)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("start airodump: %w", err)
	}
	slog.Debug("airodump started", "dir", dir, "channel", req.Channel, "bssid", req.BSSID)

	c := &Capture{
		ctx:  ctx,
		proc: proc,
		dir:  dir,
		keep: a.KeepFiles,
		wps:  map[string]wifi.WPSState{},
	}
	if req.BSSID == "" && !req.IVsOnly {
		c.detector = a.WPS
	}
	return c, nil
}

// Capture is a running airodump-ng session.
type Capture struct {
	ctx  context.Context
	proc *Process
	dir  string
	keep bool

	detector WPSDetector
	polls    int
	wps      map[string]wifi.WPSState

	stopOnce sync.Once
}

func (c *Capture) Dir() string {
	return c.dir
}

func (c *Capture) Alive() bool {
	return c.proc.Alive()
}

// Artifacts lists the capture's files ending in suffix, sorted by name.
func (c *Capture) Artifacts(suffix string) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, filepath.Join(c.dir, e.Name()))
		}
	}
	slices.Sort(out)
	return out, nil
}

// Snapshot parses the newest CSV airodump-ng has written.
func (c *Capture) Snapshot() (scan.Snapshot, error) {
	csvs, err := c.Artifacts(".csv")
	if err != nil {
		return scan.Snapshot{}, err
	}
	if len(csvs) == 0 {
		return scan.Snapshot{}, nil
	}
	snap, err := ParseAirodumpCSV(csvs[len(csvs)-1])
	if err != nil {
		return scan.Snapshot{}, err
	}
	c.applyWPS(snap)
	return snap, nil
}

func (c *Capture) applyWPS(snap scan.Snapshot) {
	if c.detector == nil {
		return
	}
	if c.polls%wpsEvery == 0 {
		if caps, _ := c.Artifacts(".cap"); len(caps) > 0 {
			states, err := c.detector.WPSStates(c.ctx, caps[len(caps)-1])
			if err != nil {
				slog.Debug("wps detection failed", "err", err)
			}
			for k, v := range states {
				c.wps[k] = v
			}
		}
	}
	c.polls++
	for _, t := range snap.Targets {
		if s, ok := c.wps[t.Key()]; ok {
			t.WPS = s
		}
	}
}

// Stop kills airodump-ng and removes its files unless they are kept.
func (c *Capture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		err = c.proc.Stop()
		if !c.keep {
			if rmErr := os.RemoveAll(c.dir); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
		}
	})
	return err
}

// ParseAirodumpCSV reads an airodump-ng CSV file into a snapshot. Clients are
// attached to their access point when it is in the same file.
func ParseAirodumpCSV(path string) (scan.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return scan.Snapshot{}, err
	}
	defer f.Close()
	return parseAirodumpCSV(f)
}

func parseAirodumpCSV(r io.Reader) (scan.Snapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var snap scan.Snapshot
	byBSSID := map[string]*wifi.Target{}
	parsingClients := false

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// airodump-ng rewrites the file every second; a torn last line is normal.
			continue
		}
		if len(record) == 0 {
			continue
		}

		switch first := strings.TrimSpace(record[0]); first {
		case "BSSID":
			parsingClients = false
			continue
		case "Station MAC":
			parsingClients = true
			continue
		case "":
			continue
		}

		if parsingClients {
			if c := parseClientRecord(record); c != nil {
				snap.Clients = append(snap.Clients, c)
			}
			continue
		}
		if t := parseTargetRecord(record); t != nil {
			snap.Targets = append(snap.Targets, t)
			byBSSID[t.Key()] = t
		}
	}

	for _, c := range snap.Clients {
		if t, ok := byBSSID[wifi.CanonicalMAC(c.BSSID)]; ok {
			t.Clients = append(t.Clients, c)
		}
	}
	return snap, nil
}

func parseTargetRecord(record []string) *wifi.Target {
	if len(record) < 14 {
		return nil
	}
	field := func(i int) string { return strings.TrimSpace(record[i]) }

	bssid, err := net.ParseMAC(field(0))
	if err != nil {
		return nil
	}

	channel, _ := strconv.Atoi(field(3))
	power, _ := strconv.Atoi(field(8))
	beacons, _ := strconv.Atoi(field(9))
	ivs, _ := strconv.Atoi(field(10))

	// ESSIDs may contain commas; everything up to the key column belongs to it.
	essid := strings.Join(record[13:max(len(record)-1, 14)], ",")
	essid = strings.TrimSpace(essid)
	known := essidKnown(essid)
	if !known {
		essid = ""
	}

	// A negative channel means airodump-ng has not settled on one yet.
	if channel < 0 {
		channel = 0
	}

	return &wifi.Target{
		BSSID:      bssid,
		ESSID:      essid,
		ESSIDKnown: known,
		Channel:    channel,
		Encryption: parsePrivacy(field(5), field(7)),
		Cipher:     parseCipher(field(6)),
		Power:      power,
		IVs:        ivs,
		Beacons:    beacons,
		FirstSeen:  parseAirodumpTime(field(1)),
		LastSeen:   parseAirodumpTime(field(2)),
	}
}

// essidKnown rejects the placeholders airodump-ng writes for hidden networks.
func essidKnown(essid string) bool {
	if essid == "" {
		return false
	}
	if strings.Trim(essid, "\x00") == "" {
		return false
	}
	return strings.Trim(strings.ReplaceAll(essid, `\x00`, ""), " ") != ""
}

func parseClientRecord(record []string) *wifi.Client {
	if len(record) < 6 {
		return nil
	}
	field := func(i int) string { return strings.TrimSpace(record[i]) }

	mac, err := net.ParseMAC(field(0))
	if err != nil {
		return nil
	}

	bssidStr := field(5)
	if bssidStr == "(not associated)" || bssidStr == "" {
		return nil
	}
	bssid, err := net.ParseMAC(bssidStr)
	if err != nil {
		return nil
	}

	power, _ := strconv.Atoi(field(3))
	packets, _ := strconv.Atoi(field(4))

	return &wifi.Client{
		Station:  mac,
		BSSID:    bssid,
		Power:    power,
		Packets:  packets,
		LastSeen: parseAirodumpTime(field(2)),
	}
}

// parsePrivacy treats WPA3 transition networks that still accept PSK as WPA2.
func parsePrivacy(privacy, auth string) wifi.EncryptionType {
	enc := wifi.ParseEncryption(privacy + " " + auth)
	if enc == wifi.EncWPA3 && strings.Contains(strings.ToUpper(auth), "PSK") {
		return wifi.EncWPA2
	}
	return enc
}

func parseCipher(s string) wifi.CipherType {
	s = strings.ToUpper(s)
	switch {
	case strings.Contains(s, "CCMP"):
		return wifi.CipherCCMP
	case strings.Contains(s, "TKIP"):
		return wifi.CipherTKIP
	case strings.Contains(s, "WEP"):
		return wifi.CipherWEP
	default:
		return wifi.CipherNone
	}
}

func parseAirodumpTime(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
