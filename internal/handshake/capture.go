package handshake

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// Capture holds the EAPOL exchanges found in a capture file for one AP.
type Capture struct {
	BSSID string
	// ESSID is taken from beacons or probe responses, empty when none were seen.
	ESSID string
	// Handshakes is keyed by station MAC.
	Handshakes map[string]*wifi.FourWayHandshake

	frames int
}

func newCapture(bssid string) *Capture {
	return &Capture{
		BSSID:      bssid,
		Handshakes: make(map[string]*wifi.FourWayHandshake),
	}
}

// packetReader is what both pcapgo readers provide.
type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func openReader(f *os.File) (packetReader, error) {
	if r, err := pcapgo.NewReader(bufio.NewReader(f)); err == nil {
		return r, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r, err := pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
	if err != nil {
		return nil, fmt.Errorf("neither pcap nor pcapng: %w", err)
	}
	return r, nil
}

// ScanCapFile reads a pcap or pcapng file and collects the 4-way handshake
// frames exchanged with bssid.
func ScanCapFile(capFile, bssid string) (*Capture, error) {
	ap, err := net.ParseMAC(bssid)
	if err != nil {
		return nil, fmt.Errorf("bssid %q: %w", bssid, err)
	}
	target := ap.String()

	f, err := os.Open(capFile)
	if err != nil {
		return nil, fmt.Errorf("open cap file: %w", err)
	}
	defer f.Close()

	r, err := openReader(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", capFile, err)
	}

	c := newCapture(wifi.CanonicalMAC(ap))
	source := gopacket.NewPacketSource(r, r.LinkType())
	source.Lazy = true

	for {
		packet, err := source.NextPacket()
		if err != nil {
			// io.EOF, or a truncated tail while airodump-ng is still writing.
			break
		}
		c.add(packet, target)
	}
	return c, nil
}

func (c *Capture) add(packet gopacket.Packet, target string) {
	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return
	}
	dot11 := dot11Layer.(*layers.Dot11)

	switch dot11.Type {
	case layers.Dot11TypeMgmtBeacon, layers.Dot11TypeMgmtProbeResp:
		if c.ESSID == "" && dot11.Address3.String() == target {
			c.ESSID = essidFrom(packet)
		}
		return
	}

	eapol := packet.Layer(layers.LayerTypeEAPOL)
	if eapol == nil {
		return
	}
	ap, station := extractAddresses(dot11)
	if ap == nil || ap.String() != target {
		return
	}

	full := append(append([]byte(nil), eapol.LayerContents()...), eapol.LayerPayload()...)
	key, err := wifi.ParseKeyFrame(full)
	if err != nil {
		return
	}

	hs, ok := c.Handshakes[station.String()]
	if !ok {
		hs = wifi.NewFourWayHandshake(ap, station)
		c.Handshakes[station.String()] = hs
	}
	if hs.Add(key) {
		c.frames++
	}
}

func essidFrom(packet gopacket.Packet) string {
	for _, l := range packet.Layers() {
		ie, ok := l.(*layers.Dot11InformationElement)
		if !ok || ie.ID != layers.Dot11InformationElementIDSSID {
			continue
		}
		return strings.TrimRight(string(ie.Info), "\x00")
	}
	return ""
}

// extractAddresses returns the AP and station of a data frame from its DS bits.
func extractAddresses(dot11 *layers.Dot11) (ap, station net.HardwareAddr) {
	switch {
	case dot11.Flags.ToDS() && !dot11.Flags.FromDS():
		return dot11.Address1, dot11.Address2
	case !dot11.Flags.ToDS() && dot11.Flags.FromDS():
		return dot11.Address2, dot11.Address1
	case !dot11.Flags.ToDS() && !dot11.Flags.FromDS():
		if dot11.Address2.String() == dot11.Address3.String() {
			return dot11.Address3, dot11.Address1
		}
		return dot11.Address3, dot11.Address2
	default:
		return nil, nil
	}
}

// HasCompleteHandshake reports whether any station completed enough of the
// exchange to test a passphrase.
func (c *Capture) HasCompleteHandshake() bool {
	return len(c.Complete()) > 0
}

// Complete returns the crackable handshakes, most messages first.
func (c *Capture) Complete() []*wifi.FourWayHandshake {
	var complete []*wifi.FourWayHandshake
	for _, hs := range c.Handshakes {
		if hs.Complete() {
			complete = append(complete, hs)
		}
	}
	sort.Slice(complete, func(i, j int) bool {
		if complete[i].Count() != complete[j].Count() {
			return complete[i].Count() > complete[j].Count()
		}
		return complete[i].Station.String() < complete[j].Station.String()
	})
	return complete
}

// Frames is the number of handshake messages recorded for the AP.
func (c *Capture) Frames() int {
	return c.frames
}
