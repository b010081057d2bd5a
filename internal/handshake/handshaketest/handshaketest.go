// Package handshaketest writes synthetic WPA handshake captures for tests.
package handshaketest

import (
	"encoding/binary"
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

const (
	keyFrameLen = 99
	offKeyInfo  = 5
	offReplay   = 9
	offNonce    = 17
	offMIC      = 81
)

const (
	infoM1 = 0x008a // pairwise, ack, HMAC-SHA1 descriptor version 2
	infoM2 = 0x010a // pairwise, mic
	infoM3 = 0x13ca // pairwise, ack, mic, install, secure
	infoM4 = 0x030a // pairwise, mic, secure
)

// Handshake describes one AP/station exchange to synthesise.
type Handshake struct {
	AP         string
	Station    string
	ESSID      string
	Passphrase string
	// Messages lists the handshake messages to write, defaulting to 1 and 2.
	Messages []int
	// Beacon prepends a beacon advertising ESSID.
	Beacon bool
}

// ANonce and SNonce are the fixed nonces every synthetic exchange uses.
var (
	ANonce = fill(0xa1)
	SNonce = fill(0x5b)
)

func fill(b byte) [32]byte {
	var n [32]byte
	for i := range n {
		n[i] = b + byte(i)
	}
	return n
}

// Frames serialises the exchange as radiotap frames.
func Frames(t testing.TB, hs Handshake) [][]byte {
	t.Helper()
	ap := mustMAC(t, hs.AP)
	sta := mustMAC(t, hs.Station)

	msgs := hs.Messages
	if len(msgs) == 0 {
		msgs = []int{1, 2}
	}

	var out [][]byte
	if hs.Beacon {
		out = append(out, beacon(t, ap, hs.ESSID))
	}
	for _, n := range msgs {
		body := KeyFrame(t, hs, n)
		out = append(out, dataFrame(t, ap, sta, n%2 == 1, body))
	}
	return out
}

// KeyFrame builds the 802.1X frame for message n. Message 2 carries the MIC a
// station holding Passphrase would compute.
func KeyFrame(t testing.TB, hs Handshake, n int) []byte {
	t.Helper()
	f := make([]byte, keyFrameLen)
	f[0] = 2 // 802.1X-2004
	f[1] = 3 // EAPOL-Key
	binary.BigEndian.PutUint16(f[2:4], keyFrameLen-4)
	f[4] = 2 // RSN key descriptor

	switch n {
	case 1:
		binary.BigEndian.PutUint16(f[offKeyInfo:], infoM1)
		copy(f[offNonce:], ANonce[:])
	case 2:
		binary.BigEndian.PutUint16(f[offKeyInfo:], infoM2)
		copy(f[offNonce:], SNonce[:])
	case 3:
		binary.BigEndian.PutUint16(f[offKeyInfo:], infoM3)
		copy(f[offNonce:], ANonce[:])
	case 4:
		binary.BigEndian.PutUint16(f[offKeyInfo:], infoM4)
	default:
		t.Fatalf("no handshake message %d", n)
	}
	replay := uint64(1)
	if n > 2 {
		replay = 2
	}
	binary.BigEndian.PutUint64(f[offReplay:], replay)

	if n == 2 {
		sign(t, hs, f)
	}
	return f
}

func sign(t testing.TB, hs Handshake, f []byte) {
	t.Helper()
	k, err := wifi.ParseKeyFrame(f)
	if err != nil {
		t.Fatalf("parse synthetic M2: %v", err)
	}
	km := &wifi.KeyMaterial{
		ANonce: ANonce,
		SNonce: SNonce,
		Frame:  k.WithoutMIC(),
	}
	copy(km.AP[:], mustMAC(t, hs.AP))
	copy(km.Station[:], mustMAC(t, hs.Station))
	copy(f[offMIC:], km.ComputeMIC(wifi.PMK(hs.Passphrase, hs.ESSID)))
}

func dataFrame(t testing.TB, ap, sta net.HardwareAddr, fromAP bool, eapol []byte) []byte {
	t.Helper()
	d := &layers.Dot11{Type: layers.Dot11TypeData}
	if fromAP {
		d.Flags = layers.Dot11FlagsFromDS
		d.Address1, d.Address2, d.Address3 = sta, ap, ap
	} else {
		d.Flags = layers.Dot11FlagsToDS
		d.Address1, d.Address2, d.Address3 = ap, sta, ap
	}
	return serialize(t,
		&layers.RadioTap{},
		d,
		&layers.LLC{DSAP: 0xaa, SSAP: 0xaa, Control: 3},
		&layers.SNAP{OrganizationalCode: []byte{0, 0, 0}, Type: layers.EthernetTypeEAPOL},
		gopacket.Payload(eapol),
	)
}

func beacon(t testing.TB, ap net.HardwareAddr, essid string) []byte {
	t.Helper()
	// timestamp, interval, capabilities, then the SSID element.
	body := make([]byte, 12, 14+len(essid))
	binary.LittleEndian.PutUint16(body[8:10], 100)
	binary.LittleEndian.PutUint16(body[10:12], 0x0011)
	body = append(body, byte(layers.Dot11InformationElementIDSSID), byte(len(essid)))
	body = append(body, essid...)

	return serialize(t,
		&layers.RadioTap{},
		&layers.Dot11{
			Type:     layers.Dot11TypeMgmtBeacon,
			Address1: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			Address2: ap,
			Address3: ap,
		},
		gopacket.Payload(body),
	)
}

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, ls...); err != nil {
		t.Fatalf("serialize frame: %v", err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

// WritePcap writes the exchanges to path as a radiotap pcap.
func WritePcap(t testing.TB, path string, hss ...Handshake) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeIEEE80211Radio); err != nil {
		t.Fatalf("pcap header: %v", err)
	}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, hs := range hss {
		for _, frame := range Frames(t, hs) {
			at = at.Add(10 * time.Millisecond)
			ci := gopacket.CaptureInfo{Timestamp: at, CaptureLength: len(frame), Length: len(frame)}
			if err := w.WritePacket(ci, frame); err != nil {
				t.Fatalf("write packet: %v", err)
			}
		}
	}
}

func mustMAC(t testing.TB, s string) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("mac %q: %v", s, err)
	}
	return hw
}
