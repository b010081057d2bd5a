package wifi

import (
	"fmt"
	"net"
	"strings"
	"time"
)

type EncryptionType int

const (
	EncOpen EncryptionType = iota
	EncWEP
	EncWPA
	EncWPA2
	EncWPA3
)

func (e EncryptionType) String() string {
	switch e {
	case EncOpen:
		return "Open"
	case EncWEP:
		return "WEP"
	case EncWPA:
		return "WPA"
	case EncWPA2:
		return "WPA2"
	case EncWPA3:
		return "WPA3"
	default:
		return "Unknown"
	}
}

// ParseEncryption maps an airodump-ng privacy column ("WPA2 WPA", "WEP", "OPN") to the
// strongest encryption class it names.
func ParseEncryption(s string) EncryptionType {
	s = strings.ToUpper(s)
	switch {
	case strings.Contains(s, "WPA3"), strings.Contains(s, "SAE"):
		return EncWPA3
	case strings.Contains(s, "WPA2"):
		return EncWPA2
	case strings.Contains(s, "WPA"):
		return EncWPA
	case strings.Contains(s, "WEP"):
		return EncWEP
	default:
		return EncOpen
	}
}

type CipherType int

const (
	CipherNone CipherType = iota
	CipherWEP
	CipherTKIP
	CipherCCMP
)

func (c CipherType) String() string {
	switch c {
	case CipherNone:
		return "None"
	case CipherWEP:
		return "WEP"
	case CipherTKIP:
		return "TKIP"
	case CipherCCMP:
		return "CCMP"
	default:
		return "Unknown"
	}
}

// WPSState is the Wi-Fi Protected Setup state advertised by an access point.
type WPSState int

const (
	WPSNone WPSState = iota
	WPSUnlocked
	WPSLocked
)

func (w WPSState) String() string {
	switch w {
	case WPSNone:
		return "no"
	case WPSUnlocked:
		return "yes"
	case WPSLocked:
		return "lock"
	default:
		return "?"
	}
}

// Enabled reports whether the AP advertises WPS at all, locked or not.
func (w WPSState) Enabled() bool {
	return w == WPSUnlocked || w == WPSLocked
}

// Target is a discovered access point.
type Target struct {
	BSSID net.HardwareAddr

	// ESSID is only meaningful when ESSIDKnown is set. Hidden networks keep
	// ESSIDKnown false until a probe response or association reveals the name.
	ESSID      string
	ESSIDKnown bool

	Channel    int
	Encryption EncryptionType
	Cipher     CipherType
	WPS        WPSState
	Power      int
	IVs        int
	Beacons    int
	Clients    []*Client
	FirstSeen  time.Time
	LastSeen   time.Time
}

// CanonicalMAC renders a hardware address as upper-case colon hex.
func CanonicalMAC(hw net.HardwareAddr) string {
	return strings.ToUpper(hw.String())
}

// Key is the map key used for this target everywhere: its canonical BSSID.
func (t *Target) Key() string {
	return CanonicalMAC(t.BSSID)
}

// Name is the ESSID when known, otherwise the BSSID.
func (t *Target) Name() string {
	if t.ESSIDKnown {
		return t.ESSID
	}
	return t.Key()
}

func (t *Target) String() string {
	essid := "<hidden>"
	if t.ESSIDKnown {
		essid = t.ESSID
	}
	return fmt.Sprintf("%s [%s] Ch:%d %s %ddBm", essid, t.Key(), t.Channel, t.Encryption, t.Power)
}

func (t *Target) HasClients() bool {
	return len(t.Clients) > 0
}

// Client returns the associated client with the given station address, or nil.
func (t *Target) Client(station string) *Client {
	station = strings.ToUpper(station)
	for _, c := range t.Clients {
		if c.Key() == station {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy; clients are copied too.
func (t *Target) Clone() *Target {
	c := *t
	c.BSSID = append(net.HardwareAddr(nil), t.BSSID...)
	c.Clients = make([]*Client, 0, len(t.Clients))
	for _, cl := range t.Clients {
		cp := *cl
		c.Clients = append(c.Clients, &cp)
	}
	return &c
}

// Client is a station seen talking to an access point.
type Client struct {
	Station  net.HardwareAddr
	BSSID    net.HardwareAddr
	Power    int
	Packets  int
	LastSeen time.Time
}

func (c *Client) Key() string {
	return CanonicalMAC(c.Station)
}

func (c *Client) String() string {
	return fmt.Sprintf("%s -> %s (%d pkts)", c.Key(), CanonicalMAC(c.BSSID), c.Packets)
}
