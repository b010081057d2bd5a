package wifi

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const handshakeTimeLayout = "2006-01-02T15-04-05"

var (
	unsafeESSIDChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
	handshakeFileRe  = regexp.MustCompile(`^handshake_([a-zA-Z0-9]*)_((?:[0-9A-Fa-f]{2}-){5}[0-9A-Fa-f]{2})_(.+)\.cap$`)
)

// HandshakeFilename names a stored handshake:
// handshake_<essid, alphanumerics only>_<bssid with dashes>_<timestamp>.cap
func HandshakeFilename(essid, bssid string, at time.Time) string {
	return fmt.Sprintf("handshake_%s_%s_%s.cap",
		unsafeESSIDChars.ReplaceAllString(essid, ""),
		strings.ReplaceAll(strings.ToUpper(bssid), ":", "-"),
		at.Format(handshakeTimeLayout))
}

// HandshakeGlob matches every stored handshake for bssid.
func HandshakeGlob(bssid string) string {
	return fmt.Sprintf("handshake_*_%s_*.cap", strings.ReplaceAll(strings.ToUpper(bssid), ":", "-"))
}

// HandshakeFile is what a stored handshake's name says about it.
type HandshakeFile struct {
	ESSID    string
	BSSID    string
	Captured time.Time
}

// ParseHandshakeFilename reverses HandshakeFilename. The ESSID is the
// sanitised form; Captured is zero when the timestamp does not parse.
func ParseHandshakeFilename(path string) (HandshakeFile, bool) {
	m := handshakeFileRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return HandshakeFile{}, false
	}
	hw, err := net.ParseMAC(strings.ReplaceAll(m[2], "-", ":"))
	if err != nil {
		return HandshakeFile{}, false
	}
	hf := HandshakeFile{ESSID: m[1], BSSID: CanonicalMAC(hw)}
	if t, err := time.ParseInLocation(handshakeTimeLayout, m[3], time.Local); err == nil {
		hf.Captured = t
	}
	return hf, true
}
