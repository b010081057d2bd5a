package result

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the payload a CrackResult carries.
type Kind string

const (
	KindWEP   Kind = "WEP"
	KindWPA   Kind = "WPA"
	KindPMKID Kind = "PMKID"
)

// CrackResult is a confirmed success against one access point.
//
// WEP results carry HexKey and ASCIIKey. WPA results reference the handshake
// capture in File, PMKID results the hash file; for both Key is the recovered
// passphrase and may be empty until an offline crack finds it.
type CrackResult struct {
	Kind      Kind
	BSSID     string
	ESSID     string
	Timestamp time.Time

	HexKey   string
	ASCIIKey string

	File string
	Key  string
}

func NewWEP(bssid, essid, hexKey, asciiKey string) *CrackResult {
	return &CrackResult{Kind: KindWEP, BSSID: bssid, ESSID: essid, HexKey: hexKey, ASCIIKey: asciiKey, Timestamp: time.Now()}
}

func NewWPA(bssid, essid, handshakeFile, key string) *CrackResult {
	return &CrackResult{Kind: KindWPA, BSSID: bssid, ESSID: essid, File: handshakeFile, Key: key, Timestamp: time.Now()}
}

func NewPMKID(bssid, essid, pmkidFile, key string) *CrackResult {
	return &CrackResult{Kind: KindPMKID, BSSID: bssid, ESSID: essid, File: pmkidFile, Key: key, Timestamp: time.Now()}
}

// Cracked reports whether key material was recovered.
func (r *CrackResult) Cracked() bool {
	if r.Kind == KindWEP {
		return r.HexKey != ""
	}
	return r.Key != ""
}

// DisplayKey is the key shown to the operator.
func (r *CrackResult) DisplayKey() string {
	switch r.Kind {
	case KindWEP:
		if r.ASCIIKey != "" {
			return fmt.Sprintf("%s (%s)", r.HexKey, r.ASCIIKey)
		}
		return r.HexKey
	case KindWPA, KindPMKID:
		if r.Key == "" {
			return "(not cracked)"
		}
		return r.Key
	}
	return ""
}

// SameAs compares every field except the timestamp.
func (r *CrackResult) SameAs(o *CrackResult) bool {
	return r.Kind == o.Kind &&
		strings.EqualFold(r.BSSID, o.BSSID) &&
		r.ESSID == o.ESSID &&
		r.HexKey == o.HexKey &&
		r.ASCIIKey == o.ASCIIKey &&
		r.File == o.File &&
		r.Key == o.Key
}

// record is the on-disk shape. Dates are unix seconds.
type record struct {
	Type          Kind   `json:"type"`
	Date          int64  `json:"date"`
	BSSID         string `json:"bssid"`
	ESSID         string `json:"essid"`
	HexKey        string `json:"hex_key,omitempty"`
	ASCIIKey      string `json:"ascii_key,omitempty"`
	HandshakeFile string `json:"handshake_file,omitempty"`
	PMKIDFile     string `json:"pmkid_file,omitempty"`
	Key           string `json:"key,omitempty"`
}

func (r *CrackResult) MarshalJSON() ([]byte, error) {
	rec := record{Type: r.Kind, Date: r.Timestamp.Unix(), BSSID: r.BSSID, ESSID: r.ESSID}
	switch r.Kind {
	case KindWEP:
		rec.HexKey, rec.ASCIIKey = r.HexKey, r.ASCIIKey
	case KindWPA:
		rec.HandshakeFile, rec.Key = r.File, r.Key
	case KindPMKID:
		rec.PMKIDFile, rec.Key = r.File, r.Key
	default:
		return nil, fmt.Errorf("unknown result kind %q", r.Kind)
	}
	return json.Marshal(rec)
}

func (r *CrackResult) UnmarshalJSON(b []byte) error {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	out := CrackResult{Kind: rec.Type, BSSID: rec.BSSID, ESSID: rec.ESSID, Timestamp: time.Unix(rec.Date, 0)}
	switch rec.Type {
	case KindWEP:
		out.HexKey, out.ASCIIKey = rec.HexKey, rec.ASCIIKey
	case KindWPA:
		out.File, out.Key = rec.HandshakeFile, rec.Key
	case KindPMKID:
		out.File, out.Key = rec.PMKIDFile, rec.Key
	default:
		return fmt.Errorf("unknown result kind %q", rec.Type)
	}
	*r = out
	return nil
}
