package wifi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pmkLen = 32
	ptkLen = 64
	kckLen = 16
)

// PMK derives the pairwise master key for a WPA-PSK network (IEEE 802.11i, PBKDF2-SHA1, 4096 rounds).
func PMK(passphrase, essid string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(essid), 4096, pmkLen, sha1.New)
}

// KeyMaterial is everything from a captured handshake needed to test a PMK.
type KeyMaterial struct {
	AP      [6]byte
	Station [6]byte
	ANonce  [32]byte
	SNonce  [32]byte
	MIC     [16]byte
	// Frame is message 2 with its MIC field zeroed.
	Frame []byte
}

// CheckPassphrase reports whether passphrase produced the captured MIC.
func (k *KeyMaterial) CheckPassphrase(passphrase, essid string) bool {
	return k.CheckPMK(PMK(passphrase, essid))
}

func (k *KeyMaterial) CheckPMK(pmk []byte) bool {
	return hmac.Equal(k.ComputeMIC(pmk), k.MIC[:])
}

// ComputeMIC is the MIC a station holding pmk writes into message 2.
func (k *KeyMaterial) ComputeMIC(pmk []byte) []byte {
	kck := k.ptk(pmk)[:kckLen]
	mac := hmac.New(sha1.New, kck)
	mac.Write(k.Frame)
	return mac.Sum(nil)[:16]
}

// ptk runs PRF-512 over min(AA,SPA) || max(AA,SPA) || min(nonces) || max(nonces).
func (k *KeyMaterial) ptk(pmk []byte) []byte {
	lo, hi := k.AP[:], k.Station[:]
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	nlo, nhi := k.ANonce[:], k.SNonce[:]
	if bytes.Compare(nlo, nhi) > 0 {
		nlo, nhi = nhi, nlo
	}

	seed := make([]byte, 0, 76)
	seed = append(seed, lo...)
	seed = append(seed, hi...)
	seed = append(seed, nlo...)
	seed = append(seed, nhi...)
	return prf(pmk, "Pairwise key expansion", seed, ptkLen)
}

func prf(key []byte, label string, seed []byte, n int) []byte {
	out := make([]byte, 0, n+sha1.Size)
	for i := byte(0); len(out) < n; i++ {
		mac := hmac.New(sha1.New, key)
		mac.Write([]byte(label))
		mac.Write([]byte{0})
		mac.Write(seed)
		mac.Write([]byte{i})
		out = mac.Sum(out)
	}
	return out[:n]
}
