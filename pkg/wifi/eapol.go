package wifi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Offsets inside an 802.1X frame carrying an EAPOL-Key descriptor. The 4 byte
// 802.1X header (version, type, body length) comes first.
const (
	eapolHeaderLen   = 4
	eapolTypeKey     = 3
	offKeyInfo       = 5
	offReplayCounter = 9
	offNonce         = 17
	offMIC           = 81
	offKeyDataLen    = 97
	minKeyFrameLen   = 99
)

const (
	keyInfoPairwise = 0x0008
	keyInfoInstall  = 0x0040
	keyInfoACK      = 0x0080
	keyInfoMIC      = 0x0100
	keyInfoSecure   = 0x0200
)

var ErrNotKeyFrame = errors.New("not an EAPOL-Key frame")

// KeyFrame is one message of the 4-way handshake.
type KeyFrame struct {
	Info          uint16
	ReplayCounter uint64
	Nonce         [32]byte
	MIC           [16]byte
	Data          []byte

	raw []byte
}

// ParseKeyFrame decodes a complete 802.1X frame. Trailing padding past the
// declared body length is dropped.
func ParseKeyFrame(frame []byte) (*KeyFrame, error) {
	if len(frame) < minKeyFrameLen {
		return nil, fmt.Errorf("EAPOL frame too short: %d bytes", len(frame))
	}
	if frame[1] != eapolTypeKey {
		return nil, ErrNotKeyFrame
	}
	bodyLen := int(binary.BigEndian.Uint16(frame[2:4]))
	if end := eapolHeaderLen + bodyLen; end >= minKeyFrameLen && end < len(frame) {
		frame = frame[:end]
	}

	k := &KeyFrame{
		Info:          binary.BigEndian.Uint16(frame[offKeyInfo : offKeyInfo+2]),
		ReplayCounter: binary.BigEndian.Uint64(frame[offReplayCounter : offReplayCounter+8]),
		raw:           append([]byte(nil), frame...),
	}
	copy(k.Nonce[:], frame[offNonce:offNonce+32])
	copy(k.MIC[:], frame[offMIC:offMIC+16])
	if dataLen := int(binary.BigEndian.Uint16(frame[offKeyDataLen:])); dataLen > 0 && minKeyFrameLen+dataLen <= len(frame) {
		k.Data = frame[minKeyFrameLen : minKeyFrameLen+dataLen]
	}
	return k, nil
}

// Message classifies the frame as handshake message 1 to 4, or 0 when the key
// info bits match none of them.
func (k *KeyFrame) Message() int {
	if k.Info&keyInfoPairwise == 0 {
		return 0
	}
	ack := k.Info&keyInfoACK != 0
	mic := k.Info&keyInfoMIC != 0
	install := k.Info&keyInfoInstall != 0
	secure := k.Info&keyInfoSecure != 0

	switch {
	case ack && !mic && !install:
		return 1
	case ack && mic && install:
		return 3
	case !ack && mic && !install && !secure && !k.zeroNonce():
		return 2
	case !ack && mic && !install && secure:
		return 4
	}
	return 0
}

func (k *KeyFrame) zeroNonce() bool {
	for _, b := range k.Nonce {
		if b != 0 {
			return false
		}
	}
	return true
}

// WithoutMIC returns the raw frame with the MIC field zeroed, which is the input
// the MIC is computed over.
func (k *KeyFrame) WithoutMIC() []byte {
	out := append([]byte(nil), k.raw...)
	for i := offMIC; i < offMIC+16; i++ {
		out[i] = 0
	}
	return out
}

// FourWayHandshake collects the key frames exchanged between one AP and one station.
type FourWayHandshake struct {
	AP      net.HardwareAddr
	Station net.HardwareAddr

	msgs [4]*KeyFrame
}

func NewFourWayHandshake(ap, station net.HardwareAddr) *FourWayHandshake {
	return &FourWayHandshake{AP: ap, Station: station}
}

// Add records a frame in its slot. Unclassifiable frames are ignored.
func (h *FourWayHandshake) Add(k *KeyFrame) bool {
	n := k.Message()
	if n == 0 {
		return false
	}
	h.msgs[n-1] = k
	return true
}

// Complete reports whether the handshake carries enough to verify a passphrase:
// M2 (SNonce and MIC) plus the ANonce from M1 or M3.
func (h *FourWayHandshake) Complete() bool {
	return h.msgs[1] != nil && (h.msgs[0] != nil || h.msgs[2] != nil)
}

func (h *FourWayHandshake) Count() int {
	n := 0
	for _, m := range h.msgs {
		if m != nil {
			n++
		}
	}
	return n
}

// KeyMaterial extracts what a passphrase check needs.
func (h *FourWayHandshake) KeyMaterial() (*KeyMaterial, error) {
	if !h.Complete() {
		return nil, fmt.Errorf("incomplete handshake: %d of 4 messages", h.Count())
	}
	anonceFrom := h.msgs[0]
	if anonceFrom == nil {
		anonceFrom = h.msgs[2]
	}
	m2 := h.msgs[1]

	km := &KeyMaterial{
		ANonce: anonceFrom.Nonce,
		SNonce: m2.Nonce,
		MIC:    m2.MIC,
		Frame:  m2.WithoutMIC(),
	}
	copy(km.AP[:], h.AP)
	copy(km.Station[:], h.Station)
	return km, nil
}
