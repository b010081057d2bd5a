package iface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime"

	"github.com/bytebuggy/bytebuggy/internal/tools"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

var (
	ErrNoInterface   = errors.New("no wireless interface found")
	ErrInterfaceBusy = errors.New("interface is in use by another bytebuggy process")
)

// WirelessInterface represents a WiFi adapter.
type WirelessInterface struct {
	Name      string
	PHY       string
	Driver    string
	MAC       net.HardwareAddr
	IsMonitor bool
}

// MonitorSwitcher moves an interface in and out of monitor mode.
type MonitorSwitcher interface {
	// Enable returns the name of the monitor interface, which may differ from iface.
	Enable(ctx context.Context, iface string) (string, error)
	Disable(ctx context.Context, iface string) error
}

// Manager selects the attack interface and hands out exclusive leases on it.
// Platform-specific operations live in platform_linux.go / platform_darwin.go.
type Manager struct {
	lockDir  string
	detect   func() ([]WirelessInterface, error)
	switcher MonitorSwitcher
}

// NewManager keeps its lock files in lockDir, defaulting to the system temp dir.
func NewManager(lockDir string) *Manager {
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	var sw MonitorSwitcher = platformSwitcher{}
	if airmon := tools.NewAirmon(); airmon.Available() {
		sw = airmonSwitcher{airmon: airmon}
	}
	return &Manager{
		lockDir:  lockDir,
		detect:   detectInterfaces,
		switcher: sw,
	}
}

// DetectInterfaces finds all wireless interfaces on the system.
func (m *Manager) DetectInterfaces() ([]WirelessInterface, error) {
	return m.detect()
}

// SelectInterface picks preferred, or the first managed-mode adapter, or any adapter.
func (m *Manager) SelectInterface(preferred string) (*WirelessInterface, error) {
	ifaces, err := m.DetectInterfaces()
	if err != nil {
		return nil, err
	}

	if len(ifaces) == 0 {
		return nil, ErrNoInterface
	}

	if preferred != "" {
		for i, iface := range ifaces {
			if iface.Name == preferred {
				return &ifaces[i], nil
			}
		}
		return nil, fmt.Errorf("interface %s: %w", preferred, ErrNoInterface)
	}

	for i, iface := range ifaces {
		if !iface.IsMonitor {
			return &ifaces[i], nil
		}
	}

	return &ifaces[0], nil
}

// Acquire selects an interface, locks it and puts it into monitor mode. The
// lease must be released to restore the interface.
func (m *Manager) Acquire(ctx context.Context, preferred string) (*Lease, error) {
	sel, err := m.SelectInterface(preferred)
	if err != nil {
		return nil, err
	}

	lock, err := lockInterface(m.lockDir, sel.Name)
	if err != nil {
		return nil, err
	}

	lease := &Lease{
		name:     sel.Name,
		mac:      sel.MAC,
		lock:     lock,
		switcher: m.switcher,
	}
	if sel.IsMonitor {
		slog.Info("interface already in monitor mode", "iface", sel.Name)
		return lease, nil
	}

	mon, err := m.switcher.Enable(ctx, sel.Name)
	if err != nil {
		lock.unlock()
		return nil, fmt.Errorf("enable monitor mode on %s: %w", sel.Name, err)
	}
	lease.name = mon
	lease.enabled = true
	slog.Info("monitor mode enabled", "iface", sel.Name, "monitor", mon)
	return lease, nil
}

// Lease is exclusive use of one monitor-mode interface.
type Lease struct {
	name     string
	mac      net.HardwareAddr
	enabled  bool
	lock     *interfaceLock
	switcher MonitorSwitcher
	released bool
}

// Name is the monitor interface to capture and inject on.
func (l *Lease) Name() string {
	return l.name
}

// MAC is the adapter's hardware address as a canonical upper-case string.
func (l *Lease) MAC() string {
	if l.mac == nil {
		return ""
	}
	return wifi.CanonicalMAC(l.mac)
}

// Release restores managed mode if Acquire enabled monitor mode, then drops
// the lock. Calling it again is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true

	var errs []error
	if l.enabled {
		if err := l.switcher.Disable(ctx, l.name); err != nil {
			errs = append(errs, fmt.Errorf("disable monitor mode on %s: %w", l.name, err))
		}
	}
	if err := l.lock.unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type airmonSwitcher struct {
	airmon *tools.Airmon
}

func (s airmonSwitcher) Enable(ctx context.Context, iface string) (string, error) {
	if err := s.airmon.CheckKill(ctx); err != nil {
		slog.Warn("airmon-ng check kill failed", "err", err)
	}
	return s.airmon.Start(ctx, iface)
}

func (s airmonSwitcher) Disable(ctx context.Context, iface string) error {
	return s.airmon.Stop(ctx, iface)
}

// IsLinux returns true if running on Linux.
func IsLinux() bool {
	return runtime.GOOS == "linux"
}
