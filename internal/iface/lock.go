package iface

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// interfaceLock is an exclusive flock on a per-interface file. The kernel
// drops it if the process dies.
type interfaceLock struct {
	f *os.File
}

func lockPath(dir, iface string) string {
	return filepath.Join(dir, "bytebuggy-"+iface+".lock")
}

func lockInterface(dir, iface string) (*interfaceLock, error) {
	path := lockPath(dir, iface)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", iface, ErrInterfaceBusy)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}
	return &interfaceLock{f: f}, nil
}

func (l *interfaceLock) unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	path := l.f.Name()
	// Unlinked while still held so the next lock starts on a fresh file.
	os.Remove(path)
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", path, err)
	}
	return nil
}
