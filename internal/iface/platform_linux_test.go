//go:build linux

package iface

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	write := func(dev, file, content string) {
		dir := filepath.Join(root, dev)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
	}

	write("eth0", "address", "52:54:00:00:00:01\n")
	write("eth0", "type", "1\n")

	write("wlan0", "address", "00:c0:ca:12:34:56\n")
	write("wlan0", "type", "1\n")
	require.NoError(t, os.Mkdir(filepath.Join(root, "wlan0", "wireless"), 0o755))

	write("wlan1mon", "address", "00:c0:ca:ab:cd:ef\n")
	write("wlan1mon", "type", "803\n")
	phy := filepath.Join(root, "ieee80211", "phy1")
	require.NoError(t, os.MkdirAll(phy, 0o755))
	require.NoError(t, os.Symlink(phy, filepath.Join(root, "wlan1mon", "phy80211")))
	return root
}

func TestDetectInterfacesFromSysfs(t *testing.T) {
	orig := sysClassNet
	sysClassNet = fakeSysfs(t)
	t.Cleanup(func() { sysClassNet = orig })

	ifaces, err := detectInterfaces()
	require.NoError(t, err)
	require.Len(t, ifaces, 2)

	assert.Equal(t, "wlan0", ifaces[0].Name)
	assert.False(t, ifaces[0].IsMonitor)
	assert.Equal(t, "00:c0:ca:12:34:56", ifaces[0].MAC.String())

	assert.Equal(t, "wlan1mon", ifaces[1].Name)
	assert.True(t, ifaces[1].IsMonitor)
	assert.Equal(t, "phy1", ifaces[1].PHY)
}

func TestDetectInterfacesMissingSysfs(t *testing.T) {
	orig := sysClassNet
	sysClassNet = filepath.Join(t.TempDir(), "missing")
	t.Cleanup(func() { sysClassNet = orig })

	_, err := detectInterfaces()
	assert.Error(t, err)
}
