package tools

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependencyChecker(t *testing.T) {
	useHelperProcess(t)
	prev := lookPath
	lookPath = func(name string) (string, error) {
		if name == "aircrack-ng" {
			return "", exec.ErrNotFound
		}
		return "/usr/bin/" + name, nil
	}
	t.Cleanup(func() { lookPath = prev })

	dc := &DependencyChecker{tools: []*ExternalTool{
		{Name: "aircrack-ng", Required: true, Note: "WEP key recovery"},
		{Name: "hashcat", Note: "PMKID cracking"},
		{Name: "echo"},
	}}

	assert.Equal(t, []string{"aircrack-ng"}, dc.MissingRequired())
	assert.True(t, dc.IsAvailable("hashcat"))
	assert.False(t, dc.IsAvailable("tshark"))

	report := FormatStatus(dc.CheckAll())
	assert.Contains(t, report, "[-] aircrack-ng")
	assert.Contains(t, report, "MISSING (WEP key recovery)")
	assert.Contains(t, report, "/usr/bin/hashcat")
	assert.Less(t, strings.Index(report, "aircrack-ng"), strings.Index(report, "hashcat"), "required tools first")
}

func TestNewDependencyCheckerListsCaptureStack(t *testing.T) {
	dc := NewDependencyChecker()
	var names []string
	for _, tool := range dc.tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{"airodump-ng", "aireplay-ng", "aircrack-ng", "packetforge-ng", "tshark", "hashcat"} {
		assert.Contains(t, names, want)
	}
}

func TestNormalizeBSSID(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:01", normalizeBSSID(" aa:bb:cc:dd:ee:01 "))
	assert.Empty(t, normalizeBSSID("nope"))
}
