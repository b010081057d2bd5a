//go:build linux

package tools

func platformRequiredTools() []*ExternalTool {
	return []*ExternalTool{
		{Name: "airmon-ng", Required: false, Note: "monitor mode (falls back to iw)"},
		{Name: "iw", Required: true, Note: "monitor mode + channel setting"},
		{Name: "ip", Required: true, Note: "interface management"},
	}
}

func platformInstallHint() string {
	return "sudo apt install aircrack-ng iw iproute2 tshark hashcat"
}
