//go:build darwin

package tools

func platformRequiredTools() []*ExternalTool {
	// Monitor mode and injection are Linux only. The offline commands
	// (cracked, check, crack, deps) still work here.
	return nil
}

func platformInstallHint() string {
	return "bytebuggy requires Linux for wireless attacks. Use 'bytebuggy deps' to check status."
}
