package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Hashcat wraps hashcat for PMKID cracking.
type Hashcat struct {
	tool *ExternalTool
}

func NewHashcat() *Hashcat {
	return &Hashcat{
		tool: &ExternalTool{Name: "hashcat", Required: false},
	}
}

func (h *Hashcat) Available() bool {
	return h.tool.Exists()
}

// CrackPMKID runs a dictionary attack on a hashcat 22000 hash file. An empty
// key with a nil error means the wordlist was exhausted.
func (h *Hashcat) CrackPMKID(ctx context.Context, hashFile, wordlist string) (string, error) {
	pot, err := os.CreateTemp("", "bytebuggy-*.potfile")
	if err != nil {
		return "", fmt.Errorf("create potfile: %w", err)
	}
	potFile := pot.Name()
	pot.Close()
	defer os.Remove(potFile)

	args := []string{
		"-m", "22000", // WPA-PBKDF2-PMKID+EAPOL
		"-a", "0", // Dictionary attack
		"--potfile-path", potFile,
		"--quiet",
		"--force",
		hashFile,
		wordlist,
	}

	// hashcat exits 1 when the wordlist is exhausted.
	out, runErr := RunCapture(ctx, "hashcat", args...)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	data, err := os.ReadFile(potFile)
	if err != nil {
		return "", fmt.Errorf("read potfile: %w", err)
	}
	if key := potfileKey(string(data)); key != "" {
		return key, nil
	}
	if strings.Contains(out, "No hashes loaded") || strings.Contains(out, "Separator unmatched") {
		return "", fmt.Errorf("hashcat rejected %s: %s", hashFile, lastLine(out))
	}
	var exitErr *exec.ExitError
	if runErr != nil && !(errors.As(runErr, &exitErr) && exitErr.ExitCode() == 1) {
		return "", fmt.Errorf("hashcat: %w", runErr)
	}
	return "", nil
}

// potfileKey extracts the plaintext of the last cracked hash. Potfile lines
// are hash:plain; 22000 hashes are '*' separated, so the first colon ends the
// hash and the key may contain colons of its own.
func potfileKey(content string) string {
	lines := nonEmptyLines(content)
	if len(lines) == 0 {
		return ""
	}
	last := lines[len(lines)-1]
	// WPA*01*pmkid*mac_ap*mac_sta*essid***:plain
	if i := strings.Index(last, ":"); i >= 0 {
		return last[i+1:]
	}
	return ""
}
