package tools

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// ExternalTool represents a dependency on an external system tool.
type ExternalTool struct {
	Name     string
	Required bool
	Note     string // why it's needed

	mu      sync.Mutex
	path    string
	version string
	checked bool
}

// ToolStatus holds the result of a dependency check.
type ToolStatus struct {
	Name      string
	Available bool
	Path      string
	Version   string
	Required  bool
	Note      string
}

var versionRe = regexp.MustCompile(`(\d+\.\d+[\.\d]*)`)

// Check verifies if the tool exists and gets its version. The lookup is done once.
func (t *ExternalTool) Check() ToolStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.checked {
		t.checked = true
		if path, err := lookPath(t.Name); err == nil {
			t.path = path
			t.version = getVersion(t.Name)
		}
	}

	return ToolStatus{
		Name:      t.Name,
		Available: t.path != "",
		Path:      t.path,
		Version:   t.version,
		Required:  t.Required,
		Note:      t.Note,
	}
}

// Exists returns true if the tool is installed.
func (t *ExternalTool) Exists() bool {
	return t.Check().Available
}

// Path returns the full path to the tool binary.
func (t *ExternalTool) Path() string {
	return t.Check().Path
}

func getVersion(name string) string {
	ctx := context.Background()
	for _, flag := range []string{"--version", "-V", "version"} {
		out, err := RunCapture(ctx, name, flag)
		if err == nil && out != "" {
			if match := versionRe.FindString(out); match != "" {
				return match
			}
		}
	}
	return ""
}

// DependencyChecker manages all external tool dependencies.
type DependencyChecker struct {
	tools []*ExternalTool
}

func NewDependencyChecker() *DependencyChecker {
	var allTools []*ExternalTool

	// Platform-specific tools (Linux: airmon-ng/iw/ip, macOS: none)
	allTools = append(allTools, platformRequiredTools()...)

	allTools = append(allTools,
		&ExternalTool{Name: "airodump-ng", Required: true, Note: "scanning + capture"},
		&ExternalTool{Name: "aireplay-ng", Required: true, Note: "injection + deauth"},
		&ExternalTool{Name: "aircrack-ng", Required: true, Note: "WEP key recovery"},

		&ExternalTool{Name: "packetforge-ng", Required: false, Note: "forged replay after chopchop/fragment"},
		&ExternalTool{Name: "tshark", Required: false, Note: "handshake validation + WPS detection"},
		&ExternalTool{Name: "hashcat", Required: false, Note: "PMKID cracking"},
	)

	return &DependencyChecker{tools: allTools}
}

// InstallHint returns a platform-appropriate install message.
func InstallHint() string {
	return platformInstallHint()
}

// CheckAll probes every tool concurrently; version probes spawn processes.
func (dc *DependencyChecker) CheckAll() []ToolStatus {
	results := make([]ToolStatus, len(dc.tools))
	var wg sync.WaitGroup
	for i, tool := range dc.tools {
		wg.Go(func() { results[i] = tool.Check() })
	}
	wg.Wait()
	return results
}

// MissingRequired returns required tools that are not installed.
func (dc *DependencyChecker) MissingRequired() []string {
	var missing []string
	for _, tool := range dc.tools {
		s := tool.Check()
		if s.Required && !s.Available {
			missing = append(missing, tool.Name)
		}
	}
	return missing
}

// IsAvailable checks if a specific tool is available.
func (dc *DependencyChecker) IsAvailable(name string) bool {
	for _, tool := range dc.tools {
		if tool.Name == name {
			return tool.Exists()
		}
	}
	return false
}

// FormatStatus renders the dependency report, required tools first.
func FormatStatus(statuses []ToolStatus) string {
	var sb strings.Builder
	for _, required := range []bool{true, false} {
		for _, s := range statuses {
			if s.Required != required {
				continue
			}
			mark, ver, detail := "[+]", s.Version, s.Path
			switch {
			case !s.Available:
				mark, ver, detail = "[-]", "--", "missing"
				if s.Required {
					detail = "MISSING"
				}
				if s.Note != "" {
					detail += " (" + s.Note + ")"
				}
			case ver == "":
				ver = "ok"
			}
			fmt.Fprintf(&sb, " %s %-16s %-10s %s\n", mark, s.Name, ver, detail)
		}
	}
	return sb.String()
}

func normalizeBSSID(s string) string {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return wifi.CanonicalMAC(hw)
}
