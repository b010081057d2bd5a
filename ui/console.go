package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/bytebuggy/bytebuggy/internal/attack"
	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

const banner = `
  _           _       _
 | |__  _   _| |_ ___| |__  _   _  __ _  __ _ _   _
 | '_ \| | | | __/ _ \ '_ \| | | |/ _' |/ _' | | | |
 | |_) | |_| | ||  __/ |_) | |_| | (_| | (_| | |_| |
 |_.__/ \__, |\__\___|_.__/ \__,_|\__, |\__, |\__, |
        |___/                     |___/ |___/ |___/
`

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[2K"

// statusBar draws the progress of the running attack on the status line.
var statusBar = progress.New(
	progress.WithWidth(20),
	progress.WithoutPercentage(),
	progress.WithSolidFill(string(colorBug)),
)

// Console is the operator-facing terminal: prompts, target tables and the
// live status line. Log records go to slog, not here.
type Console struct {
	in  io.Reader
	out io.Writer

	mu         sync.Mutex
	statusLine bool
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// Banner prints the program banner with its version.
func (c *Console) Banner(version string) {
	c.Println(bannerStyle.Render(banner) + "\n  " + dimStyle.Render("bytebuggy v"+version+" - wireless network auditor"))
}

// Ask shows message and reads one line. Ctrl+C or Esc at the prompt returns
// ErrPromptInterrupted; a cancelled ctx returns ctx.Err().
func (c *Console) Ask(ctx context.Context, message string) (string, error) {
	c.mu.Lock()
	c.endStatusLocked()
	c.mu.Unlock()

	p := tea.NewProgram(newPromptModel(message),
		tea.WithContext(ctx),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", ErrPromptInterrupted
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	m, ok := final.(promptModel)
	if !ok || m.aborted || !m.submitted {
		return "", ErrPromptInterrupted
	}
	return m.Value(), nil
}

// Println writes a line, first closing any open status line.
func (c *Console) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStatusLocked()
	fmt.Fprintln(c.out, s)
}

func (c *Console) Info(format string, args ...any) {
	c.Println(infoStyle.Render(" [+] ") + fmt.Sprintf(format, args...))
}

func (c *Console) Success(format string, args ...any) {
	c.Println(successStyle.Render(" [+] " + fmt.Sprintf(format, args...)))
}

func (c *Console) Fail(format string, args ...any) {
	c.Println(failStyle.Render(" [!] ") + fmt.Sprintf(format, args...))
}

// setStatus overwrites the current status line in place.
func (c *Console) setStatus(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, clearLine+s)
	c.statusLine = true
}

func (c *Console) endStatusLocked() {
	if c.statusLine {
		fmt.Fprintln(c.out)
		c.statusLine = false
	}
}

// ScanProgress matches scan.Scanner.OnProgress.
func (c *Console) ScanProgress(targets []*wifi.Target, elapsed time.Duration) {
	clients := 0
	for _, t := range targets {
		clients += len(t.Clients)
	}
	c.setStatus(fmt.Sprintf(" %s %s %s",
		progressStyle.Render("[scan]"),
		fmt.Sprintf("%d targets, %d clients", len(targets), clients),
		dimStyle.Render(fmt.Sprintf("(%s, Ctrl+C when ready)", elapsed.Truncate(time.Second))),
	))
}

// ShowProgress overwrites the status line with a free-form progress message.
func (c *Console) ShowProgress(msg string) {
	c.setStatus(" " + progressStyle.Render("[>]") + " " + msg)
}

// Status renders an attack status update. Updates that finish a step are
// written on their own line; progress updates overwrite each other.
func (c *Console) Status(u attack.StatusUpdate) {
	line := FormatStatus(u)
	if u.Done {
		c.Println(line)
		return
	}
	c.setStatus(line)
}

// FormatStatus renders one status update as a single line.
func FormatStatus(u attack.StatusUpdate) string {
	var sb strings.Builder
	sb.WriteString(" ")
	switch {
	case u.Done && u.Success:
		sb.WriteString(successStyle.Render("[+]"))
	case u.Done:
		sb.WriteString(failStyle.Render("[-]"))
	default:
		sb.WriteString(progressStyle.Render("[>]"))
	}
	if u.Target != "" {
		sb.WriteString(" " + keyStyle.Render(u.Target))
	}
	if u.Attack != "" {
		label := u.Attack
		if u.Technique != "" {
			label += "/" + u.Technique
		}
		sb.WriteString(" " + infoStyle.Render(label))
	}
	if u.Progress > 0 && !u.Done {
		sb.WriteString(dimStyle.Render(fmt.Sprintf(" %3.0f%%", u.Progress*100)))
	}
	msg := u.Message
	if u.Done && u.Success {
		msg = successStyle.Render(msg)
	}
	sb.WriteString(" " + msg)
	if u.Progress > 0 && !u.Done {
		sb.WriteString(" " + statusBar.ViewAs(u.Progress))
	}
	return sb.String()
}

// ShowTargets prints the numbered target menu.
func (c *Console) ShowTargets(targets []*wifi.Target) {
	c.Println(FormatTargets(targets))
}

// FormatTargets renders targets as the numbered selection table.
func FormatTargets(targets []*wifi.Target) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("  %4s  %-24s %-17s %3s  %-5s %5s  %-4s  %-4s %s",
		"NUM", "ESSID", "BSSID", "CH", "ENCR", "PWR", "SIG", "WPS", "CLIENT")))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 86)))
	sb.WriteString("\n")

	for i, t := range targets {
		essid := dimStyle.Render("<hidden>")
		if t.ESSIDKnown {
			essid = normalRowStyle.Render(runewidth.Truncate(t.ESSID, 24, ".."))
		}
		clients := ""
		if n := len(t.Clients); n > 0 {
			clients = successStyle.Render(fmt.Sprintf("%d", n))
		}
		fmt.Fprintf(&sb, "  %4d  %s %-17s %3d  %s %5d  %s  %s %s\n",
			i+1,
			pad(essid, 24, false),
			t.Key(),
			t.Channel,
			pad(EncryptionColor(t.Encryption), 5, false),
			t.Power,
			SignalBar(t.Power),
			pad(WPSColor(t.WPS), 4, false),
			clients,
		)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ShowResults prints stored results under a styled heading.
func (c *Console) ShowResults(results []*result.CrackResult) {
	c.Println(headerStyle.Render("  Cracked networks") + "\n" + result.Format(results))
}
