package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

var (
	// Colors
	colorBug     = lipgloss.Color("#FF6B35")
	colorGreen   = lipgloss.Color("#00B894")
	colorRed     = lipgloss.Color("#D63031")
	colorYellow  = lipgloss.Color("#FDCB6E")
	colorBlue    = lipgloss.Color("#0984E3")
	colorCyan    = lipgloss.Color("#00CEC9")
	colorGray    = lipgloss.Color("#636E72")
	colorDimGray = lipgloss.Color("#2D3436")
	colorWhite   = lipgloss.Color("#DFE6E9")

	// Table styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	normalRowStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	// Target encryption colors
	encWPA2Style = lipgloss.NewStyle().Foreground(colorGreen)
	encWPAStyle  = lipgloss.NewStyle().Foreground(colorYellow)
	encWEPStyle  = lipgloss.NewStyle().Foreground(colorRed)
	encOpenStyle = lipgloss.NewStyle().Foreground(colorGray)

	// Attack status
	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen)

	failStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	progressStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	// Prompts
	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorYellow)

	// Banner
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBug)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)

// SignalBar returns a visual signal strength indicator.
func SignalBar(power int) string {
	// power is negative dBm, higher (less negative) = stronger
	bars := 0
	switch {
	case power >= -50:
		bars = 4
	case power >= -60:
		bars = 3
	case power >= -70:
		bars = 2
	case power >= -80:
		bars = 1
	}

	var sb strings.Builder
	for i := 0; i < 4; i++ {
		if i < bars {
			sb.WriteString(lipgloss.NewStyle().Foreground(colorGreen).Render("█"))
		} else {
			sb.WriteString(lipgloss.NewStyle().Foreground(colorDimGray).Render("░"))
		}
	}
	return sb.String()
}

// EncryptionColor returns styled encryption text.
func EncryptionColor(enc wifi.EncryptionType) string {
	switch enc {
	case wifi.EncWPA2, wifi.EncWPA3:
		return encWPA2Style.Render(enc.String())
	case wifi.EncWPA:
		return encWPAStyle.Render(enc.String())
	case wifi.EncWEP:
		return encWEPStyle.Render(enc.String())
	case wifi.EncOpen:
		return encOpenStyle.Render(enc.String())
	}
	return enc.String()
}

// WPSColor renders the WPS column: green when unlocked, red when locked.
func WPSColor(w wifi.WPSState) string {
	switch w {
	case wifi.WPSUnlocked:
		return successStyle.Render(w.String())
	case wifi.WPSLocked:
		return failStyle.Render(w.String())
	case wifi.WPSNone:
		return dimStyle.Render(w.String())
	}
	return w.String()
}

// pad right-aligns or left-aligns styled text to a visible width.
func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}
