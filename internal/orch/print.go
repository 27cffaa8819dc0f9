package orch

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")) // Blue
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#22D3EE")) // Cyan
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")) // Green
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")) // Yellow
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
)

// printer writes the human-readable status lines the loop emits per
// iteration.
type printer struct {
	w io.Writer
}

func (p printer) info(format string, args ...any) {
	fmt.Fprintln(p.w, infoStyle.Render("[porch] "+fmt.Sprintf(format, args...)))
}

func (p printer) phase(format string, args ...any) {
	fmt.Fprintln(p.w, phaseStyle.Render("[phase] "+fmt.Sprintf(format, args...)))
}

func (p printer) success(format string, args ...any) {
	fmt.Fprintln(p.w, successStyle.Render("[porch] "+fmt.Sprintf(format, args...)))
}

func (p printer) warn(format string, args ...any) {
	fmt.Fprintln(p.w, warnStyle.Render("[porch] "+fmt.Sprintf(format, args...)))
}

func (p printer) rule() {
	fmt.Fprintln(p.w, ruleStyle.Render(strings.Repeat("━", 40)))
}
