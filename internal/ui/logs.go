package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/bobmap/internal/logtail"
)

// logLines is how much of the log file the panel keeps.
const logLines = 200

type logsMsg struct {
	lines []string
	err   error
}

func readLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logLines)
		return logsMsg{lines: lines, err: err}
	}
}

// renderLogs renders the newest log lines that fit, colored by level.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	rows := m.height - chromeLines
	if rows < 1 {
		rows = 1
	}

	if m.logPath == "" {
		return lipgloss.NewStyle().Height(rows).Render(styles.Muted.Render("Logging to file is disabled"))
	}
	if m.logErr != nil {
		return lipgloss.NewStyle().Height(rows).Render(styles.Danger.Render("Log unavailable: " + m.logErr.Error()))
	}

	lines := m.logLines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		level := logtail.Level(line)
		text := line
		if level != "" {
			text = fmt.Sprintf("%-5s %s", strings.ToUpper(level), logtail.Message(line))
		}
		out = append(out, m.logStyle(level).Render(truncate(text, m.width)))
	}
	return lipgloss.NewStyle().Height(rows).Render(strings.Join(out, "\n"))
}

func (m Model) logStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch level {
	case "error":
		return styles.Danger
	case "warn":
		return styles.Warning
	case "debug":
		return styles.Faint
	default:
		return styles.Text
	}
}
