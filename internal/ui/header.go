package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/bobmap/internal/social"
)

// chromeLines is the number of rows taken by header, command bar and footer.
const chromeLines = 3

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	if m.showLogs {
		b.WriteString(m.renderLogs())
	} else {
		b.WriteString(m.renderCards())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the status bar: logo, user, storage mode and feed state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{
		bg.Render("bobmap", styles.Logo),
		bg.Render(m.userLabel(), styles.Text),
	}
	if m.social != nil && m.social.Mode() == social.ModeMemoryOnly {
		parts = append(parts, styles.BadgeStyle("memory-only").Render("MEMORY ONLY"))
	}

	switch {
	case m.snapshot.IsOffline():
		parts = append(parts,
			styles.BadgeStyle("offline").Render("OFFLINE"),
			bg.Render("retrying", styles.Muted),
		)
	case !m.snapshot.HasFeed && m.snapshot.LastError != nil:
		parts = append(parts, bg.Render("feed unavailable", styles.Danger))
	case !m.snapshot.HasFeed:
		parts = append(parts, bg.Render("loading feed...", styles.Muted))
	default:
		ago := humanizeDuration(m.now().Sub(m.snapshot.LastUpdated))
		parts = append(parts, bg.Render(fmt.Sprintf("%d playlists  updated %s", len(m.snapshot.Playlists), ago), styles.Muted))
	}

	return bg.FillLine(bg.Join(parts, "  "), m.width)
}

func (m Model) userLabel() string {
	if m.viewer == nil || m.viewer.UserID() == "" {
		return "guest"
	}
	if name := m.viewer.Username(); name != "" {
		return "@" + name
	}
	return m.viewer.UserID()
}

// renderCommandBar renders the short key help.
func (m Model) renderCommandBar() string {
	return m.theme.Styles().Footer.Width(m.width).Render(m.help.View(m.keys))
}

// visibleRange returns the window of cards that fits on screen, keeping the
// selection in view.
func (m Model) visibleRange() (int, int) {
	rows := m.height - chromeLines
	if rows < 1 {
		rows = 1
	}
	count := len(m.cards)
	if count <= rows {
		return 0, count
	}
	start := m.selected - rows/2
	if start < 0 {
		start = 0
	}
	if start > count-rows {
		start = count - rows
	}
	return start, start + rows
}

// renderCards renders the visible card rows.
func (m Model) renderCards() string {
	styles := m.theme.Styles()
	rows := m.height - chromeLines
	if rows < 1 {
		rows = 1
	}

	if len(m.cards) == 0 {
		msg := "No playlists yet"
		if m.snapshot.LastError != nil {
			msg = "Feed unavailable: " + truncate(m.snapshot.LastError.Error(), m.width-20)
		}
		return lipgloss.NewStyle().Height(rows).Render(styles.Muted.Render(msg))
	}

	start, end := m.visibleRange()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderCard(m.cards[i], i == m.selected))
	}
	return lipgloss.NewStyle().Height(rows).Render(strings.Join(lines, "\n"))
}

// renderCard renders one row with like/save markers, count and follow badge.
func (m Model) renderCard(c card, selected bool) string {
	styles := m.theme.Styles()

	liked, saved, following := false, false, false
	count := c.baseline
	if m.social != nil {
		liked = m.social.IsLiked(c.subject.Type, c.subject.ID)
		saved = m.social.IsSaved(c.subject.Type, c.subject.ID)
		count = m.social.GetCount(c.subject.Type, c.subject.ID, c.baseline)
		if !c.isRestaurant() && c.curator.ID != "" {
			following = m.social.IsFollowing(c.curator.ID)
		}
	}

	heart := ternary(liked, "♥", "♡")
	star := ternary(saved, "★", "☆")
	indent := ternary(c.isRestaurant(), "    ", "")
	title := padRight(truncate(c.title, 36-len(indent)), 36-len(indent))

	row := fmt.Sprintf("%s%s %s %4d  %s  %s", indent, heart, star, count, title, c.detail)
	if following {
		row += "  [following]"
	}

	if selected {
		return styles.Selected.Width(m.width).Render(row)
	}

	style := styles.Text
	switch {
	case liked:
		style = styles.Liked
	case c.isRestaurant():
		style = styles.Muted
	}
	return style.Render(row)
}

// renderFooter shows the active toast, if any.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if !m.toast.active(m.now()) {
		return styles.Footer.Width(m.width).Render("")
	}
	style := styles.Danger
	if m.toast.ok {
		style = styles.Success
	}
	return styles.Footer.Width(m.width).Render(style.Render(m.toast.text))
}
