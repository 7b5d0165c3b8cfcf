package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is a named palette. Colors are hex strings understood by lipgloss.
type Theme struct {
	Name string

	Background    string
	Surface       string // header and footer bars
	SelectionBg   string
	SelectionText string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string

	// BadgeColors is keyed by badge name: liked, saved, following,
	// playlist, restaurant, offline, memory-only.
	BadgeColors map[string]string
}

// Styles are the lipgloss styles the views render with.
type Styles struct {
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Faint   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style
	Liked   lipgloss.Style

	Logo     lipgloss.Style
	Footer   lipgloss.Style
	Selected lipgloss.Style

	badges   map[string]string
	badgeFg  string
	fallback string
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Styles builds the style set for t.
func (t Theme) Styles() Styles {
	return Styles{
		Text:    fg(t.Text),
		Muted:   fg(t.Muted),
		Faint:   fg(t.Faint),
		Accent:  fg(t.Accent),
		Success: fg(t.Success).Bold(true),
		Warning: fg(t.Warning),
		Danger:  fg(t.Danger).Bold(true),
		Liked:   fg(t.BadgeColors["liked"]),

		Logo: fg(t.Warning).Bold(true),
		Footer: fg(t.Muted).
			Background(lipgloss.Color(t.Surface)).
			Padding(0, 1),
		Selected: fg(t.SelectionText).
			Background(lipgloss.Color(t.SelectionBg)),

		badges:   t.BadgeColors,
		badgeFg:  t.Background,
		fallback: t.Muted,
	}
}

// BadgeStyle renders badge as a filled label. Unknown badges use the muted
// color.
func (s Styles) BadgeStyle(badge string) lipgloss.Style {
	color, ok := s.badges[badge]
	if !ok || color == "" {
		color = s.fallback
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.badgeFg)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// WithBackground paints every text style onto bgColor so segments placed on
// a bar do not punch holes through it.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.Muted, &out.Faint, &out.Accent,
		&out.Success, &out.Warning, &out.Danger, &out.Liked, &out.Logo,
	} {
		*st = st.Background(bg)
	}
	return out
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

var themes = map[string]Theme{
	"Nightfox": {
		Name: "Nightfox",

		Background:    "#131a24",
		Surface:       "#192330",
		SelectionBg:   "#2b3b51",
		SelectionText: "#cdcecf",

		Text:    "#cdcecf",
		Muted:   "#738091",
		Faint:   "#71839b",
		Accent:  "#719cd6",
		Success: "#81b29a",
		Warning: "#dbc074",
		Danger:  "#c94f6d",

		BadgeColors: map[string]string{
			"liked":       "#c94f6d",
			"saved":       "#dbc074",
			"following":   "#81b29a",
			"playlist":    "#719cd6",
			"restaurant":  "#63cdcf",
			"offline":     "#c94f6d",
			"memory-only": "#f4a261",
		},
	},
	"Kanagawa": {
		Name: "Kanagawa",

		Background:    "#16161D",
		Surface:       "#1F1F28",
		SelectionBg:   "#2D4F67",
		SelectionText: "#DCD7BA",

		Text:    "#DCD7BA",
		Muted:   "#C8C093",
		Faint:   "#727169",
		Accent:  "#7E9CD8",
		Success: "#98BB6C",
		Warning: "#E6C384",
		Danger:  "#E46876",

		BadgeColors: map[string]string{
			"liked":       "#E46876",
			"saved":       "#E6C384",
			"following":   "#98BB6C",
			"playlist":    "#7E9CD8",
			"restaurant":  "#7FB4CA",
			"offline":     "#E46876",
			"memory-only": "#FFA066",
		},
	},
	"Slate": {
		Name: "Slate",

		Background:    "#020617",
		Surface:       "#0f172a",
		SelectionBg:   "#0284c7",
		SelectionText: "#f8fafc",

		Text:    "#f1f5f9",
		Muted:   "#94a3b8",
		Faint:   "#64748b",
		Accent:  "#38bdf8",
		Success: "#22c55e",
		Warning: "#f59e0b",
		Danger:  "#ef4444",

		BadgeColors: map[string]string{
			"liked":       "#ef4444",
			"saved":       "#f59e0b",
			"following":   "#22c55e",
			"playlist":    "#38bdf8",
			"restaurant":  "#06b6d4",
			"offline":     "#dc2626",
			"memory-only": "#f97316",
		},
	},
}

// GetTheme returns the named theme, or Nightfox when name is unknown.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[themeOrder[0]]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames lists themes in cycle order.
func ThemeNames() []string {
	return themeOrder
}
