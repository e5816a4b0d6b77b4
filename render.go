package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/philtim/multiclock/clock"
	"github.com/philtim/multiclock/widget"
)

// palette holds the colors of one theme
type palette struct {
	title    lipgloss.Color
	time     lipgloss.Color
	muted    lipgloss.Color
	border   lipgloss.Color
	focus    lipgloss.Color
	local    lipgloss.Color
	barFg    lipgloss.Color
	barBg    lipgloss.Color
	errorFg  lipgloss.Color
	noticeFg lipgloss.Color
}

var palettes = map[widget.Theme]palette{
	widget.Light: {
		title:    lipgloss.Color("25"),
		time:     lipgloss.Color("161"),
		muted:    lipgloss.Color("244"),
		border:   lipgloss.Color("250"),
		focus:    lipgloss.Color("33"),
		local:    lipgloss.Color("28"),
		barFg:    lipgloss.Color("238"),
		barBg:    lipgloss.Color("254"),
		errorFg:  lipgloss.Color("160"),
		noticeFg: lipgloss.Color("130"),
	},
	widget.Dark: {
		title:    lipgloss.Color("86"),
		time:     lipgloss.Color("205"),
		muted:    lipgloss.Color("241"),
		border:   lipgloss.Color("62"),
		focus:    lipgloss.Color("212"),
		local:    lipgloss.Color("114"),
		barFg:    lipgloss.Color("240"),
		barBg:    lipgloss.Color("235"),
		errorFg:  lipgloss.Color("203"),
		noticeFg: lipgloss.Color("221"),
	},
}

func paletteFor(theme widget.Theme) palette {
	if p, ok := palettes[theme]; ok {
		return p
	}
	return palettes[widget.Light]
}

// Card overhead: border (2) + padding (4) + margins (1 left + 1 right)
const cardOverhead = 8

// Dial geometry in terminal cells. Cells are about twice as tall as wide,
// so x is stretched by dialAspect.
const (
	dialRadius = 5
	dialAspect = 2.0
)

// renderClocks renders all clocks in a grid layout
func renderClocks(cards []widget.Card, prefs widget.Preferences, focus, width int) string {
	p := paletteFor(prefs.Theme)
	if len(cards) == 0 {
		helpStyle := lipgloss.NewStyle().
			Foreground(p.muted).
			Align(lipgloss.Center).
			Padding(2, 4)
		return helpStyle.Render("Press 'a' to add a clock")
	}

	cols := calculateColumns(cards, width)
	rows := (len(cards) + cols - 1) / cols

	// Distribute available width equally among cards
	cardWidth := width/cols - cardOverhead
	if cardWidth < 24 {
		cardWidth = 24
	}

	var rendered []string
	for i, c := range cards {
		rendered = append(rendered, renderClockCard(c, prefs, i == focus, cardWidth))
	}

	var lines []string
	for row := 0; row < rows; row++ {
		start := row * cols
		end := min(start+cols, len(rendered))
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, rendered[start:end]...))
	}
	return strings.Join(lines, "\n")
}

// renderClockCard renders a single clock card
func renderClockCard(c widget.Card, prefs widget.Preferences, focused bool, width int) string {
	p := paletteFor(prefs.Theme)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(p.title).
		Align(lipgloss.Center).
		Width(width).
		PaddingTop(1)

	badgeStyle := lipgloss.NewStyle().
		Foreground(p.local).
		Align(lipgloss.Center).
		Width(width)

	timeStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(p.time).
		Align(lipgloss.Center).
		Width(width).
		MarginBottom(1)

	dateStyle := lipgloss.NewStyle().
		Foreground(p.muted).
		Align(lipgloss.Center).
		Width(width)

	border := p.border
	if focused {
		border = p.focus
	}
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 2).
		Margin(1, 1, 0, 1)

	badge := " "
	if c.Local {
		badge = "LOCAL"
	}

	parts := []string{
		titleStyle.Render(fmt.Sprintf("%s %s", dayIcon(c.IsDaytime), strings.ToUpper(c.City))),
		badgeStyle.Render(badge),
	}
	if prefs.DisplayMode == widget.Analog {
		dial := lipgloss.NewStyle().
			Foreground(p.time).
			Align(lipgloss.Center).
			Width(width).
			Render(renderDial(c.HandAngles()))
		parts = append(parts, dial)
	}
	parts = append(parts,
		timeStyle.Render(c.FormatTime()),
		dateStyle.Render(fmt.Sprintf("%s %s", strings.ToUpper(c.Weekday.String()[:3]), c.FormatShortDate())),
		dateStyle.PaddingBottom(1).Render(c.FormatDetails()),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func dayIcon(daytime bool) string {
	if daytime {
		return "☀"
	}
	return "☾"
}

// renderDial draws an analog face with hour ticks and three hands
func renderDial(a clock.Angles) string {
	h := 2*dialRadius + 1
	w := int(2*dialRadius*dialAspect) + 1
	grid := make([][]rune, h)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", w))
	}
	cx, cy := float64(w/2), float64(h/2)

	plot := func(deg, dist float64, r rune) {
		rad := deg * math.Pi / 180
		x := int(math.Round(cx + dist*math.Sin(rad)*dialAspect))
		y := int(math.Round(cy - dist*math.Cos(rad)))
		if y >= 0 && y < h && x >= 0 && x < w {
			grid[y][x] = r
		}
	}
	hand := func(deg, length float64, r rune) {
		for d := 0.5; d <= length; d += 0.5 {
			plot(deg, d, r)
		}
	}

	for i := 0; i < 12; i++ {
		mark := '·'
		if i%3 == 0 {
			mark = '•'
		}
		plot(float64(i*30), dialRadius, mark)
	}
	hand(a.Second, dialRadius-1, '∙')
	hand(a.Minute, dialRadius-1, '●')
	hand(a.Hour, dialRadius-2.5, '█')
	grid[int(cy)][int(cx)] = '◉'

	lines := make([]string, h)
	for y, row := range grid {
		lines[y] = strings.TrimRight(string(row), " ")
	}
	// keep the block rectangular so Align centers every line the same way
	return lipgloss.NewStyle().Width(w).Render(strings.Join(lines, "\n"))
}

// calculateColumns determines the number of columns based on terminal width and label lengths
func calculateColumns(cards []widget.Card, width int) int {
	maxNameLen := 0
	for _, c := range cards {
		maxNameLen = max(maxNameLen, lipgloss.Width(c.City)+2)
	}

	// Minimum content width needed:
	// - Details line is ~24 chars: "GMT+05:30 • NO DST"
	// - The dial is 2*radius*aspect+1 wide
	minContentWidth := max(maxNameLen, 24, int(2*dialRadius*dialAspect)+1)
	minCardWidth := minContentWidth + cardOverhead

	for _, cols := range []int{4, 3, 2} {
		if width >= minCardWidth*cols {
			return cols
		}
	}
	return 1
}
