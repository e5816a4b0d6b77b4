package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/philtim/multiclock/apperror"
	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/refclock"
	"github.com/philtim/multiclock/snippet"
	"github.com/philtim/multiclock/widget"
)

// viewState represents the current view state
type viewState int

const (
	viewMain viewState = iota
	viewAdd
	viewDelete
	viewConfirm
	viewOverride
	viewSnippets
)

// tickMsg is sent every frame interval to update the clocks
type tickMsg time.Time

// notice is a one-line message shown in the command bar until the next key
type notice struct {
	text  string
	isErr bool
}

// copyToClipboard is swapped out in tests
var copyToClipboard = clipboard.WriteAll

// model represents the application state
type model struct {
	ctx      context.Context
	state    *widget.State
	logger   *slog.Logger
	interval time.Duration

	cards   []widget.Card
	focus   int
	ticking bool

	// View state
	view     viewState
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	quitting bool
	notice   notice

	// Add mode state
	searchInput    textinput.Model
	searchResults  []catalog.Descriptor
	selectedResult int

	// Delete mode state
	deleteList     []widget.Card
	deleteSelected map[int]bool
	deleteCursor   int

	// Confirm mode state
	confirmMsg    string
	confirmAction func() error

	// Override mode state
	overrideInput textinput.Model

	// Snippet mode state
	snippetZone string
	snippets    []snippet.Snippet
}

func newModel(ctx context.Context, state *widget.State, interval time.Duration, logger *slog.Logger) model {
	search := textinput.New()
	search.Placeholder = "Search city, zone or alias..."
	search.CharLimit = 50
	search.Width = 50

	override := textinput.New()
	override.Placeholder = "3/15/2024 2:00 PM"
	override.CharLimit = 40
	override.Width = 40

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := model{
		ctx:            ctx,
		state:          state,
		logger:         logger,
		interval:       interval,
		view:           viewMain,
		searchInput:    search,
		overrideInput:  override,
		deleteSelected: make(map[int]bool),
		ticking:        true,
	}
	m.refresh()
	return m
}

// Init starts the frame loop
func (m model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

// Update handles messages and updates the model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd
	// The key that opens an input view must not land in its input
	prevView := m.view

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = m.handleKeyPress(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Reserve space for command bar (1 newline + 1 bar line)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-2)
			m.viewport.YPosition = 0
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 2
		}

	case tickMsg:
		m.refresh()
		// A pinned instant never changes: paint this frame and stop.
		if m.state.KeepTicking() {
			cmds = append(cmds, tickCmd(m.interval))
		} else {
			m.ticking = false
		}
	}

	if prevView == m.view {
		switch m.view {
		case viewAdd:
			m.searchInput, cmd = m.searchInput.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			m.searchResults = m.state.Available(m.searchInput.Value())
			if m.selectedResult >= len(m.searchResults) {
				m.selectedResult = 0
			}

		case viewOverride:
			m.overrideInput, cmd = m.overrideInput.Update(msg)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// refresh recomputes the clock cards from the widget state
func (m *model) refresh() {
	m.cards = m.state.Frame()
	if m.focus >= len(m.cards) {
		m.focus = max(len(m.cards)-1, 0)
	}
}

// restartTicking resumes the frame loop after an override is cleared
func (m *model) restartTicking() tea.Cmd {
	m.refresh()
	if m.ticking || !m.state.KeepTicking() {
		return nil
	}
	m.ticking = true
	return tickCmd(m.interval)
}

func (m *model) setNotice(text string) {
	m.notice = notice{text: text}
}

func (m *model) setError(err error) {
	if apperror.KindOf(err) == apperror.KindDuplicateSubscription {
		m.notice = notice{text: apperror.Message(err)}
		return
	}
	m.notice = notice{text: apperror.Message(err), isErr: true}
}

// handleKeyPress handles keyboard input based on current view state
func (m *model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return tea.Quit
	}

	m.notice = notice{}
	switch m.view {
	case viewMain:
		return m.handleMainKeys(msg)
	case viewAdd:
		return m.handleAddKeys(msg)
	case viewDelete:
		return m.handleDeleteKeys(msg)
	case viewConfirm:
		return m.handleConfirmKeys(msg)
	case viewOverride:
		return m.handleOverrideKeys(msg)
	case viewSnippets:
		return m.handleSnippetKeys(msg)
	}
	return nil
}

// handleMainKeys handles keys in main view
func (m *model) handleMainKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		m.quitting = true
		return tea.Quit

	case "a":
		if m.state.Full() {
			m.setNotice(fmt.Sprintf("Max %d clocks allowed", m.state.MaxClocks()))
			return nil
		}
		m.view = viewAdd
		m.searchInput.Reset()
		m.searchResults = m.state.Available("")
		m.selectedResult = 0
		m.searchInput.Focus()
		return textinput.Blink

	case "d":
		m.deleteList = slices.DeleteFunc(slices.Clone(m.cards), func(c widget.Card) bool {
			return c.Local
		})
		if len(m.deleteList) == 0 {
			m.setNotice("Only the local clock is left")
			return nil
		}
		m.view = viewDelete
		m.deleteSelected = make(map[int]bool)
		m.deleteCursor = 0

	case "o":
		m.view = viewOverride
		m.overrideInput.Reset()
		if t, ok := m.state.Pinned(); ok {
			m.overrideInput.SetValue(t.In(refclock.OverrideZone).Format("1/2/2006 3:04 PM"))
		}
		m.overrideInput.Focus()
		return textinput.Blink

	case "r":
		if m.state.Mode() == refclock.Live {
			return nil
		}
		m.state.ResetOverride()
		m.setNotice("Back to live time")
		return m.restartTicking()

	case "s":
		if len(m.cards) == 0 {
			return nil
		}
		c := m.cards[m.focus]
		snippets, err := m.state.Snippets(c.Timezone)
		if err != nil {
			m.setError(err)
			return nil
		}
		m.snippetZone = c.Label
		m.snippets = snippets
		m.view = viewSnippets
		m.viewport.GotoTop()

	case "left", "h":
		if m.focus > 0 {
			m.focus--
		}

	case "right", "l":
		if m.focus < len(m.cards)-1 {
			m.focus++
		}

	case "t":
		if err := m.state.ToggleTheme(m.ctx); err != nil {
			m.setError(err)
		}

	case "m":
		if err := m.state.ToggleDisplayMode(m.ctx); err != nil {
			m.setError(err)
		}
	}

	return nil
}

// handleAddKeys handles keys in add view
func (m *model) handleAddKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.view = viewMain
		return nil

	case "up":
		if m.selectedResult > 0 {
			m.selectedResult--
		}

	case "down":
		if m.selectedResult < len(m.searchResults)-1 {
			m.selectedResult++
		}

	case "enter":
		if len(m.searchResults) == 0 || m.selectedResult >= len(m.searchResults) {
			return nil
		}
		zone := m.searchResults[m.selectedResult]
		m.view = viewMain
		if err := m.state.AddClock(m.ctx, zone.ID); err != nil {
			m.setError(err)
			return nil
		}
		m.refresh()
		m.setNotice(fmt.Sprintf("Added %s", zone.Label))
	}

	return nil
}

// handleDeleteKeys handles keys in delete view
func (m *model) handleDeleteKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.view = viewMain
		return nil

	case "up":
		if m.deleteCursor > 0 {
			m.deleteCursor--
		}

	case "down":
		if m.deleteCursor < len(m.deleteList)-1 {
			m.deleteCursor++
		}

	case " ":
		m.deleteSelected[m.deleteCursor] = !m.deleteSelected[m.deleteCursor]

	case "enter":
		var toDelete []string
		var labels []string
		for idx, c := range m.deleteList {
			if m.deleteSelected[idx] {
				toDelete = append(toDelete, c.Timezone)
				labels = append(labels, c.Label)
			}
		}
		if len(toDelete) == 0 {
			m.setNotice("No clocks selected")
			return nil
		}

		m.view = viewConfirm
		if len(toDelete) == 1 {
			m.confirmMsg = fmt.Sprintf("Remove '%s'? (y/n)", labels[0])
		} else {
			m.confirmMsg = fmt.Sprintf("Remove %d selected clocks? (y/n)", len(toDelete))
		}
		m.confirmAction = func() error {
			return m.state.RemoveClocks(m.ctx, toDelete)
		}
	}

	return nil
}

// handleConfirmKeys handles keys in confirm view
func (m *model) handleConfirmKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y":
		m.view = viewMain
		err := m.confirmAction()
		m.refresh()
		if err != nil {
			m.setError(err)
		}

	case "n", "esc":
		m.view = viewMain
	}

	return nil
}

// handleOverrideKeys handles keys in override view
func (m *model) handleOverrideKeys(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.view = viewMain

	case "enter":
		if err := m.state.ApplyOverride(m.overrideInput.Value()); err != nil {
			m.setError(err)
			return nil
		}
		m.view = viewMain
		m.refresh()
		m.setNotice("Time override active")
	}
	return nil
}

// handleSnippetKeys handles keys in snippet view
func (m *model) handleSnippetKeys(msg tea.KeyMsg) tea.Cmd {
	switch key := msg.String(); key {
	case "esc", "q":
		m.view = viewMain

	case "1", "2", "3":
		idx := int(key[0] - '1')
		if idx >= len(m.snippets) {
			return nil
		}
		s := m.snippets[idx]
		if err := copyToClipboard(s.Code); err != nil {
			m.logger.Warn("clipboard unavailable", "error", err)
			m.notice = notice{text: "Clipboard unavailable", isErr: true}
			return nil
		}
		m.setNotice(fmt.Sprintf("%s copied", s.Language))
	}
	return nil
}

// View renders the UI
func (m model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.ready {
		return "Initializing..."
	}

	switch m.view {
	case viewMain:
		return m.renderMain()
	case viewAdd:
		return m.renderAdd()
	case viewDelete:
		return m.renderDelete()
	case viewConfirm:
		return m.renderConfirm()
	case viewOverride:
		return m.renderOverride()
	case viewSnippets:
		return m.renderSnippets()
	}

	return ""
}

func (m model) palette() palette {
	return paletteFor(m.state.Preferences().Theme)
}

func (m model) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(m.palette().time).
		Padding(1, 0)
}

func (m model) hint(s string) string {
	return lipgloss.NewStyle().Foreground(m.palette().muted).Render(s)
}

func (m model) highlight(s string) string {
	return lipgloss.NewStyle().
		Foreground(m.palette().time).
		Bold(true).
		Render(s)
}

// renderMain renders the main clock view
func (m model) renderMain() string {
	content := renderClocks(m.cards, m.state.Preferences(), m.focus, m.width)
	m.viewport.SetContent(content)
	return fmt.Sprintf("%s\n%s", m.viewport.View(), m.renderCommandBar())
}

// renderAdd renders the add clock view
func (m model) renderAdd() string {
	var b strings.Builder

	b.WriteString(m.titleStyle().Render("Add Clock"))
	b.WriteString("\n\n")
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	if len(m.searchResults) == 0 {
		b.WriteString(m.hint("No zones found"))
	} else {
		b.WriteString(fmt.Sprintf("Zones (%d):\n", len(m.searchResults)))
		maxVisible := 10
		start := 0
		if m.selectedResult >= maxVisible {
			start = m.selectedResult - maxVisible + 1
		}
		end := min(start+maxVisible, len(m.searchResults))

		for i := start; i < end; i++ {
			z := m.searchResults[i]
			line := fmt.Sprintf("  %-28s %s", z.Label, m.state.Offset(z.ID))
			if i == m.selectedResult {
				line = m.highlight("> " + line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.hint("↑/↓: Navigate | Enter: Select | ESC: Cancel"))
	b.WriteString(m.renderNotice())
	return b.String()
}

// renderDelete renders the remove clocks view
func (m model) renderDelete() string {
	var b strings.Builder

	b.WriteString(m.titleStyle().Render("Remove Clocks"))
	b.WriteString("\n\n")

	for i, c := range m.deleteList {
		checkbox := " "
		if m.deleteSelected[i] {
			checkbox = "x"
		}
		line := fmt.Sprintf("  [%s] %s", checkbox, c.Label)

		if i == m.deleteCursor {
			line = m.highlight("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.hint("↑/↓: Navigate | Space: Toggle | Enter: Remove | ESC: Cancel"))
	b.WriteString(m.renderNotice())
	return b.String()
}

// renderConfirm renders the confirmation dialog
func (m model) renderConfirm() string {
	var b strings.Builder

	b.WriteString(m.titleStyle().Render("Confirm"))
	b.WriteString("\n\n")
	b.WriteString(m.confirmMsg)
	b.WriteString("\n\n")
	b.WriteString(m.hint("y: Yes | n/ESC: No"))
	return b.String()
}

// renderOverride renders the time override dialog
func (m model) renderOverride() string {
	var b strings.Builder

	b.WriteString(m.titleStyle().Render("Time Override"))
	b.WriteString("\n\n")
	b.WriteString("Date and time in SFMC system time (UTC-06:00):\n")
	b.WriteString(m.overrideInput.View())
	b.WriteString("\n\n")
	b.WriteString(m.hint("Enter: Apply | ESC: Cancel"))
	b.WriteString(m.renderNotice())
	return b.String()
}

// renderSnippets renders the SFMC code for the focused clock
func (m model) renderSnippets() string {
	var b strings.Builder
	codeStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(m.palette().border).
		Padding(0, 1)

	b.WriteString(m.titleStyle().Render("SFMC code: " + m.snippetZone))
	b.WriteString("\n")
	for i, s := range m.snippets {
		b.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, s.Language))
		b.WriteString(codeStyle.Render(s.Code))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	bar := m.hint("1/2/3: Copy | ↑/↓: Scroll | ESC: Back") + m.renderNotice()
	return fmt.Sprintf("%s\n%s", m.viewport.View(), bar)
}

func (m model) renderNotice() string {
	if m.notice.text == "" {
		return ""
	}
	color := m.palette().noticeFg
	if m.notice.isErr {
		color = m.palette().errorFg
	}
	return "  " + lipgloss.NewStyle().Foreground(color).Render(m.notice.text)
}

// renderCommandBar renders the command bar at the bottom
func (m model) renderCommandBar() string {
	p := m.palette()
	style := lipgloss.NewStyle().
		Foreground(p.barFg).
		Background(p.barBg).
		Padding(0, 1)

	commands := "a: Add | d: Remove | o: Override | r: Live | s: Code | t: Theme | m: Mode | q: Quit"
	leftContent := style.Render(commands)

	status := "LIVE"
	if t, ok := m.state.Pinned(); ok {
		status = "PINNED " + t.In(refclock.OverrideZone).Format("2006-01-02 15:04") + " SFMC"
	}
	if m.notice.text != "" {
		status = m.notice.text + " | " + status
	}
	rightStyle := style
	if m.notice.isErr {
		rightStyle = style.Foreground(p.errorFg)
	}
	rightContent := rightStyle.Render(status)

	// Calculate spacing to push right content to the right
	spacingWidth := max(m.width-lipgloss.Width(leftContent)-lipgloss.Width(rightContent), 0)
	spacing := strings.Repeat(" ", spacingWidth)

	barStyle := lipgloss.NewStyle().Background(p.barBg)
	return barStyle.Render(leftContent + spacing + rightContent)
}

// tickCmd returns a command that sends a tick message after interval
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
