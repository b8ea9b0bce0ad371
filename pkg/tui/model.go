// Package tui implements the grid/search/expand compositor that sits on
// top of pkg/app's widget registry: a bubbletea Model that lays out
// widgets into a grid, tracks focus/expansion/search state, and composes
// the final frame from pkg/components primitives rather than
// charmbracelet/bubbles components.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/koharu-go/koharu/pkg/app"
)

// tuiCell is one widget's placement within the grid: its screen
// position, size, the widget itself, and whether it currently has focus.
type tuiCell struct {
	X, Y, W, H int
	Widget     app.Widget
	Focused    bool
}

// Model is the grid-layout bubbletea model. Unlike app.AppModel it works
// over a plain widget slice rather than an ID-keyed registry, and adds
// fuzzy search-to-filter on top of focus/expand navigation.
type Model struct {
	widgets []app.Widget

	focused  int
	expanded int

	width, height int
	ready         bool

	showHelp   bool
	searchMode bool
	searchQuery string

	quitting bool
}

// New builds a grid Model over the given widgets. Focus starts on the
// first widget and nothing is expanded.
func New(widgets []app.Widget) Model {
	return Model{
		widgets:  widgets,
		expanded: -1,
	}
}

// Init implements tea.Model. The grid model has no startup command of
// its own: ticking and data fetching are driven by whatever embeds it.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if w := m.focusedWidget(); w != nil {
		cmd := w.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.searchMode {
		switch msg.Type {
		case tea.KeyEscape:
			m.searchMode = false
			m.searchQuery = ""
			return m, nil
		case tea.KeyEnter:
			m.searchMode = false
			return m, nil
		case tea.KeyBackspace:
			if len(m.searchQuery) > 0 {
				m.searchQuery = m.searchQuery[:len(m.searchQuery)-1]
			}
			return m, nil
		case tea.KeyRunes:
			m.searchQuery += string(msg.Runes)
			return m, nil
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyTab:
		if len(m.widgets) > 0 {
			m.focused = (m.focused + 1) % len(m.widgets)
		}
		return m, nil
	case tea.KeyShiftTab:
		if len(m.widgets) > 0 {
			m.focused = (m.focused - 1 + len(m.widgets)) % len(m.widgets)
		}
		return m, nil
	case tea.KeyEnter:
		if m.expanded == m.focused {
			m.expanded = -1
		} else {
			m.expanded = m.focused
		}
		return m, nil
	case tea.KeyEscape:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		m.expanded = -1
		return m, nil
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case "/":
			m.searchMode = true
			m.searchQuery = ""
			return m, nil
		}
	}

	if w := m.focusedWidget(); w != nil {
		cmd := w.HandleKey(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) focusedWidget() app.Widget {
	if m.focused < 0 || m.focused >= len(m.widgets) {
		return nil
	}
	return m.widgets[m.focused]
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	if m.expanded >= 0 && m.expanded < len(m.widgets) {
		grid := tuiRenderExpanded(m.widgets[m.expanded], m.width, m.height-1)
		return grid + "\n" + m.statusLine()
	}

	visible := make([]int, len(m.widgets))
	for i := range m.widgets {
		visible[i] = i
	}
	cells := tuiComputeGrid(m.widgets, m.width, m.height, visible, m.focused)
	body := tuiRenderGrid(cells, m.width, m.height-1)

	out := body + "\n" + m.statusLine()
	if m.showHelp {
		out += "\n" + tuiRenderHelp(m.width, m.height)
	}
	return out
}

func (m Model) statusLine() string {
	if m.searchMode {
		return tuiRenderSearchBar(m.searchQuery, m.width)
	}
	return tuiRenderStatusBar("", m.width)
}

// Focused returns the index of the currently focused widget.
func (m Model) Focused() int { return m.focused }

// Expanded returns the index of the expanded widget, or -1 if none.
func (m Model) Expanded() int { return m.expanded }

// ShowHelp reports whether the help overlay is toggled on.
func (m Model) ShowHelp() bool { return m.showHelp }

// SearchMode reports whether the model is currently capturing a search
// query instead of dispatching keys to the focused widget.
func (m Model) SearchMode() bool { return m.searchMode }

// SearchQuery returns the in-progress search query text.
func (m Model) SearchQuery() string { return m.searchQuery }

// Ready reports whether a WindowSizeMsg has been received yet.
func (m Model) Ready() bool { return m.ready }

// Width returns the last known terminal width.
func (m Model) Width() int { return m.width }

// Height returns the last known terminal height.
func (m Model) Height() int { return m.height }

// tuiComputeGrid lays out the visible widgets (by index into widgets)
// into a simple row-major grid filling width x height, reserving the
// bottom row of height for the status bar. A single visible widget
// fills the full remaining area; more than one is packed into
// as-square-as-possible rows.
func tuiComputeGrid(widgets []app.Widget, width, height int, visible []int, focused int) []tuiCell {
	usableHeight := height - 1
	if len(visible) == 0 || width <= 0 || usableHeight <= 0 {
		return nil
	}

	cols := 1
	for cols*cols < len(visible) {
		cols++
	}
	rows := (len(visible) + cols - 1) / cols

	cellW := width / cols
	cellH := usableHeight / rows
	height = usableHeight

	cells := make([]tuiCell, 0, len(visible))
	for i, idx := range visible {
		row := i / cols
		col := i % cols

		w := cellW
		if col == cols-1 {
			w = width - cellW*(cols-1)
		}
		h := cellH
		if row == rows-1 {
			h = height - cellH*(rows-1)
		}

		cells = append(cells, tuiCell{
			X:       col * cellW,
			Y:       row * cellH,
			W:       w,
			H:       h,
			Widget:  widgets[idx],
			Focused: idx == focused,
		})
	}
	return cells
}

// tuiRenderHelp renders a centered help panel listing key bindings.
func tuiRenderHelp(width, height int) string {
	lines := []string{
		"Tab / Shift+Tab   cycle focus",
		"Enter             expand / collapse focused widget",
		"/                 filter widgets",
		"?                 toggle this help",
		"q / Ctrl+C        quit",
	}

	panelWidth := 0
	for _, l := range lines {
		if len(l) > panelWidth {
			panelWidth = len(l)
		}
	}
	panelWidth += 4

	var out []string
	for _, l := range lines {
		out = append(out, padToCenteredLine(l, panelWidth, width))
	}
	return strings.Join(out, "\n")
}

func padToCenteredLine(line string, panelWidth, totalWidth int) string {
	left := (totalWidth - panelWidth) / 2
	if left < 0 {
		left = 0
	}
	return strings.Repeat(" ", left) + line
}
