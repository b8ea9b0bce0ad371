package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Widget is the interface every dashboard panel implements. AppModel treats
// widgets opaquely: it owns focus, expansion, and layout, and leaves
// content rendering and per-widget key handling to the widget itself.
type Widget interface {
	ID() string
	Title() string
	Update(msg tea.Msg) tea.Cmd
	View(width, height int) string
	MinSize() (int, int)
	HandleKey(key tea.KeyMsg) tea.Cmd
}

// Config holds the tunables that shape AppModel's behavior.
type Config struct {
	RefreshInterval time.Duration
}

// DefaultConfig returns the tunables the program starts with absent any
// user override.
func DefaultConfig() *Config {
	return &Config{RefreshInterval: 2 * time.Second}
}

// AppModel is the root Elm-architecture model: it owns the widget registry,
// focus/expansion state, the collected data store keyed by collector
// source, and the window dimensions it was last sized to.
type AppModel struct {
	cfg Config

	widgets     map[string]Widget
	widgetOrder []string

	focusedWidget  string
	expandedWidget string

	width, height int
	layoutDirty   bool

	quitting    bool
	helpVisible bool

	dataStore map[string]interface{}
}

// NewAppModel builds a root model over the given widgets, in the order
// given. The first widget (if any) starts focused. A nil cfg falls back
// to DefaultConfig.
func NewAppModel(cfg *Config, widgets ...Widget) AppModel {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := AppModel{
		cfg:       *cfg,
		widgets:   make(map[string]Widget, len(widgets)),
		dataStore: make(map[string]interface{}),
	}
	for _, w := range widgets {
		m.widgets[w.ID()] = w
		m.widgetOrder = append(m.widgetOrder, w.ID())
	}
	if len(m.widgetOrder) > 0 {
		m.focusedWidget = m.widgetOrder[0]
	}
	return m
}

// Init starts the periodic tick that drives UI refresh.
func (m AppModel) Init() tea.Cmd {
	return TickCmd(m.cfg.RefreshInterval)
}

// Update dispatches bubbletea messages: window resizes mark the layout
// dirty, key presses drive focus/expansion/quit/help, data and tick
// events update the model's own state, and anything else is forwarded to
// the focused widget.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutDirty = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickEvent:
		return m, TickCmd(m.cfg.RefreshInterval)

	case DataUpdateEvent:
		if msg.Err == nil {
			m.dataStore[msg.Source] = msg.Data
		}
		return m, nil

	case WidgetFocusEvent:
		m.FocusWidget(msg.WidgetID)
		return m, nil

	case WidgetExpandEvent:
		if m.expandedWidget == msg.WidgetID {
			m.expandedWidget = ""
		} else {
			m.expandedWidget = msg.WidgetID
		}
		return m, nil
	}

	if w, ok := m.widgets[m.focusedWidget]; ok {
		cmd := w.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyTab:
		m.CycleFocusForward()
		return m, nil
	case tea.KeyShiftTab:
		m.CycleFocusBackward()
		return m, nil
	case tea.KeyEnter:
		m.ToggleExpand()
		return m, nil
	case tea.KeyEscape:
		m.expandedWidget = ""
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		switch string(msg.Runes) {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.helpVisible = !m.helpVisible
			return m, nil
		}
	}

	if w, ok := m.widgets[m.focusedWidget]; ok {
		cmd := w.HandleKey(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the full dashboard: "Initializing..." before the first
// WindowSizeMsg, empty once quitting, the focused widget fullscreen when
// expanded, and otherwise one line per widget holding its title, followed
// by the key help line when help is visible.
func (m AppModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.expandedWidget != "" {
		if w, ok := m.widgets[m.expandedWidget]; ok {
			return w.View(m.width, m.height)
		}
	}

	var out string
	for _, id := range m.widgetOrder {
		w := m.widgets[id]
		out += w.Title() + "\n"
	}
	if m.helpVisible {
		out += "\nTab:focus  Enter:expand  ?:help  q:quit\n"
	}
	return out
}

// Width returns the last known terminal width.
func (m AppModel) Width() int { return m.width }

// Height returns the last known terminal height.
func (m AppModel) Height() int { return m.height }

// LayoutDirty reports whether the window has been resized since the
// layout was last recomputed.
func (m AppModel) LayoutDirty() bool { return m.layoutDirty }

// FocusedWidgetID returns the ID of the currently focused widget, or the
// empty string if there are no widgets.
func (m AppModel) FocusedWidgetID() string { return m.focusedWidget }

// ExpandedWidgetID returns the ID of the fullscreen-expanded widget, or
// the empty string if no widget is expanded.
func (m AppModel) ExpandedWidgetID() string { return m.expandedWidget }

// Quitting reports whether the model has processed a quit key.
func (m AppModel) Quitting() bool { return m.quitting }

// HelpVisible reports whether the help overlay is toggled on.
func (m AppModel) HelpVisible() bool { return m.helpVisible }

// DataStore returns the collected per-source data, as populated by
// DataUpdateEvent messages.
func (m AppModel) DataStore() map[string]interface{} { return m.dataStore }
