// Package chooser asks the user which handler should take an entity when
// several plugins can handle it equally well.
package chooser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/routing"
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Cancel key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		Cancel: key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc", "skip")),
	}
}

type styles struct {
	Title    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Help     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).MarginBottom(1),
		Item:     lipgloss.NewStyle().PaddingLeft(2),
		Selected: lipgloss.NewStyle().PaddingLeft(0).Foreground(lipgloss.Color("212")).Bold(true),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}

// Model is the bubbletea model listing the tied candidates.
type Model struct {
	entity entity.Entity
	items  []routing.Candidate
	names  func(owner string) string
	cursor int
	chosen int
	keys   keyMap
	styles styles
}

// NewModel builds a chooser for e over tied.
func NewModel(e entity.Entity, tied []routing.Candidate) Model {
	return Model{
		entity: e,
		items:  tied,
		names:  func(owner string) string { return owner },
		chosen: -1,
		keys:   defaultKeys(),
		styles: defaultStyles(),
	}
}

// WithNames sets how handler owners are displayed.
func (m Model) WithNames(fn func(owner string) string) Model {
	if fn != nil {
		m.names = fn
	}
	return m
}

// Cursor returns the highlighted row.
func (m Model) Cursor() int { return m.cursor }

// Chosen returns the selected index, or -1 if the user skipped.
func (m Model) Chosen() int { return m.chosen }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case key.Matches(km, m.keys.Select):
		if len(m.items) > 0 {
			m.chosen = m.cursor
		}
		return m, tea.Quit
	case key.Matches(km, m.keys.Cancel):
		m.chosen = -1
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title()))
	b.WriteString("\n")
	for i, c := range m.items {
		line := fmt.Sprintf("%s (%s)", m.names(c.Owner), c.Grade)
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(m.styles.Item.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Help.Render("↑/↓ move • enter choose • esc skip"))
	return b.String()
}

func (m Model) title() string {
	what := m.entity.Mime
	if s, ok := m.entity.PayloadString(); ok && s != "" {
		what = s
	}
	return "Several plugins can handle " + what
}

// Terminal is a routing.Chooser that runs the model on a terminal. One
// prompt runs at a time.
type Terminal struct {
	mu    sync.Mutex
	in    io.Reader
	out   io.Writer
	names func(string) string
}

// New creates a terminal chooser reading keys from in and drawing to out.
func New(in io.Reader, out io.Writer, names func(owner string) string) *Terminal {
	return &Terminal{in: in, out: out, names: names}
}

// Choose implements routing.Chooser.
func (t *Terminal) Choose(ctx context.Context, e entity.Entity, tied []routing.Candidate) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	model := NewModel(e, tied).WithNames(t.names)
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)
	final, err := p.Run()
	if err != nil {
		return -1, fmt.Errorf("running chooser: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return -1, fmt.Errorf("unexpected chooser model %T", final)
	}
	return m.Chosen(), nil
}
