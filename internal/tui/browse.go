package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/scan"
	"github.com/hheimbuerger/code-brainstormer-lm/internal/store"
)

type Pane int

const (
	PaneList Pane = iota
	PaneDetail
)

// BrowseModel is a read-only browser over the function graph: a function
// list on the left, the selected function's aspects on the right.
type BrowseModel struct {
	store      *store.Store
	styles     *Styles
	functions  []*model.Function
	cursor     int
	viewport   viewport.Model
	activePane Pane
	width      int
	height     int
	quitting   bool
	help       help.Model
	keys       keyMap
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Tab    key.Binding
	Top    key.Binding
	Bottom key.Binding
	Quit   key.Binding
}

func (km keyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Up, km.Down, km.Tab, km.Quit}
}

func (km keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Up, km.Down},
		{km.Top, km.Bottom},
		{km.Tab, km.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev function"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next function"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Top: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "first"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "last"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewBrowseModel builds the browser over a loaded store.
func NewBrowseModel(s *store.Store) BrowseModel {
	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle()

	m := BrowseModel{
		store:      s,
		styles:     DefaultStyles(),
		functions:  s.List(),
		viewport:   vp,
		activePane: PaneList,
		width:      80,
		height:     24,
		help:       help.New(),
		keys:       newKeyMap(),
	}
	m.refreshDetail()
	return m
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - msg.Width/3 - 8
		m.viewport.Height = msg.Height - 8
		m.refreshDetail()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			if m.activePane == PaneList {
				m.activePane = PaneDetail
			} else {
				m.activePane = PaneList
			}
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.activePane == PaneDetail {
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
			if m.cursor > 0 {
				m.cursor--
				m.refreshDetail()
			}
			return m, nil

		case key.Matches(msg, m.keys.Down):
			if m.activePane == PaneDetail {
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
			if m.cursor < len(m.functions)-1 {
				m.cursor++
				m.refreshDetail()
			}
			return m, nil

		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
			m.refreshDetail()
			return m, nil

		case key.Matches(msg, m.keys.Bottom):
			if len(m.functions) > 0 {
				m.cursor = len(m.functions) - 1
				m.refreshDetail()
			}
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *BrowseModel) refreshDetail() {
	if m.cursor >= len(m.functions) {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.renderDetail(m.functions[m.cursor]))
	m.viewport.GotoTop()
}

func (m BrowseModel) View() string {
	if m.quitting {
		return ""
	}

	if len(m.functions) == 0 {
		return m.styles.Subtitle.Render("No functions in this project yet.")
	}

	title := m.styles.Title.Render(fmt.Sprintf("%s  (%d functions)",
		m.store.ProjectName(), len(m.functions)))

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderList(),
		m.renderDetailPanel(),
	)

	bottom := m.styles.Help.Render(m.help.ShortHelpView(m.keys.ShortHelp()))

	return lipgloss.JoinVertical(lipgloss.Left, title, panels, bottom)
}

func (m BrowseModel) renderList() string {
	maxRows := m.height - 8
	if maxRows < 1 {
		maxRows = 1
	}

	// Keep the cursor visible in long lists.
	start := 0
	if m.cursor >= maxRows {
		start = m.cursor - maxRows + 1
	}

	var rows []string
	for i := start; i < len(m.functions) && i-start < maxRows; i++ {
		fn := m.functions[i]
		label := fn.Name()
		if label == "" {
			label = "(unnamed)"
		}
		badge := LifecycleLabel(m.lowestLifecycle(fn))
		line := fmt.Sprintf("%-4s %s", badge, label)
		if i == m.cursor {
			rows = append(rows, m.styles.ListSelected.Render(line))
		} else {
			rows = append(rows, m.styles.ListItem.Render(line))
		}
	}

	style := m.styles.Border
	if m.activePane == PaneList {
		style = m.styles.ActiveBorder
	}
	width := m.width / 3
	return style.Width(width).Render(strings.Join(rows, "\n"))
}

// lowestLifecycle summarizes a function for the list: locked beats edited
// beats autogenerated beats unset.
func (m BrowseModel) lowestLifecycle(fn *model.Function) model.Lifecycle {
	summary := model.LifecycleUnset
	rank := map[model.Lifecycle]int{
		model.LifecycleUnset:         0,
		model.LifecycleAutogenerated: 1,
		model.LifecycleEdited:        2,
		model.LifecycleLocked:        3,
	}
	for _, a := range model.AspectOrder {
		l := fn.AspectValue(a).Lifecycle
		if rank[l] > rank[summary] {
			summary = l
		}
	}
	return summary
}

func (m BrowseModel) renderDetailPanel() string {
	style := m.styles.Border
	if m.activePane == PaneDetail {
		style = m.styles.ActiveBorder
	}
	return style.Render(m.viewport.View())
}

func (m BrowseModel) renderDetail(fn *model.Function) string {
	var sections []string

	for _, a := range model.AspectOrder {
		v := fn.AspectValue(a)
		badge := m.styles.LifecycleBadge(v.Lifecycle).Render(LifecycleLabel(v.Lifecycle))
		header := lipgloss.JoinHorizontal(lipgloss.Top,
			m.styles.AspectName.Render(string(a)), " ", badge)

		body := v.Text
		if body == "" {
			body = "(empty)"
		}
		sections = append(sections, header, m.styles.AspectBody.Render(body), "")
	}

	if fn.RenderedCode != "" {
		sections = append(sections,
			m.styles.AspectName.Render("rendered code"),
			m.styles.AspectBody.Render(fn.RenderedCode),
			"")
	}

	if calls := m.renderCalls(fn); calls != "" {
		sections = append(sections, m.styles.AspectName.Render("calls"), calls)
	}

	return strings.Join(sections, "\n")
}

func (m BrowseModel) renderCalls(fn *model.Function) string {
	refs := scan.Calls(fn.Implementation.Text)
	if len(refs) == 0 {
		return ""
	}

	var lines []string
	for _, ref := range refs {
		marker := ""
		if _, ok := m.store.FindByName(ref.Name); !ok {
			marker = "  (unresolved)"
		}
		lines = append(lines, fmt.Sprintf("  %s #%d%s", ref.Name, ref.Occurrence, marker))
	}
	return m.styles.AspectBody.Render(strings.Join(lines, "\n"))
}
