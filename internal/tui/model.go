package tui

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/codespectre/internal/models"
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeFilterTool
	modeFailures
)

const (
	defaultTableHeight = 15
	failuresShown      = 8
)

// Model browses the findings of one stored audit run.
type Model struct {
	run      *models.AuditRun
	trend    *models.TrendSummary
	all      []models.FlatFinding
	failures []failedCell

	table       table.Model
	searchInput textinput.Model
	toolChoices []string

	filteredFindings []models.FlatFinding
	filters          filterState
	sortBy           sortField
	mode             mode
	toolCursor       int
	width, height    int
	statusMsg        string

	// clipboard holds the last copied text; clipboardOut receives the
	// OSC 52 sequence.
	clipboard    string
	clipboardOut io.Writer
}

// New builds a model over run. trend may be nil.
func New(run *models.AuditRun, trend *models.TrendSummary) Model {
	findings := run.Context.Analysis.Flatten()
	sortFindings(findings, sortBySeverity)

	search := textinput.New()
	search.Placeholder = "file, rule, message..."
	search.CharLimit = 64

	return Model{
		run:              run,
		trend:            trend,
		all:              findings,
		failures:         failedCells(run.Context.Analysis),
		table:            newTable(buildRows(findings), defaultTableHeight),
		searchInput:      search,
		toolChoices:      uniqueTools(findings),
		filteredFindings: findings,
		sortBy:           sortBySeverity,
		width:            80,
		height:           24,
		clipboardOut:     os.Stdout,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeFilterTool:
			return m.updateToolPicker(msg), nil
		case modeFailures:
			return m.updateFailures(msg)
		default:
			return m.updateNormal(msg)
		}
	}

	var cmd tea.Cmd
	if m.mode == modeSearch {
		m.searchInput, cmd = m.searchInput.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.table.SetWidth(width)
	m.table.SetHeight(max(height-headerHeight-detailHeight-3, 3))
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Search):
		m.mode = modeSearch
		m.searchInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, keys.FilterTool):
		m.mode = modeFilterTool
		m.toolCursor = 0
	case key.Matches(msg, keys.FilterSeverity):
		m.filters.Severity = nextSeverity(m.filters.Severity)
		m.refresh()
		m.setStatus("Severity", string(m.filters.Severity))
	case key.Matches(msg, keys.Sort):
		m.sortBy = (m.sortBy + 1) % sortFieldCount
		m.refresh()
		m.setStatus("Sort", sortFieldName(m.sortBy))
	case key.Matches(msg, keys.Copy):
		m.copySelectedFinding()
	case key.Matches(msg, keys.Failures):
		m.mode = modeFailures
	case key.Matches(msg, keys.ClearFilter):
		m.filters = filterState{}
		m.statusMsg = ""
		m.refresh()
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filters.SearchText = m.searchInput.Value()
		m.refresh()
	case tea.KeyEsc:
		m.searchInput.SetValue("")
	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}
	m.mode = modeNormal
	m.searchInput.Blur()
	return m, nil
}

// updateToolPicker moves through "All" followed by the tool names.
func (m Model) updateToolPicker(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "up", "k":
		m.toolCursor = max(m.toolCursor-1, 0)
	case "down", "j":
		m.toolCursor = min(m.toolCursor+1, len(m.toolChoices))
	case "enter":
		m.filters.Tool = ""
		if m.toolCursor > 0 {
			m.filters.Tool = m.toolChoices[m.toolCursor-1]
		}
		m.mode = modeNormal
		m.refresh()
		m.setStatus("Filter", m.filters.Tool)
	case "esc":
		m.mode = modeNormal
	}
	return m
}

func (m Model) updateFailures(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Failures), key.Matches(msg, keys.ClearFilter):
		m.mode = modeNormal
	}
	return m, nil
}

// setStatus shows "label: value", or clears the status for an empty value.
func (m *Model) setStatus(label, value string) {
	m.statusMsg = ""
	if value != "" {
		m.statusMsg = label + ": " + value
	}
}

// nextSeverity cycles all, CRITICAL through INFO, then all again.
func nextSeverity(current models.Severity) models.Severity {
	if current == "" {
		return models.Severities[0]
	}
	for i, sev := range models.Severities[:len(models.Severities)-1] {
		if sev == current {
			return models.Severities[i+1]
		}
	}
	return ""
}

// refresh reapplies filters and sort to the full finding list.
func (m *Model) refresh() {
	m.filteredFindings = applyFilters(m.all, m.filters)
	sortFindings(m.filteredFindings, m.sortBy)
	m.table.SetRows(buildRows(m.filteredFindings))
	if m.table.Cursor() >= len(m.filteredFindings) {
		m.table.SetCursor(0)
	}
}

func (m *Model) selectedFinding() *models.FlatFinding {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.filteredFindings) {
		return nil
	}
	return &m.filteredFindings[i]
}

// copySelectedFinding puts the selected finding on the terminal clipboard.
func (m *Model) copySelectedFinding() {
	ff := m.selectedFinding()
	if ff == nil {
		m.statusMsg = "Nothing to copy"
		return
	}
	m.clipboard = fmt.Sprintf("[%s] %s %s %s: %s",
		ff.Finding.Severity.Normalize(), ff.Tool, orDash(ff.Finding.RuleID), location(*ff), ff.Finding.Message)
	m.statusMsg = "Copied!"
	if m.clipboardOut != nil {
		fmt.Fprintf(m.clipboardOut, "\033]52;c;%s\a", base64.StdEncoding.EncodeToString([]byte(m.clipboard)))
	}
}

func (m Model) View() string {
	var sparkline []int
	if m.trend != nil {
		sparkline = m.trend.FindingSparkline
	}

	sections := []string{renderHeader(m.run, sparkline, m.width)}
	switch m.mode {
	case modeSearch:
		sections = append(sections, styleSearchPrompt.Render("/ ")+m.searchInput.View())
	case modeFilterTool:
		sections = append(sections, m.renderToolPicker())
	}

	if m.mode == modeFailures {
		sections = append(sections, renderFailures(m.failures, failuresShown, m.width))
	} else {
		sections = append(sections, m.table.View(), renderDetail(m.selectedFinding(), m.width))
	}

	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderToolPicker() string {
	var b strings.Builder
	b.WriteString("Filter by tool:")
	for i, opt := range append([]string{"All"}, m.toolChoices...) {
		marker := "  "
		if i == m.toolCursor {
			marker = "> "
		}
		b.WriteString("\n" + marker + opt)
	}
	return b.String()
}

func (m Model) renderFooter() string {
	left := footerHelp()
	right := fmt.Sprintf("%d/%d findings", len(m.filteredFindings), len(m.all))
	if n := len(m.failures); n > 0 {
		right = fmt.Sprintf("%d failed  %s", n, right)
	}
	if m.statusMsg != "" {
		right = m.statusMsg + "  " + right
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return styleFooter.Render(left + strings.Repeat(" ", gap) + right)
}

// Run starts the browser in the alternate screen and blocks until it quits.
func Run(run *models.AuditRun, trend *models.TrendSummary) error {
	_, err := tea.NewProgram(New(run, trend), tea.WithAltScreen()).Run()
	return err
}
