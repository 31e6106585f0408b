// Package ui renders pipeline progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"faultline/internal/pipeline"
)

// fileState is where one module is in the batch. finished and failed are
// terminal: late events for the file are ignored.
type fileState uint8

const (
	stateQueued fileState = iota
	stateActive
	stateFinished
	stateFailed
)

func (s fileState) terminal() bool { return s == stateFinished || s == stateFailed }

// stageWeight is the share of a module's work done once a stage starts.
var stageWeight = map[pipeline.Stage]float64{
	pipeline.StageLoad:   0.2,
	pipeline.StagePasses: 0.6,
	pipeline.StageWrite:  0.9,
}

var stageVerb = map[pipeline.Stage]string{
	pipeline.StageLoad:   "loading",
	pipeline.StagePasses: "instrumenting",
	pipeline.StageWrite:  "writing",
	pipeline.StageReport: "reporting",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stateStyles = map[fileState]lipgloss.Style{
		stateQueued:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		stateActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		stateFinished: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		stateFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

const statusWidth = 13

type fileItem struct {
	name    string
	state   fileState
	stage   pipeline.Stage
	detail  string
	targets int
}

// label is the word shown in the status column.
func (it fileItem) label() string {
	switch it.state {
	case stateFinished:
		return "done"
	case stateFailed:
		return "error"
	case stateActive:
		return stageVerb[it.stage]
	}
	return "queued"
}

func (it fileItem) weight() float64 {
	if it.state.terminal() {
		return 1
	}
	return stageWeight[it.stage]
}

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	bar     progress.Model
	items   []fileItem
	byName  map[string]int
	batch   string // batch-wide activity, e.g. "reporting"
	width   int
	done    bool
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows events for files
// until the channel closes.
func NewProgressModel(title string, files []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stateStyles[stateActive]

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		items:   make([]fileItem, len(files)),
		byName:  make(map[string]int, len(files)),
		width:   80,
	}
	m.bar.Width = m.width - 4
	for i, f := range files {
		m.items[i] = fileItem{name: f}
		m.byName[f] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.applyEvent(pipeline.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	if ev.File == "" {
		if verb := stageVerb[ev.Stage]; verb != "" && ev.Status == pipeline.StatusWorking {
			m.batch = verb
		}
		return nil
	}
	i, ok := m.byName[ev.File]
	if !ok || m.items[i].state.terminal() {
		return nil
	}
	it := &m.items[i]
	switch {
	case ev.Status == pipeline.StatusError:
		it.state = stateFailed
		if ev.Err != nil {
			it.detail = ev.Err.Error()
		}
	case ev.Stage == pipeline.StageFinished:
		it.state = stateFinished
		it.targets = ev.Targets
	case ev.Status == pipeline.StatusWorking || ev.Status == pipeline.StatusDone:
		it.state = stateActive
		it.stage = ev.Stage
	}
	if ev.Detail != "" && it.state != stateFailed {
		it.detail = ev.Detail
	}
	return m.bar.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range m.items {
		sum += it.weight()
	}
	return sum / float64(len(m.items))
}

// summary is the footer line: finished modules, failures, total targets.
func (m *progressModel) summary() string {
	var finished, failed, targets int
	for _, it := range m.items {
		switch it.state {
		case stateFinished:
			finished++
			targets += it.targets
		case stateFailed:
			failed++
		}
	}
	s := fmt.Sprintf("%d/%d modules", finished+failed, len(m.items))
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	return s + fmt.Sprintf(", %d targets", targets)
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	header := m.title
	if m.batch != "" {
		header += " (" + m.batch + ")"
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusWidth-4, 20)
	for _, it := range m.items {
		name := truncate(it.name, nameWidth)
		if it.detail != "" {
			name = truncate(it.name, nameWidth-runewidth.StringWidth(it.detail)-3) +
				detailStyle.Render(" ("+it.detail+")")
		}
		status := stateStyles[it.state].Render(fmt.Sprintf("%*s", statusWidth, it.label()))
		fmt.Fprintf(&b, "  %s %s\n", status, name)
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.bar.ViewAs(1.0))
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(m.summary()))
	b.WriteString("\n")
	return b.String()
}

// truncate fits value into width cells, marking the cut with "...".
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
