package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/genetix/internal/events"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	maxOutputLines  = 12
)

type status int

const (
	statusWaiting status = iota
	statusRunning
	statusPublished
	statusFailed
	statusDisconnected
)

// Lipgloss styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("238")).
			PaddingLeft(1)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// Model is the BubbleTea model following one run.
type Model struct {
	runID   string
	maxIter int
	events  <-chan events.Event

	status     status
	project    string
	started    time.Time
	finished   time.Time
	iteration  int
	agent      string
	toolCalls  []float64
	toolCounts map[string]int
	toolFails  int
	output     []string
	summary    bool
	url        string
	files      int
	errText    string
	quitting   bool

	spinner  spinner.Model
	progress progress.Model
}

type eventMsg events.Event
type closedMsg struct{}

// NewModel follows the events read from ch. maxIter scales the iteration
// progress bar.
func NewModel(runID string, maxIter int, ch <-chan events.Event) Model {
	if maxIter < 1 {
		maxIter = 1
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = labelStyle
	return Model{
		runID:      runID,
		maxIter:    maxIter,
		events:     ch,
		toolCounts: make(map[string]int),
		spinner:    sp,
		progress: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(40),
		),
	}
}

// Failed reports whether the run ended without a published result.
func (m Model) Failed() bool {
	return m.status == statusFailed || m.status == statusDisconnected ||
		(m.status == statusPublished && !m.summary)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m = m.apply(events.Event(msg))
		if m.done() {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case closedMsg:
		if !m.done() {
			m.status = statusDisconnected
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) done() bool {
	return m.status >= statusPublished
}

func (m Model) apply(ev events.Event) Model {
	if m.status == statusWaiting {
		m.status = statusRunning
	}
	switch ev.Kind {
	case events.RunStarted:
		m.started = ev.Time
		m.project = stringField(ev.Data, "project_id")
	case events.TickStarted:
		m.iteration = intField(ev.Data, "iteration")
		m.agent = stringField(ev.Data, "agent")
	case events.TickFinished:
		m.toolCalls = append(m.toolCalls, float64(intField(ev.Data, "tool_calls")))
	case events.ToolOutput:
		m.output = appendLines(m.output, stringField(ev.Data, "chunk"))
	case events.ToolFinished:
		m.toolCounts[stringField(ev.Data, "tool")]++
		if b, _ := ev.Data["failed"].(bool); b {
			m.toolFails++
		}
	case events.RunDone:
		m.summary, _ = ev.Data["summary"].(bool)
	case events.RunPublished:
		m.status = statusPublished
		m.finished = ev.Time
		m.url = stringField(ev.Data, "url")
		m.files = intField(ev.Data, "files")
		m.summary, _ = ev.Data["summary"].(bool)
	case events.RunFailed:
		m.status = statusFailed
		m.finished = ev.Time
		m.errText = stringField(ev.Data, "error")
	}
	return m
}

// appendLines keeps the last maxOutputLines lines of output.
func appendLines(lines []string, chunk string) []string {
	if chunk == "" {
		return lines
	}
	chunk = strings.TrimRight(chunk, "\n")
	lines = append(lines, strings.Split(chunk, "\n")...)
	if len(lines) > maxOutputLines {
		lines = lines[len(lines)-maxOutputLines:]
	}
	return lines
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// intField reads a number that JSON decoding turned into float64.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" genetix run " + m.runID + " "))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("┃ Network"))
	b.WriteString("\n")
	agent := m.agent
	if agent == "" {
		agent = "-"
	}
	b.WriteString(labelStyle.Render("  Agent: ") + valueStyle.Render(agent) + "\n")
	pct := float64(m.iteration) / float64(m.maxIter)
	if pct > 1 {
		pct = 1
	}
	b.WriteString(labelStyle.Render("  Iteration: ") + m.progress.ViewAs(pct) +
		" " + dimStyle.Render(fmt.Sprintf("%d/%d", m.iteration, m.maxIter)) + "\n")
	b.WriteString(labelStyle.Render("  Tool calls per tick: ") + createSparkline(m.toolCalls) + "\n")

	b.WriteString(sectionStyle.Render("┃ Tools"))
	b.WriteString("\n")
	b.WriteString(m.toolLine())
	b.WriteString("\n")

	if len(m.output) > 0 {
		b.WriteString(sectionStyle.Render("┃ Terminal"))
		b.WriteString("\n")
		b.WriteString(outputStyle.Render(strings.Join(m.output, "\n")))
		b.WriteString("\n")
	}

	b.WriteString("\n" + dimStyle.Render("[q] quit"))
	return containerStyle.Render(b.String()) + "\n"
}

func (m Model) statusLine() string {
	elapsed := ""
	if !m.started.IsZero() {
		end := m.finished
		if end.IsZero() {
			end = time.Now()
		}
		elapsed = dimStyle.Render("  " + end.Sub(m.started).Round(time.Second).String())
	}
	project := ""
	if m.project != "" {
		project = dimStyle.Render("  project ") + valueStyle.Render(m.project)
	}

	switch m.status {
	case statusWaiting:
		return m.spinner.View() + " " + dimStyle.Render("waiting for events")
	case statusRunning:
		return m.spinner.View() + " " + warnStyle.Render("RUNNING") + project + elapsed
	case statusPublished:
		if !m.summary {
			return errorStyle.Render("✗ NO RESULT") + project + elapsed
		}
		return okStyle.Render("✓ PUBLISHED") + project + elapsed + "\n" +
			labelStyle.Render("  URL: ") + valueStyle.Render(m.url) +
			dimStyle.Render(fmt.Sprintf("  %d files", m.files))
	case statusFailed:
		return errorStyle.Render("✗ FAILED") + project + elapsed + "\n" +
			labelStyle.Render("  Error: ") + errorStyle.Render(m.errText)
	default:
		return errorStyle.Render("✗ DISCONNECTED") + project + elapsed
	}
}

func (m Model) toolLine() string {
	if len(m.toolCounts) == 0 {
		return dimStyle.Render("  no tool calls yet")
	}
	names := make([]string, 0, len(m.toolCounts))
	for name := range m.toolCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names)+1)
	for _, name := range names {
		parts = append(parts, labelStyle.Render(name+" ")+valueStyle.Render(fmt.Sprint(m.toolCounts[name])))
	}
	if m.toolFails > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", m.toolFails)))
	}
	return "  " + strings.Join(parts, dimStyle.Render("  ·  "))
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}
