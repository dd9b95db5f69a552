// Package tui implements the interactive chat interface: an access gate,
// the conversation view with live agent activity, a topic sidebar, and
// knowledge-base statistics.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/deagent-io/deagent/pkg/auth"
	"github.com/deagent-io/deagent/pkg/client"
	"github.com/deagent-io/deagent/pkg/config"
	"github.com/deagent-io/deagent/pkg/export"
	"github.com/deagent-io/deagent/pkg/history"
	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/logger"
	"github.com/deagent-io/deagent/pkg/session"
	"github.com/deagent-io/deagent/pkg/step"
	"github.com/deagent-io/deagent/pkg/turn"
)

type panel int

const (
	conversationPanel panel = iota
	inputPanel
	topicsPanel
)

// Styles
var (
	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(0, 1)

	inactivePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	stepTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	metaTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("248"))

	statusMsgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	gateStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(1, 2)
)

// statusIcons maps step statuses to their display icons.
var statusIcons = map[step.Status]string{
	step.StatusWaiting:   "⏳",
	step.StatusRunning:   "🔄",
	step.StatusCompleted: "✅",
	step.StatusError:     "❌",
}

type topicItem struct {
	topic session.Topic
}

func (i topicItem) FilterValue() string { return i.topic.Name }
func (i topicItem) Title() string       { return i.topic.Name }
func (i topicItem) Description() string { return i.topic.Description }

// Options configures the TUI.
type Options struct {
	Session    *session.Session
	Gate       *auth.Gate
	Client     *client.AgentClient
	Config     *config.Config
	Transcript *logger.TranscriptLogger
	ExportDir  string
	LogLevel   zerolog.Level
	Version    string
}

const maxLogLines = 200

// logWriter forwards structured log output into the running program so it
// can be shown in the log panel instead of corrupting the display.
type logWriter struct {
	ch chan string
}

func (w *logWriter) Write(p []byte) (int, error) {
	select {
	case w.ch <- strings.TrimRight(string(p), "\n"):
	default: // drop lines when the UI lags
	}
	return len(p), nil
}

// Model is the bubbletea model for the chat interface.
type Model struct {
	ctx  context.Context
	opts Options

	// UI components
	conversation viewport.Model
	input        textarea.Model
	topicList    list.Model
	gateInput    textinput.Model

	// State
	activePanel   panel
	width         int
	height        int
	ready         bool
	gated         bool
	lockedOut     bool
	showActivity  bool
	showLogs      bool
	statusMessage string
	stats         *client.StatsResponse
	logCh         chan string
	logLines      []string
	err           error
}

type turnDoneMsg struct {
	turn history.Turn
	err  error
}

type statsMsg struct {
	stats *client.StatsResponse
	err   error
}

type tickMsg struct{}

type clearStatusMsg struct{}

type logLineMsg string

type logPollMsg struct{}

// Run starts the chat interface and blocks until the user quits. Log output
// is redirected into the log panel for the lifetime of the program.
func Run(ctx context.Context, opts Options) error {
	m := NewModel(ctx, opts)
	log.InitLogger(&logWriter{ch: m.logCh}, opts.LogLevel, false)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// NewModel builds the initial model. Exposed for tests.
func NewModel(ctx context.Context, opts Options) Model {
	items := make([]list.Item, 0)
	for _, t := range session.Topics() {
		items = append(items, topicItem{topic: t})
	}

	topicList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	topicList.Title = "Focus Topics"
	topicList.SetShowStatusBar(false)
	topicList.SetFilteringEnabled(false)
	topicList.SetShowHelp(false)

	ta := textarea.New()
	ta.Placeholder = "Ask about pipelines, schemas, or performance..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.SetHeight(2)
	ta.Focus()

	gateInput := textinput.New()
	gateInput.Placeholder = "Access key"
	gateInput.EchoMode = textinput.EchoPassword
	gateInput.CharLimit = 100

	return Model{
		ctx:          ctx,
		opts:         opts,
		topicList:    topicList,
		input:        ta,
		gateInput:    gateInput,
		activePanel:  inputPanel,
		showActivity: true,
		logCh:        make(chan string, 64),
		gated:        opts.Gate != nil && !opts.Gate.Unlocked(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.fetchStats(),
		m.waitForLog(),
	)
}

// waitForLog picks up redirected log lines, waking periodically so the
// command keeps running even when nothing is logged.
func (m Model) waitForLog() tea.Cmd {
	return func() tea.Msg {
		select {
		case line := <-m.logCh:
			return logLineMsg(line)
		case <-time.After(200 * time.Millisecond):
			return logPollMsg{}
		}
	}
}

// fetchStats loads knowledge-base statistics for the sidebar.
func (m Model) fetchStats() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()
		stats, err := m.opts.Client.GetStats(ctx)
		return statsMsg{stats: stats, err: err}
	}
}

// tick keeps the view refreshing while a turn is in flight so the
// placeholder activity animates and late results render promptly.
func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func clearStatusLater() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Log lines arrive in every view.
	switch msg := msg.(type) {
	case logLineMsg:
		m.logLines = append(m.logLines, string(msg))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		return m, m.waitForLog()
	case logPollMsg:
		return m, m.waitForLog()
	}

	if m.gated {
		return m.updateGate(msg)
	}
	return m.updateChat(msg)
}

// updateGate handles the access-key view.
func (m Model) updateGate(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.lockedOut {
				return m, tea.Quit
			}
			err := m.opts.Gate.Try(m.gateInput.Value())
			m.gateInput.SetValue("")
			switch err {
			case nil:
				m.gated = false
				return m, nil
			case auth.ErrLockedOut:
				m.lockedOut = true
				return m, nil
			default:
				m.statusMessage = fmt.Sprintf("Incorrect key, %d attempts left", m.opts.Gate.AttemptsLeft())
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.gateInput, cmd = m.gateInput.Update(msg)
	return m, cmd
}

// updateChat handles the main chat view.
func (m Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "tab":
			m.activePanel = (m.activePanel + 1) % 3
			if m.activePanel == inputPanel {
				cmds = append(cmds, m.input.Focus())
			} else {
				m.input.Blur()
			}
			return m, tea.Batch(cmds...)

		case "ctrl+l":
			m.opts.Session.Clear()
			m.refreshConversation()
			m.statusMessage = "Conversation cleared"
			return m, clearStatusLater()

		case "ctrl+a":
			m.showActivity = !m.showActivity
			m.refreshConversation()
			return m, nil

		case "ctrl+g":
			m.showLogs = !m.showLogs
			return m, nil

		case "e":
			if m.activePanel == topicsPanel {
				return m.insertExample()
			}

		case "ctrl+e":
			return m.exportConversation()

		case "enter":
			switch m.activePanel {
			case inputPanel:
				return m.submitInput()
			case topicsPanel:
				return m.selectTopic()
			}

		case "up", "down":
			if m.activePanel == topicsPanel {
				var cmd tea.Cmd
				m.topicList, cmd = m.topicList.Update(msg)
				return m, cmd
			}

		case "pgup":
			if m.ready {
				m.conversation.HalfViewUp()
			}
			return m, nil

		case "pgdown":
			if m.ready {
				m.conversation.HalfViewDown()
			}
			return m, nil

		case "q":
			if m.activePanel != inputPanel {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case turnDoneMsg:
		if msg.err != nil {
			switch msg.err {
			case session.ErrTurnInFlight:
				m.statusMessage = "Still waiting on the previous reply"
			case turn.ErrEmptySubmission:
				// Nothing to do; blank input is silently ignored.
			default:
				m.err = msg.err
			}
		} else if m.opts.Transcript != nil {
			m.opts.Transcript.LogTurn(msg.turn)
		}
		m.refreshConversation()
		if m.statusMessage != "" {
			cmds = append(cmds, clearStatusLater())
		}
		return m, tea.Batch(cmds...)

	case statsMsg:
		if msg.err == nil {
			m.stats = msg.stats
		}
		return m, nil

	case tickMsg:
		m.refreshConversation()
		if m.opts.Session.Busy() {
			cmds = append(cmds, tick())
		}
		return m, tea.Batch(cmds...)

	case clearStatusMsg:
		m.statusMessage = ""
		return m, nil
	}

	if m.ready {
		var cmd tea.Cmd
		if m.activePanel == inputPanel {
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.activePanel == conversationPanel {
			m.conversation, cmd = m.conversation.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// layout sizes the panels after a resize.
func (m *Model) layout() {
	rightWidth := 34
	leftWidth := m.width - rightWidth - 8
	if leftWidth < 30 {
		leftWidth = 30
	}
	convHeight := m.height - 12
	if convHeight < 5 {
		convHeight = 5
	}

	if !m.ready {
		m.conversation = viewport.New(leftWidth-2, convHeight)
		m.ready = true
	} else {
		m.conversation.Width = leftWidth - 2
		m.conversation.Height = convHeight
	}
	m.refreshConversation()

	m.topicList.SetSize(rightWidth-2, (m.height-8)/2)
	m.input.SetWidth(leftWidth - 4)
}

// submitInput dispatches the typed message as one turn.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.opts.Session.Busy() {
		m.statusMessage = "Still waiting on the previous reply"
		return m, clearStatusLater()
	}

	m.input.Reset()

	if m.opts.Transcript != nil {
		m.opts.Transcript.LogTurn(history.Turn{
			Role:      history.RoleUser,
			Content:   text,
			Timestamp: time.Now().Unix(),
		})
	}

	sess := m.opts.Session
	sendCmd := func() tea.Msg {
		t, err := sess.Send(m.ctx, text)
		return turnDoneMsg{turn: t, err: err}
	}

	return m, tea.Batch(sendCmd, tick())
}

// selectTopic applies the highlighted focus topic.
func (m Model) selectTopic() (tea.Model, tea.Cmd) {
	item, ok := m.topicList.SelectedItem().(topicItem)
	if !ok {
		return m, nil
	}
	if err := m.opts.Session.SetTopic(item.topic.ID); err != nil {
		m.statusMessage = err.Error()
	} else {
		m.statusMessage = "Focus: " + item.topic.Name
	}
	return m, clearStatusLater()
}

// insertExample copies the highlighted topic's first example prompt into
// the input.
func (m Model) insertExample() (tea.Model, tea.Cmd) {
	item, ok := m.topicList.SelectedItem().(topicItem)
	if !ok || len(item.topic.Examples) == 0 {
		return m, nil
	}

	m.input.SetValue(item.topic.Examples[0])
	m.activePanel = inputPanel
	m.statusMessage = "Example inserted"
	return m, tea.Batch(m.input.Focus(), clearStatusLater())
}

// exportConversation writes the history to a Markdown file.
func (m Model) exportConversation() (tea.Model, tea.Cmd) {
	turns := m.opts.Session.History().Turns()
	if len(turns) == 0 {
		m.statusMessage = "Nothing to export yet"
		return m, clearStatusLater()
	}

	dir := m.opts.ExportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		m.err = err
		return m, nil
	}

	path := filepath.Join(dir, fmt.Sprintf("chat_%s.md", time.Now().Format("2006-01-02_15-04-05")))
	f, err := os.Create(path)
	if err != nil {
		m.err = err
		return m, nil
	}
	defer f.Close()

	exporter := export.NewExporter(export.ExportOptions{
		Format:            export.FormatMarkdown,
		Title:             "Data Engineering Chat",
		IncludeSteps:      true,
		IncludeTimestamps: true,
	})
	if err := exporter.Export(turns, f); err != nil {
		m.err = err
		return m, nil
	}

	m.statusMessage = "Exported to " + path
	return m, clearStatusLater()
}

func (m *Model) refreshConversation() {
	if !m.ready {
		return
	}
	m.conversation.SetContent(m.renderConversation())
	m.conversation.GotoBottom()
}

func (m Model) View() string {
	if m.gated {
		return m.renderGate()
	}
	if !m.ready {
		return "Loading..."
	}

	rightWidth := 34
	leftWidth := m.width - rightWidth - 8
	if leftWidth < 30 {
		leftWidth = 30
	}

	convStyle := inactivePanelStyle
	if m.activePanel == conversationPanel {
		convStyle = activePanelStyle
	}
	convContent := m.conversation.View()
	if m.showLogs {
		convContent = m.renderLogs()
	}
	convView := convStyle.
		Width(leftWidth).
		Height(m.height - 12).
		Render(convContent)

	inputStyle := inactivePanelStyle
	if m.activePanel == inputPanel {
		inputStyle = activePanelStyle
	}
	inputView := inputStyle.
		Width(leftWidth).
		Height(2).
		Render(m.input.View())

	topicsStyle := inactivePanelStyle
	if m.activePanel == topicsPanel {
		topicsStyle = activePanelStyle
	}
	topicsView := topicsStyle.
		Width(rightWidth).
		Height((m.height - 8) / 2).
		Render(m.topicList.View())

	statsView := inactivePanelStyle.
		Width(rightWidth).
		Height(m.height - 12 - (m.height-8)/2).
		Render(m.renderStats())

	left := lipgloss.JoinVertical(lipgloss.Top, convView, inputView)
	right := lipgloss.JoinVertical(lipgloss.Top, topicsView, statsView)
	main := lipgloss.JoinHorizontal(lipgloss.Left, left, right)

	var b strings.Builder
	b.WriteString(main)
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	if m.statusMessage != "" {
		b.WriteString("\n")
		b.WriteString(statusMsgStyle.Render(m.statusMessage))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(b.String())
}

// renderGate draws the access-key prompt.
func (m Model) renderGate() string {
	var b strings.Builder

	title := "🔐 deagent"
	if m.opts.Version != "" {
		title += " " + m.opts.Version
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if m.lockedOut {
		b.WriteString(errorTextStyle.Render("Too many failed attempts."))
		b.WriteString("\n\nPress Enter to exit.")
	} else {
		b.WriteString("Enter the access key to start chatting.\n\n")
		b.WriteString(m.gateInput.View())
		if m.statusMessage != "" {
			b.WriteString("\n\n")
			b.WriteString(errorTextStyle.Render(m.statusMessage))
		}
	}

	box := gateStyle.Width(50).Render(b.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderConversation renders the full history plus the in-flight placeholder.
func (m Model) renderConversation() string {
	textWidth := m.conversation.Width - 4
	if textWidth < 20 {
		textWidth = 20
	}

	turns := m.opts.Session.History().Turns()
	if len(turns) == 0 {
		topic, _ := session.TopicByID(m.opts.Session.Context().Topic)
		var b strings.Builder
		b.WriteString(stepTextStyle.Render("No messages yet. Current focus: " + topic.Name))
		b.WriteString("\n\n")
		for _, ex := range topic.Examples {
			b.WriteString(stepTextStyle.Render("  e.g. " + ex))
			b.WriteString("\n")
		}
		return b.String()
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		m.renderTurn(&b, t, textWidth)
	}
	return b.String()
}

// renderTurn renders one turn: header, activity, content, metadata.
func (m Model) renderTurn(b *strings.Builder, t history.Turn, textWidth int) {
	timestamp := time.Unix(t.Timestamp, 0).Format("15:04:05")

	if t.Role == history.RoleUser {
		b.WriteString(fmt.Sprintf("[%s] ", timestamp))
		b.WriteString(userStyle.Render("👤 You"))
		b.WriteString("\n")
		b.WriteString(wrapText(t.Content, textWidth))
		b.WriteString("\n")
		return
	}

	b.WriteString(fmt.Sprintf("[%s] ", timestamp))
	b.WriteString(assistantStyle.Render("🤖 Agents"))
	b.WriteString("\n")

	if t.Pending {
		m.renderSteps(b, turn.PlaceholderSteps())
		b.WriteString(m.renderProgress())
		b.WriteString("\n")
		return
	}

	if t.Failed {
		b.WriteString(errorTextStyle.Render(wrapText("⚠ "+t.Content, textWidth)))
		b.WriteString("\n")
		return
	}

	if m.showActivity {
		m.renderSteps(b, t.Steps)
	}
	b.WriteString(wrapText(t.Content, textWidth))
	b.WriteString("\n")

	if summary := metadataSummary(t); summary != "" {
		b.WriteString(metaTextStyle.Render(summary))
		b.WriteString("\n")
	}
}

// renderSteps renders the agent activity block.
func (m Model) renderSteps(b *strings.Builder, steps []step.Step) {
	if len(steps) == 0 {
		return
	}
	for _, s := range steps {
		line := fmt.Sprintf("  %s %s %s", statusIcons[s.Status], s.Icon, s.Agent)
		if s.Action != "" {
			line += ": " + s.Action
		}
		b.WriteString(stepTextStyle.Render(line))
		b.WriteString("\n")
		for _, d := range s.DisplayDetails() {
			b.WriteString(stepTextStyle.Render("      · " + d))
			b.WriteString("\n")
		}
	}

	p := step.Summarize(steps)
	if p.Total > 0 && p.Completed == p.Total {
		b.WriteString(stepTextStyle.Render(fmt.Sprintf("  %d/%d steps completed", p.Completed, p.Total)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// renderProgress draws the in-flight progress bar from the active machine.
func (m Model) renderProgress() string {
	active := m.opts.Session.Active()
	if active == nil {
		return ""
	}

	const barWidth = 20
	filled := int(active.Progress().Fraction() * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return stepTextStyle.Render("  [" + bar + "] working...")
}

// metadataSummary builds the one-line summary shown under an answer.
func metadataSummary(t history.Turn) string {
	var parts []string
	md := t.Metadata

	if md.Intent != "" {
		intent := md.Intent
		if runes := []rune(intent); len(runes) > 15 {
			intent = string(runes[:15])
		}
		if md.IntentConfidence != nil {
			parts = append(parts, fmt.Sprintf("intent: %s (%.0f%%)", intent, *md.IntentConfidence*100))
		} else {
			parts = append(parts, "intent: "+intent)
		}
	}
	if n := len(md.RAGDocuments); n > 0 {
		parts = append(parts, fmt.Sprintf("%d documents", n))
	}
	if md.Validation.Passed {
		if len(parts) > 0 {
			parts = append(parts, "✓ validated")
		}
	} else {
		detail := "validation failed"
		if md.Validation.Details != "" {
			detail += ": " + md.Validation.Details
		}
		parts = append(parts, detail)
	}

	return strings.Join(parts, " • ")
}

// renderLogs shows the tail of the redirected log output.
func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📋 Logs"))
	b.WriteString("\n\n")

	if len(m.logLines) == 0 {
		b.WriteString(stepTextStyle.Render("No log output yet."))
		return b.String()
	}

	visible := m.conversation.Height - 3
	if visible < 1 {
		visible = 1
	}
	lines := m.logLines
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	for _, line := range lines {
		b.WriteString(stepTextStyle.Render(wrapText(line, m.conversation.Width-2)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderStats draws the session and knowledge-base panel.
func (m Model) renderStats() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📊 Session"))
	b.WriteString("\n\n")

	sctx := m.opts.Session.Context()
	topic, _ := session.TopicByID(sctx.Topic)

	shortID := sctx.SessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	status := "🟢 Idle"
	if m.opts.Session.Busy() {
		status = "🟡 Thinking"
	}

	backend := "⚪ not set"
	if m.opts.Config != nil && m.opts.Config.Backend.Endpoint != "" {
		backend = "🟢 configured"
	}

	items := []struct {
		label string
		value string
	}{
		{"Session:", shortID},
		{"Focus:", topic.Name},
		{"Turns:", fmt.Sprintf("%d", m.opts.Session.History().Len())},
		{"Status:", status},
		{"Backend:", backend},
	}

	availableWidth := 30
	for _, item := range items {
		spaces := availableWidth - len(item.label) - len(item.value)
		if spaces < 1 {
			spaces = 1
		}
		b.WriteString(item.label + strings.Repeat(" ", spaces) + item.value + "\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("📚 Knowledge Base"))
	b.WriteString("\n\n")
	if m.stats == nil {
		b.WriteString(stepTextStyle.Render("unavailable"))
	} else {
		b.WriteString(fmt.Sprintf("Documents: %d\n", m.stats.TotalDocuments))
		for ctx, n := range m.stats.ByContext {
			b.WriteString(stepTextStyle.Render(fmt.Sprintf("  %s: %d", ctx, n)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderStatusBar() string {
	help := []string{
		helpKeyStyle.Render("Tab") + helpDescStyle.Render(" Panel"),
		helpKeyStyle.Render("Enter") + helpDescStyle.Render(" Send/Select"),
		helpKeyStyle.Render("Ctrl+A") + helpDescStyle.Render(" Activity"),
		helpKeyStyle.Render("Ctrl+G") + helpDescStyle.Render(" Logs"),
		helpKeyStyle.Render("Ctrl+L") + helpDescStyle.Render(" Clear"),
		helpKeyStyle.Render("Ctrl+E") + helpDescStyle.Render(" Export"),
		helpKeyStyle.Render("Ctrl+C") + helpDescStyle.Render(" Quit"),
	}

	return statusBarStyle.
		Width(m.width).
		Render(strings.Join(help, " • "))
}

// wrapText wraps text to fit within the specified width.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result []string
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		if len(line) <= width {
			result = append(result, line)
			continue
		}

		for len(line) > width {
			cutPoint := width
			for i := width - 1; i > 0; i-- {
				if line[i] == ' ' {
					cutPoint = i
					break
				}
			}

			result = append(result, line[:cutPoint])
			line = strings.TrimSpace(line[cutPoint:])
		}
		if len(line) > 0 {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
