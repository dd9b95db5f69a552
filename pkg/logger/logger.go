// Package logger writes chat transcripts: every turn of a conversation is
// appended to a timestamped file and optionally mirrored to a console
// writer with color. Transcripts are a session record, not persistence;
// nothing is ever read back.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/deagent-io/deagent/pkg/history"
	"github.com/deagent-io/deagent/pkg/step"
)

// TranscriptLogger appends conversation turns to a transcript file and an
// optional console writer.
type TranscriptLogger struct {
	logFile   *os.File
	logFormat string
	console   io.Writer
	termWidth int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	userBadgeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("86")).
			Foreground(lipgloss.Color("0")).
			Bold(true).
			Padding(0, 1).
			MarginRight(1)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	assistantBadgeStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("63")).
				Foreground(lipgloss.Color("0")).
				Bold(true).
				Padding(0, 1).
				MarginRight(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236"))
)

// statusIcons maps step statuses to their display icons.
var statusIcons = map[step.Status]string{
	step.StatusWaiting:   "⏳",
	step.StatusRunning:   "🔄",
	step.StatusCompleted: "✅",
	step.StatusError:     "❌",
}

// NewTranscriptLogger creates a transcript logger. An empty logDir disables
// the file transcript; console output still works.
func NewTranscriptLogger(logDir string, logFormat string, console io.Writer) (*TranscriptLogger, error) {
	if logDir == "" {
		return &TranscriptLogger{
			console:   console,
			logFormat: logFormat,
			termWidth: 80,
		}, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("chat_%s.log", timestamp))

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	logger := &TranscriptLogger{
		logFile:   logFile,
		logFormat: logFormat,
		console:   console,
		termWidth: 80,
	}

	logger.writeToFile("=== deagent Chat Transcript ===\n")
	logger.writeToFile("Started: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
	logger.writeToFile("===============================\n\n")

	if console != nil {
		fmt.Fprintf(console, "\n📝 Transcript: %s\n", logPath)
	}

	return logger, nil
}

// Path returns the transcript file path, or empty when disabled.
func (l *TranscriptLogger) Path() string {
	if l.logFile == nil {
		return ""
	}
	return l.logFile.Name()
}

// LogTurn appends one finalized turn to the transcript. Pending turns are
// skipped; they are finalized in place and logged once resolved.
func (l *TranscriptLogger) LogTurn(t history.Turn) {
	if t.Pending {
		return
	}

	timestamp := time.Unix(t.Timestamp, 0).Format("15:04:05")

	l.writeFileTurn(t, timestamp)
	l.writeConsoleTurn(t, timestamp)
}

// writeFileTurn writes a turn to the transcript file.
func (l *TranscriptLogger) writeFileTurn(t history.Turn, timestamp string) {
	if l.logFile == nil {
		return
	}

	if l.logFormat == "json" {
		data, err := json.Marshal(t)
		if err == nil {
			l.writeToFile(string(data) + "\n")
		}
		return
	}

	role := strings.ToUpper(string(t.Role))
	if t.Failed {
		role = "ERROR"
	}
	l.writeToFile(fmt.Sprintf("[%s] %s: %s\n", timestamp, role, t.Content))

	for _, s := range t.Steps {
		l.writeToFile(fmt.Sprintf("    %s %s %s: %s\n", statusIcons[s.Status], s.Icon, s.Agent, s.Action))
		for _, d := range s.DisplayDetails() {
			l.writeToFile(fmt.Sprintf("        - %s\n", d))
		}
	}

	if summary := metadataSummary(t); summary != "" {
		l.writeToFile("    " + summary + "\n")
	}

	l.writeToFile("\n")
}

// writeConsoleTurn writes a formatted turn to the console.
func (l *TranscriptLogger) writeConsoleTurn(t history.Turn, timestamp string) {
	if l.console == nil {
		return
	}

	var output strings.Builder

	output.WriteString(separatorStyle.Render(strings.Repeat("─", min(l.termWidth, 80))))
	output.WriteString("\n")
	output.WriteString(timestampStyle.Render("🕐 " + timestamp + " "))

	switch {
	case t.Failed:
		output.WriteString(errorStyle.Render(" ERROR "))
		output.WriteString("\n\n")
		output.WriteString(errorStyle.Render(l.wrapText(t.Content, 2)))
		output.WriteString("\n")
	case t.Role == history.RoleUser:
		output.WriteString(userBadgeStyle.Render(" YOU "))
		output.WriteString("\n\n")
		l.writeWrapped(&output, t.Content, userStyle)
	default:
		output.WriteString(assistantBadgeStyle.Render(" AGENTS "))
		output.WriteString("\n\n")
		l.writeSteps(&output, t.Steps)
		l.writeWrapped(&output, t.Content, assistantStyle)
		if summary := metadataSummary(t); summary != "" {
			output.WriteString(metaStyle.Render("  " + summary))
			output.WriteString("\n")
		}
	}

	output.WriteString("\n")
	fmt.Fprint(l.console, output.String())
}

// writeSteps renders the agent activity block above an assistant answer.
func (l *TranscriptLogger) writeSteps(output *strings.Builder, steps []step.Step) {
	if len(steps) == 0 {
		return
	}

	for _, s := range steps {
		line := fmt.Sprintf("  %s %s %s", statusIcons[s.Status], s.Icon, s.Agent)
		if s.Action != "" {
			line += ": " + s.Action
		}
		output.WriteString(stepStyle.Render(line))
		output.WriteString("\n")
		for _, d := range s.DisplayDetails() {
			output.WriteString(stepStyle.Render("      · " + d))
			output.WriteString("\n")
		}
	}
	output.WriteString("\n")
}

func (l *TranscriptLogger) writeWrapped(output *strings.Builder, text string, style lipgloss.Style) {
	for _, line := range strings.Split(l.wrapText(text, 2), "\n") {
		output.WriteString(style.Render(line))
		output.WriteString("\n")
	}
}

// metadataSummary builds the one-line summary shown under an answer.
func metadataSummary(t history.Turn) string {
	if t.Failed || t.Role != history.RoleAssistant {
		return ""
	}

	var parts []string
	md := t.Metadata

	if md.Intent != "" {
		if md.IntentConfidence != nil {
			parts = append(parts, fmt.Sprintf("intent: %s (%.0f%%)", md.Intent, *md.IntentConfidence*100))
		} else {
			parts = append(parts, "intent: "+md.Intent)
		}
	}
	if n := len(md.RAGDocuments); n > 0 {
		parts = append(parts, fmt.Sprintf("%d documents consulted", n))
	}
	if md.Validation.Passed {
		parts = append(parts, "validation passed")
	} else {
		detail := "validation failed"
		if md.Validation.Details != "" {
			detail += ": " + md.Validation.Details
		}
		parts = append(parts, detail)
	}

	return strings.Join(parts, " • ")
}

// LogError writes a non-turn error to the transcript, such as a failure to
// reach the backend outside any specific turn.
func (l *TranscriptLogger) LogError(context string, err error) {
	timestamp := time.Now().Format("15:04:05")

	if l.logFile != nil {
		l.writeToFile(fmt.Sprintf("[%s] ERROR - %s: %v\n", timestamp, context, err))
	}

	if l.console != nil {
		output := fmt.Sprintf("%s %s %s: %v\n",
			timestampStyle.Render(fmt.Sprintf("[%s]", timestamp)),
			errorStyle.Render("ERROR"),
			context,
			err)
		fmt.Fprint(l.console, output)
	}
}

// SetWidth adjusts the wrapping width for console output.
func (l *TranscriptLogger) SetWidth(width int) {
	if width > 0 {
		l.termWidth = width
	}
}

func (l *TranscriptLogger) wrapText(text string, indent int) string {
	if l.termWidth <= 0 {
		return text
	}

	maxWidth := l.termWidth - indent - 2
	if maxWidth <= 20 {
		maxWidth = 20
	}

	lines := strings.Split(text, "\n")
	var wrapped []string
	indentStr := strings.Repeat(" ", indent)

	for _, line := range lines {
		if len(line) <= maxWidth {
			wrapped = append(wrapped, indentStr+line)
			continue
		}

		words := strings.Fields(line)
		current := indentStr

		for _, word := range words {
			if len(current)+len(word)+1 > l.termWidth {
				if len(current) > indent {
					wrapped = append(wrapped, current)
					current = indentStr + word
				} else {
					wrapped = append(wrapped, indentStr+word[:maxWidth])
					current = indentStr + word[maxWidth:]
				}
			} else {
				if len(current) > indent {
					current += " "
				}
				current += word
			}
		}

		if len(current) > indent {
			wrapped = append(wrapped, current)
		}
	}

	return strings.Join(wrapped, "\n")
}

func (l *TranscriptLogger) writeToFile(content string) {
	if l.logFile != nil {
		if _, err := l.logFile.WriteString(content); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing transcript: %v\n", err)
		}
		if err := l.logFile.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Error syncing transcript: %v\n", err)
		}
	}
}

// Close finishes the transcript file.
func (l *TranscriptLogger) Close() {
	if l.logFile != nil {
		l.writeToFile("\n=== Chat Ended ===\n")
		l.writeToFile("Ended: " + time.Now().Format("2006-01-02 15:04:05") + "\n")
		l.logFile.Close()
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
