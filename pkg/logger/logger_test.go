package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deagent-io/deagent/pkg/history"
	"github.com/deagent-io/deagent/pkg/step"
	"github.com/deagent-io/deagent/pkg/turn"
)

func assistantTurn() history.Turn {
	conf := 0.82
	return history.Turn{
		Role:    history.RoleAssistant,
		Content: "Use bronze, silver, and gold layers.",
		Steps: []step.Step{
			{Agent: "Architect", Icon: "🏗️", Action: "Designing layers", Status: step.StatusCompleted, Details: []string{"bronze", "silver"}},
			{Agent: "Validator", Action: "Checking design", Status: step.StatusCompleted},
		},
		Metadata: turn.Metadata{
			Intent:           "medallion_architecture",
			IntentConfidence: &conf,
			RAGDocuments:     []string{"medallion_guide.md"},
			Validation:       turn.Validation{Passed: true},
		},
		Timestamp: time.Now().Unix(),
	}
}

func transcriptContent(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one transcript file, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestTextTranscript(t *testing.T) {
	dir := t.TempDir()
	l, err := NewTranscriptLogger(dir, "text", nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}

	l.LogTurn(history.Turn{Role: history.RoleUser, Content: "layer my lakehouse", Timestamp: time.Now().Unix()})
	l.LogTurn(assistantTurn())
	l.Close()

	content := transcriptContent(t, dir)

	for _, want := range []string{
		"deagent Chat Transcript",
		"USER: layer my lakehouse",
		"ASSISTANT: Use bronze, silver, and gold layers.",
		"Architect: Designing layers",
		"- bronze",
		"intent: medallion_architecture (82%)",
		"1 documents consulted",
		"validation passed",
		"Chat Ended",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
}

func TestJSONTranscript(t *testing.T) {
	dir := t.TempDir()
	l, err := NewTranscriptLogger(dir, "json", nil)
	if err != nil {
		t.Fatal(err)
	}

	l.LogTurn(assistantTurn())
	l.Close()

	content := transcriptContent(t, dir)

	var found bool
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var decoded history.Turn
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("transcript line is not valid JSON: %v", err)
		}
		if decoded.Role == history.RoleAssistant {
			found = true
			if len(decoded.Steps) != 2 {
				t.Errorf("steps = %d, want 2", len(decoded.Steps))
			}
		}
	}
	if !found {
		t.Error("assistant turn not found in JSON transcript")
	}
}

func TestPendingTurnsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	l, err := NewTranscriptLogger(dir, "text", nil)
	if err != nil {
		t.Fatal(err)
	}

	l.LogTurn(history.Turn{Role: history.RoleAssistant, Pending: true, Timestamp: time.Now().Unix()})
	l.Close()

	content := transcriptContent(t, dir)
	if strings.Contains(content, "ASSISTANT") {
		t.Error("pending turn should not be written")
	}
}

func TestFailedTurn(t *testing.T) {
	dir := t.TempDir()
	l, err := NewTranscriptLogger(dir, "text", nil)
	if err != nil {
		t.Fatal(err)
	}

	l.LogTurn(history.Turn{
		Role:      history.RoleAssistant,
		Content:   "rate limited",
		Failed:    true,
		Timestamp: time.Now().Unix(),
	})
	l.Close()

	content := transcriptContent(t, dir)
	if !strings.Contains(content, "ERROR: rate limited") {
		t.Error("failed turn not written as error")
	}
	if strings.Contains(content, "validation") {
		t.Error("failed turn must not carry a metadata summary")
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewTranscriptLogger("", "text", &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.LogTurn(history.Turn{Role: history.RoleUser, Content: "hello", Timestamp: time.Now().Unix()})
	l.LogTurn(assistantTurn())

	out := buf.String()
	if !strings.Contains(out, "YOU") {
		t.Error("user badge missing from console output")
	}
	if !strings.Contains(out, "AGENTS") {
		t.Error("assistant badge missing from console output")
	}
	if !strings.Contains(out, "Architect") {
		t.Error("step activity missing from console output")
	}
	if l.Path() != "" {
		t.Errorf("Path() = %q, want empty without a log dir", l.Path())
	}
}

func TestLogError(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := NewTranscriptLogger(dir, "text", &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.LogError("doctor", errors.New("backend unreachable"))
	l.Close()

	if !strings.Contains(transcriptContent(t, dir), "ERROR - doctor: backend unreachable") {
		t.Error("error not written to transcript")
	}
	if !strings.Contains(buf.String(), "backend unreachable") {
		t.Error("error not written to console")
	}
}

func TestWrapText(t *testing.T) {
	l := &TranscriptLogger{termWidth: 40}

	wrapped := l.wrapText(strings.Repeat("word ", 20), 2)
	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > 40 {
			t.Errorf("line longer than width: %q", line)
		}
	}

	short := l.wrapText("short", 2)
	if short != "  short" {
		t.Errorf("short line = %q", short)
	}
}
