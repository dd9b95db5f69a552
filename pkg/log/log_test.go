package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func capture(t *testing.T, level zerolog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	InitLogger(&buf, level, false)
	t.Cleanup(func() { InitLogger(os.Stderr, zerolog.InfoLevel, false) })
	return &buf
}

func TestPackageLevelHelpers(t *testing.T) {
	buf := capture(t, zerolog.DebugLevel)

	Debug("starting up")
	Info("connected")
	Warn("slow response")
	Error("request failed")

	out := buf.String()
	for _, want := range []string{
		`"level":"debug"`, `"message":"starting up"`,
		`"level":"info"`, `"message":"connected"`,
		`"level":"warn"`, `"message":"slow response"`,
		`"level":"error"`, `"message":"request failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestEntryFieldsAndError(t *testing.T) {
	buf := capture(t, zerolog.InfoLevel)

	WithField("operation", "chat").Info("backend request completed")
	WithFields(map[string]interface{}{"topic": "schema_design", "turn": 3}).Info("turn resolved")
	WithError(errors.New("connection refused")).Error("backend unreachable")

	out := buf.String()
	for _, want := range []string{
		`"operation":"chat"`,
		`"topic":"schema_design"`,
		`"turn":3`,
		`"error":"connection refused"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}
}

func TestSetLevelFilters(t *testing.T) {
	buf := capture(t, zerolog.InfoLevel)

	Debug("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug message logged at info level")
	}

	SetLevel(zerolog.DebugLevel)
	Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug message not logged after SetLevel(debug)")
	}
}
