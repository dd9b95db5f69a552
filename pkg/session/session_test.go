package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/deagent-io/deagent/pkg/client"
	"github.com/deagent-io/deagent/pkg/history"
	"github.com/deagent-io/deagent/pkg/turn"
)

func newTestSession(t *testing.T, handler http.HandlerFunc) (*Session, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := New(Options{Client: client.NewAgentClient(srv.URL, "key")})
	return s, srv
}

func chatHandler(response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(response))
	}
}

func TestNewSessionDefaults(t *testing.T) {
	s := New(Options{Client: client.NewAgentClient("", "")})

	sctx := s.Context()
	if sctx.SessionID == "" {
		t.Error("session ID not generated")
	}
	if sctx.Topic != DefaultTopicID {
		t.Errorf("topic = %q, want %q", sctx.Topic, DefaultTopicID)
	}
	if s.Busy() {
		t.Error("new session should be idle")
	}
}

func TestSendHappyPath(t *testing.T) {
	var captured map[string]interface{}
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{
			"success": true,
			"response": "use a star schema",
			"agent_steps": [{"agent": "Architect", "status": "completed"}],
			"intent": "schema_design",
			"intent_confidence": 0.9
		}`))
	})

	got, err := s.Send(context.Background(), "  design my schema  ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if captured["message"] != "design my schema" {
		t.Errorf("message = %v, want trimmed text", captured["message"])
	}
	if captured["session_id"] != s.Context().SessionID {
		t.Error("session_id not forwarded")
	}
	if captured["context"] != DefaultTopicID {
		t.Errorf("context = %v", captured["context"])
	}

	if got.Role != history.RoleAssistant || got.Content != "use a star schema" {
		t.Errorf("unexpected turn: %+v", got)
	}
	if got.Metadata.Intent != "schema_design" {
		t.Errorf("intent = %q", got.Metadata.Intent)
	}

	turns := s.History().Turns()
	if len(turns) != 2 {
		t.Fatalf("history length = %d, want 2", len(turns))
	}
	if turns[0].Role != history.RoleUser || turns[0].Content != "design my schema" {
		t.Errorf("user turn = %+v", turns[0])
	}
	if turns[1].Pending {
		t.Error("assistant turn still pending after Send returned")
	}
	if s.Busy() {
		t.Error("session still busy after Send returned")
	}
}

func TestSendRejectsEmptyText(t *testing.T) {
	s, _ := newTestSession(t, chatHandler(`{"success": true, "response": "x"}`))

	_, err := s.Send(context.Background(), "   ")
	if !errors.Is(err, turn.ErrEmptySubmission) {
		t.Fatalf("err = %v, want ErrEmptySubmission", err)
	}
	if s.History().Len() != 0 {
		t.Error("rejected submission must not touch history")
	}
}

func TestSendSingleFlight(t *testing.T) {
	release := make(chan struct{})
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"success": true, "response": "done"}`))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.Send(context.Background(), "first"); err != nil {
			t.Errorf("first Send failed: %v", err)
		}
	}()

	// Wait for the first turn to be in flight.
	deadline := time.After(2 * time.Second)
	for !s.Busy() {
		select {
		case <-deadline:
			t.Fatal("first turn never became busy")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := s.Send(context.Background(), "second")
	if !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("concurrent Send = %v, want ErrTurnInFlight", err)
	}
	if s.History().Len() != 2 {
		t.Errorf("rejected Send changed history: len = %d, want 2", s.History().Len())
	}

	close(release)
	wg.Wait()

	if s.Busy() {
		t.Error("session busy after turn resolved")
	}
}

func TestSendBackendError(t *testing.T) {
	s, _ := newTestSession(t, chatHandler(`{"success": false, "error": "rate limited"}`))

	got, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !got.Failed {
		t.Error("turn should be marked failed")
	}
	if got.Content != "rate limited" {
		t.Errorf("content = %q, want backend error verbatim", got.Content)
	}
	if len(got.Steps) != 0 {
		t.Error("failed turn must not keep steps")
	}

	// The session accepts new input after a failure.
	if s.Busy() {
		t.Error("session stuck busy after error")
	}
}

func TestSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	s := New(Options{Client: client.NewAgentClient(srv.URL, "key")})
	got, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !got.Failed {
		t.Error("transport failure should produce a failed turn")
	}
}

func TestClearDuringFlightDropsLateResult(t *testing.T) {
	release := make(chan struct{})
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"success": true, "response": "late answer"}`))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Send(context.Background(), "question")
	}()

	deadline := time.After(2 * time.Second)
	for !s.Busy() {
		select {
		case <-deadline:
			t.Fatal("turn never became busy")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Clear()
	close(release)
	<-done

	if n := s.History().Len(); n != 0 {
		t.Errorf("history length = %d after clear, want 0 (late result dropped)", n)
	}
}

func TestSetTopic(t *testing.T) {
	s := New(Options{Client: client.NewAgentClient("", "")})

	if err := s.SetTopic("medallion_architecture"); err != nil {
		t.Fatalf("SetTopic failed: %v", err)
	}
	if s.Context().Topic != "medallion_architecture" {
		t.Errorf("topic = %q", s.Context().Topic)
	}

	if err := s.SetTopic("nonsense"); err == nil {
		t.Error("unknown topic should be rejected")
	}
	if s.Context().Topic != "medallion_architecture" {
		t.Error("rejected topic change must not apply")
	}
}

func TestCustomInstructionsOnlyForCustomTopic(t *testing.T) {
	var captured map[string]interface{}
	s, _ := newTestSession(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"success": true, "response": "ok"}`))
	})

	s.SetCustomInstructions("focus on cost")

	if _, err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if _, present := captured["custom_instructions"]; present {
		t.Error("custom instructions sent for a curated topic")
	}

	if err := s.SetTopic(CustomTopicID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Send(context.Background(), "hello again"); err != nil {
		t.Fatal(err)
	}
	if captured["custom_instructions"] != "focus on cost" {
		t.Errorf("custom_instructions = %v", captured["custom_instructions"])
	}
}

func TestTopicCatalog(t *testing.T) {
	all := Topics()
	if len(all) != 6 {
		t.Fatalf("len(Topics()) = %d, want 6", len(all))
	}
	if all[0].ID != DefaultTopicID {
		t.Errorf("first topic = %q, want default first", all[0].ID)
	}

	for _, topic := range all {
		if topic.Name == "" || topic.Description == "" {
			t.Errorf("topic %q missing display fields", topic.ID)
		}
		got, ok := TopicByID(topic.ID)
		if !ok || got.ID != topic.ID {
			t.Errorf("TopicByID(%q) failed", topic.ID)
		}
	}

	if _, ok := TopicByID("unknown"); ok {
		t.Error("TopicByID should reject unknown IDs")
	}
}
