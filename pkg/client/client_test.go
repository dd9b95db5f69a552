package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/deagent-io/deagent/pkg/metrics"
	"github.com/deagent-io/deagent/pkg/ratelimit"
	"github.com/deagent-io/deagent/pkg/step"
)

func TestChatSuccess(t *testing.T) {
	var captured map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"response": "Use bronze for raw ingestion, silver for conformed entities, gold for marts.",
			"agent_steps": [
				{"agent": "Architect", "agent_icon": "🏗️", "action": "Designing layers", "status": "completed", "details": ["bronze", "silver", "gold", "extra"]},
				{"agent": "Validator", "action": "Checking design", "status": "completed"}
			],
			"intent": "medallion_architecture",
			"intent_confidence": 0.82,
			"rag_documents": ["medallion_guide.md"],
			"validation": {"passed": true}
		}`))
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "test-key")
	resp, err := c.Chat(context.Background(), ChatRequest{
		Message:   "How should I layer my lakehouse?",
		SessionID: "session-1",
		Context:   "medallion_architecture",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if captured["operation"] != "chat" {
		t.Errorf("operation = %v, want chat", captured["operation"])
	}
	if captured["message"] != "How should I layer my lakehouse?" {
		t.Errorf("message not forwarded: %v", captured["message"])
	}
	if captured["session_id"] != "session-1" {
		t.Errorf("session_id not forwarded: %v", captured["session_id"])
	}
	if _, present := captured["custom_instructions"]; present {
		t.Error("empty custom_instructions should be omitted from the wire")
	}

	if len(resp.AgentSteps) != 2 {
		t.Fatalf("len(AgentSteps) = %d, want 2", len(resp.AgentSteps))
	}
	if resp.AgentSteps[0].Status != step.StatusCompleted {
		t.Errorf("step status = %s, want completed", resp.AgentSteps[0].Status)
	}
	if got := resp.AgentSteps[0].DisplayDetails(); len(got) != 3 {
		t.Errorf("display details = %d, want 3", len(got))
	}
	if resp.Intent != "medallion_architecture" {
		t.Errorf("intent = %q", resp.Intent)
	}
	if resp.IntentConfidence == nil || *resp.IntentConfidence != 0.82 {
		t.Errorf("intent confidence = %v, want 0.82", resp.IntentConfidence)
	}

	res := resp.Result()
	if res.Err != nil {
		t.Errorf("unexpected result error: %v", res.Err)
	}
	if !res.Metadata.Validation.Passed {
		t.Error("validation should pass")
	}
	if got := step.Summarize(res.Steps); got.Completed != 2 || got.Total != 2 {
		t.Errorf("progress = %+v, want 2/2", got)
	}
}

func TestChatNotConfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewAgentClient("", "key")
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if calls != 0 {
		t.Errorf("server was called %d times, want 0", calls)
	}
}

func TestChatApplicationErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "rate limited"}`))
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})

	var appErr *ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %T, want *ApplicationError", err)
	}
	if appErr.Error() != "rate limited" {
		t.Errorf("message = %q, want %q verbatim", appErr.Error(), "rate limited")
	}
}

func TestChatStringWrappedResponse(t *testing.T) {
	// Some backends double-encode: the body is a JSON string whose contents
	// are the real JSON object. Exactly one unwrap is applied.
	inner := `{"success": true, "response": "hello", "agent_steps": []}`
	wrapped, err := json.Marshal(inner)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(wrapped)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	resp, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Response != "hello" {
		t.Errorf("response = %q, want hello", resp.Response)
	}
}

func TestChatDoublyWrappedResponseIsMalformed(t *testing.T) {
	inner := `{"success": true, "response": "hello"}`
	once, _ := json.Marshal(inner)
	twice, _ := json.Marshal(string(once))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(twice)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})

	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %T, want *MalformedResponseError", err)
	}
}

func TestChatMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>502 Bad Gateway</html>"},
		{"empty body", ""},
		{"string wrapping garbage", `"not actually json inside"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewAgentClient(srv.URL, "key")
			_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})

			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("err = %T (%v), want *MalformedResponseError", err, err)
			}
		})
	}
}

func TestChatTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewAgentClient(srv.URL, "key")
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})

	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %T, want *TransportError", err)
	}
}

func TestChatServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})

	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %T, want *TransportError", err)
	}
}

func TestChatNoAutomaticRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	if _, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want exactly 1", calls)
	}
}

func TestRateLimitedResponsePausesLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.NewLimiter(10, 5)
	c := NewAgentClient(srv.URL, "key")
	c.SetLimiter(limiter)

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %T, want *TransportError", err)
	}

	remaining := limiter.CooldownRemaining()
	if remaining <= 25*time.Second || remaining > 30*time.Second {
		t.Errorf("cooldown = %v, want about 30s", remaining)
	}
}

func TestValidationDefaultsToPassed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "response": "ok"}`))
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	resp, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	res := resp.Result()
	if !res.Metadata.Validation.Passed {
		t.Error("absent validation block should default to passed")
	}
	if res.Steps == nil {
		t.Error("absent steps should decode to an empty, non-nil slice")
	}
}

func TestKnowledgeBaseOperations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}

		switch req["operation"] {
		case "add_document":
			if req["document_name"] != "pipeline.md" || req["context"] != "pipeline_design" {
				t.Errorf("unexpected add_document payload: %v", req)
			}
			_, _ = w.Write([]byte(`{"success": true, "document_name": "pipeline.md"}`))
		case "get_documents":
			_, _ = w.Write([]byte(`{"success": true, "documents": [{"document_name": "pipeline.md", "context": "pipeline_design"}]}`))
		case "get_stats":
			_, _ = w.Write([]byte(`{"success": true, "total_documents": 4, "by_context": {"pipeline_design": 3, "schema_design": 1}}`))
		default:
			t.Errorf("unexpected operation %v", req["operation"])
		}
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, "key")
	ctx := context.Background()

	added, err := c.AddDocument(ctx, "# Pipeline notes", "pipeline.md", "pipeline_design")
	if err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}
	if added.DocumentName != "pipeline.md" {
		t.Errorf("DocumentName = %q", added.DocumentName)
	}

	docs, err := c.GetDocuments(ctx)
	if err != nil {
		t.Fatalf("GetDocuments failed: %v", err)
	}
	if len(docs.Documents) != 1 || docs.Documents[0].Context != "pipeline_design" {
		t.Errorf("unexpected documents: %+v", docs.Documents)
	}

	stats, err := c.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalDocuments != 4 {
		t.Errorf("TotalDocuments = %d, want 4", stats.TotalDocuments)
	}
	if stats.ByContext["pipeline_design"] != 3 {
		t.Errorf("ByContext = %v", stats.ByContext)
	}
}

func newTestMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.NewMetrics(reg), reg
}

// metricTotal sums the counter values (or histogram sample counts) of the
// named metric across all label combinations.
func metricTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetHistogram() != nil {
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total
	}
	return 0
}

func TestMetricsRecordedOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "response": "ok"}`))
	}))
	defer srv.Close()

	m, reg := newTestMetrics()
	c := NewAgentClient(srv.URL, "key")
	c.SetMetrics(m)

	if _, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if got := metricTotal(t, reg, "deagent_backend_requests_total"); got != 1 {
		t.Errorf("backend_requests_total = %v, want 1", got)
	}
	if got := metricTotal(t, reg, "deagent_response_size_bytes"); got != 1 {
		t.Errorf("response_size_bytes samples = %v, want 1", got)
	}
}

func TestMetricsRecordedOnRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m, reg := newTestMetrics()
	c := NewAgentClient(srv.URL, "key")
	c.SetMetrics(m)

	if _, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"}); err == nil {
		t.Fatal("expected error")
	}

	if got := metricTotal(t, reg, "deagent_rate_limit_pauses_total"); got != 1 {
		t.Errorf("rate_limit_pauses_total = %v, want 1", got)
	}
	if got := metricTotal(t, reg, "deagent_backend_requests_total"); got != 1 {
		t.Errorf("backend_requests_total = %v, want 1", got)
	}
	if got := metricTotal(t, reg, "deagent_response_size_bytes"); got != 0 {
		t.Errorf("response_size_bytes samples = %v, want 0 for a failed request", got)
	}
}

func TestMetricsRecordedOnDocumentUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "document_name": "notes.md"}`))
	}))
	defer srv.Close()

	m, reg := newTestMetrics()
	c := NewAgentClient(srv.URL, "key")
	c.SetMetrics(m)

	if _, err := c.AddDocument(context.Background(), "content", "notes.md", "general"); err != nil {
		t.Fatalf("AddDocument failed: %v", err)
	}

	if got := metricTotal(t, reg, "deagent_documents_uploaded_total"); got != 1 {
		t.Errorf("documents_uploaded_total = %v, want 1", got)
	}
}

func TestMetricsNotRecordedWhenUnconfigured(t *testing.T) {
	m, reg := newTestMetrics()
	c := NewAgentClient("", "key")
	c.SetMetrics(m)

	if _, err := c.Chat(context.Background(), ChatRequest{Message: "hi", SessionID: "s"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}

	if got := metricTotal(t, reg, "deagent_backend_requests_total"); got != 0 {
		t.Errorf("backend_requests_total = %v, want 0 when no request was sent", got)
	}
}
