// Package client provides the HTTP boundary to the remote multi-agent
// backend. A single POST endpoint accepts an operation envelope; the client
// maps transport, decoding, and backend-reported failures onto a small error
// taxonomy that the turn orchestrator converts into error turns.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/metrics"
	"github.com/deagent-io/deagent/pkg/ratelimit"
	"github.com/deagent-io/deagent/pkg/step"
	"github.com/deagent-io/deagent/pkg/turn"
)

// defaultTimeout is generous because a multi-agent pipeline can legitimately
// take minutes to answer. Requests are never retried automatically.
const defaultTimeout = 180 * time.Second

// ErrNotConfigured is returned when no endpoint is configured.
// The client fails fast without any network call.
var ErrNotConfigured = errors.New("agent endpoint not configured")

// TransportError wraps network-level failures, including timeouts and
// unexpected HTTP statuses.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("backend unreachable: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError wraps bodies that could not be decoded even after
// the bounded string-unwrap pass.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed backend response: %v", e.Err)
}
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ApplicationError carries a backend-reported failure (success=false).
// The message is surfaced to the user verbatim.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string { return e.Message }

// AgentClient talks to the multi-agent backend over one POST endpoint with
// bearer-token authorization.
type AgentClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
}

// NewAgentClient creates a client for the given endpoint and API key.
// An empty endpoint yields a client whose calls fail with ErrNotConfigured.
func NewAgentClient(endpoint, apiKey string) *AgentClient {
	return &AgentClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetLimiter installs a client-side pacing limiter applied before every
// outbound request. Nil disables pacing.
func (c *AgentClient) SetLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// SetMetrics installs collectors recording request outcomes, response sizes,
// rate-limit pauses, and document uploads. Nil disables recording.
func (c *AgentClient) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// SetTimeout overrides the per-request timeout. Non-positive values are
// ignored.
func (c *AgentClient) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// Configured reports whether an endpoint is set.
func (c *AgentClient) Configured() bool {
	return c.endpoint != ""
}

// ChatRequest is the payload for the chat operation.
// CustomInstructions, FileData, and Metadata are optional extension points;
// they are omitted from the wire when unset.
type ChatRequest struct {
	Message            string                 `json:"message"`
	SessionID          string                 `json:"session_id"`
	Context            string                 `json:"context"`
	CustomInstructions string                 `json:"custom_instructions,omitempty"`
	FileData           string                 `json:"file_data,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// envelope holds the success/error fields shared by every response.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ChatResponse is the backend's answer to a chat operation. Every field
// except Response is optional; absent fields default to safe zero values so
// rendering never crashes.
type ChatResponse struct {
	envelope
	Response         string           `json:"response"`
	AgentSteps       []step.Step      `json:"agent_steps"`
	Intent           string           `json:"intent"`
	IntentConfidence *float64         `json:"intent_confidence"`
	RAGDocuments     []string         `json:"rag_documents"`
	Validation       *turn.Validation `json:"validation"`
}

// Result converts a successful response into a turn result, applying the
// documented defaults for absent fields.
func (r *ChatResponse) Result() turn.Result {
	validation := turn.Validation{Passed: true}
	if r.Validation != nil {
		validation = *r.Validation
	}

	steps := r.AgentSteps
	if steps == nil {
		steps = []step.Step{}
	}

	return turn.Result{
		Content: r.Response,
		Steps:   steps,
		Metadata: turn.Metadata{
			Intent:           r.Intent,
			IntentConfidence: r.IntentConfidence,
			RAGDocuments:     r.RAGDocuments,
			Validation:       validation,
		},
	}
}

// Document describes one knowledge-base document as reported by the backend.
type Document struct {
	Name    string `json:"document_name"`
	Context string `json:"context"`
	Size    int    `json:"size,omitempty"`
}

// DocumentsResponse is the answer to a get_documents operation.
type DocumentsResponse struct {
	envelope
	Documents []Document `json:"documents"`
}

// StatsResponse is the answer to a get_stats operation.
type StatsResponse struct {
	envelope
	TotalDocuments int            `json:"total_documents"`
	ByContext      map[string]int `json:"by_context,omitempty"`
}

// AddDocumentResponse is the answer to an add_document operation.
type AddDocumentResponse struct {
	envelope
	DocumentName string `json:"document_name,omitempty"`
}

// Chat sends one user message and blocks until the backend resolves it or
// the timeout elapses. Exactly one request is fired per call.
func (c *AgentClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.call(ctx, "chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddDocument uploads a document into the backend knowledge base.
func (c *AgentClient) AddDocument(ctx context.Context, content, name, docContext string) (*AddDocumentResponse, error) {
	payload := map[string]interface{}{
		"content":       content,
		"document_name": name,
		"context":       docContext,
	}
	var resp AddDocumentResponse
	if err := c.call(ctx, "add_document", payload, &resp); err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordDocumentUpload()
	}
	return &resp, nil
}

// GetDocuments lists the documents in the backend knowledge base.
func (c *AgentClient) GetDocuments(ctx context.Context) (*DocumentsResponse, error) {
	var resp DocumentsResponse
	if err := c.call(ctx, "get_documents", map[string]interface{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStats fetches knowledge-base statistics. It doubles as the health
// probe for the doctor command.
func (c *AgentClient) GetStats(ctx context.Context) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.call(ctx, "get_stats", map[string]interface{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// responder lets call inspect the shared envelope after decoding.
type responder interface {
	envelopeRef() *envelope
}

func (e *envelope) envelopeRef() *envelope { return e }

// call posts one operation envelope and decodes the response into out.
// All four failure modes of the error taxonomy originate here.
func (c *AgentClient) call(ctx context.Context, operation string, payload interface{}, out responder) error {
	if !c.Configured() {
		log.WithField("operation", operation).Warn("request dropped: endpoint not configured")
		return ErrNotConfigured
	}

	err := c.do(ctx, operation, payload, out)
	if c.metrics != nil {
		c.metrics.RecordRequest(operation, err)
	}
	return err
}

func (c *AgentClient) do(ctx context.Context, operation string, payload interface{}, out responder) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Err: err}
		}
	}

	body, err := encodeOperation(operation, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.WithFields(map[string]interface{}{
		"operation": operation,
		"endpoint":  c.endpoint,
	}).Debug("sending backend request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"operation": operation,
			"duration":  time.Since(start).String(),
		}).WithError(err).Error("backend request failed")
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if c.limiter != nil {
			c.limiter.Pause(retryAfter(resp))
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimitPause()
		}
		return &TransportError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))}
	}

	if err := decodeBody(raw, out); err != nil {
		log.WithField("operation", operation).WithError(err).Error("backend response could not be decoded")
		return err
	}

	env := out.envelopeRef()
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "backend reported an unspecified error"
		}
		log.WithFields(map[string]interface{}{
			"operation": operation,
			"error":     msg,
		}).Warn("backend reported failure")
		return &ApplicationError{Message: msg}
	}

	if c.metrics != nil {
		c.metrics.RecordResponseSize(len(raw))
	}

	log.WithFields(map[string]interface{}{
		"operation": operation,
		"duration":  time.Since(start).String(),
	}).Info("backend request completed")

	return nil
}

// encodeOperation flattens the payload into the operation envelope expected
// by the backend: {"operation": ..., <payload fields>...}.
func encodeOperation(operation string, payload interface{}) ([]byte, error) {
	fields := map[string]interface{}{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
	}
	fields["operation"] = operation
	return json.Marshal(fields)
}

// decodeBody decodes a response body, unwrapping a string-encoded JSON
// payload exactly once. Some backends wrap the JSON object in a JSON string;
// one bounded unwrap handles that without looping on nested encodings.
func decodeBody(raw []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &MalformedResponseError{Err: errors.New("empty response body")}
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return &MalformedResponseError{Err: err}
		}
		trimmed = []byte(inner)
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return &MalformedResponseError{Err: err}
	}
	return nil
}

// retryAfter parses a Retry-After header in seconds; zero when absent.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
