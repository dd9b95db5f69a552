// Package turn implements the per-request state machine that drives one
// user/assistant exchange. A Machine is created fresh for every user
// submission; it enforces single dispatch and atomic resolution.
package turn

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/deagent-io/deagent/pkg/step"
)

// State is the lifecycle state of a single turn.
type State string

const (
	// StateIdle means no request is in flight
	StateIdle State = "idle"
	// StateSubmitted means user text has been captured but not dispatched
	StateSubmitted State = "submitted"
	// StateAwaitingResult means the request is in flight
	StateAwaitingResult State = "awaiting_result"
	// StateResolvedSuccess is terminal: the backend answered
	StateResolvedSuccess State = "resolved_success"
	// StateResolvedError is terminal: the request failed
	StateResolvedError State = "resolved_error"
)

// Terminal reports whether the state is one of the resolved states.
func (s State) Terminal() bool {
	return s == StateResolvedSuccess || s == StateResolvedError
}

var (
	// ErrEmptySubmission is returned when the submitted text is empty or whitespace
	ErrEmptySubmission = errors.New("submission is empty")
	// ErrAlreadyDispatched is returned on a second dispatch for the same turn
	ErrAlreadyDispatched = errors.New("turn already dispatched")
)

// Metadata carries the summary information reported with a resolved turn.
type Metadata struct {
	// Intent is the classified intent label, empty when not reported
	Intent string `json:"intent,omitempty"`
	// IntentConfidence is the classifier confidence in [0,1], nil when not reported
	IntentConfidence *float64 `json:"intent_confidence,omitempty"`
	// RAGDocuments lists identifiers of retrieved documents used for the answer
	RAGDocuments []string `json:"rag_documents,omitempty"`
	// Validation is the backend's validation outcome for the answer
	Validation Validation `json:"validation"`
}

// Validation is the backend-reported validation outcome.
// Absence of a validation block defaults to passed.
type Validation struct {
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// Result is the terminal outcome of a turn. Exactly one of Err or the
// content fields is meaningful: on failure Err is set and Steps is empty.
type Result struct {
	Content  string
	Steps    []step.Step
	Metadata Metadata
	Err      error
}

// Machine is the state machine for a single user request.
// It is instantiated per turn and is safe for concurrent reads while the
// dispatch goroutine resolves it.
type Machine struct {
	mu    sync.RWMutex
	state State
	text  string
	// resolved holds the final outcome; assigned once, under the lock,
	// so no reader ever observes a partial step list.
	resolved Result
}

// NewMachine returns a turn machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Text returns the submitted user text.
func (m *Machine) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text
}

// Submit captures the user text. Empty or whitespace-only text is rejected
// and the machine stays idle.
func (m *Machine) Submit(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptySubmission
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return fmt.Errorf("cannot submit in state %s", m.state)
	}

	m.text = trimmed
	m.state = StateSubmitted
	return nil
}

// Dispatch marks the request as in flight. Exactly one dispatch is allowed
// per submission.
func (m *Machine) Dispatch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateSubmitted:
		m.state = StateAwaitingResult
		return nil
	case StateAwaitingResult:
		return ErrAlreadyDispatched
	default:
		return fmt.Errorf("cannot dispatch in state %s", m.state)
	}
}

// Resolve finalizes the turn. On success the full step list, content, and
// metadata replace any placeholder in one assignment; on failure the steps
// are discarded and the error becomes the displayed content.
func (m *Machine) Resolve(res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingResult {
		return fmt.Errorf("cannot resolve in state %s", m.state)
	}

	if res.Err != nil {
		m.resolved = Result{Content: res.Err.Error(), Err: res.Err}
		m.state = StateResolvedError
		return nil
	}

	m.resolved = res
	m.state = StateResolvedSuccess
	return nil
}

// Result returns the terminal outcome. The second return is false until the
// machine reaches a resolved state.
func (m *Machine) Result() (Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.state.Terminal() {
		return Result{}, false
	}
	return m.resolved, true
}

// Progress returns the step completion summary for display. While the turn
// is awaiting its result a synthetic single running step is reported so the
// presenter has something to show; it never leaks into the resolved result.
func (m *Machine) Progress() step.Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.state {
	case StateAwaitingResult:
		return step.Progress{Completed: 0, Total: 1}
	case StateResolvedSuccess:
		return step.Summarize(m.resolved.Steps)
	default:
		return step.Progress{}
	}
}

// PlaceholderSteps returns the synthetic in-flight step list shown while the
// backend is working. It is a derived view, never stored in history.
func PlaceholderSteps() []step.Step {
	return []step.Step{
		{
			Agent:  "Agents",
			Icon:   "🔄",
			Action: "Processing your request",
			Status: step.StatusRunning,
		},
	}
}
