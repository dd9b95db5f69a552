// Package history provides the append-only conversation log for a session.
// Turns are appended in chronological order and finalized in place; the log
// only shrinks on an explicit Clear.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/step"
	"github.com/deagent-io/deagent/pkg/turn"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks a turn containing the user's message
	RoleUser Role = "user"
	// RoleAssistant marks a turn containing the backend's response
	RoleAssistant Role = "assistant"
)

// ErrInvalidHandle is returned by Finalize when the handle does not refer to
// the most recently appended pending assistant turn.
var ErrInvalidHandle = errors.New("handle does not refer to the pending assistant turn")

// Turn is one user message or one assistant response.
type Turn struct {
	// Role is who produced the turn
	Role Role `json:"role"`
	// Content is the final text; empty while the turn is pending
	Content string `json:"content"`
	// Steps is the reported agent activity; always empty for user turns
	Steps []step.Step `json:"agent_steps,omitempty"`
	// Metadata holds intent, confidence, documents used, and validation
	Metadata turn.Metadata `json:"metadata,omitempty"`
	// Pending is true for an assistant turn awaiting its result
	Pending bool `json:"-"`
	// Failed is true when the turn resolved with an error; Content then
	// holds the error message and Steps is empty
	Failed bool `json:"failed,omitempty"`
	// Timestamp is when the turn was appended
	Timestamp int64 `json:"timestamp"`
}

// Handle refers to a pending assistant turn so it can be finalized in place.
type Handle struct {
	index int
	gen   uint64
}

// Log is the ordered conversation history. All methods are safe for
// concurrent use, though the design only ever has one writer (the single
// in-flight turn flow).
type Log struct {
	mu    sync.RWMutex
	turns []Turn
	// gen increments on Clear so stale handles from a previous
	// conversation can never finalize a turn in the new one.
	gen uint64
}

// New returns an empty conversation log.
func New() *Log {
	return &Log{turns: make([]Turn, 0)}
}

// AppendUser appends a user turn. It always succeeds.
func (l *Log) AppendUser(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = append(l.turns, Turn{
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now().Unix(),
	})
}

// AppendPendingAssistant appends a placeholder assistant turn and returns a
// handle used to finalize it once the backend responds.
func (l *Log) AppendPendingAssistant() Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = append(l.turns, Turn{
		Role:      RoleAssistant,
		Pending:   true,
		Timestamp: time.Now().Unix(),
	})

	return Handle{index: len(l.turns) - 1, gen: l.gen}
}

// Finalize resolves the pending assistant turn at the handle in place.
// The content, step list, and metadata are swapped in under the lock in a
// single assignment, so no reader observes placeholder and real steps mixed.
// Finalizing anything but the most recently appended pending turn fails
// with ErrInvalidHandle.
func (l *Log) Finalize(h Handle, res turn.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h.gen != l.gen || h.index != len(l.turns)-1 {
		return ErrInvalidHandle
	}

	t := &l.turns[h.index]
	if t.Role != RoleAssistant || !t.Pending {
		return ErrInvalidHandle
	}

	if res.Err != nil {
		*t = Turn{
			Role:      RoleAssistant,
			Content:   res.Err.Error(),
			Failed:    true,
			Timestamp: t.Timestamp,
		}
		log.WithError(res.Err).Debug("assistant turn finalized with error")
		return nil
	}

	*t = Turn{
		Role:      RoleAssistant,
		Content:   res.Content,
		Steps:     res.Steps,
		Metadata:  res.Metadata,
		Timestamp: t.Timestamp,
	}

	log.WithFields(map[string]interface{}{
		"steps":       len(res.Steps),
		"intent":      res.Metadata.Intent,
		"content_len": len(res.Content),
	}).Debug("assistant turn finalized")

	return nil
}

// Clear empties the history. It is idempotent.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = l.turns[:0]
	l.gen++
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Turns returns a copy of the conversation. The copy can be modified freely
// without affecting the log.
func (l *Log) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	turns := make([]Turn, len(l.turns))
	copy(turns, l.turns)
	return turns
}

// Last returns the most recent turn, or false when the history is empty.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}
