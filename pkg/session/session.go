// Package session owns one conversation with the agent backend: its
// identity, focus topic, history, and the single-flight turn orchestration.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/deagent-io/deagent/pkg/client"
	"github.com/deagent-io/deagent/pkg/history"
	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/metrics"
	"github.com/deagent-io/deagent/pkg/middleware"
	"github.com/deagent-io/deagent/pkg/turn"
)

// ErrTurnInFlight is returned by Send while a previous turn is still
// awaiting its result. Only one turn may be in flight per session.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// Context is the session state sent with every chat request.
type Context struct {
	// SessionID is a stable identifier generated at session creation
	SessionID string
	// Topic is the active focus topic ID
	Topic string
	// CustomInstructions is free-form guidance, used with the custom topic
	CustomInstructions string
}

// Options configures a new session.
type Options struct {
	// Client is the backend client; required
	Client *client.AgentClient

	// Pipeline processes resolved turns before they reach history.
	// Nil means no processing.
	Pipeline *middleware.Chain

	// Metrics records turn gauges; nil disables recording
	Metrics *metrics.Metrics

	// Topic is the initial focus topic; defaults to DefaultTopicID
	Topic string

	// CustomInstructions is the initial custom guidance
	CustomInstructions string
}

// Session is one conversation. All methods are safe for concurrent use;
// Send enforces that at most one turn is in flight.
type Session struct {
	mu       sync.Mutex
	sctx     Context
	active   *turn.Machine
	turns    int
	client   *client.AgentClient
	pipeline *middleware.Chain
	metrics  *metrics.Metrics
	history  *history.Log
}

// New creates a session with a fresh UUID session identifier.
func New(opts Options) *Session {
	topic := opts.Topic
	if _, ok := TopicByID(topic); !ok {
		topic = DefaultTopicID
	}

	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = middleware.NewChain()
	}

	s := &Session{
		sctx: Context{
			SessionID:          uuid.NewString(),
			Topic:              topic,
			CustomInstructions: opts.CustomInstructions,
		},
		client:   opts.Client,
		pipeline: pipeline,
		metrics:  opts.Metrics,
		history:  history.New(),
	}

	log.WithFields(map[string]interface{}{
		"session_id": s.sctx.SessionID,
		"topic":      topic,
	}).Info("session created")

	return s
}

// Context returns a copy of the session context.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sctx
}

// History returns the conversation log.
func (s *Session) History() *history.Log {
	return s.history
}

// SetTopic switches the focus topic. Unknown topic IDs are rejected.
// The change applies to the next submitted turn.
func (s *Session) SetTopic(id string) error {
	if _, ok := TopicByID(id); !ok {
		return errors.New("unknown topic: " + id)
	}

	s.mu.Lock()
	s.sctx.Topic = id
	s.mu.Unlock()

	log.WithField("topic", id).Debug("focus topic changed")
	return nil
}

// SetCustomInstructions updates the free-form guidance used with the
// custom topic.
func (s *Session) SetCustomInstructions(text string) {
	s.mu.Lock()
	s.sctx.CustomInstructions = text
	s.mu.Unlock()
}

// Busy reports whether a turn is currently in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Active returns the in-flight turn machine, or nil when idle. The machine
// is safe for concurrent reads while the turn resolves.
func (s *Session) Active() *turn.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Clear empties the conversation history. A turn already in flight is
// allowed to finish; its late result is dropped because its history handle
// no longer resolves.
func (s *Session) Clear() {
	s.history.Clear()
	if s.metrics != nil {
		s.metrics.SetHistoryLength(0)
	}
	log.WithField("session_id", s.Context().SessionID).Info("conversation cleared")
}

// Send runs one full turn: it validates and captures the text, appends the
// user turn and a pending assistant turn, dispatches exactly one backend
// request, runs the turn pipeline, and finalizes history. It blocks until
// the turn resolves and returns the finalized assistant turn.
//
// A second Send while one is in flight fails with ErrTurnInFlight and has
// no side effects.
func (s *Session) Send(ctx context.Context, text string) (history.Turn, error) {
	m, handle, req, turnNumber, err := s.begin(text)
	if err != nil {
		return history.Turn{}, err
	}
	defer s.finish()

	if err := m.Dispatch(); err != nil {
		// Unreachable with a freshly submitted machine; resolve defensively.
		res := turn.Result{Err: err}
		_ = m.Resolve(res)
		_ = s.history.Finalize(handle, res)
		return history.Turn{}, err
	}

	var res turn.Result
	resp, err := s.client.Chat(ctx, req)
	if err != nil {
		res = turn.Result{Err: err}
	} else {
		res = resp.Result()
	}

	res = s.runPipeline(ctx, req, turnNumber, res)

	if err := m.Resolve(res); err != nil {
		log.WithError(err).Error("turn resolution failed")
	}

	if err := s.history.Finalize(handle, res); err != nil {
		// History was cleared while the request was in flight; the result
		// has nowhere to go.
		log.WithError(err).Debug("late turn result dropped")
	}

	if last, ok := s.history.Last(); ok && last.Role == history.RoleAssistant {
		return last, nil
	}
	return history.Turn{}, nil
}

// begin performs the synchronized prologue of Send.
func (s *Session) begin(text string) (*turn.Machine, history.Handle, client.ChatRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, history.Handle{}, client.ChatRequest{}, 0, ErrTurnInFlight
	}

	m := turn.NewMachine()
	if err := m.Submit(text); err != nil {
		return nil, history.Handle{}, client.ChatRequest{}, 0, err
	}

	s.active = m
	s.turns++

	s.history.AppendUser(m.Text())
	handle := s.history.AppendPendingAssistant()

	req := client.ChatRequest{
		Message:   m.Text(),
		SessionID: s.sctx.SessionID,
		Context:   s.sctx.Topic,
	}
	if s.sctx.Topic == CustomTopicID {
		req.CustomInstructions = s.sctx.CustomInstructions
	}

	if s.metrics != nil {
		s.metrics.SetInFlight(true)
		s.metrics.SetHistoryLength(s.history.Len())
	}

	return m, handle, req, s.turns, nil
}

// finish releases the single-flight slot.
func (s *Session) finish() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetInFlight(false)
		s.metrics.SetHistoryLength(s.history.Len())
	}
}

// runPipeline applies the middleware chain to a resolved result. A pipeline
// error replaces the result with a failed one so the turn still resolves.
func (s *Session) runPipeline(ctx context.Context, req client.ChatRequest, turnNumber int, res turn.Result) turn.Result {
	tctx := &middleware.TurnContext{
		Ctx:        ctx,
		SessionID:  req.SessionID,
		Topic:      req.Context,
		TurnNumber: turnNumber,
	}

	out, err := s.pipeline.Process(tctx, &res)
	if err != nil {
		return turn.Result{Err: err}
	}
	if out == nil {
		return res
	}
	return *out
}
