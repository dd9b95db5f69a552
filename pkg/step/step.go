// Package step defines the unit of reported sub-agent work and its status
// lifecycle. Steps are produced by the remote agent backend; this package
// only models them and enforces the status ordering used for display.
package step

import "encoding/json"

// Status is the lifecycle state of a single agent step.
type Status string

const (
	// StatusWaiting means the step has been announced but not started
	StatusWaiting Status = "waiting"
	// StatusRunning means the step is currently in progress
	StatusRunning Status = "running"
	// StatusCompleted means the step finished successfully
	StatusCompleted Status = "completed"
	// StatusError means the step failed
	StatusError Status = "error"
)

// rank orders statuses for monotonicity checks. Terminal states share the
// highest rank; a step never moves backward within a turn.
func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusError:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the status is one of the recognized values.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether the status is completed or error.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanAdvanceTo reports whether a step may move from s to next.
// Statuses only move forward: waiting -> running -> completed/error.
// Staying at the same status is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return s == next
	}
	return next.rank() >= s.rank()
}

// maxDisplayDetails caps how many detail lines are rendered per step.
const maxDisplayDetails = 3

// Step is one reported unit of work performed by a named sub-agent
// during a single turn.
type Step struct {
	// Agent is the display name of the sub-agent (e.g., "Architect")
	Agent string `json:"agent"`
	// Icon is an opaque display label supplied by the backend
	Icon string `json:"agent_icon,omitempty"`
	// Action is a short description of what the step does
	Action string `json:"action,omitempty"`
	// Status is the current lifecycle state of the step
	Status Status `json:"status"`
	// Details holds short descriptive strings in display order
	Details []string `json:"details,omitempty"`
}

// UnmarshalJSON fills in defaults for fields the backend may omit.
// A step without a status is treated as completed, matching backends
// that only report finished work.
func (s *Step) UnmarshalJSON(data []byte) error {
	type alias Step
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Step(raw)
	if s.Status == "" {
		s.Status = StatusCompleted
	}
	if s.Agent == "" {
		s.Agent = "Agent"
	}
	return nil
}

// DisplayDetails returns the detail lines capped for rendering.
func (s Step) DisplayDetails() []string {
	if len(s.Details) <= maxDisplayDetails {
		return s.Details
	}
	return s.Details[:maxDisplayDetails]
}

// Advance moves the step to next if the transition is permitted.
// It reports whether the status changed.
func (s *Step) Advance(next Status) bool {
	if !s.Status.CanAdvanceTo(next) || s.Status == next {
		return false
	}
	s.Status = next
	return true
}

// Progress summarizes completion across a list of steps.
type Progress struct {
	Completed int
	Total     int
}

// Fraction returns completed/total in [0, 1]. An empty step list yields 0.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Completed) / float64(p.Total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Summarize computes the progress summary for a step list.
// It is recomputed on every state change and never cached.
func Summarize(steps []Step) Progress {
	p := Progress{Total: len(steps)}
	for _, s := range steps {
		if s.Status == StatusCompleted {
			p.Completed++
		}
	}
	return p
}
