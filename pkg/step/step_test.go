package step

import (
	"encoding/json"
	"testing"
)

func TestStatusCanAdvanceTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"waiting to running", StatusWaiting, StatusRunning, true},
		{"waiting to completed", StatusWaiting, StatusCompleted, true},
		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to error", StatusRunning, StatusError, true},
		{"running to waiting", StatusRunning, StatusWaiting, false},
		{"completed to running", StatusCompleted, StatusRunning, false},
		{"completed to error", StatusCompleted, StatusError, false},
		{"error to completed", StatusError, StatusCompleted, false},
		{"completed stays completed", StatusCompleted, StatusCompleted, true},
		{"same state allowed", StatusRunning, StatusRunning, true},
		{"unknown source", Status("bogus"), StatusRunning, false},
		{"unknown target", StatusRunning, Status("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
				t.Errorf("CanAdvanceTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStepAdvance(t *testing.T) {
	s := Step{Agent: "Architect", Status: StatusWaiting}

	if !s.Advance(StatusRunning) {
		t.Error("waiting -> running should advance")
	}
	if !s.Advance(StatusCompleted) {
		t.Error("running -> completed should advance")
	}
	if s.Advance(StatusRunning) {
		t.Error("completed -> running should be rejected")
	}
	if s.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
}

func TestStepUnmarshalDefaults(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantAgent  string
		wantStatus Status
	}{
		{"full step", `{"agent": "Validator", "status": "running"}`, "Validator", StatusRunning},
		{"missing status", `{"agent": "Validator"}`, "Validator", StatusCompleted},
		{"missing agent", `{"status": "error"}`, "Agent", StatusError},
		{"empty object", `{}`, "Agent", StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Step
			if err := json.Unmarshal([]byte(tt.data), &s); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if s.Agent != tt.wantAgent {
				t.Errorf("Agent = %q, want %q", s.Agent, tt.wantAgent)
			}
			if s.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", s.Status, tt.wantStatus)
			}
		})
	}
}

func TestDisplayDetailsCap(t *testing.T) {
	s := Step{Details: []string{"a", "b", "c", "d", "e"}}
	if got := s.DisplayDetails(); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}

	short := Step{Details: []string{"a"}}
	if got := short.DisplayDetails(); len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		want  Progress
	}{
		{"empty", nil, Progress{Completed: 0, Total: 0}},
		{
			"mixed",
			[]Step{
				{Status: StatusCompleted},
				{Status: StatusRunning},
				{Status: StatusCompleted},
				{Status: StatusError},
			},
			Progress{Completed: 2, Total: 4},
		},
		{
			"all done",
			[]Step{{Status: StatusCompleted}, {Status: StatusCompleted}},
			Progress{Completed: 2, Total: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.steps); got != tt.want {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"empty list", Progress{}, 0},
		{"half", Progress{Completed: 1, Total: 2}, 0.5},
		{"full", Progress{Completed: 3, Total: 3}, 1},
		{"overflow clamps", Progress{Completed: 5, Total: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Fraction(); got != tt.want {
				t.Errorf("Fraction() = %v, want %v", got, tt.want)
			}
		})
	}
}
