package operations

import (
	"context"
	"sync"
	"time"
)

// Step is one stage of the pipeline.
type Step interface {
	// ID returns the step's stable identifier, used in progress events.
	ID() string

	// Name returns the human-readable step name.
	Name() string

	// Validate checks that the state carries what the step needs. It is
	// called immediately before Execute.
	Validate(state *State) error

	// Execute runs the step, reading from and writing to state.
	Execute(ctx context.Context, state *State) error
}

// StepState is the externally visible status of one step in a run.
// Snapshot it with Snapshot; writers go through Start/Complete/Fail.
type StepState struct {
	mu sync.RWMutex

	id        string
	name      string
	status    Status
	err       string
	startedAt time.Time
	endedAt   time.Time
}

// StepSnapshot is an immutable copy of a StepState, safe to serialize.
type StepSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func newStepState(step Step) *StepState {
	return &StepState{id: step.ID(), name: step.Name(), status: StatusPending}
}

// NewStepStates builds the status trackers for a run of the given
// steps, one per step in order. Callers pass the slice to Manager.Run.
func NewStepStates(steps []Step) []*StepState {
	states := make([]*StepState, len(steps))
	for i, s := range steps {
		states[i] = newStepState(s)
	}
	return states
}

func (s *StepState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusRunning
	s.startedAt = time.Now()
}

func (s *StepState) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusCompleted
	s.endedAt = time.Now()
}

func (s *StepState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err.Error()
	s.endedAt = time.Now()
}

// Snapshot returns a copy of the current step status.
func (s *StepState) Snapshot() StepSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StepSnapshot{
		ID:     s.id,
		Name:   s.name,
		Status: s.status,
		Error:  s.err,
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.endedAt.IsZero() {
		t := s.endedAt
		snap.EndedAt = &t
	}
	return snap
}
