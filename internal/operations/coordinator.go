package operations

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrOperationNotFound is returned when looking up an unknown run ID.
var ErrOperationNotFound = errors.New("operation not found")

// defaultRetention caps how many runs are kept in memory; once a run
// finishes and the cap is exceeded, the oldest finished runs are
// dropped. Running operations are never pruned.
const defaultRetention = 100

// OperationSnapshot is the externally visible state of one run.
type OperationSnapshot struct {
	ID         string         `json:"id"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Steps      []StepSnapshot `json:"steps"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`

	// Result summary, present once the run completes.
	Symbol     string  `json:"symbol,omitempty"`
	SpotPrice  float64 `json:"spot_price,omitempty"`
	Lower      float64 `json:"lower_bound,omitempty"`
	Upper      float64 `json:"upper_bound,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type operation struct {
	mu         sync.RWMutex
	id         string
	status     Status
	err        string
	steps      []*StepState
	state      *State
	startedAt  time.Time
	finishedAt time.Time
	confidence float64
}

func (o *operation) snapshot() OperationSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := OperationSnapshot{
		ID:        o.id,
		Status:    o.status,
		Error:     o.err,
		StartedAt: o.startedAt,
	}
	for _, s := range o.steps {
		snap.Steps = append(snap.Steps, s.Snapshot())
	}
	if !o.finishedAt.IsZero() {
		t := o.finishedAt
		snap.FinishedAt = &t
	}
	if o.status == StatusCompleted && o.state.Projection != nil {
		snap.Symbol = o.state.Symbol
		snap.SpotPrice = o.state.SpotPrice
		snap.Lower = o.state.Projection.Lower
		snap.Upper = o.state.Projection.Upper
		snap.Confidence = o.state.Projection.Confidence
	}
	return snap
}

// Coordinator launches pipeline runs asynchronously and keeps their
// status in memory for the HTTP layer to query.
type Coordinator struct {
	manager   *Manager
	logger    *slog.Logger
	timeout   time.Duration
	retention int

	mu   sync.RWMutex
	runs map[string]*operation
}

// NewCoordinator creates a coordinator. timeout bounds each run; pass 0
// for no limit.
func NewCoordinator(manager *Manager, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		manager:   manager,
		logger:    logger,
		timeout:   timeout,
		retention: defaultRetention,
		runs:      make(map[string]*operation),
	}
}

// Start launches steps against a fresh state in a background goroutine
// and returns the new operation's ID immediately.
func (c *Coordinator) Start(steps []Step) string {
	id := uuid.NewString()

	op := &operation{
		id:        id,
		status:    StatusRunning,
		state:     &State{},
		startedAt: time.Now(),
	}
	for _, step := range steps {
		op.steps = append(op.steps, newStepState(step))
	}

	c.mu.Lock()
	c.runs[id] = op
	c.mu.Unlock()

	go c.run(op, steps)
	return id
}

func (c *Coordinator) run(op *operation, steps []Step) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.manager.Run(ctx, op.id, op.state, steps, op.steps)

	op.mu.Lock()
	op.finishedAt = time.Now()
	if err != nil {
		op.status = StatusFailed
		op.err = err.Error()
	} else {
		op.status = StatusCompleted
	}
	op.mu.Unlock()

	c.prune()
}

// prune evicts the oldest finished runs once the retention cap is
// exceeded.
func (c *Coordinator) prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.runs) <= c.retention {
		return
	}

	type finishedRun struct {
		id string
		at time.Time
	}
	var finished []finishedRun
	for id, op := range c.runs {
		op.mu.RLock()
		if op.status != StatusRunning {
			finished = append(finished, finishedRun{id: id, at: op.finishedAt})
		}
		op.mu.RUnlock()
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].at.Before(finished[j].at)
	})
	for _, f := range finished {
		if len(c.runs) <= c.retention {
			break
		}
		delete(c.runs, f.id)
	}
}

// Get returns the snapshot for one run.
func (c *Coordinator) Get(id string) (OperationSnapshot, error) {
	c.mu.RLock()
	op, ok := c.runs[id]
	c.mu.RUnlock()
	if !ok {
		return OperationSnapshot{}, ErrOperationNotFound
	}
	return op.snapshot(), nil
}

// List returns snapshots of all known runs, newest first.
func (c *Coordinator) List() []OperationSnapshot {
	c.mu.RLock()
	ops := make([]*operation, 0, len(c.runs))
	for _, op := range c.runs {
		ops = append(ops, op)
	}
	c.mu.RUnlock()

	snaps := make([]OperationSnapshot, 0, len(ops))
	for _, op := range ops {
		snaps = append(snaps, op.snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartedAt.After(snaps[j].StartedAt)
	})
	return snaps
}
