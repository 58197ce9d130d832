package domain

import "sync/atomic"

// RunState is the coarse scheduler state exposed for monitoring.
type RunState string

// Run states.
const (
	StateIdle       RunState = "idle"
	StateScheme     RunState = "scheme-query"
	StateRunning    RunState = "running"
	StateFinalizing RunState = "finalizing"
	StateDone       RunState = "done"
	StateFailed     RunState = "failed"
)

// RunStatus is the live run status shared between the scheduler thread
// and the monitoring endpoint. The scheduler is the only writer; the
// monitoring server only reads, so all fields are atomics.
type RunStatus struct {
	state      atomic.Value // RunState
	iteration  atomic.Int64
	dispatched atomic.Int64
	failures   atomic.Int64
}

// NewRunStatus creates a RunStatus in the idle state.
func NewRunStatus() *RunStatus {
	s := &RunStatus{}
	s.state.Store(StateIdle)
	return s
}

// SetState records the current scheduler state.
func (s *RunStatus) SetState(state RunState) { s.state.Store(state) }

// State returns the current scheduler state.
func (s *RunStatus) State() RunState {
	if v, ok := s.state.Load().(RunState); ok {
		return v
	}
	return StateIdle
}

// SetIteration records the current loop counter.
func (s *RunStatus) SetIteration(q int) { s.iteration.Store(int64(q)) }

// Iteration returns the current loop counter.
func (s *RunStatus) Iteration() int64 { return s.iteration.Load() }

// AddDispatched increments the dispatched request counter.
func (s *RunStatus) AddDispatched() { s.dispatched.Add(1) }

// Dispatched returns the number of dispatched requests.
func (s *RunStatus) Dispatched() int64 { return s.dispatched.Load() }

// AddFailure increments the recorded failure counter.
func (s *RunStatus) AddFailure() { s.failures.Add(1) }

// Failures returns the number of recorded job failures.
func (s *RunStatus) Failures() int64 { return s.failures.Load() }
