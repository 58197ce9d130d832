package runner

import (
	"sync"

	"github.com/google/uuid"
)

// scriptOperation is one completed generic script execution whose
// results have not yet been fetched or forgotten.
type scriptOperation struct {
	ID      string
	TraceID string
	Results []*ResultSet
	Fetched bool
}

// operationStore tracks script execution operations so that results
// can be fetched and operations forgotten after the fact.
type operationStore struct {
	mu     sync.Mutex
	ops    map[string]*scriptOperation
	latest string
}

func newOperationStore() *operationStore {
	return &operationStore{ops: make(map[string]*scriptOperation)}
}

// create registers a new operation and makes it the latest.
func (s *operationStore) create(traceID string, results []*ResultSet) *scriptOperation {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := &scriptOperation{
		ID:      uuid.NewString(),
		TraceID: traceID,
		Results: results,
	}
	s.ops[op.ID] = op
	s.latest = op.ID
	return op
}

// takeLatest returns the most recent operation, marking it fetched.
func (s *operationStore) takeLatest() (*scriptOperation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[s.latest]
	if !ok {
		return nil, false
	}
	op.Fetched = true
	return op, true
}

// forgetLatest removes the most recent operation entirely.
func (s *operationStore) forgetLatest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ops[s.latest]; !ok {
		return false
	}
	delete(s.ops, s.latest)
	s.latest = ""
	return true
}
