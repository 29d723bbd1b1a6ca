package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/racetier/internal/domain/model"
)

// MemoryRunStore keeps audit runs in memory for the lifetime of the process.
type MemoryRunStore struct {
	mu     sync.RWMutex
	runs   map[string]*model.AuditRun
	latest string
}

// NewMemoryRunStore returns an empty run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*model.AuditRun)}
}

func (s *MemoryRunStore) Create(_ context.Context, run model.AuditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
	}
	s.runs[run.ID] = &run
	return nil
}

func (s *MemoryRunStore) Update(_ context.Context, id string, fn func(*model.AuditRun)) (model.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return model.AuditRun{}, fmt.Errorf("audit run %s: %w", id, ErrNotFound)
	}
	fn(run)
	if run.Status == model.RunDone {
		s.latest = id
	}
	return *run, nil
}

func (s *MemoryRunStore) Get(_ context.Context, id string) (model.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return model.AuditRun{}, fmt.Errorf("audit run %s: %w", id, ErrNotFound)
	}
	return *run, nil
}

func (s *MemoryRunStore) Latest(_ context.Context) (model.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return model.AuditRun{}, fmt.Errorf("latest audit run: %w", ErrNotFound)
	}
	return *s.runs[s.latest], nil
}

func (s *MemoryRunStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Delete drops a run that never reached the queue. Unknown ids are ignored.
func (s *MemoryRunStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
	if s.latest == id {
		s.latest = ""
	}
}
