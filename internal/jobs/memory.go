package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the single-instance default. Jobs live until process exit.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*ChatJob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*ChatJob)}
}

func (s *MemoryStore) Create(_ context.Context, userID, assistantID, conversationID, query string) (*ChatJob, error) {
	now := time.Now()
	job := &ChatJob{
		ID:             uuid.NewString(),
		UserID:         userID,
		AssistantID:    assistantID,
		ConversationID: conversationID,
		Query:          query,
		Status:         StatusQueued,
		Stage:          "queued",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job, nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*ChatJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryStore) Update(_ context.Context, jobID string, upd Update) (*ChatJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	applyUpdate(job, upd)
	copied := *job
	return &copied, nil
}
