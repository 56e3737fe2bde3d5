// Package memory provides in-memory persistence implementations used by
// tests and by the offline scan command.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/persistence"
)

// TaskRepo is an in-memory persistence.TaskRepo.
type TaskRepo struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
}

// NewTaskRepo creates an empty in-memory task repo.
func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: make(map[string]domain.Task)}
}

// CreateTask stores the task.
func (r *TaskRepo) CreateTask(_ context.Context, task domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task
	return nil
}

// GetTasks returns tasks matching the filter, oldest first.
func (r *TaskRepo) GetTasks(_ context.Context, filter persistence.TaskFilter) ([]domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Task
	for _, t := range r.tasks {
		if filter.Name != "" && t.Name != filter.Name {
			continue
		}
		if !hasAllTags(t.Tags, filter.Tags) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteTask removes the task.
func (r *TaskRepo) DeleteTask(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// KVStore is an in-memory persistence.KVStore.
type KVStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewKVStore creates an empty in-memory KV store.
func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string]string)}
}

// GetValue returns the stored value or persistence.ErrNotFound.
func (s *KVStore) GetValue(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return v, nil
}

// SetValue stores value under key.
func (s *KVStore) SetValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// SlippageRepo is an in-memory persistence.SlippageRepo.
type SlippageRepo struct {
	mu   sync.Mutex
	recs []persistence.SlippageRecord
}

// NewSlippageRepo creates an empty in-memory slippage repo.
func NewSlippageRepo() *SlippageRepo {
	return &SlippageRepo{}
}

// Insert appends a record.
func (r *SlippageRepo) Insert(_ context.Context, rec persistence.SlippageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = int64(len(r.recs) + 1)
	r.recs = append(r.recs, rec)
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *SlippageRepo) ListRecent(_ context.Context, limit int) ([]persistence.SlippageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.recs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]persistence.SlippageRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.recs[i])
	}
	return out, nil
}
