package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/kpisync/internal/domain/model"
)

// MemoryStore keeps history in process memory. Oldest runs are dropped once
// maxRuns is reached.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    []model.RunRecord
	sent    map[string]Notification
	maxRuns int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{sent: make(map[string]Notification), maxRuns: DefaultMaxRuns}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notificationKey(channel, fingerprint, day string) string {
	return channel + "|" + fingerprint + "|" + day
}

// SaveRun implements Store.
func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return ErrInvalidRun
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	sort.SliceStable(s.runs, func(i, j int) bool { return s.runs[i].StartedAt.Before(s.runs[j].StartedAt) })
	if over := len(s.runs) - s.maxRuns; over > 0 {
		s.runs = append([]model.RunRecord(nil), s.runs[over:]...)
	}
	return nil
}

// Runs implements Store.
func (s *MemoryStore) Runs(_ context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]model.RunRecord, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

// LastRun implements Store.
func (s *MemoryStore) LastRun(_ context.Context) (model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return model.RunRecord{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// SaveNotification implements Store.
func (s *MemoryStore) SaveNotification(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[notificationKey(n.Channel, n.Fingerprint, n.Day)] = n
	return nil
}

// NotificationSent implements Store.
func (s *MemoryStore) NotificationSent(_ context.Context, channel, fingerprint, day string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sent[notificationKey(channel, fingerprint, day)]
	return ok, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
