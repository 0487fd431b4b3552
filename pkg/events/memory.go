package events

import (
	"context"
	"sync"
)

// MemoryStore keeps the events of the most recent runs in process memory.
// It is the default store when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	maxRuns int
	seq     int64
	order   []string // run ids, oldest first
	byRun   map[string][]StoredEvent
}

// NewMemoryStore retains at most maxRuns runs (100 when <= 0).
func NewMemoryStore(maxRuns int) *MemoryStore {
	if maxRuns <= 0 {
		maxRuns = 100
	}
	return &MemoryStore{maxRuns: maxRuns, byRun: map[string][]StoredEvent{}}
}

func (s *MemoryStore) Append(_ context.Context, e Event) error {
	data, err := e.MarshalData()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rid := e.RunID()
	if _, ok := s.byRun[rid]; !ok {
		s.order = append(s.order, rid)
		if len(s.order) > s.maxRuns {
			delete(s.byRun, s.order[0])
			s.order = s.order[1:]
		}
	}
	s.seq++
	s.byRun[rid] = append(s.byRun[rid], StoredEvent{
		Seq:     s.seq,
		RunID:   rid,
		Type:    e.Type(),
		Ts:      e.Timestamp(),
		Payload: data,
	})
	return nil
}

func (s *MemoryStore) ListByRun(_ context.Context, runID string) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StoredEvent(nil), s.byRun[runID]...), nil
}

func (s *MemoryStore) ReplayRun(ctx context.Context, runID string) (*RunState, error) {
	evs, err := s.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Replay(evs), nil
}

// ListRuns returns up to limit runs, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []RunState{}
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *Replay(s.byRun[s.order[i]]))
	}
	return out, nil
}

var _ EventStore = (*MemoryStore)(nil)
