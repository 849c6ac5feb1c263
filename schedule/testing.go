package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/teranos/promanage/item"
)

// MemoryStore is an in-memory Store for tests and demos.
// LoadErr and SaveErr, when set, are returned by the matching call.
type MemoryStore struct {
	mu     sync.Mutex
	items  []item.WorkItem
	runs   []Run
	nextID int64

	LoadErr error
	SaveErr error

	SaveCalls int
}

// NewMemoryStore seeds a store. Items without an id get the next free one.
func NewMemoryStore(items ...item.WorkItem) *MemoryStore {
	m := &MemoryStore{nextID: 1}
	for _, w := range items {
		m.insert(w)
	}
	return m
}

func (m *MemoryStore) insert(w item.WorkItem) item.WorkItem {
	if w.ID == 0 {
		w.ID = m.nextID
	}
	if w.ID >= m.nextID {
		m.nextID = w.ID + 1
	}
	if w.Status == "" {
		w.Status = item.StatusPending
	}
	m.items = append(m.items, w.Clone())
	sort.SliceStable(m.items, func(a, b int) bool { return m.items[a].ID < m.items[b].ID })
	return w
}

// LoadAll returns copies of every item ordered by id
func (m *MemoryStore) LoadAll(ctx context.Context) ([]item.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := make([]item.WorkItem, len(m.items))
	for i, w := range m.items {
		out[i] = w.Clone()
	}
	return out, nil
}

// SaveAll replaces stored items by id and records the run
func (m *MemoryStore) SaveAll(ctx context.Context, items []item.WorkItem, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	byID := make(map[int64]int, len(m.items))
	for i, w := range m.items {
		byID[w.ID] = i
	}
	for _, w := range items {
		if i, ok := byID[w.ID]; ok {
			m.items[i] = w.Clone()
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

// Add validates and stores a new item as PENDING and returns it with its id
func (m *MemoryStore) Add(ctx context.Context, w item.WorkItem) (item.WorkItem, error) {
	w, err := item.PrepareNew(w, item.NewDate(time.Now()))
	if err != nil {
		return item.WorkItem{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(w), nil
}

// ListRuns returns recorded runs, newest first
func (m *MemoryStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.runs[i])
	}
	return out, nil
}
