// Package memory provides an in-memory leave.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/academy-leave/leave"
	"github.com/warp/academy-leave/quota"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	requests    map[string]leave.Request
	instructors map[string]leave.Instructor
	policy      *quota.Policy
}

var _ leave.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		requests:    make(map[string]leave.Request),
		instructors: make(map[string]leave.Instructor),
	}
}

// SaveRequest inserts or replaces a request.
func (m *Memory) SaveRequest(_ context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	return &r, nil
}

// ListRequests returns a copy ordered by creation time, then id.
func (m *Memory) ListRequests(_ context.Context) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateRequestStatus(_ context.Context, id string, from, to leave.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, leave.ErrNotFound)
	}
	if r.Status != from {
		return &leave.TransitionError{RequestID: id, From: r.Status, To: to}
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	m.requests[id] = r
	return nil
}

func (m *Memory) SaveInstructor(_ context.Context, i leave.Instructor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructors[i.ID] = i
	return nil
}

func (m *Memory) GetInstructor(_ context.Context, id string) (*leave.Instructor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.instructors[id]
	if !ok {
		return nil, fmt.Errorf("instructor %s: %w", id, leave.ErrNotFound)
	}
	return &i, nil
}

// ListInstructors returns a copy ordered by id.
func (m *Memory) ListInstructors(_ context.Context) ([]leave.Instructor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.Instructor, 0, len(m.instructors))
	for _, i := range m.instructors {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *Memory) GetPolicy(_ context.Context) (*quota.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.policy == nil {
		return nil, fmt.Errorf("policy: %w", leave.ErrNotFound)
	}
	p := m.policy.Clone()
	return &p, nil
}

func (m *Memory) SavePolicy(_ context.Context, p quota.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := p.Clone()
	m.policy = &c
	return nil
}

// Reset drops all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]leave.Request)
	m.instructors = make(map[string]leave.Instructor)
	m.policy = nil
	return nil
}
