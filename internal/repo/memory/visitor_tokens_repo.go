package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/estategate/internal/domain/gatepass"
)

type VisitorTokensRepo struct {
	mu    sync.RWMutex
	items map[string]gatepass.VisitorToken
}

func NewVisitorTokensRepo() *VisitorTokensRepo {
	return &VisitorTokensRepo{
		items: make(map[string]gatepass.VisitorToken),
	}
}

func (r *VisitorTokensRepo) Create(_ context.Context, t gatepass.VisitorToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[t.ID]; exists {
		return gatepass.ErrDuplicateID
	}
	r.items[t.ID] = t
	return nil
}

func (r *VisitorTokensRepo) FindActiveByID(_ context.Context, id string) (gatepass.VisitorToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok || !t.IsActive {
		return gatepass.VisitorToken{}, gatepass.ErrNotFound
	}
	return t, nil
}

func (r *VisitorTokensRepo) FindActiveByResident(_ context.Context, residentID string) ([]gatepass.VisitorToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]gatepass.VisitorToken, 0, 1)
	for _, t := range r.items {
		if t.IsActive && t.ResidentID == residentID {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *VisitorTokensRepo) BulkDeactivateByResident(_ context.Context, residentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.items {
		if t.IsActive && t.ResidentID == residentID {
			t.IsActive = false
			r.items[id] = t
			n++
		}
	}
	return n, nil
}

func (r *VisitorTokensRepo) ReplaceWithExit(_ context.Context, sourceID, residentID string, exit gatepass.VisitorToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.items[sourceID]
	if !ok || !src.IsActive || src.ResidentID != residentID {
		return gatepass.ErrNotFound
	}
	if _, exists := r.items[exit.ID]; exists {
		return gatepass.ErrDuplicateID
	}

	src.IsActive = false
	r.items[sourceID] = src
	r.items[exit.ID] = exit
	return nil
}

// Get returns the stored record regardless of its active flag.
func (r *VisitorTokensRepo) Get(id string) (gatepass.VisitorToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	return t, ok
}
