package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// Presence is one user's live connection.
type Presence struct {
	UserID      string             `json:"userId"`
	ConnID      string             `json:"connId"`
	Role        domain.Role        `json:"role"`
	Department  *domain.Department `json:"department,omitempty"`
	ConnectedAt time.Time          `json:"connectedAt"`
	// NodeID names the API process holding the socket; set by RedisRegistry.
	NodeID string `json:"nodeId,omitempty"`
}

// IsDepartmentStaff reports whether the connection belongs to staff or a manager of dept.
func (p Presence) IsDepartmentStaff(dept domain.Department) bool {
	return p.Role.IsStaff() && p.Department != nil && *p.Department == dept
}

// Registry maps a user to their most recent connection.
//
// A user has at most one entry; registering again replaces the previous
// connection. Unregister only removes the entry if connID still matches, so a
// late disconnect of a replaced socket cannot evict the new one.
type Registry interface {
	Register(ctx context.Context, presence Presence) error
	Unregister(ctx context.Context, userID, connID string) (bool, error)
	Lookup(ctx context.Context, userID string) (Presence, bool, error)
	BroadcastTo(ctx context.Context, predicate func(Presence) bool) ([]Presence, error)
	Online(ctx context.Context) ([]string, error)
}

// MemoryRegistry is a process-local Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]Presence
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]Presence)}
}

func (r *MemoryRegistry) Register(_ context.Context, presence Presence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[presence.UserID] = presence
	return nil
}

func (r *MemoryRegistry) Unregister(_ context.Context, userID, connID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.entries[userID]
	if !ok || current.ConnID != connID {
		return false, nil
	}
	delete(r.entries, userID)
	return true, nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, userID string) (Presence, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	presence, ok := r.entries[userID]
	return presence, ok, nil
}

func (r *MemoryRegistry) BroadcastTo(_ context.Context, predicate func(Presence) bool) ([]Presence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []Presence
	for _, presence := range r.entries {
		if predicate == nil || predicate(presence) {
			matched = append(matched, presence)
		}
	}
	sortPresences(matched)
	return matched, nil
}

func (r *MemoryRegistry) Online(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func sortPresences(list []Presence) {
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
}
