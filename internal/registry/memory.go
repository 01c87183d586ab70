package registry

import (
	"context"
	"log/slog"
	"sync"
)

// Memory is the single-node Registry backend: a mutex-guarded map of group
// name to members. Publish snapshots the membership under the read lock and
// delivers outside of it, so a member's Deliver never holds up join/leave.
type Memory struct {
	mu     sync.RWMutex
	groups map[string]map[string]Member
	logger *slog.Logger
}

func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		groups: make(map[string]map[string]Member),
		logger: logger,
	}
}

func (r *Memory) Join(group string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]Member)
		r.groups[group] = members
	}
	members[m.ID()] = m

	r.logger.Debug("member joined group", "group", group, "member", m.ID(), "size", len(members))
}

func (r *Memory) Leave(group string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, m.ID())
	if len(members) == 0 {
		delete(r.groups, group)
	}

	r.logger.Debug("member left group", "group", group, "member", m.ID(), "size", len(members))
}

func (r *Memory) Publish(ctx context.Context, group string, payload []byte) error {
	r.mu.RLock()
	members := make([]Member, 0, len(r.groups[group]))
	for _, m := range r.groups[group] {
		members = append(members, m)
	}
	r.mu.RUnlock()

	for _, m := range members {
		m.Deliver(payload)
	}
	return nil
}

func (r *Memory) Close() error {
	return nil
}

// GroupSize returns the current number of members in a group.
func (r *Memory) GroupSize(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}
