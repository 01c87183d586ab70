// Package registry provides the group pub/sub substrate for live
// connections. A group is a named set of currently-connected members;
// publishing to a group delivers the payload to every member at the moment
// of the call, best-effort and at-most-once. There is no retry, persistence
// or replay — a member that joins after a publish does not receive it
// (connections compensate with a snapshot on join).
package registry

import (
	"context"
)

// Member is one live connection's receiving end. Deliver must never block:
// a slow consumer is the member's problem, not the publisher's.
type Member interface {
	ID() string
	Deliver(payload []byte)
}

// Registry tracks group membership and fans payloads out to members.
// Join, Leave and Publish are safe for concurrent use. A Publish racing a
// concurrent Join may or may not reach the newly joined member; this is a
// documented property of the substrate, not a bug.
type Registry interface {
	Join(group string, m Member)
	Leave(group string, m Member)
	Publish(ctx context.Context, group string, payload []byte) error
	Close() error
}

// EventGroup names the detail channel group for one event.
func EventGroup(eventID string) string {
	return "event_checkin_" + eventID
}

// DashboardGroup names the per-principal dashboard group.
func DashboardGroup(principalID string) string {
	return "user_dashboard_" + principalID
}
