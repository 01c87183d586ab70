package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/ldonohue/eventlive/internal/domain"
	"github.com/ldonohue/eventlive/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// capturingRegistry records every publish by group.
type capturingRegistry struct {
	mu        sync.Mutex
	published map[string][][]byte
	failWith  error
}

func newCapturingRegistry() *capturingRegistry {
	return &capturingRegistry{published: make(map[string][][]byte)}
}

func (r *capturingRegistry) Join(group string, m registry.Member)  {}
func (r *capturingRegistry) Leave(group string, m registry.Member) {}
func (r *capturingRegistry) Close() error                          { return nil }

func (r *capturingRegistry) Publish(ctx context.Context, group string, payload []byte) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[group] = append(r.published[group], payload)
	return nil
}

func (r *capturingRegistry) forGroup(group string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published[group]
}

type fakeSupervisors struct {
	ids []string
	err error
}

func (f *fakeSupervisors) SupervisorsOf(ctx context.Context, eventID string) ([]string, error) {
	return f.ids, f.err
}

func decodeEnvelope(t *testing.T, payload []byte) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	return env
}

func TestNotifier_CheckinFansOutToDetailAndDashboards(t *testing.T) {
	reg := newCapturingRegistry()
	n := NewNotifier(reg, &fakeSupervisors{ids: []string{"creator", "staff1"}}, testLogger())

	p := &domain.Participant{ID: "p1", EventID: "ev1", FirstName: "Ada", CheckedIn: true}
	n.ParticipantCheckedIn(context.Background(), p)

	detail := reg.forGroup(registry.EventGroup("ev1"))
	if len(detail) != 1 {
		t.Fatalf("expected exactly 1 detail publish, got %d", len(detail))
	}
	env := decodeEnvelope(t, detail[0])
	if env.Type != TypeCheckinUpdate {
		t.Errorf("detail type: got %s, want %s", env.Type, TypeCheckinUpdate)
	}
	if env.Action != ActionCheckin {
		t.Errorf("detail action: got %s, want %s", env.Action, ActionCheckin)
	}
	if env.Participant == nil || env.Participant.ID != "p1" {
		t.Errorf("detail participant: got %+v", env.Participant)
	}

	for _, supervisor := range []string{"creator", "staff1"} {
		dash := reg.forGroup(registry.DashboardGroup(supervisor))
		if len(dash) != 1 {
			t.Fatalf("supervisor %s: expected exactly 1 dashboard publish, got %d", supervisor, len(dash))
		}
		env := decodeEnvelope(t, dash[0])
		if env.Type != TypeEventUpdate {
			t.Errorf("dashboard type: got %s, want %s", env.Type, TypeEventUpdate)
		}
		if env.EventID != "ev1" {
			t.Errorf("dashboard event_id: got %s, want ev1", env.EventID)
		}
		if env.UpdateType != UpdateCheckin {
			t.Errorf("dashboard update_type: got %s, want %s", env.UpdateType, UpdateCheckin)
		}
	}
}

func TestNotifier_CheckoutUsesCheckoutType(t *testing.T) {
	reg := newCapturingRegistry()
	n := NewNotifier(reg, &fakeSupervisors{}, testLogger())

	p := &domain.Participant{ID: "p1", EventID: "ev1"}
	n.ParticipantCheckedOut(context.Background(), p)

	detail := reg.forGroup(registry.EventGroup("ev1"))
	if len(detail) != 1 {
		t.Fatalf("expected 1 detail publish, got %d", len(detail))
	}
	env := decodeEnvelope(t, detail[0])
	if env.Type != TypeCheckoutUpdate || env.Action != ActionCheckout {
		t.Errorf("got type=%s action=%s, want %s/%s", env.Type, env.Action, TypeCheckoutUpdate, ActionCheckout)
	}
}

func TestNotifier_SupervisorLookupFailureStillPublishesDetail(t *testing.T) {
	reg := newCapturingRegistry()
	n := NewNotifier(reg, &fakeSupervisors{err: errors.New("db down")}, testLogger())

	p := &domain.Participant{ID: "p1", EventID: "ev1"}
	n.ParticipantRegistered(context.Background(), p)

	detail := reg.forGroup(registry.EventGroup("ev1"))
	if len(detail) != 1 {
		t.Fatalf("detail publish should survive a supervisor lookup failure, got %d", len(detail))
	}
}

func TestNotifier_PublishFailureIsSwallowed(t *testing.T) {
	reg := newCapturingRegistry()
	reg.failWith = errors.New("transport gone")
	n := NewNotifier(reg, &fakeSupervisors{ids: []string{"creator"}}, testLogger())

	// Must not panic or propagate: the triggering mutation has already
	// committed.
	n.ParticipantCheckedIn(context.Background(), &domain.Participant{ID: "p1", EventID: "ev1"})
}

func TestNotifier_EventCompletedReachesBothChannels(t *testing.T) {
	reg := newCapturingRegistry()
	n := NewNotifier(reg, &fakeSupervisors{ids: []string{"creator"}}, testLogger())

	n.EventCompleted(context.Background(), "ev1")

	detail := reg.forGroup(registry.EventGroup("ev1"))
	if len(detail) != 1 {
		t.Fatalf("expected 1 detail publish, got %d", len(detail))
	}
	if env := decodeEnvelope(t, detail[0]); env.UpdateType != UpdateEventCompleted {
		t.Errorf("detail update_type: got %s, want %s", env.UpdateType, UpdateEventCompleted)
	}

	dash := reg.forGroup(registry.DashboardGroup("creator"))
	if len(dash) != 1 {
		t.Fatalf("expected 1 dashboard publish, got %d", len(dash))
	}
}
