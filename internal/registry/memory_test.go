package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeMember collects delivered payloads.
type fakeMember struct {
	id string

	mu       sync.Mutex
	received [][]byte
}

func (m *fakeMember) ID() string {
	return m.id
}

func (m *fakeMember) Deliver(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, payload)
}

func (m *fakeMember) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func TestMemory_PublishReachesEveryMember(t *testing.T) {
	r := NewMemory(testLogger())
	ctx := context.Background()

	members := []*fakeMember{{id: "a"}, {id: "b"}, {id: "c"}}
	for _, m := range members {
		r.Join("event_checkin_ev1", m)
	}

	if err := r.Publish(ctx, "event_checkin_ev1", []byte(`{"type":"checkin_update"}`)); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for _, m := range members {
		if got := m.count(); got != 1 {
			t.Errorf("member %s: expected exactly 1 delivery, got %d", m.id, got)
		}
	}
}

func TestMemory_LeaveStopsDelivery(t *testing.T) {
	r := NewMemory(testLogger())
	ctx := context.Background()

	stays := &fakeMember{id: "stays"}
	leaves := &fakeMember{id: "leaves"}
	r.Join("g", stays)
	r.Join("g", leaves)

	r.Leave("g", leaves)

	if err := r.Publish(ctx, "g", []byte("payload")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if stays.count() != 1 {
		t.Errorf("remaining member should receive the publish, got %d", stays.count())
	}
	if leaves.count() != 0 {
		t.Errorf("departed member should receive nothing, got %d", leaves.count())
	}
}

func TestMemory_LateJoinerNotRetroactivelyDelivered(t *testing.T) {
	r := NewMemory(testLogger())
	ctx := context.Background()

	if err := r.Publish(ctx, "g", []byte("before")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	late := &fakeMember{id: "late"}
	r.Join("g", late)

	if late.count() != 0 {
		t.Errorf("late joiner should not receive earlier publishes, got %d", late.count())
	}

	if err := r.Publish(ctx, "g", []byte("after")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if late.count() != 1 {
		t.Errorf("late joiner should receive publishes after joining, got %d", late.count())
	}
}

func TestMemory_PublishToEmptyGroupIsNoOp(t *testing.T) {
	r := NewMemory(testLogger())

	if err := r.Publish(context.Background(), "nobody_here", []byte("payload")); err != nil {
		t.Fatalf("publish to empty group should not error: %v", err)
	}
}

func TestMemory_LeaveUnknownGroupIsNoOp(t *testing.T) {
	r := NewMemory(testLogger())
	r.Leave("never_existed", &fakeMember{id: "x"})

	if size := r.GroupSize("never_existed"); size != 0 {
		t.Errorf("expected size 0, got %d", size)
	}
}

func TestMemory_ConcurrentJoinLeavePublish(t *testing.T) {
	r := NewMemory(testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &fakeMember{id: fmt.Sprintf("m-%d", i)}
			for j := 0; j < 50; j++ {
				r.Join("g", m)
				_ = r.Publish(ctx, "g", []byte("payload"))
				r.Leave("g", m)
			}
		}(i)
	}
	wg.Wait()

	if size := r.GroupSize("g"); size != 0 {
		t.Errorf("all members left, expected size 0, got %d", size)
	}
}
