package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "eventlive:"

// Redis is the multi-node Registry backend. Local membership lives in an
// embedded Memory registry; publishes go through Redis PUBLISH so every node
// subscribed to the group relays the payload to its own local members. A
// node subscribes to a group's Redis channel while it has at least one local
// member in that group.
type Redis struct {
	local  *Memory
	client *redis.Client
	pubsub *redis.PubSub
	logger *slog.Logger

	mu     sync.Mutex // guards subscribe/unsubscribe refcounting
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedis(ctx context.Context, client *redis.Client, logger *slog.Logger) *Redis {
	relayCtx, cancel := context.WithCancel(context.Background())

	r := &Redis{
		local:  NewMemory(logger),
		client: client,
		pubsub: client.Subscribe(ctx),
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go r.relay(relayCtx)
	return r
}

func (r *Redis) Join(group string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.local.Join(group, m)
	if r.local.GroupSize(group) == 1 {
		if err := r.pubsub.Subscribe(context.Background(), channelPrefix+group); err != nil {
			r.logger.Error("failed to subscribe group channel", "group", group, "error", err)
		}
	}
}

func (r *Redis) Leave(group string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.local.Leave(group, m)
	if r.local.GroupSize(group) == 0 {
		if err := r.pubsub.Unsubscribe(context.Background(), channelPrefix+group); err != nil {
			r.logger.Error("failed to unsubscribe group channel", "group", group, "error", err)
		}
	}
}

// Publish sends the payload through Redis. Local members receive it via the
// relay like members on any other node, so each member sees it exactly once.
func (r *Redis) Publish(ctx context.Context, group string, payload []byte) error {
	if err := r.client.Publish(ctx, channelPrefix+group, payload).Err(); err != nil {
		return fmt.Errorf("publishing to group %s: %w", group, err)
	}
	return nil
}

func (r *Redis) Close() error {
	r.cancel()
	err := r.pubsub.Close()
	<-r.done
	return err
}

// relay feeds messages received from Redis into the local registry.
func (r *Redis) relay(ctx context.Context) {
	defer close(r.done)

	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			group := strings.TrimPrefix(msg.Channel, channelPrefix)
			if err := r.local.Publish(ctx, group, []byte(msg.Payload)); err != nil {
				r.logger.Error("failed to relay group message", "group", group, "error", err)
			}
		}
	}
}
