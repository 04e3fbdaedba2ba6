package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub so that a subscriber connected
// to any process receives events published by any other process. Local
// delivery still goes through an embedded MemoryBus; Redis only carries the
// cross-process hop.
type RedisBus struct {
	client *redis.Client
	local  *MemoryBus

	mu     sync.Mutex
	relays map[uuid.UUID]*relay
}

type relay struct {
	pubsub *redis.PubSub
	refs   int
}

func NewRedisBus(redisURL string) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisBus{
		client: redis.NewClient(opts),
		local:  NewMemoryBus(),
		relays: make(map[uuid.UUID]*relay),
	}, nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	for id, r := range b.relays {
		_ = r.pubsub.Close()
		delete(b.relays, id)
	}
	b.mu.Unlock()
	return b.client.Close()
}

func channelKey(id uuid.UUID) string {
	return fmt.Sprintf("progress:%s", id)
}

func (b *RedisBus) Subscribe(id uuid.UUID) chan Event {
	ch := b.local.Subscribe(id)

	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.relays[id]
	if !ok {
		pubsub := b.client.Subscribe(context.Background(), channelKey(id))
		r = &relay{pubsub: pubsub}
		b.relays[id] = r
		go b.run(id, pubsub)
	}
	r.refs++
	return ch
}

func (b *RedisBus) Unsubscribe(id uuid.UUID, ch chan Event) {
	b.local.Unsubscribe(id, ch)

	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.relays[id]
	if !ok {
		return
	}
	r.refs--
	if r.refs <= 0 {
		_ = r.pubsub.Close()
		delete(b.relays, id)
	}
}

func (b *RedisBus) Publish(id uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal progress event", "job_id", id, "error", err)
		return
	}
	if err := b.client.Publish(context.Background(), channelKey(id), data).Err(); err != nil {
		slog.Error("publish progress event", "job_id", id, "error", err)
	}
}

// run relays messages from Redis into the local bus until the pubsub closes
// or a terminal event arrives.
func (b *RedisBus) run(id uuid.UUID, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			slog.Error("decode progress event", "job_id", id, "error", err)
			continue
		}
		b.local.Publish(id, ev)
		if ev.Terminal() {
			b.mu.Lock()
			if r, ok := b.relays[id]; ok {
				_ = r.pubsub.Close()
				delete(b.relays, id)
			}
			b.mu.Unlock()
			return
		}
	}
}

var _ Bus = (*RedisBus)(nil)
