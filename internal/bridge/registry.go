package bridge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry records live device sessions for other processes.
type Registry interface {
	Register(ctx context.Context, snap Snapshot) error
	Heartbeat(ctx context.Context, snap Snapshot) error
	Unregister(ctx context.Context, snap Snapshot) error
}

type nopRegistry struct{}

func (nopRegistry) Register(context.Context, Snapshot) error   { return nil }
func (nopRegistry) Heartbeat(context.Context, Snapshot) error  { return nil }
func (nopRegistry) Unregister(context.Context, Snapshot) error { return nil }

type redisCommands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRegistry keeps serialmux:sess:<id> and serialmux:stats:<id> alive for
// ttl past the last heartbeat.
type RedisRegistry struct {
	client redisCommands
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func SessionKey(id string) string { return fmt.Sprintf("serialmux:sess:%s", id) }
func StatsKey(id string) string   { return fmt.Sprintf("serialmux:stats:%s", id) }

func (r *RedisRegistry) Register(ctx context.Context, snap Snapshot) error {
	value := fmt.Sprintf("%s:%s:%s", snap.SessionID, snap.Framer, snap.Device)
	if err := r.client.Set(ctx, SessionKey(snap.ID), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("bridge: register session %s: %w", snap.ID, err)
	}
	return r.writeStats(ctx, snap)
}

func (r *RedisRegistry) Heartbeat(ctx context.Context, snap Snapshot) error {
	if err := r.client.Expire(ctx, SessionKey(snap.ID), r.ttl).Err(); err != nil {
		return fmt.Errorf("bridge: refresh session %s: %w", snap.ID, err)
	}
	return r.writeStats(ctx, snap)
}

func (r *RedisRegistry) Unregister(ctx context.Context, snap Snapshot) error {
	if err := r.client.Del(ctx, SessionKey(snap.ID), StatsKey(snap.ID)).Err(); err != nil {
		return fmt.Errorf("bridge: unregister session %s: %w", snap.ID, err)
	}
	return nil
}

func (r *RedisRegistry) writeStats(ctx context.Context, snap Snapshot) error {
	key := StatsKey(snap.ID)
	if err := r.client.HSet(ctx, key, statsFields(snap)...).Err(); err != nil {
		return fmt.Errorf("bridge: write stats %s: %w", snap.ID, err)
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("bridge: expire stats %s: %w", snap.ID, err)
	}
	return nil
}

func statsFields(snap Snapshot) []interface{} {
	st := snap.Stats
	out := []interface{}{
		"session", snap.SessionID,
		"ts", snap.UpdatedAt.Unix(),
		"bytes_read", st.BytesRead,
		"read_errors", st.ReadErrors,
		"packets", st.Packets,
		"garbage_bytes", st.GarbageBytes,
		"rejected_packets", st.RejectedPackets,
		"pending", snap.Pending,
	}
	for ch, cs := range st.Channels {
		p := "ch" + strconv.Itoa(ch) + "_"
		out = append(out,
			p+"payload_bytes", cs.PayloadBytes,
			p+"overflows", cs.Overflows,
			p+"dropped_bytes", cs.DroppedBytes,
			p+"buffered", snap.Buffered[ch],
			p+"open", snap.Open[ch],
		)
	}
	return out
}
