package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/serialmux/internal/testutil/testlog"
	"github.com/redis/go-redis/v9"
)

type redisCall struct {
	op   string
	key  string
	ttl  time.Duration
	args []interface{}
}

type fakeRedis struct {
	calls  []redisCall
	setErr error
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.calls = append(f.calls, redisCall{op: "set", key: key, ttl: ttl, args: []interface{}{value}})
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.calls = append(f.calls, redisCall{op: "hset", key: key, args: values})
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.calls = append(f.calls, redisCall{op: "expire", key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		f.calls = append(f.calls, redisCall{op: "del", key: k})
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func testSnapshot() Snapshot {
	snap := Snapshot{
		ID:        "dev-a",
		SessionID: "sess-1",
		Device:    "/dev/ttyS1",
		Framer:    "iwrap",
		Connected: true,
		UpdatedAt: time.Unix(1700000000, 0),
	}
	snap.Open[0] = true
	snap.Buffered[1] = 4
	snap.Stats.Channels[1].Overflows = 2
	return snap
}

func TestRedisRegistryRegisterWritesSessionAndStats(t *testing.T) {
	testlog.Start(t)
	fake := &fakeRedis{}
	r := &RedisRegistry{client: fake, ttl: 15 * time.Second}
	if err := r.Register(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected set+hset+expire, got %+v", fake.calls)
	}
	set := fake.calls[0]
	if set.op != "set" || set.key != "serialmux:sess:dev-a" || set.ttl != 15*time.Second {
		t.Fatalf("set call got=%+v", set)
	}
	if set.args[0] != "sess-1:iwrap:/dev/ttyS1" {
		t.Fatalf("session value got=%v", set.args[0])
	}
	hset := fake.calls[1]
	if hset.op != "hset" || hset.key != "serialmux:stats:dev-a" {
		t.Fatalf("hset call got=%+v", hset)
	}
	fields := map[string]interface{}{}
	for i := 0; i+1 < len(hset.args); i += 2 {
		fields[hset.args[i].(string)] = hset.args[i+1]
	}
	if fields["ch1_overflows"] != uint64(2) || fields["ch1_buffered"] != 4 || fields["ch0_open"] != true {
		t.Fatalf("stats fields got=%v", fields)
	}
	if exp := fake.calls[2]; exp.op != "expire" || exp.key != "serialmux:stats:dev-a" {
		t.Fatalf("expire call got=%+v", exp)
	}
}

func TestRedisRegistryHeartbeatRefreshesTTL(t *testing.T) {
	testlog.Start(t)
	fake := &fakeRedis{}
	r := &RedisRegistry{client: fake, ttl: time.Minute}
	if err := r.Heartbeat(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if first := fake.calls[0]; first.op != "expire" || first.key != SessionKey("dev-a") || first.ttl != time.Minute {
		t.Fatalf("heartbeat first call got=%+v", first)
	}
}

func TestRedisRegistryUnregisterDeletesKeys(t *testing.T) {
	testlog.Start(t)
	fake := &fakeRedis{}
	r := &RedisRegistry{client: fake, ttl: time.Minute}
	if err := r.Unregister(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if len(fake.calls) != 2 || fake.calls[0].key != SessionKey("dev-a") || fake.calls[1].key != StatsKey("dev-a") {
		t.Fatalf("del calls got=%+v", fake.calls)
	}
}

func TestRedisRegistryWrapsErrors(t *testing.T) {
	testlog.Start(t)
	down := errors.New("connection refused")
	r := &RedisRegistry{client: &fakeRedis{setErr: down}, ttl: time.Minute}
	if err := r.Register(context.Background(), testSnapshot()); !errors.Is(err, down) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
