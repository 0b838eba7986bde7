package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type observedOp struct {
	op     string
	key    string
	hit    bool
	err    error
	driver Driver
}

type observerSpy struct {
	ops []observedOp
}

func (o *observerSpy) OnCacheOp(_ context.Context, op string, key string, hit bool, err error, _ time.Duration, driver Driver) {
	o.ops = append(o.ops, observedOp{op: op, key: key, hit: hit, err: err, driver: driver})
}

func TestWithObserverHooks(t *testing.T) {
	obs := &observerSpy{}
	c := NewCache(newMemoryStore(0, 0)).WithObserver(obs)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if err := c.DeleteMany(ctx, "k", "j"); err != nil {
		t.Fatalf("delete many failed: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	want := []string{OpSet, OpGet, OpDeleteMany, OpDeleteMany, OpFlush}
	if len(obs.ops) != len(want) {
		t.Fatalf("expected %d ops, got %+v", len(want), obs.ops)
	}
	for i, op := range want {
		if obs.ops[i].op != op {
			t.Fatalf("op %d = %s, want %s", i, obs.ops[i].op, op)
		}
		if obs.ops[i].driver != DriverMemory {
			t.Fatalf("op %d driver = %s", i, obs.ops[i].driver)
		}
	}
	if !obs.ops[1].hit {
		t.Fatalf("expected get to be reported as hit")
	}
}

func TestObserverSeesFailures(t *testing.T) {
	obs := &observerSpy{}
	client := newStubRedisClient()
	client.delErr = errors.New("timeout")
	c := NewCache(newRedisStore(client, 0, "")).WithObserver(obs)

	_ = c.Delete(context.Background(), "recommendations:4")
	if len(obs.ops) != 1 || obs.ops[0].err == nil || obs.ops[0].hit {
		t.Fatalf("expected failed delete event, got %+v", obs.ops)
	}
	if obs.ops[0].key != "recommendations:4" {
		t.Fatalf("unexpected key %q", obs.ops[0].key)
	}
}

func TestObserversFanOut(t *testing.T) {
	a, b := &observerSpy{}, &observerSpy{}
	var fn ObserverFunc
	c := NewCache(newNullStore()).WithObserver(Observers(a, nil, b, fn))
	_, _, _ = c.Get(context.Background(), "k")
	if len(a.ops) != 1 || len(b.ops) != 1 {
		t.Fatalf("expected both observers notified, got %d and %d", len(a.ops), len(b.ops))
	}
}
