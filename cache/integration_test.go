//go:build integration

package cache_test

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/goforj/moviematch/cache"
	"github.com/goforj/moviematch/cachetest"
)

const redisPort = nat.Port("6379/tcp")

var integrationRedis struct {
	container testcontainers.Container
	addr      string
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, addr, err := startRedisContainer(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to start redis integration container: " + err.Error() + "\n")
		os.Exit(1)
	}
	integrationRedis.container = container
	integrationRedis.addr = addr

	exitCode := m.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = integrationRedis.container.Terminate(shutdownCtx)

	os.Exit(exitCode)
}

func startRedisContainer(ctx context.Context) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForListeningPort(redisPort).WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	port, err := container.MappedPort(ctx, redisPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}
	return container, net.JoinHostPort(host, port.Port()), nil
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: integrationRedis.addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegrationRedisStoreContract(t *testing.T) {
	store := cache.NewRedisStore(context.Background(), newRedisClient(t), cache.WithPrefix("contract"))
	cachetest.RunStoreContract(t, store, cachetest.Options{
		CaseName: t.Name(),
		TTL:      time.Second,
		TTLWait:  1500 * time.Millisecond,
	})
}

func TestIntegrationRedisSharedKeyIsVisibleToOtherClients(t *testing.T) {
	ctx := context.Background()
	writer := cache.NewCache(cache.NewRedisStore(ctx, newRedisClient(t)))
	other := newRedisClient(t)

	if err := writer.Set(ctx, "recommendations:77", []byte(`[{"id":1}]`), 600*time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	raw, err := other.Get(ctx, "recommendations:77").Result()
	if err != nil || raw != `[{"id":1}]` {
		t.Fatalf("expected raw key visible to other client, got %q err=%v", raw, err)
	}
	ttl, err := other.TTL(ctx, "recommendations:77").Result()
	if err != nil || ttl <= 590*time.Second || ttl > 600*time.Second {
		t.Fatalf("expected ~600s ttl, got %s err=%v", ttl, err)
	}

	if err := other.Del(ctx, "recommendations:77").Err(); err != nil {
		t.Fatalf("external delete failed: %v", err)
	}
	if _, ok, err := writer.Get(ctx, "recommendations:77"); err != nil || ok {
		t.Fatalf("expected miss after external invalidation, ok=%v err=%v", ok, err)
	}
}
