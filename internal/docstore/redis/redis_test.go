package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"mahjong/internal/docstore"
)

func TestDecodeKeepsNumbersExact(t *testing.T) {
	f, err := decode([]byte(`{"amount":300.5,"type":"win"}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("300.5"), f["amount"])
	assert.Equal(t, "win", f["type"])

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestFailedInitialReadKeepsNoErrorCallback(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	s := New(client, docstore.CollectionPath("test-app"))
	t.Cleanup(func() { _ = s.Close() })
	// Pretend the listener is up so only the initial read fails.
	s.listen.Do(func() {})

	_, err := s.Subscribe(context.Background(), func([]docstore.Document) {}, func(error) {})
	require.Error(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.onErrors)
}

// startRedis runs a throwaway Redis container. Set MAHJONG_TEST_DOCKER=true to enable.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() || os.Getenv("MAHJONG_TEST_DOCKER") != "true" {
		t.Skip("Docker tests disabled (set MAHJONG_TEST_DOCKER=true to enable)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return redis.NewClient(&redis.Options{Addr: endpoint})
}

func TestStoreLiveSnapshots(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	s := New(client, docstore.CollectionPath("test-app"))
	t.Cleanup(func() { _ = s.Close() })

	snaps := make(chan []docstore.Document, 16)
	sub, err := s.Subscribe(ctx, func(d []docstore.Document) { snaps <- d }, func(error) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	errorCallbacks := func() int {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.onErrors)
	}
	other, err := s.Subscribe(ctx, func([]docstore.Document) {}, func(error) {})
	require.NoError(t, err)
	assert.Equal(t, 2, errorCallbacks())
	other.Unsubscribe()
	assert.Equal(t, 1, errorCallbacks())

	waitLen := func(n int) []docstore.Document {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case d := <-snaps:
				if len(d) == n {
					return d
				}
			case <-deadline:
				t.Fatalf("no snapshot with %d documents", n)
			}
		}
	}
	waitLen(0)

	require.NoError(t, s.Put(ctx, "1767600000000", docstore.Fields{"date": "2026-01-05", "amount": 300}))
	docs := waitLen(1)
	assert.Equal(t, "2026-01-05", docs[0].Fields["date"])

	got, err := s.Get(ctx, "1767600000000")
	require.NoError(t, err)
	assert.Equal(t, json.Number("300"), got.Fields["amount"])

	require.NoError(t, s.Remove(ctx, "missing"))
	require.NoError(t, s.Remove(ctx, "1767600000000"))
	waitLen(0)

	_, err = s.Get(ctx, "1767600000000")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
