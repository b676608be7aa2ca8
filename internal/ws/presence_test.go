package ws

import (
	"context"
	"os"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPresenceCountsConnections(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	key := "chat:presence:test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })
	p := NewRedisPresence(client, key)

	first, err := p.Add(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, first)
	again, err := p.Add(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again)
	_, err = p.Add(ctx, "bob")
	require.NoError(t, err)

	online, err := p.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, online)

	gone, err := p.Remove(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, gone)
	gone, err = p.Remove(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, gone)

	online, err = p.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, online)
}
