package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry/registrytest"
)

func setupTracker(t *testing.T) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewTracker(rdb, "test", time.Minute, zerolog.Nop()), mr
}

func TestTracker_MultipleSessions(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Connected(ctx, "alice"))
	require.NoError(t, tr.Connected(ctx, "alice"))
	require.NoError(t, tr.Connected(ctx, "bob"))

	online, err := tr.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, online)

	// one of alice's tabs closes; she stays online
	require.NoError(t, tr.Disconnected(ctx, "alice"))
	ok, err := tr.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tr.Disconnected(ctx, "alice"))
	ok, err = tr.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	online, err = tr.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, online)
}

func TestTracker_ExpiredCounterIsPruned(t *testing.T) {
	tr, mr := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Connected(ctx, "alice"))
	require.NoError(t, tr.Connected(ctx, "bob"))

	mr.FastForward(30 * time.Second)
	require.NoError(t, tr.Refresh(ctx, []string{"bob"}))
	mr.FastForward(45 * time.Second)

	online, err := tr.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, online)

	members, err := mr.Members("test:online")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)
}

func TestTracker_AttachFollowsRegistry(t *testing.T) {
	tr, _ := setupTracker(t)
	ctx := context.Background()
	reg := registry.New(time.Second, zerolog.Nop())
	tr.Attach(reg)

	sid, err := reg.Register(registrytest.NewTransport(), registry.Identity{UserID: "carol"})
	require.NoError(t, err)

	ok, err := tr.IsOnline(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	reg.Unregister(sid)
	ok, err = tr.IsOnline(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTracker_RedisDownDoesNotBlockRegistry(t *testing.T) {
	tr, mr := setupTracker(t)
	reg := registry.New(time.Second, zerolog.Nop())
	tr.Attach(reg)
	mr.Close()

	sid, err := reg.Register(registrytest.NewTransport(), registry.Identity{UserID: "dave"})
	require.NoError(t, err)
	reg.Unregister(sid)
	assert.Zero(t, reg.Count())
}
