// Package presence publishes which users are online to Redis so other
// services can show it.
package presence

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
)

const (
	DefaultPrefix = "pong:presence"
	DefaultTTL    = 2 * time.Minute
	hookTimeout   = 2 * time.Second
)

// A user stays in the online set while its session counter is positive.
var release = redis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
	redis.call('DEL', KEYS[1])
	redis.call('SREM', KEYS[2], ARGV[1])
end
return n
`)

// Hooks is the part of the registry the tracker attaches to.
type Hooks interface {
	OnConnect(registry.Hook)
	OnDisconnect(registry.Hook)
}

// Tracker counts live sessions per user. Counters expire after ttl unless
// Refresh renews them, so a crashed instance does not leave users online.
type Tracker struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	log    zerolog.Logger
}

func NewTracker(rdb redis.Cmdable, prefix string, ttl time.Duration, log zerolog.Logger) *Tracker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		log:    log.With().Str("component", "presence").Logger(),
	}
}

func (t *Tracker) onlineKey() string {
	return t.prefix + ":online"
}

func (t *Tracker) sessionsKey(userID string) string {
	return t.prefix + ":sessions:" + userID
}

// Attach keeps presence in step with registry connects and disconnects.
// Redis failures are logged; they never block a connection.
func (t *Tracker) Attach(h Hooks) {
	h.OnConnect(func(c registry.Connection) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := t.Connected(ctx, c.Identity.UserID); err != nil {
			t.log.Warn().Err(err).Str("user_id", c.Identity.UserID).Msg("presence connect")
		}
	})
	h.OnDisconnect(func(c registry.Connection) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		if err := t.Disconnected(ctx, c.Identity.UserID); err != nil {
			t.log.Warn().Err(err).Str("user_id", c.Identity.UserID).Msg("presence disconnect")
		}
	})
}

// Connected records one more session for userID.
func (t *Tracker) Connected(ctx context.Context, userID string) error {
	key := t.sessionsKey(userID)
	_, err := t.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, key)
		p.Expire(ctx, key, t.ttl)
		p.SAdd(ctx, t.onlineKey(), userID)
		return nil
	})
	return eris.Wrapf(err, "mark %s online", userID)
}

// Disconnected drops one session of userID and removes the user from the
// online set with the last one.
func (t *Tracker) Disconnected(ctx context.Context, userID string) error {
	err := release.Run(ctx, t.rdb, []string{t.sessionsKey(userID), t.onlineKey()}, userID).Err()
	return eris.Wrapf(err, "mark %s offline", userID)
}

// Refresh renews the counters of users that are still connected.
func (t *Tracker) Refresh(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := t.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range userIDs {
			p.Expire(ctx, t.sessionsKey(id), t.ttl)
		}
		return nil
	})
	return eris.Wrap(err, "refresh presence")
}

// Online returns the online users, sorted. Members whose counter expired
// are pruned on the way.
func (t *Tracker) Online(ctx context.Context) ([]string, error) {
	members, err := t.rdb.SMembers(ctx, t.onlineKey()).Result()
	if err != nil {
		return nil, eris.Wrap(err, "list online users")
	}

	out := make([]string, 0, len(members))
	var stale []interface{}
	for _, id := range members {
		n, err := t.rdb.Exists(ctx, t.sessionsKey(id)).Result()
		if err != nil {
			return nil, eris.Wrap(err, "check presence")
		}
		if n == 0 {
			stale = append(stale, id)
			continue
		}
		out = append(out, id)
	}
	if len(stale) > 0 {
		if err := t.rdb.SRem(ctx, t.onlineKey(), stale...).Err(); err != nil {
			t.log.Warn().Err(err).Int("stale", len(stale)).Msg("prune presence")
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsOnline reports whether userID has a live session.
func (t *Tracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := t.rdb.Exists(ctx, t.sessionsKey(userID)).Result()
	if err != nil {
		return false, eris.Wrap(err, "check presence")
	}
	return n > 0, nil
}
