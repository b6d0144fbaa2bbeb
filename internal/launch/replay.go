package launch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "launch:seen:"

// ReplayGuard makes launch tokens single-use by remembering a hash of
// every accepted token for as long as the token could still be valid.
type ReplayGuard struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewReplayGuard(client redis.Cmdable, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{client: client, ttl: ttl}
}

// FirstUse records the token and reports whether this is its first
// presentation. Redis errors are returned to the caller, who decides
// whether to fail open.
func (g *ReplayGuard) FirstUse(ctx context.Context, token string) (bool, error) {
	sum := sha256.Sum256([]byte(token))
	key := replayKeyPrefix + hex.EncodeToString(sum[:])
	return g.client.SetNX(ctx, key, 1, g.ttl).Result()
}
