package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SpaceLock is the single-writer-per-space discipline: SetNX with a TTL so a
// crashed holder cannot wedge a space forever. Release is owner-checked.
type SpaceLock struct {
	client *redis.Client
}

func NewSpaceLock(client *redis.Client) *SpaceLock {
	return &SpaceLock{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *SpaceLock) Acquire(ctx context.Context, spaceID, owner string, ttl time.Duration) (bool, error) {
	res := l.client.SetNX(ctx, "space-lock:"+spaceID, owner, ttl)
	return res.Val(), res.Err()
}

func (l *SpaceLock) Release(ctx context.Context, spaceID, owner string) error {
	return releaseScript.Run(ctx, l.client, []string{"space-lock:" + spaceID}, owner).Err()
}
