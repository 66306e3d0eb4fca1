package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/diagnovera/diagnovera/pkg/errors"
)

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lock re-acquired by another worker is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// Lock is a single-instance Redis lock.  The library worker uses it to
// serialize profile builds per disease so two build requests for the same
// disease cannot interleave their writes.
type Lock struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLock creates an unacquired lock for key.
func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    "lock:" + key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock without blocking.  It returns false
// when another holder owns the key.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.Raw().SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeCacheError, "failed to acquire lock")
	}
	return ok, nil
}

// Release frees the lock if we still hold it.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client.Raw(), []string{l.key}, l.token).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to release lock")
	}
	return nil
}
