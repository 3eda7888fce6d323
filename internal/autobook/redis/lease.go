package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-autobook/internal/logger"
)

const DefaultLeaseKey = "autobook:pass_lease"

// releaseScript deletes the key only if this owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PassLease keeps periodic passes from piling up across replicas. It is
// advisory: correctness of a pass does not depend on holding it.
type PassLease struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
	Logger *logger.Logger
	owner  string
}

func NewPassLease(client *redis.Client, ttl time.Duration, log *logger.Logger) *PassLease {
	return &PassLease{
		Client: client,
		Key:    DefaultLeaseKey,
		TTL:    ttl,
		Logger: log,
		owner:  uuid.New().String(),
	}
}

// Owner identifies this process as the lease holder.
func (l *PassLease) Owner() string {
	return l.owner
}

// Acquire returns false when another owner holds the lease.
func (l *PassLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.Client.SetNX(ctx, l.Key, l.owner, l.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire pass lease: %w", err)
	}
	if !ok {
		l.Logger.Debug("REDIS", fmt.Sprintf("pass lease %s held elsewhere", l.Key))
	}
	return ok, nil
}

// Release gives the lease up if this owner still holds it. An expired or
// stolen lease is left alone.
func (l *PassLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.Client, []string{l.Key}, l.owner).Int()
	if err != nil {
		return fmt.Errorf("release pass lease: %w", err)
	}
	if n == 0 {
		l.Logger.Debug("REDIS", fmt.Sprintf("pass lease %s was no longer ours", l.Key))
	}
	return nil
}
