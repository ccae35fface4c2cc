package printing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lease grants one kiosk owner exclusive use of a device id
type Lease interface {
	Acquire(ctx context.Context, deviceID, owner string) error
	Refresh(ctx context.Context, deviceID, owner string) error
	Release(ctx context.Context, deviceID, owner string) error
}

// MemoryLease keeps leases in process memory
type MemoryLease struct {
	mu      sync.Mutex
	holders map[string]string
}

func NewMemoryLease() *MemoryLease {
	return &MemoryLease{holders: make(map[string]string)}
}

func (l *MemoryLease) Acquire(_ context.Context, deviceID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.holders[deviceID]; ok && holder != owner {
		return fmt.Errorf("%s held by %s: %w", deviceID, holder, ErrDeviceLeased)
	}
	l.holders[deviceID] = owner
	return nil
}

func (l *MemoryLease) Refresh(_ context.Context, deviceID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[deviceID] != owner {
		return fmt.Errorf("%s not held by %s: %w", deviceID, owner, ErrDeviceLeased)
	}
	return nil
}

// Release is a no-op when owner does not hold the lease
func (l *MemoryLease) Release(_ context.Context, deviceID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[deviceID] == owner {
		delete(l.holders, deviceID)
	}
	return nil
}

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

const DefaultLeaseTTL = 30 * time.Second

// RedisLease shares device leases between kiosks through Redis keys that
// expire unless refreshed
type RedisLease struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLease(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLease {
	if prefix == "" {
		prefix = "photobooth:lease:"
	}
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisLease{client: client, prefix: prefix, ttl: ttl}
}

// TTL is the expiry applied on acquire and refresh
func (l *RedisLease) TTL() time.Duration {
	return l.ttl
}

func (l *RedisLease) key(deviceID string) string {
	return l.prefix + deviceID
}

func (l *RedisLease) Acquire(ctx context.Context, deviceID, owner string) error {
	ok, err := l.client.SetNX(ctx, l.key(deviceID), owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lease for %s: %w", deviceID, err)
	}
	if ok {
		return nil
	}
	// re-acquiring our own lease extends it
	return l.Refresh(ctx, deviceID, owner)
}

func (l *RedisLease) Refresh(ctx context.Context, deviceID, owner string) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key(deviceID)}, owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh lease for %s: %w", deviceID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s not held by %s: %w", deviceID, owner, ErrDeviceLeased)
	}
	return nil
}

func (l *RedisLease) Release(ctx context.Context, deviceID, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(deviceID)}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release lease for %s: %w", deviceID, err)
	}
	return nil
}
