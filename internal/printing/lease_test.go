package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLease(t *testing.T, ttl time.Duration) (*RedisLease, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedisLease(client, "test:lease:", ttl), mr
}

func TestLeaseImplementations(t *testing.T) {
	redisLease, _ := newTestRedisLease(t, time.Minute)
	leases := map[string]Lease{
		"memory": NewMemoryLease(),
		"redis":  redisLease,
	}

	for name, lease := range leases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := lease.Acquire(ctx, "usb:lp0", "kiosk-a"); err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			if err := lease.Acquire(ctx, "usb:lp0", "kiosk-a"); err != nil {
				t.Errorf("Expected re-acquire by owner to succeed, got %v", err)
			}
			if err := lease.Acquire(ctx, "usb:lp0", "kiosk-b"); !errors.Is(err, ErrDeviceLeased) {
				t.Errorf("Expected ErrDeviceLeased for second owner, got %v", err)
			}
			if err := lease.Refresh(ctx, "usb:lp0", "kiosk-b"); !errors.Is(err, ErrDeviceLeased) {
				t.Errorf("Expected refresh by non-owner to fail, got %v", err)
			}
			if err := lease.Refresh(ctx, "usb:lp0", "kiosk-a"); err != nil {
				t.Errorf("Expected refresh by owner to succeed, got %v", err)
			}

			// release by a non-owner must not free the device
			if err := lease.Release(ctx, "usb:lp0", "kiosk-b"); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			if err := lease.Acquire(ctx, "usb:lp0", "kiosk-b"); !errors.Is(err, ErrDeviceLeased) {
				t.Errorf("Expected lease to survive foreign release, got %v", err)
			}

			if err := lease.Release(ctx, "usb:lp0", "kiosk-a"); err != nil {
				t.Fatalf("Release failed: %v", err)
			}
			if err := lease.Acquire(ctx, "usb:lp0", "kiosk-b"); err != nil {
				t.Errorf("Expected acquire after release to succeed, got %v", err)
			}
		})
	}
}

func TestRedisLease_Expires(t *testing.T) {
	lease, mr := newTestRedisLease(t, 5*time.Second)
	ctx := context.Background()

	if err := lease.Acquire(ctx, "bluetooth:rfcomm0", "kiosk-a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if ttl := mr.TTL("test:lease:bluetooth:rfcomm0"); ttl != 5*time.Second {
		t.Errorf("Expected TTL 5s, got %v", ttl)
	}

	mr.FastForward(6 * time.Second)

	if err := lease.Acquire(ctx, "bluetooth:rfcomm0", "kiosk-b"); err != nil {
		t.Errorf("Expected expired lease to be acquirable, got %v", err)
	}
}

func TestNewRedisLease_Defaults(t *testing.T) {
	lease := NewRedisLease(nil, "", 0)
	if lease.TTL() != DefaultLeaseTTL {
		t.Errorf("Expected default TTL %v, got %v", DefaultLeaseTTL, lease.TTL())
	}
	if lease.key("x") != "photobooth:lease:x" {
		t.Errorf("Unexpected key %s", lease.key("x"))
	}
}
