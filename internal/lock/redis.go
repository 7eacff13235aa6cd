// Package lock keeps two bot processes from signing with the same wallet.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another instance")

// delete only if the caller still owns the key
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

type Redis struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	extendSc *redis.Script
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
	}
}

// Dial connects and pings.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// Lease is a held lock.
type Lease struct {
	owner *Redis
	key   string
	token string
	ttl   time.Duration
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire returns ErrLockHeld if another process holds key.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := r.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{owner: r, key: lk, token: token, ttl: ttl}, nil
}

// Extend pushes the expiry out by the lease ttl. It returns ErrLockHeld when
// the lease was lost.
func (l *Lease) Extend(ctx context.Context) error {
	n, err := l.owner.extendSc.Run(ctx, l.owner.rdb, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis: extend lock: %w", err)
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// Keep extends the lease every ttl/3 until ctx ends, then releases it.
func (l *Lease) Keep(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	defer l.Release()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Extend(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Release is safe to call after ctx cancellation and more than once.
func (l *Lease) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = l.owner.unlockSc.Run(ctx, l.owner.rdb, []string{l.key}, l.token).Err()
}
