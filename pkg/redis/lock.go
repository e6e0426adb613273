package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired means another holder owns the key.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld means the lock expired or was taken over before release.
	ErrLockNotHeld = errors.New("lock not held")
)

// compareAndDelete and compareAndExpire only touch the key while it still
// carries the holder's token.
var (
	compareAndDelete = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	compareAndExpire = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

func newMember() string {
	return uuid.NewString()
}

// Lock is one held key.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Locker takes short-lived exclusive locks, used to serialise imports of the
// same place across processes.
type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "fern:lock:"
	}
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Acquire takes key for ttl without waiting.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{client: l.client, key: l.keyPrefix + key, token: newMember()}

	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

// Extend resets the lock's expiry to ttl.
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	return lock.run(ctx, compareAndExpire, ttl.Milliseconds())
}

func (lock *Lock) Release(ctx context.Context) error {
	return lock.run(ctx, compareAndDelete)
}

func (lock *Lock) run(ctx context.Context, script *goredis.Script, args ...any) error {
	n, err := script.Run(ctx, lock.client.rdb, []string{lock.key}, append([]any{lock.token}, args...)...).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn while holding key. The lock is extended every ttl/2 until
// fn returns, then released even when ctx is cancelled. Extension and release
// failures are logged, not returned.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(ctx, lock, ttl, stop)
	}()

	defer func() {
		close(stop)
		<-stopped
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key).Warn("failed to release lock")
		}
	}()

	return fn(ctx)
}

func (l *Locker) keepAlive(ctx context.Context, lock *Lock, ttl time.Duration, stop <-chan struct{}) {
	interval := ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lock.Extend(context.WithoutCancel(ctx), ttl); err != nil {
				l.client.logger.WithContext(ctx).WithError(err).WithField("lock", lock.key).Warn("failed to extend lock")
				return
			}
		}
	}
}
