package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/redis"
)

// Only one worker process may scan and upload at a time; the lock keys
// the deployment on SETNX with a TTL so a crashed holder expires.
const lockTTL = 10 * time.Minute

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// SingletonLock is the redis lease that keeps one worker instance active.
type SingletonLock struct {
	store lockStore
	logg  *logger.Logger
	key   string
	owner string
}

// NewSingletonLock builds a lock for the named worker role.
func NewSingletonLock(store lockStore, logg *logger.Logger, role string) *SingletonLock {
	return &SingletonLock{
		store: store,
		logg:  logg,
		key:   redis.LockKey(role),
		owner: uuid.NewString(),
	}
}

// Acquire attempts to take the lease. A false return means another
// instance holds it.
func (l *SingletonLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key, l.owner, lockTTL)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Refresh re-extends the lease; call it periodically while working.
// Losing ownership returns an error so the holder can stand down.
func (l *SingletonLock) Refresh(ctx context.Context) error {
	current, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			ok, err := l.store.SetNX(ctx, l.key, l.owner, lockTTL)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("worker lock taken by another instance")
			}
			return nil
		}
		return err
	}
	if current != l.owner {
		return errors.New("worker lock owned by another instance")
	}
	// SetNX cannot extend; delete-and-retake under owner check is safe
	// because only the owner reaches this path.
	if err := l.store.Del(ctx, l.key); err != nil {
		return err
	}
	ok, err := l.store.SetNX(ctx, l.key, l.owner, lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("worker lock lost during refresh")
	}
	return nil
}

// Release drops the lease if this instance still owns it.
func (l *SingletonLock) Release(ctx context.Context) {
	current, err := l.store.Get(ctx, l.key)
	if err != nil {
		if !errors.Is(err, redis.ErrNil) {
			l.logg.Warn(ctx, "reading worker lock during release failed")
		}
		return
	}
	if current != l.owner {
		return
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		l.logg.Warn(ctx, "releasing worker lock failed")
	}
}
