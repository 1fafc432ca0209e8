package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/config"
)

var ErrJobActive = errors.New("update already in progress")

// ReleaseFunc gives up a held owner lock. Calling it more than once is safe.
type ReleaseFunc func()

// OwnerLock allows a single job per owner. Acquire returns ErrJobActive when the
// owner already holds the lock.
type OwnerLock interface {
	Acquire(ctx context.Context, ownerID string) (ReleaseFunc, error)
}

// MemoryLock keeps owner locks in process memory
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[string]bool)}
}

func (l *MemoryLock) Acquire(_ context.Context, ownerID string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[ownerID] {
		return nil, ErrJobActive
	}
	l.held[ownerID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, ownerID)
			l.mu.Unlock()
		})
	}, nil
}

// RedisLock shares owner locks across replicas. A held lock is refreshed at half its
// TTL until released, so long jobs keep it.
type RedisLock struct {
	locker *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewRedisLock(client redislock.RedisClient, ttl time.Duration, log logrus.FieldLogger) *RedisLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisLock{
		locker: redislock.New(client),
		ttl:    ttl,
		log:    log,
	}
}

func lockKey(ownerID string) string {
	return "tcg-inventory:job:" + ownerID
}

func (l *RedisLock) Acquire(ctx context.Context, ownerID string) (ReleaseFunc, error) {
	lock, err := l.locker.Obtain(ctx, lockKey(ownerID), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrJobActive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain job lock: %w", err)
	}

	done := make(chan struct{})
	go l.keepAlive(lock, ownerID, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.log.Warnf("JobLock: failed to release lock for %s: %v", ownerID, err)
			}
		})
	}, nil
}

func (l *RedisLock) keepAlive(lock *redislock.Lock, ownerID string, done <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := lock.Refresh(ctx, l.ttl, nil)
			cancel()
			if err != nil {
				l.log.Warnf("JobLock: failed to refresh lock for %s: %v", ownerID, err)
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}
}

// NewOwnerLock picks the Redis-backed lock when an address is configured and the
// server answers, otherwise the in-memory lock.
func NewOwnerLock(ctx context.Context, cfg config.LockConfig, log logrus.FieldLogger) (OwnerLock, func()) {
	if cfg.RedisAddr == "" {
		return NewMemoryLock(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("JobLock: redis at %s unavailable, using in-memory locks: %v", cfg.RedisAddr, err)
		client.Close()
		return NewMemoryLock(), func() {}
	}

	log.Infof("JobLock: using redis at %s", cfg.RedisAddr)
	return NewRedisLock(client, cfg.TTL, log), func() { client.Close() }
}
