// Package lock provides the per-resume advisory lock taken before a
// background attempt starts.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/resumeflow/internal/cache"
)

var ErrHeld = errors.New("resume is locked by another attempt")

// Locker hands out tokens. Release removes the lock only when the token
// still owns it, so an expired holder cannot release a newer lock.
type Locker interface {
	Acquire(ctx context.Context, resumeID uuid.UUID, ttl time.Duration) (string, error)
	Release(ctx context.Context, resumeID uuid.UUID, token string) error
}

func key(resumeID uuid.UUID) string {
	return "resumeflow:lock:resume:" + resumeID.String()
}

type RedisLocker struct {
	cache *cache.Cache
}

func NewRedisLocker(c *cache.Cache) *RedisLocker {
	return &RedisLocker{cache: c}
}

func (l *RedisLocker) Acquire(ctx context.Context, resumeID uuid.UUID, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cache.SetNX(ctx, key(resumeID), token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrHeld
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, resumeID uuid.UUID, token string) error {
	_, err := l.cache.CompareAndDelete(ctx, key(resumeID), token)
	return err
}

type entry struct {
	token   string
	expires time.Time
}

// Memory is a Locker for a single process.
type Memory struct {
	mu   sync.Mutex
	held map[uuid.UUID]entry
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{held: make(map[uuid.UUID]entry), now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, resumeID uuid.UUID, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[resumeID]; ok && now.Before(e.expires) {
		return "", ErrHeld
	}
	token := uuid.NewString()
	m.held[resumeID] = entry{token: token, expires: now.Add(ttl)}
	return token, nil
}

func (m *Memory) Release(_ context.Context, resumeID uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.held[resumeID]; ok && e.token == token {
		delete(m.held, resumeID)
	}
	return nil
}
