// Package cache memoises computed report views per user.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	applog "expenso/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(prefix string) int
	Size() int
}

// DefaultLoadTimeout bounds a shared load once it no longer follows the
// context of the caller that started it.
const DefaultLoadTimeout = 30 * time.Second

// Loader is a read-through cache. Concurrent misses for the same key share
// one call to load.
//
// A load never stores its result if the key was invalidated while it ran,
// so a write followed by Invalidate is always visible to the next Get.
type Loader[T any] struct {
	cache   Cache[T]
	group   singleflight.Group
	timeout time.Duration

	mu sync.Mutex
	// epoch counts Invalidate calls. invalidated records the epoch at
	// which each prefix was last dropped.
	epoch       uint64
	invalidated map[string]uint64
}

func NewLoader[T any](c Cache[T]) *Loader[T] {
	return &Loader[T]{
		cache:       c,
		timeout:     DefaultLoadTimeout,
		invalidated: make(map[string]uint64),
	}
}

// WithTimeout sets how long a shared load may run.
func (l *Loader[T]) WithTimeout(d time.Duration) *Loader[T] {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// Get returns the cached value or loads, stores and returns it. The bool
// reports a cache hit. Errors are not cached.
//
// The shared load runs detached from ctx, so one caller going away does
// not fail the others waiting on it. ctx only bounds how long this caller
// waits.
func (l *Loader[T]) Get(ctx context.Context, key string, load func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if v, ok := l.cache.Get(key); ok {
		return v, true, nil
	}

	l.mu.Lock()
	start := l.epoch
	l.mu.Unlock()

	// Loads started before an invalidation are not joined by later callers.
	flight := key + "\x00" + strconv.FormatUint(start, 10)
	ch := l.group.DoChan(flight, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		data, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		l.store(key, data, start)
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(T), false, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// store sets key unless a prefix of it was invalidated after start.
func (l *Loader[T]) store(key string, data T, start uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.epoch != start {
		for prefix, at := range l.invalidated {
			if at > start && strings.HasPrefix(key, prefix) {
				return
			}
		}
	}
	l.cache.Set(key, data)
}

// Invalidate drops everything cached under prefix, including results of
// loads still in flight.
func (l *Loader[T]) Invalidate(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.invalidated[prefix] = l.epoch
	return l.cache.DeletePrefix(prefix)
}

// Cleaner is a cache that can sweep expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps registered caches.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	logger      *applog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(logger *applog.Logger) *Manager {
	return &Manager{
		logger:      logger.WithComponent(applog.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

// Sweep cleans every registered cache once and returns the number of
// entries removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired cache entries removed", applog.FieldCount, n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop must only be called after StartCleanup.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
