package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// FailoverStore wraps a primary and fallback store, automatically failing over
// when the primary becomes unavailable and recovering when it becomes healthy again
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Value // Store
	probeInterval time.Duration
	logger        LogFunc

	mu        sync.Mutex
	probing   bool
	closed    chan struct{}
	closeOnce sync.Once
	probeStop chan struct{}
	probeDone chan struct{}
	promote   chan struct{}
}

// NewFailoverStore creates a failover store that starts on the primary.
func NewFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := newFailoverStore(primary, fallback, probeInterval, logger)
	fs.active.Store(primary)
	go fs.handlePromotions()
	return fs
}

// NewFailoverStoreWithFallbackActive creates a failover store that starts on the
// fallback and probes the primary for recovery.
func NewFailoverStoreWithFallbackActive(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := newFailoverStore(primary, fallback, probeInterval, logger)
	fs.active.Store(fallback)
	go fs.handlePromotions()
	fs.startProbing()
	return fs
}

func newFailoverStore(primary, fallback Store, probeInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(msg string, fields ...any) {}
	}
	return &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		probeInterval: probeInterval,
		logger:        logger,
		closed:        make(chan struct{}),
		promote:       make(chan struct{}, 1),
	}
}

func (fs *FailoverStore) getActiveStore() Store {
	return fs.active.Load().(Store)
}

// demoteToFallback switches to the fallback store and starts probing the primary
func (fs *FailoverStore) demoteToFallback() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.getActiveStore() == fs.fallback {
		return
	}

	fs.active.Store(fs.fallback)
	fs.logger("Failing over to in-memory store", "reason", "primary_unavailable")
	fs.startProbingUnsafe()
}

func (fs *FailoverStore) handlePromotions() {
	for {
		select {
		case <-fs.closed:
			return
		case <-fs.promote:
			if fs.getActiveStore() == fs.primary {
				continue
			}
			fs.active.Store(fs.primary)
			fs.logger("Recovered to primary store", "reason", "primary_healthy")
			fs.stopProbing()
		}
	}
}

func (fs *FailoverStore) signalPromotion() {
	select {
	case fs.promote <- struct{}{}:
	default:
	}
}

// startProbingUnsafe must be called with fs.mu held
func (fs *FailoverStore) startProbingUnsafe() {
	if fs.probing {
		return
	}
	fs.probing = true
	fs.probeStop = make(chan struct{})
	fs.probeDone = make(chan struct{})
	go fs.probeLoop(fs.probeStop, fs.probeDone)
}

func (fs *FailoverStore) startProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.startProbingUnsafe()
}

func (fs *FailoverStore) stopProbing() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.stopProbingUnsafe()
}

// stopProbingUnsafe must be called with fs.mu held
func (fs *FailoverStore) stopProbingUnsafe() {
	if !fs.probing {
		return
	}
	close(fs.probeStop)
	<-fs.probeDone
	fs.probing = false
}

func (fs *FailoverStore) probeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(fs.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.probeInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()

			if err == nil {
				fs.signalPromotion()
			}
		}
	}
}

// execute runs fn on the active store and retries once on the fallback when
// the primary reports ErrBackendUnavailable.
func execute[T any](fs *FailoverStore, fn func(Store) (T, error)) (T, error) {
	store := fs.getActiveStore()
	result, err := fn(store)

	if store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demoteToFallback()
		if fallback := fs.getActiveStore(); fallback != store {
			return fn(fallback)
		}
	}
	return result, err
}

func (fs *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	_, err := execute(fs, func(s Store) (struct{}, error) {
		return struct{}{}, s.Set(ctx, key, value, ttl...)
	})
	return err
}

func (fs *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	return execute(fs, func(s Store) ([]byte, error) {
		return s.Get(ctx, key)
	})
}

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return execute(fs, func(s Store) (int64, error) {
		return s.Del(ctx, keys...)
	})
}

func (fs *FailoverStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return execute(fs, func(s Store) (int64, error) {
		return s.Exists(ctx, keys...)
	})
}

func (fs *FailoverStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return execute(fs, func(s Store) (bool, error) {
		return s.Expire(ctx, key, ttl)
	})
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return execute(fs, func(s Store) (time.Duration, error) {
		return s.TTL(ctx, key)
	})
}

// Ping checks the active store
func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.getActiveStore().Ping(ctx)
}

// GetActiveBackend reports "primary" or "fallback"
func (fs *FailoverStore) GetActiveBackend() string {
	if fs.getActiveStore() == fs.primary {
		return "primary"
	}
	return "fallback"
}

// Close shuts down the failover store and stops all background processes
func (fs *FailoverStore) Close() error {
	fs.closeOnce.Do(func() { close(fs.closed) })

	fs.mu.Lock()
	fs.stopProbingUnsafe()
	fs.mu.Unlock()

	var firstErr error
	if err := fs.primary.Close(); err != nil {
		firstErr = err
	}
	if err := fs.fallback.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
