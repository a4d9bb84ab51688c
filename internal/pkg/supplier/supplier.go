// Package supplier shares one upstream producer per key between any number of
// concurrent subscribers.
//
// Per key the state is either absent or active. The first subscriber starts the
// producer, later subscribers attach to it and receive the latest value
// immediately, and the producer is cancelled as soon as the last subscriber
// detaches. A subscriber arriving after that starts a fresh producer.
package supplier

import (
	"context"
	"fmt"
	"sync"

	"currency_status/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Producer starts the upstream stream for a key. It must not block: long-running
// work belongs in goroutines tied to ctx, which is cancelled on teardown.
type Producer[K comparable, T any] func(ctx context.Context, key K) (<-chan T, error)

// Supplier multicasts one producer per key.
type Supplier[K comparable, T any] struct {
	name       string
	produce    Producer[K, T]
	bufferSize int
	logger     *zap.Logger

	mu      sync.Mutex
	entries map[K]*entry[T]
}

type entry[T any] struct {
	cancel  context.CancelFunc
	subs    map[*subscriber[T]]struct{}
	last    T
	hasLast bool
}

// New creates a Supplier. bufferSize is the per-subscriber channel buffer and is at least 1.
// produce may be nil when every caller subscribes through SubscribeWith.
func New[K comparable, T any](name string, produce Producer[K, T], bufferSize int, logger *zap.Logger) *Supplier[K, T] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Supplier[K, T]{
		name:       name,
		produce:    produce,
		bufferSize: bufferSize,
		logger:     logger.Named("Supplier").With(zap.String("supplier", name)),
		entries:    make(map[K]*entry[T]),
	}
}

// Subscribe attaches to the shared stream of key, starting the producer if none runs.
// The returned channel closes when ctx is done or the upstream completes.
func (s *Supplier[K, T]) Subscribe(ctx context.Context, key K) (<-chan T, error) {
	return s.SubscribeWith(ctx, key, s.produce)
}

// SubscribeWith is Subscribe with the producer given by the caller. It runs only
// when no producer is active for key, so the request behind key lives exactly as
// long as the shared stream.
func (s *Supplier[K, T]) SubscribeWith(ctx context.Context, key K, produce Producer[K, T]) (<-chan T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		if produce == nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("no producer for %v", key)
		}
		producerCtx, cancel := context.WithCancel(context.Background())
		upstream, err := produce(producerCtx, key)
		if err != nil {
			cancel()
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to start producer for %v: %w", key, err)
		}
		e = &entry[T]{cancel: cancel, subs: make(map[*subscriber[T]]struct{})}
		s.entries[key] = e
		metrics.SupplierProducers.WithLabelValues(s.name).Inc()
		s.logger.Debug("Started shared producer", zap.Any("key", key))
		go s.run(key, e, upstream)
	}

	sub := &subscriber[T]{
		ch:       make(chan T, s.bufferSize),
		done:     ctx.Done(),
		finished: make(chan struct{}),
	}
	if e.hasLast {
		sub.ch <- e.last
	}
	e.subs[sub] = struct{}{}
	metrics.SupplierSubscribers.WithLabelValues(s.name).Inc()
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.detach(key, e, sub)
		case <-sub.finished:
		}
	}()

	return sub.ch, nil
}

// Invalidate drops the cached latest value of key. Running producers and their
// subscribers are untouched; the next upstream value reaches them as usual.
func (s *Supplier[K, T]) Invalidate(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		var zero T
		e.last, e.hasLast = zero, false
		s.logger.Debug("Invalidated cached value", zap.Any("key", key))
	}
}

// Active reports whether a producer runs for key.
func (s *Supplier[K, T]) Active(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

func (s *Supplier[K, T]) run(key K, e *entry[T], upstream <-chan T) {
	for v := range upstream {
		s.mu.Lock()
		e.last, e.hasLast = v, true
		subs := make([]*subscriber[T], 0, len(e.subs))
		for sub := range e.subs {
			subs = append(subs, sub)
		}
		s.mu.Unlock()

		for _, sub := range subs {
			sub.send(v)
		}
	}

	// upstream completed or was cancelled
	s.mu.Lock()
	if s.entries[key] == e {
		delete(s.entries, key)
		metrics.SupplierProducers.WithLabelValues(s.name).Dec()
	}
	subs := e.subs
	e.subs = make(map[*subscriber[T]]struct{})
	s.mu.Unlock()

	e.cancel()
	for sub := range subs {
		sub.close()
		metrics.SupplierSubscribers.WithLabelValues(s.name).Dec()
	}
	s.logger.Debug("Shared producer finished", zap.Any("key", key))
}

func (s *Supplier[K, T]) detach(key K, e *entry[T], sub *subscriber[T]) {
	s.mu.Lock()
	if _, ok := e.subs[sub]; !ok {
		s.mu.Unlock()
		return
	}
	delete(e.subs, sub)
	metrics.SupplierSubscribers.WithLabelValues(s.name).Dec()
	teardown := len(e.subs) == 0 && s.entries[key] == e
	if teardown {
		delete(s.entries, key)
		metrics.SupplierProducers.WithLabelValues(s.name).Dec()
	}
	s.mu.Unlock()

	sub.close()
	if teardown {
		e.cancel()
		s.logger.Debug("Last subscriber detached, producer cancelled", zap.Any("key", key))
	}
}

type subscriber[T any] struct {
	mu       sync.Mutex
	ch       chan T
	done     <-chan struct{}
	finished chan struct{}
	closed   bool
}

// send blocks until the subscriber takes v or detaches.
func (s *subscriber[T]) send(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- v:
	case <-s.done:
	}
}

func (s *subscriber[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	close(s.finished)
}
