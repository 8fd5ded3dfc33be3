package queue

import (
	"errors"
	"sync"
	"time"
)

// MemoryBroker is an in-process Broker used by tests and by single-node
// deployments without NSQ. Deliveries are asynchronous, mirroring the push
// model of the real broker.
type MemoryBroker struct {
	mu      sync.Mutex
	subs    map[string]func(body []byte) error
	pending map[string][][]byte
	closed  bool
	wg      sync.WaitGroup
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:    make(map[string]func(body []byte) error),
		pending: make(map[string][][]byte),
	}
}

func (b *MemoryBroker) Publish(queue string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("memory broker is closed")
	}

	fn, ok := b.subs[queue]
	if !ok {
		// Hold until a consumer subscribes, like a durable topic would.
		b.pending[queue] = append(b.pending[queue], body)
		return nil
	}

	b.dispatch(fn, body)
	return nil
}

func (b *MemoryBroker) PublishDeferred(queue string, delay time.Duration, body []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("memory broker is closed")
	}
	b.mu.Unlock()

	time.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		if fn, ok := b.subs[queue]; ok {
			b.dispatch(fn, body)
		} else {
			b.pending[queue] = append(b.pending[queue], body)
		}
	})
	return nil
}

// Subscribe registers the queue's handler. Every delivery gets its own
// goroutine, so the broker never caps concurrency below what the runtime's
// semaphore allows; the concurrency hint is only meaningful for brokers with
// real in-flight windows.
func (b *MemoryBroker) Subscribe(queue string, concurrency int, fn func(body []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("memory broker is closed")
	}
	if _, ok := b.subs[queue]; ok {
		return errors.New("queue already has a subscriber: " + queue)
	}

	b.subs[queue] = fn
	for _, body := range b.pending[queue] {
		b.dispatch(fn, body)
	}
	delete(b.pending, queue)
	return nil
}

// dispatch fires the handler on its own goroutine; the caller holds b.mu.
func (b *MemoryBroker) dispatch(fn func(body []byte) error, body []byte) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = fn(body)
	}()
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
