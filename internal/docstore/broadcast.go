package docstore

import (
	"context"
	"sync"
)

// Broadcaster fans snapshots out to subscribers. Each subscriber runs its own
// delivery goroutine; a slow subscriber only ever sees the latest snapshot,
// never a stale one queued behind it.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	latest chan []Document
	stop   chan struct{}
	once   sync.Once
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*subscriber)}
}

// Add registers onSnapshot and starts its delivery loop. initial, when
// non-nil, is queued as the first snapshot.
func (b *Broadcaster) Add(ctx context.Context, initial []Document, onSnapshot SnapshotFunc) (Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	s := &subscriber{
		latest: make(chan []Document, 1),
		stop:   make(chan struct{}),
	}
	b.subs[id] = s
	if initial != nil {
		s.latest <- initial
	}
	b.mu.Unlock()

	go s.run(ctx, onSnapshot)

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.close()
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-s.stop:
		}
	}()
	return SubscriptionFunc(cancel), nil
}

// Publish replaces every subscriber's pending snapshot with docs.
func (b *Broadcaster) Publish(docs []Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.offer(docs)
	}
}

// Len returns the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close stops every subscriber and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.closed = true
	b.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}

func (s *subscriber) offer(docs []Document) {
	for {
		select {
		case s.latest <- docs:
			return
		default:
		}
		// Drop the pending snapshot; the new one supersedes it.
		select {
		case <-s.latest:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *subscriber) run(ctx context.Context, onSnapshot SnapshotFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case docs := <-s.latest:
			// Re-check so nothing is delivered after Unsubscribe returns
			// from a concurrent goroutine's point of view.
			select {
			case <-s.stop:
				return
			default:
			}
			onSnapshot(docs)
		}
	}
}
