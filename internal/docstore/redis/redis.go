// Package redis stores a document collection in a Redis hash and pushes
// change notifications over pub/sub so every process sees live snapshots.
package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"mahjong/internal/docstore"
)

// Store keeps every document of one collection in a single hash keyed by
// document id. Writers publish the changed id on "<key>:changes".
type Store struct {
	Client *redis.Client
	key    string

	bcast *docstore.Broadcaster
	// pubMu orders snapshot reads with their publication.
	pubMu sync.Mutex

	mu        sync.Mutex
	onErrors  map[int]docstore.ErrorFunc
	nextErrID int
	listen    sync.Once
	listenErr error
	cancel    context.CancelFunc
	done      chan struct{}
}

var (
	_ docstore.Collection = (*Store)(nil)
	_ docstore.Reader     = (*Store)(nil)
)

// New wraps an existing client. key is usually docstore.CollectionPath(appID).
func New(client *redis.Client, key string) *Store {
	return &Store{
		Client: client,
		key:    key,
		bcast:    docstore.NewBroadcaster(),
		onErrors: make(map[int]docstore.ErrorFunc),
		done:     make(chan struct{}),
	}
}

// NewFromURL parses a redis:// URL and pings the server.
func NewFromURL(ctx context.Context, url, key string) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, key), nil
}

func (s *Store) channel() string { return s.key + ":changes" }

// Subscribe queues the current snapshot and then every change. onError, when
// set, receives listener read failures until the subscription ends.
func (s *Store) Subscribe(ctx context.Context, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Subscription, error) {
	if err := s.startListener(); err != nil {
		return nil, err
	}

	s.pubMu.Lock()
	initial, err := s.snapshot(ctx)
	if err != nil {
		s.pubMu.Unlock()
		return nil, err
	}
	sub, err := s.bcast.Add(ctx, initial, onSnapshot)
	s.pubMu.Unlock()
	if err != nil {
		return nil, err
	}
	if onError == nil {
		return sub, nil
	}

	s.mu.Lock()
	id := s.nextErrID
	s.nextErrID++
	s.onErrors[id] = onError
	s.mu.Unlock()

	var once sync.Once
	drop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.onErrors, id)
			s.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, drop)
	return docstore.SubscriptionFunc(func() {
		stop()
		drop()
		sub.Unsubscribe()
	}), nil
}

// startListener subscribes to the change channel once per Store. The
// subscription is confirmed before any initial read, and the loop publishes
// under pubMu, so a change after that read always reaches the subscriber.
func (s *Store) startListener() error {
	s.listen.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		ps := s.Client.Subscribe(ctx, s.channel())
		if _, err := ps.Receive(ctx); err != nil {
			cancel()
			_ = ps.Close()
			s.listenErr = fmt.Errorf("subscribe %s: %w", s.channel(), err)
			close(s.done)
			return
		}
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		go s.loop(ctx, ps)
	})
	return s.listenErr
}

func (s *Store) loop(ctx context.Context, ps *redis.PubSub) {
	defer close(s.done)
	defer ps.Close()
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := s.publish(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.reportError(err)
			}
		}
	}
}

func (s *Store) publish(ctx context.Context) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	docs, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	s.bcast.Publish(docs)
	return nil
}

func (s *Store) reportError(err error) {
	s.mu.Lock()
	fns := make([]docstore.ErrorFunc, 0, len(s.onErrors))
	for _, fn := range s.onErrors {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// Put stores fields as JSON under id and announces the change.
func (s *Store) Put(ctx context.Context, id string, fields docstore.Fields) error {
	if strings.TrimSpace(id) == "" {
		return docstore.ErrEmptyID
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	_, err = s.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key, id, b)
		p.Publish(ctx, s.channel(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", id, err)
	}
	return nil
}

// Remove deletes id and announces the change only if something was removed.
func (s *Store) Remove(ctx context.Context, id string) error {
	n, err := s.Client.HDel(ctx, s.key, id).Result()
	if err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	if n == 0 {
		return nil
	}
	if err := s.Client.Publish(ctx, s.channel(), id).Err(); err != nil {
		return fmt.Errorf("announce remove %s: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (docstore.Document, error) {
	raw, err := s.Client.HGet(ctx, s.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Document{}, fmt.Errorf("get %s: %w", id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", id, err)
	}
	f, err := decode(raw)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s: %w", id, err)
	}
	return docstore.Document{ID: id, Fields: f}, nil
}

// Close stops the change listener, every subscriber and the client.
func (s *Store) Close() error {
	s.bcast.Close()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-s.done
	}
	return s.Client.Close()
}

func (s *Store) snapshot(ctx context.Context) ([]docstore.Document, error) {
	all, err := s.Client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		f, err := decode([]byte(all[id]))
		if err != nil {
			// Keep the document visible; the record adapter drops what it cannot read.
			f = docstore.Fields{}
		}
		docs = append(docs, docstore.Document{ID: id, Fields: f})
	}
	return docs, nil
}

func decode(raw []byte) (docstore.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var f docstore.Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f, nil
}
