package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"mahjong/internal/docstore"
)

// Store is an in-process document collection with live subscriptions.
type Store struct {
	mu    sync.Mutex
	docs  map[string]docstore.Fields
	bcast *docstore.Broadcaster
}

var (
	_ docstore.Collection = (*Store)(nil)
	_ docstore.Reader     = (*Store)(nil)
)

func New(seed ...docstore.Document) *Store {
	s := &Store{
		docs:  make(map[string]docstore.Fields),
		bcast: docstore.NewBroadcaster(),
	}
	for _, d := range seed {
		if strings.TrimSpace(d.ID) == "" {
			continue
		}
		s.docs[d.ID] = d.Fields.Clone()
	}
	return s
}

// NewFromFile seeds the store from a JSON object keyed by document id.
// A missing or unreadable file yields an empty store.
func NewFromFile(path string) *Store {
	b, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	var raw map[string]docstore.Fields
	if err := json.Unmarshal(b, &raw); err != nil {
		return New()
	}
	seed := make([]docstore.Document, 0, len(raw))
	for id, f := range raw {
		seed = append(seed, docstore.Document{ID: id, Fields: f})
	}
	return New(seed...)
}

// Subscribe registers onSnapshot with the current snapshot queued first.
// Snapshots are built and published under the store lock, so subscribers
// see them in write order.
func (s *Store) Subscribe(ctx context.Context, onSnapshot docstore.SnapshotFunc, _ docstore.ErrorFunc) (docstore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bcast.Add(ctx, s.snapshotLocked(), onSnapshot)
}

// Put stores a copy of fields under id, replacing any previous document.
func (s *Store) Put(_ context.Context, id string, fields docstore.Fields) error {
	if strings.TrimSpace(id) == "" {
		return docstore.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = fields.Clone()
	s.bcast.Publish(s.snapshotLocked())
	return nil
}

// Remove deletes id. Unknown ids are ignored and trigger no snapshot.
func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	s.bcast.Publish(s.snapshotLocked())
	return nil
}

func (s *Store) Get(_ context.Context, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.docs[id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %s: %w", id, docstore.ErrNotFound)
	}
	return docstore.Document{ID: id, Fields: f.Clone()}, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *Store) Close() error {
	s.bcast.Close()
	return nil
}

func (s *Store) snapshotLocked() []docstore.Document {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, docstore.Document{ID: id, Fields: s.docs[id].Clone()})
	}
	return out
}
