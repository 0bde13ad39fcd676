// Package docstore defines the document-collection ports the record adapter
// talks to. Backends live in subpackages (memory, redis) and in
// internal/storage (sqlite).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type (
	// Fields is the loosely typed payload of a stored document.
	Fields map[string]any

	// Document is one stored document together with its identifier.
	Document struct {
		ID     string
		Fields Fields
	}

	// SnapshotFunc receives the full, unordered document set after every change.
	SnapshotFunc func(docs []Document)

	// ErrorFunc receives subscription failures. Delivery may continue afterwards.
	ErrorFunc func(err error)

	// Subscription stops snapshot delivery when cancelled.
	Subscription interface {
		Unsubscribe()
	}

	// Collection is a push-based document collection.
	Collection interface {
		// Subscribe delivers an initial snapshot and one per change until
		// the subscription is cancelled or ctx ends.
		Subscribe(ctx context.Context, onSnapshot SnapshotFunc, onError ErrorFunc) (Subscription, error)
		// Put creates or replaces the document with the given id.
		Put(ctx context.Context, id string, fields Fields) error
		// Remove deletes by id. Removing a missing id is not an error.
		Remove(ctx context.Context, id string) error
	}

	// Reader is implemented by backends that can read a single document.
	Reader interface {
		Get(ctx context.Context, id string) (Document, error)
	}
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("collection closed")
	ErrEmptyID  = errors.New("empty document id")
)

// CollectionPath returns the record collection reference for an application id.
func CollectionPath(appID string) string {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		appID = "default"
	}
	return fmt.Sprintf("artifacts/%s/public/data/records", appID)
}

// SubscriptionFunc adapts a cancel function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// Clone copies fields so callers cannot mutate stored state.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
