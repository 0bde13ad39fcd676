package docstore

import (
	"context"
	"fmt"
)

// ReadAll takes one snapshot of coll by subscribing and cancelling after the
// first delivery.
func ReadAll(ctx context.Context, coll Collection) ([]Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snap := make(chan []Document, 1)
	failed := make(chan error, 1)
	sub, err := coll.Subscribe(ctx, func(docs []Document) {
		select {
		case snap <- docs:
		default:
		}
	}, func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	defer sub.Unsubscribe()

	select {
	case docs := <-snap:
		return docs, nil
	case err := <-failed:
		return nil, fmt.Errorf("read collection: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
