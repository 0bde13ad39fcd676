package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mahjong/internal/amqp"
	"mahjong/internal/docstore"
)

// ChangePublisher announces record writes to other processes.
type ChangePublisher interface {
	PublishRecordChange(ctx context.Context, id string, op amqp.ChangeOp, collection string) error
}

// RecordService writes through to the store first and then announces the
// change. A failed announcement never fails the write; the worker's sweep
// picks up anything that was not announced.
type RecordService struct {
	store      docstore.Collection
	publisher  ChangePublisher
	collection string
}

var _ docstore.Collection = (*RecordService)(nil)

// NewRecordService wraps store. publisher may be nil.
func NewRecordService(store docstore.Collection, publisher ChangePublisher, collection string) *RecordService {
	return &RecordService{
		store:      store,
		publisher:  publisher,
		collection: collection,
	}
}

func (s *RecordService) Subscribe(ctx context.Context, onSnapshot docstore.SnapshotFunc, onError docstore.ErrorFunc) (docstore.Subscription, error) {
	return s.store.Subscribe(ctx, onSnapshot, onError)
}

func (s *RecordService) Put(ctx context.Context, id string, fields docstore.Fields) error {
	if err := s.store.Put(ctx, id, fields); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	s.announce(ctx, id, amqp.OpPut)
	return nil
}

func (s *RecordService) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	s.announce(ctx, id, amqp.OpRemove)
	return nil
}

// Get reads through when the wrapped store supports it.
func (s *RecordService) Get(ctx context.Context, id string) (docstore.Document, error) {
	r, ok := s.store.(docstore.Reader)
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %s: %w", id, errors.ErrUnsupported)
	}
	return r.Get(ctx, id)
}

func (s *RecordService) announce(ctx context.Context, id string, op amqp.ChangeOp) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping change message", "id", id)
		return
	}
	if err := s.publisher.PublishRecordChange(ctx, id, op, s.collection); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message", "id", id, "op", op, "error", err)
	}
}
