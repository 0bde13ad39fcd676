package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mahjong/internal/docstore"

	_ "modernc.org/sqlite"
)

// Sync states of a stored document relative to the Sheets mirror.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
	// SyncSkipped marks a version the mirror cannot represent. The sweep
	// ignores it until the document is written again.
	SyncSkipped = "skipped"
)

// SQLiteRepository is a document collection persisted in one SQLite table.
// Removed documents are kept as tombstones until the mirror has seen them.
type SQLiteRepository struct {
	db         *sql.DB
	collection string
	bcast      *docstore.Broadcaster

	// pubMu orders snapshot reads with their publication.
	pubMu sync.Mutex
}

var (
	_ docstore.Collection = (*SQLiteRepository)(nil)
	_ docstore.Reader     = (*SQLiteRepository)(nil)
)

// PendingChange is a document whose latest state has not reached the mirror.
// Version identifies the write it was read at.
type PendingChange struct {
	ID        string
	Fields    docstore.Fields
	Deleted   bool
	UpdatedAt time.Time
	Version   string
}

func NewSQLiteRepository(dbPath, collection string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps modernc from returning SQLITE_BUSY under concurrent puts.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:         db,
		collection: collection,
		bcast:      docstore.NewBroadcaster(),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	r.bcast.Close()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Subscribe(ctx context.Context, onSnapshot docstore.SnapshotFunc, _ docstore.ErrorFunc) (docstore.Subscription, error) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	initial, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return r.bcast.Add(ctx, initial, onSnapshot)
}

// Put upserts id, clearing any tombstone and queueing it for the mirror.
func (r *SQLiteRepository) Put(ctx context.Context, id string, fields docstore.Fields) error {
	if strings.TrimSpace(id) == "" {
		return docstore.ErrEmptyID
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	now := timestamp(time.Now())
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at, updated_at, deleted, sync_status)
		VALUES (?, ?, ?, ?, ?, 0, 'pending')
		ON CONFLICT (collection, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at,
			deleted = 0,
			sync_status = 'pending'`,
		r.collection, id, string(b), now, now)
	if err != nil {
		return fmt.Errorf("put document %s: %w", id, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite", "collection", r.collection, "id", id)
	r.notify(ctx)
	return nil
}

// Remove tombstones id. Missing or already removed ids are a no-op.
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET deleted = 1, sync_status = 'pending', updated_at = ?
		WHERE collection = ? AND id = ? AND deleted = 0`,
		timestamp(time.Now()), r.collection, id)
	if err != nil {
		return fmt.Errorf("remove document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	slog.DebugContext(ctx, "Document removed from SQLite", "collection", r.collection, "id", id)
	r.notify(ctx)
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (docstore.Document, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ? AND deleted = 0`,
		r.collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("get document %s: %w", id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	f, err := decodeFields(raw)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return docstore.Document{ID: id, Fields: f}, nil
}

// GetPendingChanges returns up to limit documents (live or tombstoned) that
// still have to reach the mirror, oldest change first. Skipped versions are
// left out.
func (r *SQLiteRepository) GetPendingChanges(ctx context.Context, limit int) ([]PendingChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fields, deleted, updated_at FROM documents
		WHERE collection = ? AND sync_status IN ('pending', 'error')
		ORDER BY updated_at, id
		LIMIT ?`, r.collection, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending changes: %w", err)
	}
	defer rows.Close()

	var out []PendingChange
	for rows.Next() {
		pc, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending change: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// GetChange returns the stored state of id, tombstones included.
func (r *SQLiteRepository) GetChange(ctx context.Context, id string) (PendingChange, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, fields, deleted, updated_at FROM documents WHERE collection = ? AND id = ?`,
		r.collection, id)
	pc, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingChange{}, fmt.Errorf("get change %s: %w", id, docstore.ErrNotFound)
	}
	if err != nil {
		return PendingChange{}, fmt.Errorf("get change %s: %w", id, err)
	}
	return pc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChange(row scanner) (PendingChange, error) {
	var (
		pc      PendingChange
		raw     string
		deleted int
	)
	if err := row.Scan(&pc.ID, &raw, &deleted, &pc.Version); err != nil {
		return PendingChange{}, err
	}
	pc.Deleted = deleted != 0
	pc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, pc.Version)
	f, err := decodeFields(raw)
	if err != nil {
		f = docstore.Fields{}
	}
	pc.Fields = f
	return pc, nil
}

// MarkSynced records that the mirror has the state of id written at
// version. Tombstones are purged at this point. A newer write since version
// stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ? AND deleted = 1 AND updated_at = ?`,
		r.collection, id, version); err != nil {
		return fmt.Errorf("purge tombstone %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET sync_status = 'synced' WHERE collection = ? AND id = ? AND updated_at = ?`,
		r.collection, id, version)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "Document changed since mirroring, left pending", "id", id)
		return nil
	}
	slog.InfoContext(ctx, "Document marked as synced", "id", id)
	return nil
}

// MarkSyncError flags id at version so the next sweep retries it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id, version string) error {
	return r.setStatus(ctx, id, version, SyncError)
}

// MarkSkipped takes id at version out of the sweep until it is written again.
func (r *SQLiteRepository) MarkSkipped(ctx context.Context, id, version string) error {
	return r.setStatus(ctx, id, version, SyncSkipped)
}

func (r *SQLiteRepository) setStatus(ctx context.Context, id, version, status string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE documents SET sync_status = ? WHERE collection = ? AND id = ? AND updated_at = ?`,
		status, r.collection, id, version); err != nil {
		return fmt.Errorf("mark %s %s: %w", status, id, err)
	}
	slog.WarnContext(ctx, "Document sync status changed", "id", id, "status", status)
	return nil
}

// SyncStatus reports the mirror state of id, including tombstones.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT sync_status FROM documents WHERE collection = ? AND id = ?`,
		r.collection, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync status %s: %w", id, docstore.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("sync status %s: %w", id, err)
	}
	return status, nil
}

// notify publishes the current snapshot. Reads and publications are
// serialized so a slower read can never overwrite a newer snapshot. The
// write has already committed, so caller cancellation does not stop it.
func (r *SQLiteRepository) notify(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	if r.bcast.Len() == 0 {
		return
	}
	docs, err := r.snapshot(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read snapshot after change", "error", err)
		return
	}
	r.bcast.Publish(docs)
}

func (r *SQLiteRepository) snapshot(ctx context.Context) ([]docstore.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? AND deleted = 0 ORDER BY id`,
		r.collection)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer rows.Close()

	docs := []docstore.Document{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		f, err := decodeFields(raw)
		if err != nil {
			f = docstore.Fields{}
		}
		docs = append(docs, docstore.Document{ID: id, Fields: f})
	}
	return docs, rows.Err()
}

func decodeFields(raw string) (docstore.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var f docstore.Fields
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return f, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
