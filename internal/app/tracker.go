package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mahjong/internal/auth"
	"mahjong/internal/cache"
	"mahjong/internal/core"
	"mahjong/internal/docstore"
	"mahjong/internal/log"
)

// ErrNoSession is returned by Run when identity could not be established.
var ErrNoSession = errors.New("no session established")

// RecordSource is the subscription side of the record adapter.
type RecordSource interface {
	Subscribe(ctx context.Context, onRecords func([]core.Record), onError func(error)) (docstore.Subscription, error)
}

// Tracker keeps the latest State current from a live record subscription
// and serves dashboards for any month.
type Tracker struct {
	source RecordSource
	state  atomic.Pointer[State]
	now    func() time.Time
	memo   *cache.LRUCache[Dashboard]
	logger *log.Logger

	retryMin time.Duration
	retryMax time.Duration

	// mu serializes transitions so concurrent snapshot and navigation
	// updates cannot lose each other.
	mu sync.Mutex

	loadedOnce chan struct{}
	loadedFlag sync.Once
}

type TrackerOption func(*Tracker)

func WithNow(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func WithTrackerLogger(l *log.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WithRetryBackoff bounds the wait between subscription attempts.
func WithRetryBackoff(initial, limit time.Duration) TrackerOption {
	return func(t *Tracker) { t.retryMin, t.retryMax = initial, limit }
}

// WithMemo sets the dashboard memo cache.
func WithMemo(c *cache.LRUCache[Dashboard]) TrackerOption {
	return func(t *Tracker) { t.memo = c }
}

// NewTracker starts on the month containing now.
func NewTracker(source RecordSource, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		source:     source,
		now:        time.Now,
		memo:       cache.NewLRUCache[Dashboard](32, 10*time.Minute),
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentApp),
		retryMin:   time.Second,
		retryMax:   time.Minute,
		loadedOnce: make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	s := InitialState(core.YearMonthOf(t.now()))
	t.state.Store(&s)
	return t
}

// Memo exposes the dashboard cache for periodic cleanup.
func (t *Tracker) Memo() *cache.LRUCache[Dashboard] { return t.memo }

// State returns the current snapshot.
func (t *Tracker) State() State {
	return *t.state.Load()
}

func (t *Tracker) update(fn func(State) State) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := fn(*t.state.Load())
	t.state.Store(&next)
	return next
}

// Run subscribes to records and applies every snapshot until ctx ends.
// A nil session means identity failed; nothing is subscribed. A failed
// subscribe leaves the state not loaded and is retried with backoff, so Run
// only returns once ctx ends.
func (t *Tracker) Run(ctx context.Context, session *auth.Session) error {
	if session == nil {
		t.update(func(s State) State { return s.WithLoadFailure(ErrNoSession) })
		return ErrNoSession
	}

	wait := t.retryMin
	for {
		sub, err := t.source.Subscribe(ctx, t.apply, t.fail)
		if err == nil {
			t.logger.InfoContext(ctx, "Subscribed to records", log.FieldOperation, log.OpSubscribe, "user_id", session.UserID)
			<-ctx.Done()
			sub.Unsubscribe()
			return nil
		}
		t.fail(fmt.Errorf("subscribe: %w", err))
		t.logger.WarnContext(ctx, "Retrying record subscription", "backoff", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		wait = min(wait*2, t.retryMax)
	}
}

func (t *Tracker) apply(records []core.Record) {
	s := t.update(func(s State) State { return s.WithSnapshot(records) })
	t.memo.Purge()
	t.loadedFlag.Do(func() { close(t.loadedOnce) })
	t.logger.Debug("Applied record snapshot", log.FieldCount, len(records), "version", s.Version)
}

func (t *Tracker) fail(err error) {
	t.update(func(s State) State { return s.WithLoadFailure(err) })
	t.memo.Purge()
	t.logger.Error("Record subscription failed", log.FieldError, err)
}

// Loaded is closed after the first snapshot has been applied.
func (t *Tracker) Loaded() <-chan struct{} { return t.loadedOnce }

func (t *Tracker) SetMonth(m core.YearMonth) State {
	return t.update(func(s State) State { return s.WithMonth(m) })
}

func (t *Tracker) NextMonth() State {
	return t.update(func(s State) State { return s.NextMonth() })
}

func (t *Tracker) PrevMonth() State {
	return t.update(func(s State) State { return s.PrevMonth() })
}

// Dashboard summarizes the tracker's current month.
func (t *Tracker) Dashboard() Dashboard {
	s := t.State()
	return t.DashboardFor(s.Month)
}

// DashboardFor summarizes any month against the current records. Results are
// memoized per record version and month.
func (t *Tracker) DashboardFor(month core.YearMonth) Dashboard {
	s := t.State()
	today := core.DateOf(t.now())
	key := fmt.Sprintf("%d:%s:%s", s.Version, month, today.ISO())
	if d, ok := t.memo.Get(key); ok {
		return d
	}
	d := Summarize(s.Records, month, today)
	d.Loaded = s.Loaded
	t.memo.Set(key, d)
	return d
}
