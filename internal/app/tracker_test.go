package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mahjong/internal/auth"
	"mahjong/internal/core"
	"mahjong/internal/docstore"
)

type fakeSource struct {
	mu           sync.Mutex
	onRecords    func([]core.Record)
	onError      func(error)
	subscribed   chan struct{}
	unsubscribed chan struct{}
	err          error
	failures     int
	attempts     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subscribed: make(chan struct{}), unsubscribed: make(chan struct{})}
}

func (f *fakeSource) Subscribe(_ context.Context, onRecords func([]core.Record), onError func(error)) (docstore.Subscription, error) {
	f.mu.Lock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, f.err
	}
	f.onRecords, f.onError = onRecords, onError
	f.mu.Unlock()
	close(f.subscribed)
	return docstore.SubscriptionFunc(func() { close(f.unsubscribed) }), nil
}

func (f *fakeSource) push(rs []core.Record) {
	f.mu.Lock()
	fn := f.onRecords
	f.mu.Unlock()
	fn(rs)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

var jan7 = time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

func TestTrackerAppliesSnapshots(t *testing.T) {
	src := newFakeSource()
	tr := NewTracker(src, WithNow(func() time.Time { return jan7 }))
	assert.Equal(t, core.YearMonth{Year: 2026, Month: 1}, tr.State().Month)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, &auth.Session{UserID: "u"}) }()
	<-src.subscribed

	src.push([]core.Record{rec("2", "2026-01-05", core.Win, 300, 30), rec("1", "2026-01-07", core.Loss, 100, 0)})
	<-tr.Loaded()

	d := tr.Dashboard()
	assert.True(t, d.Loaded)
	assert.Equal(t, int64(17000), d.MonthlyNet.Cents)

	src.push([]core.Record{rec("2", "2026-01-05", core.Win, 300, 30)})
	d = tr.Dashboard()
	assert.Equal(t, int64(27000), d.MonthlyNet.Cents, "memo must not survive a new snapshot")

	src.fail(errors.New("permission denied"))
	st := tr.State()
	assert.False(t, st.Loaded)
	assert.Empty(t, st.Records)

	cancel()
	require.NoError(t, <-done)
	<-src.unsubscribed
}

func TestTrackerWithoutSessionDoesNotSubscribe(t *testing.T) {
	src := newFakeSource()
	tr := NewTracker(src, WithNow(func() time.Time { return jan7 }))
	err := tr.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, tr.State().Loaded)
	select {
	case <-src.subscribed:
		t.Fatal("subscribed without a session")
	default:
	}
}

func TestTrackerSubscribeErrorKeepsRunning(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("unavailable")
	src.failures = 1 << 30
	tr := NewTracker(src, WithNow(func() time.Time { return jan7 }), WithRetryBackoff(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, &auth.Session{UserID: "u"}) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.attempts >= 3
	}, 2*time.Second, time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Run returned while retrying: %v", err)
	default:
	}
	st := tr.State()
	assert.False(t, st.Loaded)
	assert.Empty(t, st.Records)
	assert.ErrorContains(t, st.LoadError, "unavailable")

	cancel()
	assert.NoError(t, <-done)
}

func TestTrackerSubscribeRecoversAfterFailures(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("unavailable")
	src.failures = 2
	tr := NewTracker(src, WithNow(func() time.Time { return jan7 }), WithRetryBackoff(time.Millisecond, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, &auth.Session{UserID: "u"}) }()
	<-src.subscribed

	src.push([]core.Record{rec("1", "2026-01-07", core.Win, 100, 0)})
	<-tr.Loaded()
	st := tr.State()
	assert.True(t, st.Loaded)
	assert.NoError(t, st.LoadError)
	assert.Len(t, st.Records, 1)

	cancel()
	require.NoError(t, <-done)
	<-src.unsubscribed
	assert.Equal(t, 3, src.attempts)
}

func TestTrackerNavigationAndMemo(t *testing.T) {
	src := newFakeSource()
	tr := NewTracker(src, WithNow(func() time.Time { return jan7 }))

	assert.Equal(t, core.YearMonth{Year: 2025, Month: 12}, tr.PrevMonth().Month)
	assert.Equal(t, core.YearMonth{Year: 2026, Month: 1}, tr.NextMonth().Month)
	assert.Equal(t, core.YearMonth{Year: 2026, Month: 6}, tr.SetMonth(core.YearMonth{Year: 2026, Month: 6}).Month)

	_ = tr.DashboardFor(core.YearMonth{Year: 2026, Month: 1})
	_ = tr.DashboardFor(core.YearMonth{Year: 2026, Month: 1})
	st := tr.Memo().Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, 1, st.Size)
}
