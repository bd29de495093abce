package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"notifyhub/models"
	"notifyhub/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeHandle is a controllable realtime subscription.
type fakeHandle struct {
	records chan models.NotificationRecord
	done    chan struct{}
	once    sync.Once
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		records: make(chan models.NotificationRecord, 16),
		done:    make(chan struct{}),
	}
}

func (h *fakeHandle) Records() <-chan models.NotificationRecord { return h.records }
func (h *fakeHandle) Done() <-chan struct{}                     { return h.done }

func (h *fakeHandle) Close() error {
	h.drop()
	return nil
}

// drop simulates the transport failing underneath the subscriber.
func (h *fakeHandle) drop() {
	h.once.Do(func() {
		close(h.records)
		close(h.done)
	})
}

// fakeGateway is an in-memory gateway with injectable failures and a gate to
// hold the list fetch in flight.
type fakeGateway struct {
	mu sync.Mutex

	list    []models.NotificationRecord
	count   int
	listErr error
	countErr error

	markOneErr error
	markAllErr error
	clearErr   error

	markOneCalls []string
	markAllCalls int
	clearCalls   int
	listCalls    int

	subscribeErrs []error
	handles       []*fakeHandle
	unsubscribed  int

	listGate chan struct{} // when non-nil, FetchList blocks until closed
	markGate chan struct{} // when non-nil, MarkOneRead blocks until closed
}

func (g *fakeGateway) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.countErr != nil {
		return 0, g.countErr
	}
	return g.count, nil
}

func (g *fakeGateway) FetchList(ctx context.Context, userID string, limit int) ([]models.NotificationRecord, error) {
	g.mu.Lock()
	gate := g.listGate
	g.listCalls++
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]models.NotificationRecord, len(g.list))
	copy(out, g.list)
	return out, nil
}

func (g *fakeGateway) MarkOneRead(ctx context.Context, userID, userNotificationID string) error {
	g.mu.Lock()
	gate := g.markGate
	g.markOneCalls = append(g.markOneCalls, userNotificationID)
	err := g.markOneErr
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (g *fakeGateway) MarkAllRead(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markAllCalls++
	return g.markAllErr
}

func (g *fakeGateway) ClearRead(ctx context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearCalls++
	return g.clearErr
}

func (g *fakeGateway) Subscribe(ctx context.Context, userID string) (realtime.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.subscribeErrs) > 0 {
		err := g.subscribeErrs[0]
		g.subscribeErrs = g.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	h := newFakeHandle()
	g.handles = append(g.handles, h)
	return h, nil
}

func (g *fakeGateway) Unsubscribe(h realtime.Handle) error {
	g.mu.Lock()
	g.unsubscribed++
	g.mu.Unlock()
	if h != nil {
		return h.Close()
	}
	return nil
}

func (g *fakeGateway) lastHandle() *fakeHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.handles) == 0 {
		return nil
	}
	return g.handles[len(g.handles)-1]
}

func (g *fakeGateway) handleCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}

func rec(id string, createdAt time.Time, read bool) models.NotificationRecord {
	r := models.NotificationRecord{
		ID:                 id,
		UserNotificationID: "un-" + id,
		Type:               models.TypeInfo,
		Title:              "title " + id,
		Message:            "message " + id,
		CreatedAt:          createdAt,
	}
	if read {
		at := createdAt.Add(time.Minute)
		r.IsRead = true
		r.ReadAt = &at
	}
	return r
}

func newTestStore(gw *fakeGateway, opts Options) *Store {
	return New(models.Session{UserID: "u1"}, gw, nil, zap.NewNop(), opts)
}

// eventually polls cond for up to a second.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never met: %s", msg)
}

func TestInitialFetchPopulatesStore(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list: []models.NotificationRecord{
			rec("a", base, false),
			rec("b", base.Add(-time.Minute), false),
			rec("c", base.Add(-2*time.Minute), true),
		},
		count: 2,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()

	require.NoError(t, s.Refresh(context.Background()))

	views := s.Snapshot()
	require.Len(t, views, 3)
	assert.Equal(t, 2, s.UnreadCount())
	// Newest first.
	assert.Equal(t, "a", views[0].ID)
	assert.Equal(t, "b", views[1].ID)
	assert.Equal(t, "c", views[2].ID)
}

func TestFetchFailureKeepsLastKnownGood(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list:  []models.NotificationRecord{rec("a", base, false)},
		count: 1,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()

	require.NoError(t, s.Refresh(context.Background()))

	gw.mu.Lock()
	gw.listErr = errors.New("network down")
	gw.mu.Unlock()

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, s.Snapshot(), 1)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestPushDuringInFlightFetchSurvivesMerge(t *testing.T) {
	base := time.Now()
	gate := make(chan struct{})
	gw := &fakeGateway{
		list: []models.NotificationRecord{
			rec("a", base, false),
			rec("b", base.Add(-time.Minute), false),
			rec("c", base.Add(-2*time.Minute), true),
		},
		count:    2,
		listGate: gate,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()

	openDone := make(chan error, 1)
	go func() { openDone <- s.Open(context.Background()) }()

	// Wait for the subscription, then push X while the fetch is blocked.
	eventually(t, func() bool { return gw.handleCount() > 0 }, "subscription established")
	gw.lastHandle().records <- rec("x", base.Add(time.Second), false)
	eventually(t, func() bool { return len(s.Snapshot()) == 1 }, "push ingested")

	close(gate)
	require.NoError(t, <-openDone)

	views := s.Snapshot()
	require.Len(t, views, 4)
	assert.Equal(t, "x", views[0].ID, "pushed record not dropped by the fetch merge")
	assert.Equal(t, 3, s.UnreadCount(), "fetched count plus the in-flight push")
}

func TestPushIncrementsExactlyOnce(t *testing.T) {
	s := newTestStore(&fakeGateway{}, Options{})
	defer s.Close()

	x := rec("x", time.Now(), false)
	s.ingestPush(x)
	assert.Len(t, s.Snapshot(), 1)
	assert.Equal(t, 1, s.UnreadCount())

	// Duplicate delivery of the same id must not double-count.
	s.ingestPush(x)
	assert.Len(t, s.Snapshot(), 1)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestOutOfOrderPushSortsByCreatedAt(t *testing.T) {
	base := time.Now()
	s := newTestStore(&fakeGateway{}, Options{})
	defer s.Close()

	s.ingestPush(rec("newer", base, false))
	s.ingestPush(rec("older", base.Add(-time.Hour), false))

	views := s.Snapshot()
	require.Len(t, views, 2)
	assert.Equal(t, "newer", views[0].ID)
	assert.Equal(t, "older", views[1].ID)
}

func TestMarkOneRead(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list:  []models.NotificationRecord{rec("a", base, false)},
		count: 1,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	s.MarkOneRead(context.Background(), "a")

	views := s.Snapshot()
	require.True(t, views[0].IsRead)
	require.NotNil(t, views[0].ReadAt)
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, []string{"un-a"}, gw.markOneCalls)
	assert.Equal(t, models.SyncClean, views[0].Sync)
}

func TestMarkOneReadTwiceDecrementsOnce(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list: []models.NotificationRecord{
			rec("a", base, false),
			rec("b", base.Add(-time.Minute), false),
		},
		count: 2,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	s.MarkOneRead(context.Background(), "a")
	s.MarkOneRead(context.Background(), "a")

	assert.Equal(t, 1, s.UnreadCount())
	assert.Len(t, gw.markOneCalls, 1, "already-read record issues no second write")
}

func TestCounterNeverGoesNegative(t *testing.T) {
	base := time.Now()
	// Server-side count says zero even though an unread record is listed.
	gw := &fakeGateway{
		list:  []models.NotificationRecord{rec("a", base, false)},
		count: 0,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	s.MarkOneRead(context.Background(), "a")
	s.MarkOneRead(context.Background(), "a")

	assert.Equal(t, 0, s.UnreadCount())
}

func TestReadAtConsistency(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list: []models.NotificationRecord{
			rec("a", base, false),
			rec("b", base.Add(-time.Minute), true),
			rec("c", base.Add(-2*time.Minute), false),
		},
		count: 2,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	check := func() {
		for _, v := range s.Snapshot() {
			assert.Equal(t, v.IsRead, v.ReadAt != nil,
				"record %s: is_read and read_at must agree", v.ID)
		}
	}

	check()
	s.MarkOneRead(context.Background(), "a")
	check()
	s.MarkAllRead(context.Background())
	check()
}

func TestMarkAllReadIdempotent(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list: []models.NotificationRecord{
			rec("a", base, false),
			rec("b", base.Add(-time.Minute), true),
		},
		count: 1,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	s.MarkAllRead(context.Background())
	first := s.Snapshot()
	assert.Equal(t, 0, s.UnreadCount())

	s.MarkAllRead(context.Background())
	second := s.Snapshot()
	assert.Equal(t, 0, s.UnreadCount())

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].IsRead, second[i].IsRead)
		assert.Equal(t, first[i].ReadAt, second[i].ReadAt, "second call must not re-stamp read_at")
	}
	assert.Equal(t, 1, gw.markAllCalls, "no-op second call issues no write")
}

func TestClearReadSelectivity(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list: []models.NotificationRecord{
			rec("b", base, false),
			rec("c", base.Add(-time.Minute), true),
			rec("d", base.Add(-2*time.Minute), true),
		},
		count: 1,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	require.NoError(t, s.ClearRead(context.Background(), true))

	views := s.Snapshot()
	require.Len(t, views, 1)
	assert.Equal(t, "b", views[0].ID)
	assert.False(t, views[0].IsRead)
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, 1, gw.clearCalls)
}

func TestClearReadRequiresConfirmation(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list:  []models.NotificationRecord{rec("c", base, true)},
		count: 0,
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	err := s.ClearRead(context.Background(), false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Len(t, s.Snapshot(), 1, "unconfirmed clear must not touch the list")
	assert.Equal(t, 0, gw.clearCalls)
}

func TestMarkWriteFailureKeepsOptimisticState(t *testing.T) {
	base := time.Now()
	gw := &fakeGateway{
		list:       []models.NotificationRecord{rec("a", base, false)},
		count:      1,
		markOneErr: errors.New("network failure"),
	}
	s := newTestStore(gw, Options{})
	defer s.Close()
	require.NoError(t, s.Refresh(context.Background()))

	s.MarkOneRead(context.Background(), "a")

	views := s.Snapshot()
	require.True(t, views[0].IsRead, "optimistic state is never rolled back")
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, models.SyncFailed, views[0].Sync)

	// Manual retry after the failure clears.
	gw.mu.Lock()
	gw.markOneErr = nil
	gw.mu.Unlock()
	s.RetrySync(context.Background(), "a")

	views = s.Snapshot()
	assert.Equal(t, models.SyncClean, views[0].Sync)
	assert.Equal(t, []string{"un-a", "un-a"}, gw.markOneCalls)
}

func TestRecentFlagExpires(t *testing.T) {
	s := newTestStore(&fakeGateway{}, Options{RecentWindow: 30 * time.Millisecond})
	defer s.Close()

	x := rec("x", time.Now(), false)
	s.ingestPush(x)
	require.True(t, s.Snapshot()[0].Recent)

	eventually(t, func() bool { return !s.Snapshot()[0].Recent }, "recent flag cleared")

	// A duplicate delivery must not re-arm the flag.
	s.ingestPush(x)
	assert.False(t, s.Snapshot()[0].Recent)
}

func TestPushFiresAlertSink(t *testing.T) {
	sink := &countingSink{}
	gw := &fakeGateway{}
	s := New(models.Session{UserID: "u1"}, gw, sink, zap.NewNop(), Options{})
	defer s.Close()

	s.ingestPush(rec("x", time.Now(), false))
	eventually(t, func() bool { return sink.calls() == 1 }, "alert sink fired")

	// A failing sink stays silent.
	sink.setErr(errors.New("permission denied"))
	s.ingestPush(rec("y", time.Now(), false))
	eventually(t, func() bool { return sink.calls() == 2 }, "alert sink fired despite error")
	assert.Len(t, s.Snapshot(), 2)
}

func TestCloseDropsInFlightResolution(t *testing.T) {
	base := time.Now()
	gate := make(chan struct{})
	gw := &fakeGateway{
		list:     []models.NotificationRecord{rec("a", base, false)},
		count:    1,
		markGate: gate,
	}
	s := newTestStore(gw, Options{})
	require.NoError(t, s.Refresh(context.Background()))

	done := make(chan struct{})
	go func() {
		s.MarkOneRead(context.Background(), "a")
		close(done)
	}()
	eventually(t, func() bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return len(gw.markOneCalls) == 1
	}, "write issued")

	s.Close()
	close(gate)
	<-done

	assert.Empty(t, s.Snapshot(), "state discarded at teardown")
	assert.Equal(t, 0, s.UnreadCount())
}

func TestCloseIsIdempotentAndReleasesSubscription(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestStore(gw, Options{})
	require.NoError(t, s.Open(context.Background()))
	eventually(t, func() bool { return gw.handleCount() == 1 }, "subscription established")
	h := gw.lastHandle()

	s.Close()
	s.Close()

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("subscription not released on teardown")
	}

	// Pushes after teardown are ignored.
	s.ingestPush(rec("late", time.Now(), false))
	assert.Empty(t, s.Snapshot())
	assert.Equal(t, 0, s.UnreadCount())
}

type countingSink struct {
	mu  sync.Mutex
	n   int
	err error
}

func (c *countingSink) Notify(ctx context.Context, userID, title, body string, data map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.err
}

func (c *countingSink) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *countingSink) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}
