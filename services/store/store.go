// Package store maintains the resident, ordered, deduplicated set of
// notifications for one authenticated session. It reconciles two ingestion
// paths (bulk fetch, realtime push) through an upsert-by-id merge and applies
// read-state mutations optimistically: local state changes first, the gateway
// write follows, and a failed write is flagged per record instead of rolled
// back.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"notifyhub/models"
	"notifyhub/services/alert"
	"notifyhub/services/gateway"

	"go.uber.org/zap"
)

// ErrConfirmationRequired is returned by ClearRead when the caller has not
// confirmed the destructive operation.
var ErrConfirmationRequired = errors.New("clear read requires confirmation")

// Options tunes a store. Zero values fall back to defaults.
type Options struct {
	// ListLimit bounds the initial bulk fetch.
	ListLimit int
	// RecentWindow is how long a pushed record keeps its "recently arrived"
	// flag. Pure presentation state, never touches is_read.
	RecentWindow time.Duration
	// BackoffInitial and BackoffMax bound the reconnect backoff of the
	// realtime link.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

func (o *Options) applyDefaults() {
	if o.ListLimit <= 0 {
		o.ListLimit = 50
	}
	if o.RecentWindow <= 0 {
		o.RecentWindow = 3 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
}

// record is a resident entry: the joined row plus session-local state.
type record struct {
	models.NotificationRecord
	sync models.SyncState
	// pushedAt is zero for fetched records and set to the ingestion time for
	// pushed ones. Used by the fetch merge to tell "arrived during the
	// in-flight fetch" from "older than the fetch window".
	pushedAt    time.Time
	recentUntil time.Time
}

// RecordView is the presentation shape: the record plus its transient flags.
type RecordView struct {
	models.NotificationRecord
	Recent bool             `json:"recent"`
	Sync   models.SyncState `json:"-"`
}

// Store holds one session's notifications. All state is guarded by mu; the
// gateway is never called while holding it.
type Store struct {
	session models.Session
	gw      gateway.Gateway
	alert   alert.AlertSink
	logger  *zap.Logger
	opts    Options

	mu      sync.Mutex
	records []*record // ordered createdAt descending
	index   map[string]*record
	unread  int
	closed  bool

	link      *link
	closeOnce sync.Once
}

// New builds a store for the given session. The session is injected
// explicitly; two stores for the same user (two tabs) are independent views
// that each receive their own pushes. The alert sink may be alert.NoopSink.
func New(session models.Session, gw gateway.Gateway, sink alert.AlertSink, logger *zap.Logger, opts Options) *Store {
	opts.applyDefaults()
	if sink == nil {
		sink = alert.NoopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		session: session,
		gw:      gw,
		alert:   sink,
		logger:  logger,
		opts:    opts,
		index:   make(map[string]*record),
	}
	s.link = newLink(s)
	return s
}

// Open starts the realtime link and performs the initial bulk fetch. The
// fetch and the subscription race by design: records pushed while the fetch
// is in flight survive the merge. A fetch error leaves any already-resident
// state untouched and is returned so the caller can offer a retry.
func (s *Store) Open(ctx context.Context) error {
	s.link.start()
	return s.Refresh(ctx)
}

// Refresh issues FetchList and FetchUnreadCount concurrently and merges the
// result into the resident set. Also used as the poll fallback while the
// realtime link is down.
func (s *Store) Refresh(ctx context.Context) error {
	fetchStart := time.Now()

	var (
		wg      sync.WaitGroup
		list    []models.NotificationRecord
		count   int
		listErr error
		cntErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		list, listErr = s.gw.FetchList(ctx, s.session.UserID, s.opts.ListLimit)
	}()
	go func() {
		defer wg.Done()
		count, cntErr = s.gw.FetchUnreadCount(ctx, s.session.UserID)
	}()
	wg.Wait()

	if listErr != nil {
		s.logger.Warn("notification list fetch failed", zap.Error(listErr))
		return listErr
	}
	if cntErr != nil {
		s.logger.Warn("unread count fetch failed", zap.Error(cntErr))
		return cntErr
	}

	s.applyFetch(fetchStart, list, count)
	return nil
}

// applyFetch merges a fetch result into the resident set. The merge is
// monotonic: it never evicts a record pushed while the fetch was in flight
// and never flips a locally-read record back to unread.
func (s *Store) applyFetch(fetchStart time.Time, list []models.NotificationRecord, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	adjusted := count
	seen := make(map[string]bool, len(list))

	for i := range list {
		rec := list[i]
		seen[rec.ID] = true

		local, ok := s.index[rec.ID]
		if !ok {
			s.insertLocked(&record{NotificationRecord: rec})
			continue
		}

		// Content fields may have been edited server-side.
		local.Type = rec.Type
		local.Title = rec.Title
		local.Message = rec.Message
		local.CreatedAt = rec.CreatedAt
		local.UserNotificationID = rec.UserNotificationID

		switch {
		case local.IsRead && !rec.IsRead:
			// Optimistic local read the server has not confirmed yet; the
			// server-side count still includes it as unread.
			adjusted--
		case !local.IsRead && rec.IsRead:
			local.IsRead = true
			local.ReadAt = rec.ReadAt
			local.sync = models.SyncClean
		default:
			local.ReadAt = rec.ReadAt
		}
	}

	// Records pushed after the fetch started are not covered by the fetched
	// count; older residents beyond the fetch window already are.
	for _, local := range s.records {
		if seen[local.ID] {
			continue
		}
		if !local.IsRead && local.pushedAt.After(fetchStart) {
			adjusted++
		}
	}

	if adjusted < 0 {
		adjusted = 0
	}
	s.unread = adjusted
	s.sortLocked()
}

// ingestPush adds a pushed record to the resident set. Duplicate delivery of
// an already-resident id never double-counts and never re-arms the recently
// arrived flag.
func (s *Store) ingestPush(rec models.NotificationRecord) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if local, ok := s.index[rec.ID]; ok {
		local.Type = rec.Type
		local.Title = rec.Title
		local.Message = rec.Message
		s.mu.Unlock()
		return
	}

	now := time.Now()
	s.insertLocked(&record{
		NotificationRecord: rec,
		pushedAt:           now,
		recentUntil:        now.Add(s.opts.RecentWindow),
	})
	if !rec.IsRead {
		s.unread++
	}
	s.sortLocked()
	s.mu.Unlock()

	// Best-effort device alert, fire and forget.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.alert.Notify(ctx, s.session.UserID, rec.Title, rec.Message, map[string]string{
			"type": rec.Type,
			"id":   rec.ID,
		}); err != nil {
			s.logger.Debug("device alert failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}()
}

// MarkOneRead optimistically marks the record read, floors the counter at
// zero, and issues the gateway write. A failed write leaves local state in
// place and flags the record sync-failed; no error reaches the caller.
func (s *Store) MarkOneRead(ctx context.Context, id string) {
	s.mu.Lock()
	rec, ok := s.index[id]
	if !ok || s.closed || rec.IsRead {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	rec.IsRead = true
	rec.ReadAt = &now
	rec.sync = models.SyncPending
	if s.unread > 0 {
		s.unread--
	}
	userNotificationID := rec.UserNotificationID
	s.mu.Unlock()

	s.completeMarkWrite(id, s.gw.MarkOneRead(ctx, s.session.UserID, userNotificationID))
}

// MarkAllRead optimistically marks every resident record read and zeroes the
// counter, then issues the bulk gateway write. Idempotent.
func (s *Store) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	var transitioned []string
	for _, rec := range s.records {
		if rec.IsRead {
			continue
		}
		readAt := now
		rec.IsRead = true
		rec.ReadAt = &readAt
		rec.sync = models.SyncPending
		transitioned = append(transitioned, rec.ID)
	}
	s.unread = 0
	s.mu.Unlock()

	if len(transitioned) == 0 {
		return
	}

	err := s.gw.MarkAllRead(ctx, s.session.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, id := range transitioned {
		if rec, ok := s.index[id]; ok {
			if err != nil {
				rec.sync = models.SyncFailed
			} else {
				rec.sync = models.SyncClean
			}
		}
	}
	if err != nil {
		s.logger.Warn("mark all read write failed", zap.Error(err))
	}
}

// ClearRead removes every read record from the resident set and issues the
// gateway delete. The operation is destructive and irreversible, so the
// caller must pass confirmed=true; unread records are never touched.
func (s *Store) ClearRead(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	kept := s.records[:0]
	removed := 0
	for _, rec := range s.records {
		if rec.IsRead {
			delete(s.index, rec.ID)
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	s.mu.Unlock()

	if removed == 0 {
		return nil
	}
	if err := s.gw.ClearRead(ctx, s.session.UserID); err != nil {
		s.logger.Warn("clear read write failed", zap.Error(err))
	}
	return nil
}

// RetrySync re-issues the mark-read write for a record whose previous write
// failed.
func (s *Store) RetrySync(ctx context.Context, id string) {
	s.mu.Lock()
	rec, ok := s.index[id]
	if !ok || s.closed || rec.sync != models.SyncFailed || !rec.IsRead {
		s.mu.Unlock()
		return
	}
	rec.sync = models.SyncPending
	userNotificationID := rec.UserNotificationID
	s.mu.Unlock()

	s.completeMarkWrite(id, s.gw.MarkOneRead(ctx, s.session.UserID, userNotificationID))
}

// completeMarkWrite records the outcome of a mark-read gateway write. A
// resolution arriving after Close is dropped.
func (s *Store) completeMarkWrite(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	rec, ok := s.index[id]
	if !ok {
		return
	}
	if err != nil {
		rec.sync = models.SyncFailed
		s.logger.Warn("mark read write failed", zap.String("id", id), zap.Error(err))
		return
	}
	rec.sync = models.SyncClean
}

// Snapshot returns the presentation view of the resident set, newest first.
func (s *Store) Snapshot() []RecordView {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	views := make([]RecordView, 0, len(s.records))
	for _, rec := range s.records {
		views = append(views, RecordView{
			NotificationRecord: rec.NotificationRecord,
			Recent:             now.Before(rec.recentUntil),
			Sync:               rec.sync,
		})
	}
	return views
}

// UnreadCount returns the resident unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// LinkState reports the realtime subscription state.
func (s *Store) LinkState() LinkState {
	return s.link.State()
}

// Close tears the store down: the subscription closes exactly once and all
// resident state is discarded. Any in-flight gateway resolution that lands
// after Close is ignored. Safe to call multiple times.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.records = nil
		s.index = make(map[string]*record)
		s.unread = 0
		s.mu.Unlock()

		s.link.stop()
	})
}

// insertLocked adds rec to the resident slice and index. Caller holds mu and
// re-sorts afterwards if ordering matters.
func (s *Store) insertLocked(rec *record) {
	s.records = append(s.records, rec)
	s.index[rec.ID] = rec
}

// sortLocked keeps the resident list ordered createdAt descending, so a
// late-delivered older push lands in its correct position instead of the head.
func (s *Store) sortLocked() {
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].CreatedAt.After(s.records[j].CreatedAt)
	})
}
