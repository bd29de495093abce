package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	notificationRepo "notifyhub/database/repository/notification"
	"notifyhub/models"
	"notifyhub/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	unread    int64
	unreadErr error
	list      []models.NotificationRecord
	markErr   error

	markCalls    []string
	markAllUsers []string
	clearUsers   []string
}

func (r *fakeRepo) CreateNotification(n *models.Notification) error { return nil }
func (r *fakeRepo) GetNotificationByID(id string) (*models.Notification, error) {
	return nil, notificationRepo.ErrNotFound
}
func (r *fakeRepo) InsertDeliveries(rows []models.UserNotification) error { return nil }

func (r *fakeRepo) UnreadCount(userID string) (int64, error) {
	return r.unread, r.unreadErr
}

func (r *fakeRepo) ListForUser(userID string, limit int64) ([]models.NotificationRecord, error) {
	if limit < int64(len(r.list)) {
		return r.list[:limit], nil
	}
	return r.list, nil
}

func (r *fakeRepo) MarkRead(userID, userNotificationID string) error {
	r.markCalls = append(r.markCalls, userNotificationID)
	return r.markErr
}

func (r *fakeRepo) MarkAllRead(userID string) error {
	r.markAllUsers = append(r.markAllUsers, userID)
	return nil
}

func (r *fakeRepo) ClearRead(userID string) error {
	r.clearUsers = append(r.clearUsers, userID)
	return nil
}

type fakeChannel struct{}

type fakeHandle struct {
	records chan models.NotificationRecord
	done    chan struct{}
	once    sync.Once
	closes  int
}

func (h *fakeHandle) Records() <-chan models.NotificationRecord { return h.records }
func (h *fakeHandle) Done() <-chan struct{}                     { return h.done }
func (h *fakeHandle) Close() error {
	h.closes++
	h.once.Do(func() {
		close(h.records)
		close(h.done)
	})
	return nil
}

func (fakeChannel) Subscribe(ctx context.Context, userID string) (realtime.Handle, error) {
	return &fakeHandle{
		records: make(chan models.NotificationRecord, 1),
		done:    make(chan struct{}),
	}, nil
}

func (fakeChannel) Publish(ctx context.Context, userID string, rec models.NotificationRecord) error {
	return nil
}

func newTestGateway(t *testing.T, repo *fakeRepo) *DefaultGateway {
	t.Helper()
	gw, err := NewDefaultGateway(repo, fakeChannel{}, nil, zap.NewNop())
	require.NoError(t, err)
	return gw
}

func TestFetchUnreadCount(t *testing.T) {
	gw := newTestGateway(t, &fakeRepo{unread: 7})

	count, err := gw.FetchUnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestFetchUnreadCountPropagatesError(t *testing.T) {
	gw := newTestGateway(t, &fakeRepo{unreadErr: errors.New("db down")})

	_, err := gw.FetchUnreadCount(context.Background(), "u1")
	require.Error(t, err)
}

func TestMarkOneReadOwnershipFailure(t *testing.T) {
	repo := &fakeRepo{markErr: notificationRepo.ErrNotOwner}
	gw := newTestGateway(t, repo)

	err := gw.MarkOneRead(context.Background(), "u1", "un-1")
	require.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, []string{"un-1"}, repo.markCalls)
}

func TestMarkAllAndClearPassUserThrough(t *testing.T) {
	repo := &fakeRepo{}
	gw := newTestGateway(t, repo)

	require.NoError(t, gw.MarkAllRead(context.Background(), "u1"))
	require.NoError(t, gw.ClearRead(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, repo.markAllUsers)
	assert.Equal(t, []string{"u1"}, repo.clearUsers)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	gw := newTestGateway(t, &fakeRepo{})

	h, err := gw.Subscribe(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, gw.Unsubscribe(h))
	require.NoError(t, gw.Unsubscribe(h))
	require.NoError(t, gw.Unsubscribe(nil))
}
