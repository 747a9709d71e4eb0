package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/models"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestRedisPublisherPublishesToUserChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	publisher := NewRedisPublisher(client, "notifications:")
	sub := client.Subscribe(ctx, publisher.Channel("u1"))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := models.Notification{ID: "n1", UserID: "u1", Title: "Mic Request Approved", Type: models.NotificationTypeMicRequest}
	require.NoError(t, publisher.Publish(ctx, n))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "notifications:u1", msg.Channel)
	var got models.Notification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.Title, got.Title)
}

func TestRedisPublisherReportsServerErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.SetError("LOADING")

	err := NewRedisPublisher(client, "").Publish(context.Background(), models.Notification{ID: "n1", UserID: "u1"})
	assert.Error(t, err)
}

func TestDispatcherDeliverAcknowledges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.notificationService().Notify(ctx, nil, []string{f.alice.UserID}, models.NotificationTypeAnnouncement, "Hi", "There", nil)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	dispatcher := NewNotificationDispatcher(f.store.Notifications(), publisher, nil, zap.NewNop(), DispatcherConfig{})

	due, err := f.store.Notifications().ClaimDue(ctx, time.Now().UTC(), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	dispatcher.Deliver(ctx, due[0])

	assert.Equal(t, 1, publisher.count())
	deliveries := f.store.Notifications().Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.DeliveryStatusDelivered, deliveries[0].Status)
	assert.Equal(t, 1, deliveries[0].Attempts)
	assert.NotNil(t, deliveries[0].DeliveredAt)
}

func TestDispatcherDeliverReschedulesThenFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.notificationService().Notify(ctx, nil, []string{f.alice.UserID}, models.NotificationTypeAnnouncement, "Hi", "There", nil)
	require.NoError(t, err)

	publisher := &recordingPublisher{err: errors.New("redis down")}
	dispatcher := NewNotificationDispatcher(f.store.Notifications(), publisher, nil, zap.NewNop(), DispatcherConfig{MaxAttempts: 2, RetryInitial: time.Minute, RetryMax: time.Hour})
	dispatcher.jitter = func(time.Duration) time.Duration { return 0 }
	now := time.Now().UTC()
	dispatcher.now = func() time.Time { return now }

	due, err := f.store.Notifications().ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	dispatcher.Deliver(ctx, due[0])

	d := f.store.Notifications().Deliveries()[0]
	assert.Equal(t, models.DeliveryStatusPending, d.Status)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, now.Add(time.Minute), d.NextAttemptAt)
	require.NotNil(t, d.LastError)
	assert.Equal(t, "redis down", *d.LastError)

	none, err := f.store.Notifications().ClaimDue(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, none, "rescheduled delivery is not due yet")

	later := now.Add(2 * time.Minute)
	due, err = f.store.Notifications().ClaimDue(ctx, later, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	dispatcher.Deliver(ctx, due[0])

	d = f.store.Notifications().Deliveries()[0]
	assert.Equal(t, models.DeliveryStatusFailed, d.Status)
	assert.Equal(t, 2, d.Attempts)
}

func TestDispatcherBackoffIsExponentialAndCapped(t *testing.T) {
	dispatcher := NewNotificationDispatcher(nil, nil, nil, nil, DispatcherConfig{RetryInitial: time.Second, RetryMax: 10 * time.Second})
	dispatcher.jitter = func(time.Duration) time.Duration { return 0 }

	assert.Equal(t, time.Second, dispatcher.Backoff(1))
	assert.Equal(t, 2*time.Second, dispatcher.Backoff(2))
	assert.Equal(t, 4*time.Second, dispatcher.Backoff(3))
	assert.Equal(t, 8*time.Second, dispatcher.Backoff(4))
	assert.Equal(t, 10*time.Second, dispatcher.Backoff(5))
	assert.Equal(t, 10*time.Second, dispatcher.Backoff(50))

	dispatcher.jitter = func(max time.Duration) time.Duration { return max }
	assert.Equal(t, 3*time.Second, dispatcher.Backoff(2))
}

func TestDispatcherRetryCapNeverBelowInitialDelay(t *testing.T) {
	cfg := DispatcherConfig{RetryInitial: 10 * time.Minute}.withDefaults()
	assert.Equal(t, 10*time.Minute, cfg.RetryMax)

	cfg = DispatcherConfig{RetryInitial: 10 * time.Minute, RetryMax: time.Minute}.withDefaults()
	assert.Equal(t, 10*time.Minute, cfg.RetryMax)

	cfg = DispatcherConfig{}.withDefaults()
	assert.Equal(t, time.Second, cfg.RetryInitial)
	assert.Equal(t, 5*time.Minute, cfg.RetryMax)

	dispatcher := NewNotificationDispatcher(nil, nil, nil, nil, DispatcherConfig{RetryInitial: 10 * time.Minute})
	dispatcher.jitter = func(time.Duration) time.Duration { return 0 }
	assert.Equal(t, 10*time.Minute, dispatcher.Backoff(1))
	assert.Equal(t, 10*time.Minute, dispatcher.Backoff(4))
}

func TestDispatcherRunDrainsOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.notificationService().Notify(ctx, nil, []string{f.alice.UserID, f.bob.UserID}, models.NotificationTypeAnnouncement, "Hi", "There", nil)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	dispatcher := NewNotificationDispatcher(f.store.Notifications(), publisher, NewMetricsService(), zap.NewNop(), DispatcherConfig{PollInterval: 10 * time.Millisecond, Workers: 2})
	dispatcher.Start(ctx)
	t.Cleanup(dispatcher.Stop)

	require.Eventually(t, func() bool {
		for _, d := range f.store.Notifications().Deliveries() {
			if d.Status != models.DeliveryStatusDelivered {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, publisher.count())

	dispatcher.Stop()
	dispatcher.Stop()
}
