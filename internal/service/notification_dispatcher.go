package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/pkg/jobs"
)

type deliveryStore interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.PendingDelivery, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string, final bool) error
}

// Publisher pushes a notification to the addressed user's realtime channel.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// RedisPublisher publishes notification JSON on channel <prefix><user_id>.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher constructs a Redis Pub/Sub publisher.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "notifications:"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel for a user.
func (p *RedisPublisher) Channel(userID string) string {
	return p.prefix + userID
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, n models.Notification) error {
	if p.client == nil {
		return errors.New("redis client not configured")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.Channel(n.UserID), payload).Err()
}

// LogPublisher acknowledges deliveries by logging them. Used when Redis is disabled;
// clients then only see notifications on their next list read.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher constructs a logging publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, n models.Notification) error {
	p.logger.Debug("notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
	)
	return nil
}

// DispatcherConfig tunes polling and retry behaviour.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
	ClaimLease   time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 5 * time.Minute
	}
	if c.RetryMax < c.RetryInitial {
		c.RetryMax = c.RetryInitial
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = 30 * time.Second
	}
	return c
}

// NotificationDispatcher drains the delivery outbox. Rows are claimed with a lease,
// handed to a worker queue and published. Delivery is at-least-once: a crash after
// publishing but before acknowledging republishes once the lease expires.
type NotificationDispatcher struct {
	store     deliveryStore
	publisher Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       DispatcherConfig
	queue     *jobs.Pool[models.PendingDelivery]
	now       func() time.Time
	jitter    func(time.Duration) time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewNotificationDispatcher constructs the dispatcher.
func NewNotificationDispatcher(store deliveryStore, publisher Publisher, metrics *MetricsService, logger *zap.Logger, cfg DispatcherConfig) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}
	cfg = cfg.withDefaults()
	d := &NotificationDispatcher{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With(zap.String("component", "notification_dispatcher")),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
	d.queue = jobs.NewPool("notification-delivery", d.Deliver, jobs.Config{
		Workers:     cfg.Workers,
		BufferSize:  cfg.BatchSize * 2,
		ItemTimeout: cfg.ClaimLease,
		Logger:      logger,
	})
	return d
}

// Start launches the worker pool and the poll loop.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true
	d.queue.Start(loopCtx)
	go d.loop(loopCtx, d.done)
	d.logger.Info("dispatcher started", zap.Duration("poll_interval", d.cfg.PollInterval), zap.Int("workers", d.cfg.Workers))
}

// Stop halts polling and waits for in-flight deliveries. Unacknowledged rows are
// picked up again after their lease expires.
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	done := d.done
	d.running = false
	d.mu.Unlock()

	<-done
	d.queue.Stop()
	d.logger.Info("dispatcher stopped")
}

func (d *NotificationDispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := d.PollOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("delivery poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce claims due deliveries and enqueues them. It returns how many were enqueued.
func (d *NotificationDispatcher) PollOnce(ctx context.Context) (int, error) {
	free := d.queue.Capacity() - d.queue.Pending()
	if free <= 0 {
		return 0, nil
	}
	limit := d.cfg.BatchSize
	if free < limit {
		limit = free
	}
	due, err := d.store.ClaimDue(ctx, d.now(), d.cfg.ClaimLease, limit)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, pd := range due {
		if err := d.queue.Submit(pd); err != nil {
			// The claim lease expires and the row is reclaimed on a later poll.
			d.logger.Debug("delivery not enqueued", zap.String("delivery_id", pd.Delivery.ID), zap.Error(err))
			continue
		}
		enqueued++
	}
	d.metrics.SetQueueDepth(d.queue.Pending())
	return enqueued, nil
}

// Deliver publishes a claimed delivery and acknowledges or reschedules it. Publishing
// gets half the claim lease, leaving the rest for the acknowledgement.
func (d *NotificationDispatcher) Deliver(ctx context.Context, pd models.PendingDelivery) {
	delivery := pd.Delivery
	fields := []zap.Field{
		zap.String("delivery_id", delivery.ID),
		zap.String("notification_id", delivery.NotificationID),
		zap.String("user_id", delivery.UserID),
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.ClaimLease/2)
	pubErr := d.publisher.Publish(pubCtx, pd.Notification)
	cancel()
	if pubErr == nil {
		if err := d.store.MarkDelivered(ctx, delivery.ID, d.now()); err != nil {
			d.logger.Warn("failed to acknowledge delivery", append(fields, zap.Error(err))...)
			return
		}
		d.metrics.RecordDelivery("delivered")
		return
	}

	attempts := delivery.Attempts + 1
	final := attempts >= d.cfg.MaxAttempts
	next := d.now().Add(d.Backoff(attempts))
	if err := d.store.MarkRetry(ctx, delivery.ID, attempts, next, pubErr.Error(), final); err != nil {
		d.logger.Warn("failed to reschedule delivery", append(fields, zap.Error(err))...)
		return
	}
	if final {
		d.metrics.RecordDelivery("failed")
		d.logger.Error("delivery failed permanently", append(fields, zap.Int("attempts", attempts), zap.Error(pubErr))...)
		return
	}
	d.metrics.RecordDelivery("retry")
	d.logger.Warn("delivery failed, rescheduled", append(fields, zap.Int("attempts", attempts), zap.Time("next_attempt_at", next), zap.Error(pubErr))...)
}

// Backoff returns the delay before attempt n+1: exponential from RetryInitial,
// capped at RetryMax, plus up to half of that in jitter.
func (d *NotificationDispatcher) Backoff(attempts int) time.Duration {
	delay := d.cfg.RetryInitial
	for i := 1; i < attempts && delay < d.cfg.RetryMax; i++ {
		delay *= 2
	}
	if delay > d.cfg.RetryMax {
		delay = d.cfg.RetryMax
	}
	return delay + d.jitter(delay/2)
}
