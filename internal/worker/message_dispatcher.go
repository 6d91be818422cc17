package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soyapp/soy-backend/internal/model"
	"github.com/soyapp/soy-backend/internal/repository"
	"github.com/soyapp/soy-backend/internal/service/audit"
	"github.com/soyapp/soy-backend/internal/service/event"
	"github.com/soyapp/soy-backend/internal/service/notification"
	"github.com/soyapp/soy-backend/pkg/logger"
	"github.com/soyapp/soy-backend/pkg/metrics"
)

const dispatchLockKey = "dispatch-due-messages"

// ErrDispatchInProgress is returned when a previous tick is still running.
var ErrDispatchInProgress = errors.New("dispatch already in progress")

// Locker guards a tick across replicas. Satisfied by *redis.Locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type DispatcherConfig struct {
	Interval time.Duration
	// LockTTL bounds the cross-replica lease. Ignored without a Locker.
	LockTTL time.Duration
	// DeceasedCacheTTL is how long a deceased user is remembered.
	DeceasedCacheTTL time.Duration
}

// DispatchResult counts what one tick did with the due messages.
type DispatchResult struct {
	Due     int
	Sent    int
	Skipped int
	Failed  int
}

// MessageDispatcher delivers scheduled messages of deceased users once their
// send date has passed. Delivery is at-least-once: a crash between the send
// and MarkSent resends on the next tick.
type MessageDispatcher struct {
	messages repository.ScheduledMessageRepository
	users    repository.UserRepository
	notifier notification.Service
	auditor  *audit.Service
	events   event.Emitter
	locker   Locker
	config   DispatcherConfig
	deceased *cache.Cache
	mu       sync.Mutex
	now      func() time.Time
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewMessageDispatcher(
	messages repository.ScheduledMessageRepository,
	users repository.UserRepository,
	notifier notification.Service,
	auditor *audit.Service,
	events event.Emitter,
	locker Locker,
	config DispatcherConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *MessageDispatcher {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.DeceasedCacheTTL <= 0 {
		config.DeceasedCacheTTL = time.Hour
	}
	return &MessageDispatcher{
		messages: messages,
		users:    users,
		notifier: notifier,
		auditor:  auditor,
		events:   events,
		locker:   locker,
		config:   config,
		deceased: cache.New(config.DeceasedCacheTTL, 2*config.DeceasedCacheTTL),
		now:      time.Now,
		logger:   log.With("message-dispatcher"),
		metrics:  m,
	}
}

func (d *MessageDispatcher) Start(ctx context.Context) error {
	d.logger.Info("starting message dispatcher", "interval", d.config.Interval.String())
	return runEvery(ctx, d.config.Interval, func(ctx context.Context) {
		res, err := d.DispatchDueMessages(ctx)
		switch {
		case errors.Is(err, ErrDispatchInProgress):
			d.logger.Debug("previous dispatch still running, skipping tick")
		case err != nil:
			d.logger.Error(err, "failed to dispatch scheduled messages")
		case res.Due > 0:
			d.logger.Info("scheduled messages dispatched",
				"due", res.Due, "sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed)
		}
	})
}

// DispatchDueMessages sends every due message whose author is deceased.
// Failures of single messages are logged and counted.
func (d *MessageDispatcher) DispatchDueMessages(ctx context.Context) (DispatchResult, error) {
	var res DispatchResult

	if !d.mu.TryLock() {
		return res, ErrDispatchInProgress
	}
	defer d.mu.Unlock()

	if d.locker != nil && d.config.LockTTL > 0 {
		release, ok, err := d.locker.TryLock(ctx, dispatchLockKey, d.config.LockTTL)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, ErrDispatchInProgress
		}
		defer release()
	}

	timer := prometheus.NewTimer(d.metrics.DispatchDuration)
	defer timer.ObserveDuration()

	now := d.now()
	due, err := d.messages.ListDue(ctx, now)
	if err != nil {
		return res, err
	}
	res.Due = len(due)

	for _, msg := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		switch outcome := d.dispatch(ctx, msg); outcome {
		case "sent":
			res.Sent++
		case "error":
			res.Failed++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (d *MessageDispatcher) dispatch(ctx context.Context, msg *model.ScheduledMessage) (outcome string) {
	defer func() { d.metrics.MessagesDispatched.WithLabelValues(outcome).Inc() }()

	if msg.Email == "" {
		d.logger.Warn("scheduled message has no recipient, skipping", "message_id", msg.ID)
		return "no_email"
	}

	deceased, err := d.isDeceased(ctx, msg.UserID)
	if err != nil {
		d.logger.Error(err, "failed to load message author", "message_id", msg.ID, "user_id", msg.UserID)
		return "error"
	}
	if !deceased {
		d.logger.Debug("author is not deceased, skipping", "message_id", msg.ID, "user_id", msg.UserID)
		return "alive"
	}

	if err := d.notifier.SendScheduledMessage(ctx, msg); err != nil {
		d.logger.Error(err, "failed to send scheduled message", "message_id", msg.ID)
		return "error"
	}

	sentAt := d.now()
	if err := d.messages.MarkSent(ctx, msg.ID, sentAt); err != nil {
		d.logger.Error(err, "message sent but not marked, it will be resent", "message_id", msg.ID)
		return "error"
	}

	payload := map[string]interface{}{"mensajeId": msg.ID, "userId": msg.UserID, "enviadoAt": sentAt}
	if err := d.auditor.Log(ctx, model.AuditActionMessageSent, model.AuditEntityMessage, msg.ID, &audit.LogOptions{Metadata: payload}); err != nil {
		d.logger.Error(err, "failed to write audit log", "message_id", msg.ID)
	}
	if err := d.events.Emit(ctx, model.EventMessageSent, payload); err != nil {
		d.logger.Error(err, "failed to emit event", "message_id", msg.ID)
	}

	d.logger.Info("scheduled message sent", "message_id", msg.ID)
	return "sent"
}

// isDeceased caches positive answers only, since a user is never marked alive
// again.
func (d *MessageDispatcher) isDeceased(ctx context.Context, userID string) (bool, error) {
	if _, ok := d.deceased.Get(userID); ok {
		return true, nil
	}

	user, err := d.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		d.logger.Warn("message author not found", "user_id", userID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if user.IsDeceased {
		d.deceased.SetDefault(userID, struct{}{})
	}
	return user.IsDeceased, nil
}
