package notify

import (
	"context"
	"log/slog"
	"time"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

const DefaultSinkTimeout = 3 * time.Second

// Publisher hands a notification to a message broker.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
	Close() error
}

// RealtimePublisher pushes a live event to a user's channel.
type RealtimePublisher interface {
	PublishRealtime(ctx context.Context, userID string, ev domain.RealtimeEvent) error
}

// Emitter fans a notification out to its sinks. Every sink is independent and
// best-effort: failures are logged and never reach the caller. Any sink may be nil.
type Emitter struct {
	store     store.NotificationStore
	publisher Publisher
	realtime  RealtimePublisher
	timeout   time.Duration
	log       *slog.Logger
}

func NewEmitter(st store.NotificationStore, publisher Publisher, realtime RealtimePublisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		store:     st,
		publisher: publisher,
		realtime:  realtime,
		timeout:   DefaultSinkTimeout,
		log:       logger.With("component", "notify"),
	}
}

func (e *Emitter) WithTimeout(d time.Duration) *Emitter {
	if d > 0 {
		e.timeout = d
	}
	return e
}

func (e *Emitter) Notify(ctx context.Context, n domain.Notification) {
	// The request may already be finished; delivery must still be attempted.
	ctx = context.WithoutCancel(ctx)
	if n.SendAt.IsZero() {
		n.SendAt = time.Now().UTC()
	}

	if e.store != nil {
		sctx, cancel := context.WithTimeout(ctx, e.timeout)
		saved, err := e.store.CreateNotification(sctx, n)
		cancel()
		if err != nil {
			e.log.Warn("notification persist failed", "type", n.Type, "user_id", n.UserID, "err", err)
		} else {
			n = saved
		}
	}

	if e.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.publisher.Publish(pctx, n)
		cancel()
		if err != nil {
			e.log.Warn("notification publish failed", "type", n.Type, "user_id", n.UserID, "err", err)
		}
	}
}

func (e *Emitter) Realtime(ctx context.Context, userID string, ev domain.RealtimeEvent) {
	if e.realtime == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	if err := e.realtime.PublishRealtime(rctx, userID, ev); err != nil {
		e.log.Warn("realtime publish failed", "user_id", userID, "err", err)
	}
}
