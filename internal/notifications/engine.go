// Package notifications delivers notifications to live connections, falls
// back to the shared bus and offline queue, and keeps unread counts in sync
// across a user's devices.
package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"github.com/agorahq/agora/backend/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultQueueTTL bounds how long a queued notification waits for a reconnect.
const DefaultQueueTTL = 24 * time.Hour

// LocalSender offers a message to a connection held by this process.
type LocalSender interface {
	TrySend(userID string, msg []byte) bool
}

// Path is how a delivery left the engine.
type Path string

const (
	// PathDirect means a local connection accepted the message.
	PathDirect Path = "direct"
	// PathFallback means the message was published to the user channel and
	// queued for the next connect.
	PathFallback Path = "fallback"
)

// Engine routes outbound payloads. Delivery is best effort and at least
// once: a fallback delivery can reach a client both through the bus and
// through the queue, so payloads carry an id for de-duplication.
type Engine struct {
	local    LocalSender
	bus      cache.Bus
	queueTTL time.Duration
}

func NewEngine(local LocalSender, bus cache.Bus, queueTTL time.Duration) *Engine {
	if queueTTL <= 0 {
		queueTTL = DefaultQueueTTL
	}
	return &Engine{local: local, bus: bus, queueTTL: queueTTL}
}

// Deliver pushes payload to the recipient. It never fails: bus errors are
// logged and the triggering action carries on.
func (e *Engine) Deliver(ctx context.Context, recipientID string, payload []byte) Path {
	ctx, span := telemetry.StartSpan(ctx, "notifications.deliver", attribute.String("user_id", recipientID))
	defer span.End()

	if e.local.TrySend(recipientID, payload) {
		span.SetAttributes(attribute.String("delivery.path", string(PathDirect)))
		metrics.Get().NotificationDeliveries.WithLabelValues(string(PathDirect)).Inc()
		return PathDirect
	}

	channel := cache.UserNotificationsChannel(recipientID)
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		telemetry.RecordError(span, err)
		cache.ReportError("publish", err, logger.WithChannel(channel))
	}
	if err := e.bus.RPushEx(ctx, cache.NotificationQueueKey(recipientID), e.queueTTL, payload); err != nil {
		telemetry.RecordError(span, err)
		cache.ReportError("enqueue", err, logger.WithUserID(recipientID))
	}

	span.SetAttributes(attribute.String("delivery.path", string(PathFallback)))
	metrics.Get().NotificationDeliveries.WithLabelValues(string(PathFallback)).Inc()
	return PathFallback
}

// DeliverJSON marshals v and delivers it. It returns "" if v cannot be
// encoded.
func (e *Engine) DeliverJSON(ctx context.Context, recipientID string, v any) Path {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.ErrorWithFields("failed to encode notification payload", err, logger.WithUserID(recipientID))
		return ""
	}
	return e.Deliver(ctx, recipientID, payload)
}

// DrainQueue reads and clears the user's offline queue in one transaction,
// oldest first.
func (e *Engine) DrainQueue(ctx context.Context, userID string) ([]json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "notifications.drain_queue", attribute.String("user_id", userID))
	defer span.End()

	items, err := e.bus.DrainList(ctx, cache.NotificationQueueKey(userID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = json.RawMessage(item)
	}
	metrics.Get().QueueDrains.Inc()
	metrics.Get().QueueDrainedItems.Add(float64(len(out)))
	if len(out) > 0 {
		logger.L().Debug("drained offline queue", logger.WithUserID(userID), zap.Int("count", len(out)))
	}
	return out, nil
}

// CountUpdate is the unread-count side channel message.
type CountUpdate struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// PublishUnreadCount tells every open connection of the user the new count.
func (e *Engine) PublishUnreadCount(ctx context.Context, userID string, count int64) {
	e.publish(ctx, cache.UserNotificationsChannel(userID), CountUpdate{Type: "notification_count", Count: count})
}

// BroadcastGlobal publishes v to every connected user on every process.
func (e *Engine) BroadcastGlobal(ctx context.Context, v any) {
	e.publish(ctx, cache.GlobalNotificationsChannel, v)
}

// BroadcastCommunity publishes v on the community's update channel.
func (e *Engine) BroadcastCommunity(ctx context.Context, communityID string, v any) {
	e.publish(ctx, cache.CommunityUpdatesChannel(communityID), v)
}

func (e *Engine) publish(ctx context.Context, channel string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.ErrorWithFields("failed to encode bus message", err, logger.WithChannel(channel))
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		cache.ReportError("publish", err, logger.WithChannel(channel))
	}
}
