package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agorahq/agora/backend/internal/cache"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errReplaced ends a session whose registry entry went to a newer connection.
var errReplaced = errors.New("connection replaced")

// session owns one physical connection from handshake to teardown.
type session struct {
	hub       *Hub
	conn      *websocket.Conn
	userID    string
	connID    string
	createdAt time.Time
	log       *zap.Logger

	outbox  *Outbox
	sub     cache.Subscription
	limiter *RateLimiter
	recent  *recentIDs

	teardownOnce sync.Once
}

func newSession(h *Hub, conn *websocket.Conn, userID string) *session {
	connID := uuid.NewString()
	return &session{
		hub:       h,
		conn:      conn,
		userID:    userID,
		connID:    connID,
		createdAt: time.Now(),
		log:       logger.L().With(logger.WithUserID(userID), logger.WithConnectionID(connID)),
		limiter:   NewRateLimiter(h.cfg.RateLimit.MaxMessagesPerSecond, h.cfg.RateLimit.BurstSize),
		recent:    newRecentIDs(recentIDWindow),
	}
}

func (s *session) run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { s.teardown(err) }()

	if err = s.connect(ctx); err != nil {
		s.log.Debug("websocket handshake failed", zap.Error(err))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { defer cancel(); return s.writeLoop(gctx) })
	g.Go(func() error { defer cancel(); return s.bridgeLoop(gctx) })
	g.Go(func() error { defer cancel(); return s.readLoop(gctx) })
	err = g.Wait()

	s.logClose(err)
	return err
}

// connect registers the connection, marks the user online, sends the
// connected frame and flushes the offline queue. The bus subscription is
// opened before the drain so nothing published in between is missed.
func (s *session) connect(ctx context.Context) error {
	h := s.hub
	s.outbox = h.registry.Register(s.userID)
	h.active.Add(1)
	h.total.Add(1)
	metrics.Get().WSActiveConnections.Inc()
	metrics.Get().WSConnectionsTotal.Inc()

	if err := h.presence.MarkOnline(ctx, s.userID); err != nil {
		cache.ReportError("mark_online", err, logger.WithUserID(s.userID))
	}
	if err := h.presence.TrackConnection(ctx, s.userID, s.connID); err != nil {
		cache.ReportError("track_connection", err, logger.WithUserID(s.userID))
	}

	sub, err := h.bus.Subscribe(ctx,
		cache.UserNotificationsChannel(s.userID),
		cache.GlobalNotificationsChannel,
	)
	if err != nil {
		cache.ReportError("subscribe", err, logger.WithUserID(s.userID))
	} else {
		s.sub = sub
	}

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.writeJSON(ctx, newConnected(s.userID, s.connID, s.createdAt)); err != nil {
		return err
	}

	queued, err := h.queue.DrainQueue(ctx, s.userID)
	if err != nil {
		s.log.Error("failed to drain offline queue", zap.Error(err))
	}
	for _, msg := range queued {
		if err := s.deliver(ctx, msg); err != nil {
			return err
		}
	}

	s.log.Info("websocket session connected", zap.Int("queued", len(queued)))
	return nil
}

// writeLoop drains the outbox onto the socket and keeps the peer alive with
// pings.
func (s *session) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.hub.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.outbox.Done():
			// Messages accepted before the replacement still go out.
			for _, msg := range s.outbox.Drain() {
				if err := s.deliver(ctx, msg); err != nil {
					return err
				}
			}
			return errReplaced
		case msg := <-s.outbox.C():
			if err := s.deliver(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.hub.cfg.WriteWait)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// bridgeLoop forwards bus messages for this user into the outbox. Without a
// subscription the session stays up on the direct path only.
func (s *session) bridgeLoop(ctx context.Context) error {
	if s.sub == nil {
		<-ctx.Done()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.sub.Messages():
			if !ok {
				s.log.Error("bus subscription closed, continuing without cross-process delivery")
				<-ctx.Done()
				return nil
			}
			if s.outbox.Offer([]byte(msg.Payload)) {
				continue
			}
			if s.outbox.Closed() {
				// The write loop ends the session once it has flushed.
				<-ctx.Done()
				return nil
			}
			metrics.Get().WSDroppedMessages.WithLabelValues("outbox_full").Inc()
			s.log.Warn("outbox full, dropping bus message", logger.WithChannel(msg.Channel))
		}
	}
}

// readLoop reads client control messages until the connection fails.
func (s *session) readLoop(ctx context.Context) error {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}
		if !s.limiter.Allow() {
			metrics.Get().WSDroppedMessages.WithLabelValues("rate_limited").Inc()
			continue
		}

		in := DecodeInbound(data)
		metrics.Get().WSInboundMessages.WithLabelValues(in.Kind.String()).Inc()
		s.dispatch(ctx, in)
	}
}

func (s *session) dispatch(ctx context.Context, in Inbound) {
	h := s.hub
	var err error

	switch in.Kind {
	case InboundStartTyping:
		err = h.typing.StartTyping(ctx, s.userID, in.Thread)
	case InboundStopTyping:
		err = h.typing.StopTyping(ctx, s.userID, in.Thread)
	case InboundTypingHeartbeat:
		_, err = h.typing.Heartbeat(ctx, s.userID, in.Thread)
	case InboundJoinCommunity:
		err = h.presence.JoinCommunity(ctx, in.CommunityID, s.userID)
	case InboundLeaveCommunity:
		err = h.presence.LeaveCommunity(ctx, in.CommunityID, s.userID)
	case InboundHeartbeat:
		if err = h.presence.MarkOnline(ctx, s.userID); err == nil {
			err = h.presence.TrackConnection(ctx, s.userID, s.connID)
		}
	case InboundIgnored:
		s.log.Debug("ignoring client message")
	}

	if err != nil && ctx.Err() == nil {
		s.log.Error("client message failed", zap.Stringer("kind", in.Kind), zap.Error(err))
	}
}

// deliver writes one outbound message, skipping notification envelopes this
// connection has already shown.
func (s *session) deliver(ctx context.Context, msg []byte) error {
	if id := envelopeID(msg); id != "" && s.recent.Seen(id) {
		metrics.Get().WSDroppedMessages.WithLabelValues("duplicate").Inc()
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.hub.cfg.WriteWait)
	defer cancel()
	if err := s.conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	metrics.Get().WSOutboundMessages.Inc()
	return nil
}

func (s *session) writeJSON(ctx context.Context, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.hub.cfg.WriteWait)
	defer cancel()
	if err := wsjson.Write(writeCtx, s.conn, v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	metrics.Get().WSOutboundMessages.Inc()
	return nil
}

// teardown releases everything the session acquired. It runs once. A
// session the peer closed completes the close handshake; any other cause
// closes the socket at once, since a peer that is not reading would hold
// the handshake open.
func (s *session) teardown(cause error) {
	s.teardownOnce.Do(func() {
		h := s.hub
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		if s.sub != nil {
			_ = s.sub.Close()
		}
		if s.outbox != nil {
			h.registry.Release(s.userID, s.outbox)
			h.active.Add(-1)
			metrics.Get().WSActiveConnections.Dec()
		}

		if _, err := h.presence.UntrackConnection(ctx, s.userID, s.connID); err != nil {
			cache.ReportError("untrack_connection", err, logger.WithUserID(s.userID))
		}
		if n, err := h.typing.CleanupForUser(ctx, s.userID); err != nil {
			s.log.Error("typing cleanup on disconnect failed", zap.Error(err))
		} else if n > 0 {
			s.log.Debug("cleared typing indicators on disconnect", zap.Int64("count", n))
		}

		if websocket.CloseStatus(cause) != -1 {
			_ = s.conn.Close(websocket.StatusNormalClosure, "")
		} else {
			_ = s.conn.CloseNow()
		}
	})
}

func (s *session) logClose(err error) {
	duration := zap.Duration("duration", time.Since(s.createdAt))
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		s.log.Info("websocket session closed", duration)
	case errors.Is(err, errReplaced):
		s.log.Info("websocket session replaced by newer connection", duration)
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		s.log.Info("client disconnected", duration)
	default:
		s.log.Debug("websocket session ended", duration, zap.Error(err))
	}
}
