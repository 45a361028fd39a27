package websocket

import (
	"bufio"
	"net"
	"net/http"
	"net/url"

	apperrors "github.com/agorahq/agora/backend/internal/errors"
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/middleware"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles WebSocket HTTP upgrade requests. Routes using it must be
// behind middleware.AuthMiddleware.
type Handler struct {
	hub            *Hub
	originPatterns []string
	skipVerify     bool
}

// NewHandler creates a handler accepting the given browser origins. A "*"
// entry disables origin checks.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			h.skipVerify = true
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			h.originPatterns = append(h.originPatterns, u.Host)
		} else {
			h.originPatterns = append(h.originPatterns, origin)
		}
	}
	return h
}

// HandleWebSocket upgrades the request and runs the session until it ends.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		err := apperrors.Unauthorized("authentication required")
		c.JSON(err.Status, gin.H{"error": err})
		return
	}

	conn, err := websocket.Accept(upgradeWriter{c.Writer}, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.skipVerify,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		// Accept has already written the error response.
		logger.L().Debug("websocket upgrade failed", logger.WithUserID(identity.UserID), zap.Error(err))
		return
	}

	_ = h.hub.Serve(c.Request.Context(), conn, identity.UserID)
}

// GetStats returns this process's session counters.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// upgradeWriter is the gin writer minus WriteHeaderNow. Accept calls
// WriteHeaderNow on writers that have it, which makes gin refuse the hijack
// that follows. The 101 status is recorded on gin's writer and written to the
// underlying net/http writer right before hijacking, where net/http flushes it.
type upgradeWriter struct {
	w gin.ResponseWriter
}

func (u upgradeWriter) Header() http.Header { return u.w.Header() }

func (u upgradeWriter) Write(b []byte) (int, error) { return u.w.Write(b) }

func (u upgradeWriter) WriteHeader(code int) { u.w.WriteHeader(code) }

func (u upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if raw, ok := u.w.(interface{ Unwrap() http.ResponseWriter }); ok {
		raw.Unwrap().WriteHeader(u.w.Status())
	} else {
		u.w.WriteHeaderNow()
	}
	return u.w.Hijack()
}
