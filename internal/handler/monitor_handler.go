package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/middleware"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/response"
	"github.com/testnest/cbt-backend/internal/service"
	ws "github.com/testnest/cbt-backend/internal/websocket"
)

const (
	keepAliveInterval = 30 * time.Second
	snapshotTimeout   = 5 * time.Second // a slow snapshot query must not hold the upgrade open
	snapshotPageSize  = 1000
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live session activity for a test to its owner
// over WebSocket: an initial snapshot, then events forwarded from the
// Redis monitor channel as students start, answer, and finish.
type MonitorHandler struct {
	rdb          *redis.Client
	adminService *service.AdminSessionService
	log          zerolog.Logger
	upgrader     websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	adminService *service.AdminSessionService,
	log zerolog.Logger,
	allowedOrigins []string,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:          rdb,
		adminService: adminService,
		log:          log.With().Str("component", "monitor_handler").Logger(),
		upgrader:     buildUpgrader(allowedOrigins),
	}
}

// MonitorTest godoc
// WS /ws/v1/admin/tests/:test_id/monitor?token=...
func (h *MonitorHandler) MonitorTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Ownership must be settled before the upgrade; afterwards there is
	// no HTTP status left to send.
	snapCtx, cancel := context.WithTimeout(c.Request.Context(), snapshotTimeout)
	sessions, total, err := h.adminService.ListByTest(snapCtx, testID, claims.UserID, nil, 1, snapshotPageSize)
	cancel()
	if err != nil {
		failServiceErr(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	monLog := h.log.With().
		Int("admin_id", claims.UserID).
		Str("test_id", testID.String()).
		Logger()
	monLog.Info().Msg("Admin attached to live monitor")

	h.sendSnapshot(conn, testID, sessions, total)

	channel := config.CacheKey.TestMonitorChannel(testID.String())
	pubsub := h.rdb.Subscribe(c.Request.Context(), channel)
	defer pubsub.Close()

	// Reader goroutine: consumes client frames so pings are answered and
	// a closed connection tears the stream down promptly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					monLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				ws.WriteTyped(conn, ws.Envelope{Event: ws.EventPong})
			}
		}
	}()

	events := pubsub.Channel()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-done:
			monLog.Info().Msg("Admin disconnected from live monitor")
			return

		case <-c.Request.Context().Done():
			return

		case msg, ok := <-events:
			if !ok {
				monLog.Warn().Msg("Monitor subscription closed")
				return
			}
			// The channel already carries marshaled MonitorEvent JSON;
			// forward it without a decode round-trip.
			env := ws.Envelope{Event: ws.EventUpdate, Data: json.RawMessage(msg.Payload)}
			if err := ws.WriteTyped(conn, env); err != nil {
				return
			}

		case <-keepAlive.C:
			if err := ws.WriteTyped(conn, ws.Envelope{Event: ws.EventPong}); err != nil {
				return
			}
		}
	}
}

// sendSnapshot writes the first frame: current sessions plus headline
// counts, so the dashboard renders before the first live event arrives.
func (h *MonitorHandler) sendSnapshot(conn *websocket.Conn, testID uuid.UUID, sessions []model.TestSession, total int64) {
	inProgress := 0
	completed := 0
	for _, s := range sessions {
		switch s.Status {
		case model.SessionStatusInProgress:
			inProgress++
		case model.SessionStatusCompleted:
			completed++
		}
	}

	ws.WriteTyped(conn, ws.Envelope{
		Event: ws.EventSnapshot,
		Data: gin.H{
			"test_id": testID.String(),
			"stats": gin.H{
				"total_sessions": total,
				"in_progress":    inProgress,
				"completed":      completed,
			},
			"sessions": sessions,
		},
	})
}
