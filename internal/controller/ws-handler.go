package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/service/readiness"
	"github.com/watchroom/server/internal/service/sync"
	"github.com/watchroom/server/pkg/rest"
	"github.com/watchroom/server/pkg/wsrouter"
)

type wsReadinessPayload struct {
	IsReady       bool    `json:"is_ready"`
	BufferPercent float64 `json:"buffer_percent"`
}

type wsPlaybackPayload struct {
	Action   string  `json:"action"`
	Position float64 `json:"position"`
}

// ServeRoomWS upgrades the connection and keeps it registered for broadcast
// delivery. Members may also push readiness reports and (if host) playback
// intents over the socket instead of the REST endpoints.
func (c *controller) ServeRoomWS(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	userId := userIdFromCtx(r.Context())

	if err := c.roomService.EnsureMember(r.Context(), roomId, userId); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	c.conns.Add(conn, roomId, userId)

	router := wsrouter.New()
	router.Handle("readiness", func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) {
		var p wsReadinessPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			conn.WriteJSON(rest.Envelope{"error": "malformed readiness payload"})
			return
		}

		if err := c.tracker.ReportReadiness(ctx, &readiness.ReportReadinessParams{
			RoomId:        roomId,
			UserId:        userId,
			IsReady:       p.IsReady,
			BufferPercent: p.BufferPercent,
		}); err != nil {
			c.logger.InfoContext(ctx, "ws readiness report failed", "error", err)
		}
	})
	router.Handle("playback", func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) {
		var p wsPlaybackPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			conn.WriteJSON(rest.Envelope{"error": "malformed playback payload"})
			return
		}

		if err := c.coordinator.RequestPlayback(ctx, &sync.RequestPlaybackParams{
			RoomId:   roomId,
			SenderId: userId,
			Action:   sync.Action(p.Action),
			Position: p.Position,
		}); err != nil {
			conn.WriteJSON(rest.Envelope{"error": err.Error()})
		}
	})

	if err := router.ServeConn(r.Context(), conn); err != nil {
		c.logger.DebugContext(r.Context(), "connection closed", "room_id", roomId, "user_id", userId, "error", err)
	}

	c.conns.RemoveByConn(conn)
}
