package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchroom/server/internal/service/readiness"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/internal/service/sync"
	"github.com/watchroom/server/pkg/rest"
)

type contentRefRequest struct {
	Type      string `json:"type" validate:"required,max=32"`
	ContentId string `json:"content_id" validate:"required,max=128"`
	Season    int    `json:"season" validate:"min=0"`
	Episode   int    `json:"episode" validate:"min=0"`
}

type createRoomRequest struct {
	ContentRef contentRefRequest `json:"content_ref" validate:"required"`
}

func (c *controller) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		HostUserId: userIdFromCtx(r.Context()),
		Content: room.ContentRef{
			Type:      req.ContentRef.Type,
			ContentId: req.ContentRef.ContentId,
			Season:    req.ContentRef.Season,
			Episode:   req.ContentRef.Episode,
		},
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{
		"room":        resp.Room,
		"invite_code": resp.Room.InviteCode,
	})
}

func (c *controller) GetUserRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := c.roomService.GetUserRooms(r.Context(), userIdFromCtx(r.Context()))
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"rooms": rooms})
}

func (c *controller) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	rm, err := c.roomService.GetRoom(r.Context(), roomId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	members, err := c.roomService.GetRoomMembers(r.Context(), roomId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"room": rm, "members": members})
}

func (c *controller) CloseRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	if err := c.roomService.CloseRoom(r.Context(), roomId, userIdFromCtx(r.Context())); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"success": true})
}

type joinRoomRequest struct {
	InviteCode string `json:"invite_code" validate:"required,min=4,max=12"`
}

func (c *controller) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		UserId:     userIdFromCtx(r.Context()),
		InviteCode: req.InviteCode,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"room": resp.Room, "members": resp.Members})
}

func (c *controller) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	userId := userIdFromCtx(r.Context())

	if err := c.roomService.LeaveRoom(r.Context(), roomId, userId); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	// the ended membership no longer receives broadcasts
	c.conns.RemoveByMember(roomId, userId)

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"success": true})
}

func (c *controller) GetReadiness(w http.ResponseWriter, r *http.Request) {
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "room_id is required"})
		return
	}

	if err := c.roomService.EnsureMember(r.Context(), roomId, userIdFromCtx(r.Context())); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	consensus, err := c.tracker.GetConsensus(r.Context(), roomId)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{
		"all_ready":  consensus.AllReady,
		"avg_buffer": consensus.AvgBuffer,
		"members":    consensus.Members,
		"sync_state": c.coordinator.RoomState(roomId),
	})
}

type reportReadinessRequest struct {
	RoomId        string  `json:"room_id" validate:"required"`
	IsReady       bool    `json:"is_ready"`
	BufferPercent float64 `json:"buffer_percent"`
}

func (c *controller) ReportReadiness(w http.ResponseWriter, r *http.Request) {
	var req reportReadinessRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	userId := userIdFromCtx(r.Context())
	if err := c.roomService.EnsureMember(r.Context(), req.RoomId, userId); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	// buffer_percent is clamped server-side regardless of input
	if err := c.tracker.ReportReadiness(r.Context(), &readiness.ReportReadinessParams{
		RoomId:        req.RoomId,
		UserId:        userId,
		IsReady:       req.IsReady,
		BufferPercent: req.BufferPercent,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"success": true})
}

type playbackRequest struct {
	Action   string  `json:"action" validate:"required,oneof=play pause seek"`
	Position float64 `json:"position" validate:"min=0"`
}

func (c *controller) RequestPlayback(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	var req playbackRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	if err := c.coordinator.RequestPlayback(r.Context(), &sync.RequestPlaybackParams{
		RoomId:   roomId,
		SenderId: userIdFromCtx(r.Context()),
		Action:   sync.Action(req.Action),
		Position: req.Position,
	}); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusAccepted, rest.Envelope{
		"success": true,
		"state":   c.coordinator.RoomState(roomId),
	})
}
