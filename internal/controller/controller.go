package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/service/readiness"
	"github.com/watchroom/server/internal/service/room"
	"github.com/watchroom/server/internal/service/sync"
	"github.com/watchroom/server/pkg/validator"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	GetRoom(ctx context.Context, roomId string) (room.Room, error)
	GetRoomMembers(ctx context.Context, roomId string) ([]room.Member, error)
	GetUserRooms(ctx context.Context, userId string) ([]room.Room, error)
	CloseRoom(ctx context.Context, roomId, requestingUserId string) error
	LeaveRoom(ctx context.Context, roomId, userId string) error
	EnsureMember(ctx context.Context, roomId, userId string) error
}

type iReadinessTracker interface {
	ReportReadiness(context.Context, *readiness.ReportReadinessParams) error
	GetConsensus(ctx context.Context, roomId string) (readiness.Consensus, error)
}

type iSyncCoordinator interface {
	RequestPlayback(context.Context, *sync.RequestPlaybackParams) error
	RoomState(roomId string) sync.State
}

type iConnRegistry interface {
	Add(conn *websocket.Conn, roomId, userId string)
	RemoveByConn(conn *websocket.Conn) (roomId, userId string, err error)
	RemoveByMember(roomId, userId string)
}

type controller struct {
	roomService iRoomService
	tracker     iReadinessTracker
	coordinator iSyncCoordinator
	conns       iConnRegistry
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(roomService iRoomService, tracker iReadinessTracker, coordinator iSyncCoordinator, conns iConnRegistry, logger *slog.Logger) *controller {
	return &controller{
		roomService: roomService,
		tracker:     tracker,
		coordinator: coordinator,
		conns:       conns,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
}
