package redis

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getInviteCodeKey(code string) string {
	return "invite:" + strings.ToUpper(code)
}

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	// claim the invite code first so a collision never leaves a half-created room
	ok, err := r.rc.SetNX(ctx, r.getInviteCodeKey(params.InviteCode), params.RoomId, 0).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	if !ok {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrInviteCodeTaken)
		return room.ErrInviteCodeTaken
	}

	pipe := r.rc.TxPipeline()

	r.hSetStruct(ctx, pipe, r.getRoomKey(params.RoomId), room.Room{
		InviteCode: strings.ToUpper(params.InviteCode),
		HostUserId: params.HostUserId,
		Type:       params.Content.Type,
		ContentId:  params.Content.ContentId,
		Season:     params.Content.Season,
		Episode:    params.Content.Episode,
		Status:     string(room.StatusOpen),
		CreatedAt:  params.CreatedAt,
	})

	r.addMembership(ctx, pipe, &room.AddMembershipParams{
		RoomId:   params.RoomId,
		UserId:   params.HostUserId,
		Role:     room.RoleHost,
		JoinedAt: params.CreatedAt,
	})

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	var rm room.Room
	if err := r.rc.HGetAll(ctx, r.getRoomKey(roomId)).Scan(&rm); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Room{}, err
	}

	if rm.HostUserId == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

func (r repo) GetRoomIdByInviteCode(ctx context.Context, code string) (string, error) {
	r.logger.DebugContext(ctx, "called", "invite_code", code)

	roomId, err := r.rc.Get(ctx, r.getInviteCodeKey(code)).Result()
	if err != nil {
		if err == redis.Nil {
			r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
			return "", room.ErrRoomNotFound
		}

		r.logger.DebugContext(ctx, "returned", "error", err)
		return "", err
	}

	return roomId, nil
}

func (r repo) UpdateRoomStatus(ctx context.Context, params *room.UpdateRoomStatusParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	key := r.getRoomKey(params.RoomId)
	exists, err := r.rc.Exists(ctx, key).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
	if exists == 0 {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	}

	fields := map[string]interface{}{"status": string(params.Status)}
	if params.ClosedAt != 0 {
		fields["closed_at"] = params.ClosedAt
	}

	if err := r.rc.HSet(ctx, key, fields).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
