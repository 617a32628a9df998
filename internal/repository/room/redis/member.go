package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/room"
)

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) getMembershipKey(roomId, userId string) string {
	return "room:" + roomId + ":member:" + userId
}

func (r repo) getUserRoomsKey(userId string) string {
	return "user:" + userId + ":rooms"
}

func (r repo) addMembership(ctx context.Context, pipe redis.Pipeliner, params *room.AddMembershipParams) {
	r.hSetStruct(ctx, pipe, r.getMembershipKey(params.RoomId, params.UserId), room.Membership{
		UserId:   params.UserId,
		Role:     string(params.Role),
		JoinedAt: params.JoinedAt,
		LeftAt:   0,
	})
	r.addWithIncrement(ctx, pipe, r.getMemberListKey(params.RoomId), params.UserId)
	pipe.SAdd(ctx, r.getUserRoomsKey(params.UserId), params.RoomId)
}

func (r repo) GetMembership(ctx context.Context, roomId, userId string) (room.Membership, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)

	var m room.Membership
	if err := r.rc.HGetAll(ctx, r.getMembershipKey(roomId, userId)).Scan(&m); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return room.Membership{}, err
	}

	if m.UserId == "" {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrMembershipNotFound)
		return room.Membership{}, room.ErrMembershipNotFound
	}

	return m, nil
}

// AddMembership is idempotent: re-adding a current membership is a no-op and a
// membership left earlier is reactivated instead of duplicated.
func (r repo) AddMembership(ctx context.Context, params *room.AddMembershipParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	existing, err := r.GetMembership(ctx, params.RoomId, params.UserId)
	switch err {
	case nil:
		if existing.LeftAt == 0 {
			return nil
		}

		pipe := r.rc.TxPipeline()
		pipe.HSet(ctx, r.getMembershipKey(params.RoomId, params.UserId),
			"left_at", 0,
			"role", string(params.Role),
		)
		pipe.SAdd(ctx, r.getUserRoomsKey(params.UserId), params.RoomId)
		if err := r.executePipe(ctx, pipe); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return err
		}

		return nil
	case room.ErrMembershipNotFound:
		pipe := r.rc.TxPipeline()
		r.addMembership(ctx, pipe, params)
		if err := r.executePipe(ctx, pipe); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return err
		}

		return nil
	default:
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}
}

// EndMembership sets left_at on a current membership. Ending an already ended
// membership is a no-op.
func (r repo) EndMembership(ctx context.Context, params *room.EndMembershipParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	existing, err := r.GetMembership(ctx, params.RoomId, params.UserId)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if existing.LeftAt != 0 {
		return nil
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getMembershipKey(params.RoomId, params.UserId), "left_at", params.LeftAt)
	pipe.SRem(ctx, r.getUserRoomsKey(params.UserId), params.RoomId)
	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// ListCurrentMembers returns memberships without left_at, in join order.
func (r repo) ListCurrentMembers(ctx context.Context, roomId string) ([]room.Membership, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	userIds, err := r.rc.ZRange(ctx, r.getMemberListKey(roomId), 0, -1).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	members := make([]room.Membership, 0, len(userIds))
	for _, userId := range userIds {
		m, err := r.GetMembership(ctx, roomId, userId)
		if err != nil {
			if err == room.ErrMembershipNotFound {
				continue
			}

			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, err
		}

		if m.LeftAt == 0 {
			members = append(members, m)
		}
	}

	return members, nil
}

func (r repo) ListRoomIdsForUser(ctx context.Context, userId string) ([]string, error) {
	r.logger.DebugContext(ctx, "called", "user_id", userId)

	roomIds, err := r.rc.SMembers(ctx, r.getUserRoomsKey(userId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	return roomIds, nil
}
