package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	roomRepo "github.com/watchroom/server/internal/repository/room"
)

type JoinRoomParams struct {
	UserId     string
	InviteCode string
}

type JoinRoomResponse struct {
	Room    Room
	Members []Member
}

// JoinRoom resolves the invite code case-insensitively and adds (or
// reactivates) the membership. The host joining their own room keeps the host
// role, which covers host reconnect. An unknown code and a closed room are
// indistinguishable to the caller: both are ErrNotFound.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	roomId, err := s.roomRepo.GetRoomIdByInviteCode(ctx, strings.ToUpper(params.InviteCode))
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return JoinRoomResponse{}, ErrNotFound
		}

		return JoinRoomResponse{}, s.storeErr(err)
	}

	s.locks.Lock(roomId)
	defer s.locks.Unlock(roomId)

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return JoinRoomResponse{}, ErrNotFound
		}

		return JoinRoomResponse{}, s.storeErr(err)
	}

	if rm.Status == string(roomRepo.StatusClosed) {
		return JoinRoomResponse{}, ErrNotFound
	}

	role := roomRepo.RoleMember
	if params.UserId == rm.HostUserId {
		role = roomRepo.RoleHost
	}

	if err := s.roomRepo.AddMembership(ctx, &roomRepo.AddMembershipParams{
		RoomId:   roomId,
		UserId:   params.UserId,
		Role:     role,
		JoinedAt: s.nowFunc().UnixMilli(),
	}); err != nil {
		return JoinRoomResponse{}, s.storeErr(err)
	}

	// no stale readiness from a previous stay in the room
	if err := s.tracker.ClearMember(ctx, roomId, params.UserId); err != nil {
		return JoinRoomResponse{}, err
	}

	s.cancelIntent(roomId)

	memberships, err := s.roomRepo.ListCurrentMembers(ctx, roomId)
	if err != nil {
		return JoinRoomResponse{}, s.storeErr(err)
	}

	s.logger.InfoContext(ctx, "member joined", "room_id", roomId, "user_id", params.UserId, "role", role)

	return JoinRoomResponse{
		Room:    toRoom(roomId, rm),
		Members: toMembers(memberships),
	}, nil
}

// LeaveRoom ends the membership and clears the member's readiness. A leaving
// host does not close the room: host absence is tolerated and the host may
// reconnect through the invite code.
func (s *service) LeaveRoom(ctx context.Context, roomId, userId string) error {
	s.locks.Lock(roomId)
	defer s.locks.Unlock(roomId)

	if err := s.roomRepo.EndMembership(ctx, &roomRepo.EndMembershipParams{
		RoomId: roomId,
		UserId: userId,
		LeftAt: s.nowFunc().UnixMilli(),
	}); err != nil {
		if errors.Is(err, roomRepo.ErrMembershipNotFound) {
			return ErrNotFound
		}

		return s.storeErr(err)
	}

	if err := s.tracker.ClearMember(ctx, roomId, userId); err != nil {
		return err
	}

	s.cancelIntent(roomId)
	s.logger.InfoContext(ctx, "member left", "room_id", roomId, "user_id", userId)

	return nil
}

// EnsureMember fails with ErrForbidden unless the user currently belongs to
// the room.
func (s *service) EnsureMember(ctx context.Context, roomId, userId string) error {
	m, err := s.roomRepo.GetMembership(ctx, roomId, userId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrMembershipNotFound) {
			return fmt.Errorf("%w: not a member of the room", ErrForbidden)
		}

		return s.storeErr(err)
	}

	if m.LeftAt != 0 {
		return fmt.Errorf("%w: not a member of the room", ErrForbidden)
	}

	return nil
}

// IsHost reports whether the user is the room's host.
func (s *service) IsHost(ctx context.Context, roomId, userId string) (bool, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return false, ErrNotFound
		}

		return false, s.storeErr(err)
	}

	return rm.HostUserId == userId, nil
}
