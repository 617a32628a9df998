package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	roomRepo "github.com/watchroom/server/internal/repository/room"
)

type CreateRoomParams struct {
	HostUserId string
	Content    ContentRef
}

type CreateRoomResponse struct {
	Room Room
}

// CreateRoom persists a new open room with its host membership. The invite
// code is generated with bounded retry on collision; exhausting the attempts
// is surfaced as ErrCreationFailed, never retried internally.
func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := uuid.NewString()
	now := s.nowFunc().UnixMilli()

	for attempt := 0; attempt < s.cfg.InviteCodeAttempts; attempt++ {
		code := s.generator.GenerateRandomString(s.cfg.InviteCodeLength)

		err := s.roomRepo.CreateRoom(ctx, &roomRepo.CreateRoomParams{
			RoomId:     roomId,
			InviteCode: code,
			HostUserId: params.HostUserId,
			Content: roomRepo.ContentRef{
				Type:      params.Content.Type,
				ContentId: params.Content.ContentId,
				Season:    params.Content.Season,
				Episode:   params.Content.Episode,
			},
			CreatedAt: now,
		})
		if err != nil {
			if errors.Is(err, roomRepo.ErrInviteCodeTaken) {
				s.logger.InfoContext(ctx, "invite code collision", "attempt", attempt+1)
				continue
			}

			return CreateRoomResponse{}, s.storeErr(err)
		}

		s.logger.InfoContext(ctx, "room created", "room_id", roomId, "host_user_id", params.HostUserId)

		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			return CreateRoomResponse{}, s.storeErr(err)
		}

		return CreateRoomResponse{Room: toRoom(roomId, rm)}, nil
	}

	return CreateRoomResponse{}, fmt.Errorf("%w after %d attempts", ErrCreationFailed, s.cfg.InviteCodeAttempts)
}

func (s *service) GetRoom(ctx context.Context, roomId string) (Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return Room{}, ErrNotFound
		}

		return Room{}, s.storeErr(err)
	}

	return toRoom(roomId, rm), nil
}

func (s *service) GetRoomMembers(ctx context.Context, roomId string) ([]Member, error) {
	if _, err := s.GetRoom(ctx, roomId); err != nil {
		return nil, err
	}

	memberships, err := s.roomRepo.ListCurrentMembers(ctx, roomId)
	if err != nil {
		return nil, s.storeErr(err)
	}

	return toMembers(memberships), nil
}

// GetUserRooms returns the rooms where the user currently holds a membership,
// excluding closed rooms.
func (s *service) GetUserRooms(ctx context.Context, userId string) ([]Room, error) {
	roomIds, err := s.roomRepo.ListRoomIdsForUser(ctx, userId)
	if err != nil {
		return nil, s.storeErr(err)
	}

	rooms := make([]Room, 0, len(roomIds))
	for _, roomId := range roomIds {
		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			if errors.Is(err, roomRepo.ErrRoomNotFound) {
				continue
			}

			return nil, s.storeErr(err)
		}

		if rm.Status == string(roomRepo.StatusClosed) {
			continue
		}

		rooms = append(rooms, toRoom(roomId, rm))
	}

	return rooms, nil
}

// CloseRoom is host-only. It ends every current membership, clears the
// room's readiness records and marks the room closed. The per-room lock makes
// it atomic with respect to concurrent joins: a join either fully precedes or
// fully follows the close.
func (s *service) CloseRoom(ctx context.Context, roomId, requestingUserId string) error {
	s.locks.Lock(roomId)
	defer s.locks.Unlock(roomId)

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return ErrNotFound
		}

		return s.storeErr(err)
	}

	if requestingUserId != rm.HostUserId {
		return fmt.Errorf("%w: only the host may close the room", ErrForbidden)
	}

	if rm.Status == string(roomRepo.StatusClosed) {
		return nil
	}

	now := s.nowFunc().UnixMilli()

	memberships, err := s.roomRepo.ListCurrentMembers(ctx, roomId)
	if err != nil {
		return s.storeErr(err)
	}

	for _, m := range memberships {
		if err := s.roomRepo.EndMembership(ctx, &roomRepo.EndMembershipParams{
			RoomId: roomId,
			UserId: m.UserId,
			LeftAt: now,
		}); err != nil {
			return s.storeErr(err)
		}
	}

	if err := s.tracker.ClearRoom(ctx, roomId); err != nil {
		return err
	}

	if err := s.roomRepo.UpdateRoomStatus(ctx, &roomRepo.UpdateRoomStatusParams{
		RoomId:   roomId,
		Status:   roomRepo.StatusClosed,
		ClosedAt: now,
	}); err != nil {
		return s.storeErr(err)
	}

	s.cancelIntent(roomId)
	s.logger.InfoContext(ctx, "room closed", "room_id", roomId)

	return nil
}

// ActivateRoom transitions an open room to active. Issued by the sync
// coordinator when the first playback broadcast goes out; this service stays
// the only writer of room status.
func (s *service) ActivateRoom(ctx context.Context, roomId string) error {
	s.locks.Lock(roomId)
	defer s.locks.Unlock(roomId)

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			return ErrNotFound
		}

		return s.storeErr(err)
	}

	switch rm.Status {
	case string(roomRepo.StatusClosed):
		return ErrNotFound
	case string(roomRepo.StatusOpen):
		if err := s.roomRepo.UpdateRoomStatus(ctx, &roomRepo.UpdateRoomStatusParams{
			RoomId: roomId,
			Status: roomRepo.StatusActive,
		}); err != nil {
			return s.storeErr(err)
		}
	}

	return nil
}
