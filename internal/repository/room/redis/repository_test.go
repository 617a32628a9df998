package redis

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchroom/server/internal/repository/room"
)

func newTestRepo(t *testing.T) *repo {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})

	return NewRepo(rc, slog.Default())
}

func createTestRoom(t *testing.T, r *repo, roomId, code, hostUserId string) {
	t.Helper()

	require.NoError(t, r.CreateRoom(context.Background(), &room.CreateRoomParams{
		RoomId:     roomId,
		InviteCode: code,
		HostUserId: hostUserId,
		Content:    room.ContentRef{Type: "movie", ContentId: "m-1"},
		CreatedAt:  1700000000000,
	}))
}

func TestCreateAndGetRoom(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	createTestRoom(t, r, "room-1", "abc234", "host-1")

	rm, err := r.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC234", rm.InviteCode, "codes are stored uppercase")
	assert.Equal(t, "host-1", rm.HostUserId)
	assert.Equal(t, string(room.StatusOpen), rm.Status)
	assert.Equal(t, int64(1700000000000), rm.CreatedAt)
	assert.Zero(t, rm.ClosedAt)

	// the host membership is created atomically with the room
	members, err := r.ListCurrentMembers(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "host-1", members[0].UserId)
	assert.Equal(t, string(room.RoleHost), members[0].Role)
}

func TestGetRoomNotFound(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.GetRoom(context.Background(), "missing")
	require.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestInviteCodeLookupCaseInsensitive(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	createTestRoom(t, r, "room-1", "XyZ789", "host-1")

	for _, code := range []string{"XYZ789", "xyz789", "XyZ789"} {
		roomId, err := r.GetRoomIdByInviteCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "room-1", roomId)
	}

	_, err := r.GetRoomIdByInviteCode(ctx, "AAAAAA")
	require.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestCreateRoomInviteCodeCollision(t *testing.T) {
	r := newTestRepo(t)

	createTestRoom(t, r, "room-1", "SAME11", "host-1")

	err := r.CreateRoom(context.Background(), &room.CreateRoomParams{
		RoomId:     "room-2",
		InviteCode: "same11",
		HostUserId: "host-2",
		Content:    room.ContentRef{Type: "movie", ContentId: "m-2"},
		CreatedAt:  1700000000000,
	})
	require.ErrorIs(t, err, room.ErrInviteCodeTaken)

	// the colliding create must not leave a room behind
	_, err = r.GetRoom(context.Background(), "room-2")
	require.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestAddMembershipIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	createTestRoom(t, r, "room-1", "ABC111", "host-1")

	params := &room.AddMembershipParams{
		RoomId:   "room-1",
		UserId:   "user-2",
		Role:     room.RoleMember,
		JoinedAt: 1700000001000,
	}
	require.NoError(t, r.AddMembership(ctx, params))
	require.NoError(t, r.AddMembership(ctx, params))

	members, err := r.ListCurrentMembers(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestEndAndReactivateMembership(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	createTestRoom(t, r, "room-1", "ABC222", "host-1")
	require.NoError(t, r.AddMembership(ctx, &room.AddMembershipParams{
		RoomId: "room-1", UserId: "user-2", Role: room.RoleMember, JoinedAt: 1700000001000,
	}))

	require.NoError(t, r.EndMembership(ctx, &room.EndMembershipParams{
		RoomId: "room-1", UserId: "user-2", LeftAt: 1700000002000,
	}))

	members, err := r.ListCurrentMembers(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	m, err := r.GetMembership(ctx, "room-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000002000), m.LeftAt)

	// ending again is a no-op
	require.NoError(t, r.EndMembership(ctx, &room.EndMembershipParams{
		RoomId: "room-1", UserId: "user-2", LeftAt: 1700000003000,
	}))
	m, err = r.GetMembership(ctx, "room-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000002000), m.LeftAt)

	// rejoining reactivates the same membership
	require.NoError(t, r.AddMembership(ctx, &room.AddMembershipParams{
		RoomId: "room-1", UserId: "user-2", Role: room.RoleMember, JoinedAt: 1700000004000,
	}))
	members, err = r.ListCurrentMembers(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestEndMembershipNotFound(t *testing.T) {
	r := newTestRepo(t)

	err := r.EndMembership(context.Background(), &room.EndMembershipParams{
		RoomId: "room-1", UserId: "ghost", LeftAt: 1700000002000,
	})
	require.ErrorIs(t, err, room.ErrMembershipNotFound)
}

func TestListRoomIdsForUser(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	createTestRoom(t, r, "room-1", "ABC333", "host-1")
	createTestRoom(t, r, "room-2", "ABC444", "host-1")

	roomIds, err := r.ListRoomIdsForUser(ctx, "host-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"room-1", "room-2"}, roomIds)

	require.NoError(t, r.EndMembership(ctx, &room.EndMembershipParams{
		RoomId: "room-1", UserId: "host-1", LeftAt: 1700000002000,
	}))

	roomIds, err = r.ListRoomIdsForUser(ctx, "host-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"room-2"}, roomIds)
}

func TestUpdateRoomStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	createTestRoom(t, r, "room-1", "ABC555", "host-1")

	require.NoError(t, r.UpdateRoomStatus(ctx, &room.UpdateRoomStatusParams{
		RoomId: "room-1",
		Status: room.StatusActive,
	}))

	rm, err := r.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, string(room.StatusActive), rm.Status)
	assert.Zero(t, rm.ClosedAt)

	require.NoError(t, r.UpdateRoomStatus(ctx, &room.UpdateRoomStatusParams{
		RoomId:   "room-1",
		Status:   room.StatusClosed,
		ClosedAt: 1700000005000,
	}))

	rm, err = r.GetRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, string(room.StatusClosed), rm.Status)
	assert.Equal(t, int64(1700000005000), rm.ClosedAt)

	err = r.UpdateRoomStatus(ctx, &room.UpdateRoomStatusParams{
		RoomId: "missing",
		Status: room.StatusClosed,
	})
	require.ErrorIs(t, err, room.ErrRoomNotFound)
}
