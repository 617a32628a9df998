package room

type CreateRoomParams struct {
	RoomId     string
	InviteCode string
	HostUserId string
	Content    ContentRef
	CreatedAt  int64
}

type AddMembershipParams struct {
	RoomId   string
	UserId   string
	Role     Role
	JoinedAt int64
}

type EndMembershipParams struct {
	RoomId string
	UserId string
	LeftAt int64
}

type UpdateRoomStatusParams struct {
	RoomId string
	Status RoomStatus
	// ClosedAt is only set together with StatusClosed.
	ClosedAt int64
}
