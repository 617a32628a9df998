package room

type RoomStatus string

const (
	StatusOpen   RoomStatus = "open"
	StatusActive RoomStatus = "active"
	StatusClosed RoomStatus = "closed"
)

type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

type ContentRef struct {
	Type      string
	ContentId string
	Season    int
	Episode   int
}

type Room struct {
	InviteCode string `redis:"invite_code"`
	HostUserId string `redis:"host_user_id"`
	Type       string `redis:"content_type"`
	ContentId  string `redis:"content_id"`
	Season     int    `redis:"season"`
	Episode    int    `redis:"episode"`
	Status     string `redis:"status"`
	CreatedAt  int64  `redis:"created_at"`
	// ClosedAt is 0 while the room is not closed.
	ClosedAt int64 `redis:"closed_at"`
}

type Membership struct {
	UserId   string `redis:"user_id"`
	Role     string `redis:"role"`
	JoinedAt int64  `redis:"joined_at"`
	// LeftAt is 0 while the membership is current.
	LeftAt int64 `redis:"left_at"`
}
