package room

import (
	"time"

	roomRepo "github.com/watchroom/server/internal/repository/room"
)

type ContentRef struct {
	Type      string `json:"type"`
	ContentId string `json:"content_id"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

type Room struct {
	Id         string     `json:"id"`
	InviteCode string     `json:"invite_code"`
	HostUserId string     `json:"host_user_id"`
	Content    ContentRef `json:"content_ref"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

type Member struct {
	UserId   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func toRoom(roomId string, r roomRepo.Room) Room {
	room := Room{
		Id:         roomId,
		InviteCode: r.InviteCode,
		HostUserId: r.HostUserId,
		Content: ContentRef{
			Type:      r.Type,
			ContentId: r.ContentId,
			Season:    r.Season,
			Episode:   r.Episode,
		},
		Status:    r.Status,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}

	if r.ClosedAt != 0 {
		closedAt := time.UnixMilli(r.ClosedAt)
		room.ClosedAt = &closedAt
	}

	return room
}

func toMembers(memberships []roomRepo.Membership) []Member {
	members := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, Member{
			UserId:   m.UserId,
			Role:     m.Role,
			JoinedAt: time.UnixMilli(m.JoinedAt),
		})
	}

	return members
}
