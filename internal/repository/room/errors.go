package room

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrInviteCodeTaken    = errors.New("invite code already taken")
)
