package readiness

import "errors"

var ErrRecordNotFound = errors.New("readiness record not found")

type Record struct {
	UserId        string  `redis:"user_id"`
	IsReady       bool    `redis:"is_ready"`
	BufferPercent float64 `redis:"buffer_percent"`
	// UpdatedAt is unix milliseconds of the last report.
	UpdatedAt int64 `redis:"updated_at"`
}

type SetRecordParams struct {
	RoomId        string
	UserId        string
	IsReady       bool
	BufferPercent float64
	UpdatedAt     int64
}
