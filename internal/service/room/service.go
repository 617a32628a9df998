package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	roomRepo "github.com/watchroom/server/internal/repository/room"
	"github.com/watchroom/server/pkg/keymutex"
	"github.com/watchroom/server/pkg/randstr"
)

var (
	ErrNotFound         = errors.New("room not found")
	ErrForbidden        = errors.New("permission denied")
	ErrCreationFailed   = errors.New("failed to generate unique invite code")
	ErrStoreUnavailable = errors.New("store unavailable")
)

type iRoomRepo interface {
	CreateRoom(context.Context, *roomRepo.CreateRoomParams) error
	GetRoom(ctx context.Context, roomId string) (roomRepo.Room, error)
	GetRoomIdByInviteCode(ctx context.Context, code string) (string, error)
	ListRoomIdsForUser(ctx context.Context, userId string) ([]string, error)
	GetMembership(ctx context.Context, roomId, userId string) (roomRepo.Membership, error)
	AddMembership(context.Context, *roomRepo.AddMembershipParams) error
	EndMembership(context.Context, *roomRepo.EndMembershipParams) error
	ListCurrentMembers(ctx context.Context, roomId string) ([]roomRepo.Membership, error)
	UpdateRoomStatus(context.Context, *roomRepo.UpdateRoomStatusParams) error
}

type iReadinessTracker interface {
	ClearMember(ctx context.Context, roomId, userId string) error
	ClearRoom(ctx context.Context, roomId string) error
}

// iSyncNotifier is told about membership changes so a pending playback
// intent never survives a change of the audience it was gating on.
type iSyncNotifier interface {
	CancelIntent(roomId string)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	InviteCodeLength   int
	InviteCodeAttempts int
}

type service struct {
	roomRepo  iRoomRepo
	tracker   iReadinessTracker
	sync      iSyncNotifier
	generator iGenerator
	// locks serializes every write touching a single room's membership set
	// or status. Operations on different rooms never contend.
	locks   *keymutex.KeyMutex
	cfg     *Config
	nowFunc func() time.Time
	logger  *slog.Logger
}

func NewService(repo iRoomRepo, tracker iReadinessTracker, cfg *Config, logger *slog.Logger) *service {
	s := service{
		roomRepo: repo,
		tracker:  tracker,
		cfg:      cfg,
		locks:    keymutex.New(),
		nowFunc:  time.Now,
		logger:   logger,
	}

	// no 0/O/1/I/L: invite codes are typed by hand
	s.generator = randstr.New([]byte("ABCDEFGHJKMNPQRSTUVWXYZ23456789"))

	return &s
}

// SetSyncNotifier wires the sync coordinator in after construction; the
// coordinator itself depends on this service.
func (s *service) SetSyncNotifier(n iSyncNotifier) {
	s.sync = n
}

func (s *service) cancelIntent(roomId string) {
	if s.sync != nil {
		s.sync.CancelIntent(roomId)
	}
}

func (s *service) storeErr(err error) error {
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
}
