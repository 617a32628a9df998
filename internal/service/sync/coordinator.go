package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/watchroom/server/internal/service/readiness"
)

var (
	ErrForbidden     = errors.New("only the host controls playback")
	ErrUnknownAction = errors.New("unknown playback action")
)

type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionSeek  Action = "seek"
)

type State string

const (
	StateIdle              State = "idle"
	StateAwaitingConsensus State = "awaiting-consensus"
)

// Instruction is the broadcast sent to every member of the room. Position is
// elapsed seconds from stream start; members outside the drift tolerance are
// expected to seek client-side.
type Instruction struct {
	Action            Action    `json:"action"`
	Position          float64   `json:"position"`
	IssuedAt          time.Time `json:"issued_at"`
	Degraded          bool      `json:"degraded"`
	DriftToleranceSec float64   `json:"drift_tolerance_sec"`
}

type iConsensusSource interface {
	GetConsensus(ctx context.Context, roomId string) (readiness.Consensus, error)
}

type iRoomService interface {
	IsHost(ctx context.Context, roomId, userId string) (bool, error)
	ActivateRoom(ctx context.Context, roomId string) error
}

type iBroadcaster interface {
	Broadcast(roomId string, payload any) error
}

type Config struct {
	PollInterval   time.Duration
	MaxWait        time.Duration
	DriftTolerance time.Duration
}

type intent struct {
	roomId   string
	action   Action
	position float64
	cancel   chan struct{}
}

// coordinator runs one gating loop per room with a pending play/seek intent.
// The host is the single source of truth for the intent itself; readiness
// consensus only decides when it executes.
type coordinator struct {
	mu      stdsync.Mutex
	intents map[string]*intent

	consensus   iConsensusSource
	rooms       iRoomService
	broadcaster iBroadcaster
	cfg         *Config
	nowFunc     func() time.Time
	logger      *slog.Logger
	wg          stdsync.WaitGroup
}

func NewCoordinator(consensus iConsensusSource, rooms iRoomService, broadcaster iBroadcaster, cfg *Config, logger *slog.Logger) *coordinator {
	return &coordinator{
		intents:     make(map[string]*intent),
		consensus:   consensus,
		rooms:       rooms,
		broadcaster: broadcaster,
		cfg:         cfg,
		nowFunc:     time.Now,
		logger:      logger,
	}
}

type RequestPlaybackParams struct {
	RoomId   string
	SenderId string
	Action   Action
	Position float64
}

// RequestPlayback accepts a host playback intent. Pause is relayed
// immediately; play and seek wait for readiness consensus, replacing any
// intent already pending for the room.
func (c *coordinator) RequestPlayback(ctx context.Context, params *RequestPlaybackParams) error {
	isHost, err := c.rooms.IsHost(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return err
	}
	if !isHost {
		return ErrForbidden
	}

	switch params.Action {
	case ActionPause:
		c.CancelIntent(params.RoomId)
		c.broadcast(ctx, params.RoomId, ActionPause, params.Position, false)
		return nil
	case ActionPlay, ActionSeek:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, params.Action)
	}

	it := &intent{
		roomId:   params.RoomId,
		action:   params.Action,
		position: params.Position,
		cancel:   make(chan struct{}),
	}

	c.mu.Lock()
	if old, ok := c.intents[params.RoomId]; ok {
		close(old.cancel)
	}
	c.intents[params.RoomId] = it
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "awaiting consensus", "room_id", params.RoomId, "action", params.Action, "position", params.Position)

	c.wg.Add(1)
	go c.await(it)

	return nil
}

// await polls consensus until everyone is ready or the maximum wait elapses.
// On timeout the broadcast still goes out, marked degraded, so a single slow
// member never blocks playback indefinitely.
func (c *coordinator) await(it *intent) {
	defer c.wg.Done()

	ctx := context.Background()
	deadline := time.NewTimer(c.cfg.MaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-it.cancel:
			return
		case <-deadline.C:
			c.finish(ctx, it, true)
			return
		case <-ticker.C:
			consensus, err := c.consensus.GetConsensus(ctx, it.roomId)
			if err != nil {
				c.logger.InfoContext(ctx, "consensus poll failed", "room_id", it.roomId, "error", err)
				continue
			}

			if consensus.AllReady {
				c.finish(ctx, it, false)
				return
			}
		}
	}
}

func (c *coordinator) finish(ctx context.Context, it *intent, degraded bool) {
	c.mu.Lock()
	if c.intents[it.roomId] != it {
		// cancelled between the last poll and now
		c.mu.Unlock()
		return
	}
	delete(c.intents, it.roomId)
	c.mu.Unlock()

	c.broadcast(ctx, it.roomId, it.action, it.position, degraded)

	if err := c.rooms.ActivateRoom(ctx, it.roomId); err != nil {
		c.logger.InfoContext(ctx, "failed to activate room", "room_id", it.roomId, "error", err)
	}
}

func (c *coordinator) broadcast(ctx context.Context, roomId string, action Action, position float64, degraded bool) {
	instruction := Instruction{
		Action:            action,
		Position:          position,
		IssuedAt:          c.nowFunc(),
		Degraded:          degraded,
		DriftToleranceSec: c.cfg.DriftTolerance.Seconds(),
	}

	if err := c.broadcaster.Broadcast(roomId, instruction); err != nil {
		c.logger.InfoContext(ctx, "broadcast failed", "room_id", roomId, "error", err)
		return
	}

	c.logger.InfoContext(ctx, "broadcast issued", "room_id", roomId, "action", action, "position", position, "degraded", degraded)
}

// CancelIntent drops the room's pending intent, if any. Invoked on every
// membership change and on room close; the host must re-issue.
func (c *coordinator) CancelIntent(roomId string) {
	c.mu.Lock()
	it, ok := c.intents[roomId]
	if ok {
		delete(c.intents, roomId)
	}
	c.mu.Unlock()

	if ok {
		close(it.cancel)
	}
}

func (c *coordinator) RoomState(roomId string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.intents[roomId]; ok {
		return StateAwaitingConsensus
	}

	return StateIdle
}

// Shutdown cancels every pending intent and waits for the gating loops to
// exit.
func (c *coordinator) Shutdown() {
	c.mu.Lock()
	roomIds := maps.Keys(c.intents)
	c.mu.Unlock()

	for _, roomId := range roomIds {
		c.CancelIntent(roomId)
	}

	c.wg.Wait()
}
