package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchroom/server/internal/service/readiness"
)

type fakeConsensus struct {
	mu        stdsync.Mutex
	consensus readiness.Consensus
}

func (f *fakeConsensus) set(c readiness.Consensus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consensus = c
}

func (f *fakeConsensus) GetConsensus(_ context.Context, _ string) (readiness.Consensus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consensus, nil
}

type fakeRooms struct {
	hostUserId string

	mu        stdsync.Mutex
	activated []string
}

func (f *fakeRooms) IsHost(_ context.Context, _, userId string) (bool, error) {
	return userId == f.hostUserId, nil
}

func (f *fakeRooms) ActivateRoom(_ context.Context, roomId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, roomId)
	return nil
}

type broadcastCall struct {
	roomId      string
	instruction Instruction
}

type fakeBroadcaster struct {
	calls chan broadcastCall
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{calls: make(chan broadcastCall, 16)}
}

func (f *fakeBroadcaster) Broadcast(roomId string, payload any) error {
	f.calls <- broadcastCall{roomId: roomId, instruction: payload.(Instruction)}
	return nil
}

func newTestCoordinator(consensus *fakeConsensus, rooms *fakeRooms, b *fakeBroadcaster, maxWait time.Duration) *coordinator {
	return NewCoordinator(consensus, rooms, b, &Config{
		PollInterval:   2 * time.Millisecond,
		MaxWait:        maxWait,
		DriftTolerance: 3 * time.Second,
	}, slog.Default())
}

func waitBroadcast(t *testing.T, b *fakeBroadcaster) broadcastCall {
	t.Helper()
	select {
	case call := <-b.calls:
		return call
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast")
		return broadcastCall{}
	}
}

func assertNoBroadcast(t *testing.T, b *fakeBroadcaster, within time.Duration) {
	t.Helper()
	select {
	case call := <-b.calls:
		t.Fatalf("unexpected broadcast: %+v", call)
	case <-time.After(within):
	}
}

func TestRequestPlaybackNonHost(t *testing.T) {
	consensus := &fakeConsensus{}
	rooms := &fakeRooms{hostUserId: "host-1"}
	b := newFakeBroadcaster()
	c := newTestCoordinator(consensus, rooms, b, time.Second)

	err := c.RequestPlayback(context.Background(), &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "user-2",
		Action:   ActionPlay,
	})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, StateIdle, c.RoomState("room-1"))
}

func TestRequestPlaybackUnknownAction(t *testing.T) {
	consensus := &fakeConsensus{}
	rooms := &fakeRooms{hostUserId: "host-1"}
	c := newTestCoordinator(consensus, rooms, newFakeBroadcaster(), time.Second)

	err := c.RequestPlayback(context.Background(), &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   Action("rewind"),
	})
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestPlayBroadcastsOnConsensus(t *testing.T) {
	consensus := &fakeConsensus{}
	consensus.set(readiness.Consensus{AllReady: true, AvgBuffer: 100})
	rooms := &fakeRooms{hostUserId: "host-1"}
	b := newFakeBroadcaster()
	c := newTestCoordinator(consensus, rooms, b, time.Second)

	require.NoError(t, c.RequestPlayback(context.Background(), &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   ActionPlay,
		Position: 12.5,
	}))

	call := waitBroadcast(t, b)
	assert.Equal(t, "room-1", call.roomId)
	assert.Equal(t, ActionPlay, call.instruction.Action)
	assert.Equal(t, 12.5, call.instruction.Position)
	assert.False(t, call.instruction.Degraded)
	assert.Equal(t, float64(3), call.instruction.DriftToleranceSec)
	assert.False(t, call.instruction.IssuedAt.IsZero())

	c.Shutdown()
	assert.Equal(t, StateIdle, c.RoomState("room-1"))
	rooms.mu.Lock()
	assert.Contains(t, rooms.activated, "room-1", "first broadcast must activate the room")
	rooms.mu.Unlock()
}

func TestPlayDegradedAfterMaxWait(t *testing.T) {
	consensus := &fakeConsensus{}
	consensus.set(readiness.Consensus{AllReady: false})
	rooms := &fakeRooms{hostUserId: "host-1"}
	b := newFakeBroadcaster()
	c := newTestCoordinator(consensus, rooms, b, 20*time.Millisecond)

	require.NoError(t, c.RequestPlayback(context.Background(), &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   ActionSeek,
		Position: 90,
	}))
	assert.Equal(t, StateAwaitingConsensus, c.RoomState("room-1"))

	call := waitBroadcast(t, b)
	assert.Equal(t, ActionSeek, call.instruction.Action)
	assert.True(t, call.instruction.Degraded, "a slow member must not block playback indefinitely")

	c.Shutdown()
}

func TestPauseBroadcastsImmediately(t *testing.T) {
	consensus := &fakeConsensus{}
	consensus.set(readiness.Consensus{AllReady: false})
	rooms := &fakeRooms{hostUserId: "host-1"}
	b := newFakeBroadcaster()
	c := newTestCoordinator(consensus, rooms, b, time.Second)

	require.NoError(t, c.RequestPlayback(context.Background(), &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   ActionPause,
		Position: 33,
	}))

	call := waitBroadcast(t, b)
	assert.Equal(t, ActionPause, call.instruction.Action)
	assert.False(t, call.instruction.Degraded)
	assert.Equal(t, StateIdle, c.RoomState("room-1"), "pause never waits for consensus")
}

func TestCancelIntentDropsPendingBroadcast(t *testing.T) {
	consensus := &fakeConsensus{}
	consensus.set(readiness.Consensus{AllReady: false})
	rooms := &fakeRooms{hostUserId: "host-1"}
	b := newFakeBroadcaster()
	c := newTestCoordinator(consensus, rooms, b, time.Second)

	require.NoError(t, c.RequestPlayback(context.Background(), &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   ActionPlay,
	}))
	assert.Equal(t, StateAwaitingConsensus, c.RoomState("room-1"))

	// a membership change cancels the pending intent
	c.CancelIntent("room-1")
	assert.Equal(t, StateIdle, c.RoomState("room-1"))

	// readiness arriving later must not resurrect the cancelled intent
	consensus.set(readiness.Consensus{AllReady: true})
	assertNoBroadcast(t, b, 30*time.Millisecond)

	c.Shutdown()
}

func TestNewIntentReplacesPending(t *testing.T) {
	consensus := &fakeConsensus{}
	consensus.set(readiness.Consensus{AllReady: false})
	rooms := &fakeRooms{hostUserId: "host-1"}
	b := newFakeBroadcaster()
	c := newTestCoordinator(consensus, rooms, b, time.Second)

	ctx := context.Background()
	require.NoError(t, c.RequestPlayback(ctx, &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   ActionPlay,
		Position: 10,
	}))
	require.NoError(t, c.RequestPlayback(ctx, &RequestPlaybackParams{
		RoomId:   "room-1",
		SenderId: "host-1",
		Action:   ActionSeek,
		Position: 200,
	}))

	consensus.set(readiness.Consensus{AllReady: true})

	call := waitBroadcast(t, b)
	assert.Equal(t, ActionSeek, call.instruction.Action)
	assert.Equal(t, float64(200), call.instruction.Position)

	assertNoBroadcast(t, b, 30*time.Millisecond)

	c.Shutdown()
}
