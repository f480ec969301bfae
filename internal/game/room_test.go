package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rampartgame/rampart/internal/protocol"
)

// fakeConn records every frame sent through it.
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *fakeConn) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
}

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *fakeConn) lastMessageType(t *testing.T) protocol.MessageType {
	t.Helper()
	frames := c.sent()
	require.NotEmpty(t, frames, "expected at least one frame")

	var env struct {
		Type protocol.MessageType `json:"type"`
	}
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &env))
	return env.Type
}

// recordingSim captures every applied message in arrival order.
type recordingSim struct {
	applied []appliedMsg
	err     error
}

type appliedMsg struct {
	side Side
	kind protocol.MessageType
	raw  string
}

func (s *recordingSim) Apply(side Side, msg *protocol.Message) (interface{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.applied = append(s.applied, appliedMsg{side: side, kind: msg.Type, raw: string(msg.Raw)})
	return map[string]int{"applied": len(s.applied)}, nil
}

func newTestRoom(sim Simulator) *Room {
	if sim == nil {
		sim = &recordingSim{}
	}
	return NewRoom("room-1", sim, zap.NewNop().Sugar())
}

func mustDecode(t *testing.T, frame string) *protocol.Message {
	t.Helper()
	msg, err := protocol.Decode([]byte(frame))
	require.NoError(t, err)
	return msg
}

func TestRoom_AddPlayer_AssignsSidesInOrder(t *testing.T) {
	room := newTestRoom(nil)

	first := room.AddPlayer("p1", &fakeConn{})
	require.NotNil(t, first)
	assert.Equal(t, "p1", first.PlayerID)
	assert.Equal(t, SideAttacker, first.Side)
	assert.False(t, room.IsFull())
	assert.False(t, room.IsEmpty())

	second := room.AddPlayer("p2", &fakeConn{})
	require.NotNil(t, second)
	assert.Equal(t, SideDefender, second.Side)
	assert.True(t, room.IsFull())
}

func TestRoom_AddPlayer_NeverExceedsTwoSides(t *testing.T) {
	room := newTestRoom(nil)

	sides := make(map[Side]string)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("p%d", i)
		result := room.AddPlayer(id, &fakeConn{})
		if result != nil {
			sides[result.Side] = id
		}
	}

	assert.Len(t, sides, 2, "only two sides may ever be occupied")
	assert.Equal(t, "p0", sides[SideAttacker])
	assert.Equal(t, "p1", sides[SideDefender])
}

func TestRoom_AddPlayer_FullRoomRejectsWithoutMutation(t *testing.T) {
	room := newTestRoom(nil)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", &fakeConn{}))

	assert.Nil(t, room.AddPlayer("p3", &fakeConn{}))

	// Existing bindings are untouched: both originals still resolve to their
	// original sides.
	r1 := room.AddPlayer("p1", &fakeConn{})
	r2 := room.AddPlayer("p2", &fakeConn{})
	require.NotNil(t, r1)
	require.NotNil(t, r2)
	assert.Equal(t, SideAttacker, r1.Side)
	assert.Equal(t, SideDefender, r2.Side)
}

func TestRoom_Reconnect_KeepsSideAndSlotCount(t *testing.T) {
	room := newTestRoom(nil)

	first := room.AddPlayer("p1", &fakeConn{})
	require.NotNil(t, first)
	require.Equal(t, SideAttacker, first.Side)

	room.DropConnection("p1")

	// The seat is still reserved while disconnected.
	assert.False(t, room.IsEmpty())

	again := room.AddPlayer("p1", &fakeConn{})
	require.NotNil(t, again)
	assert.Equal(t, "p1", again.PlayerID)
	assert.Equal(t, SideAttacker, again.Side)

	// No second slot was created: a different player still fits.
	other := room.AddPlayer("p2", &fakeConn{})
	require.NotNil(t, other)
	assert.Equal(t, SideDefender, other.Side)
}

func TestRoom_DisconnectedPlayerStillCountsTowardFull(t *testing.T) {
	room := newTestRoom(nil)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", &fakeConn{}))

	room.DropConnection("p1")

	assert.True(t, room.IsFull(), "a held seat counts as occupied")
	assert.False(t, room.IsEmpty())
	assert.Nil(t, room.AddPlayer("p3", &fakeConn{}), "the held seat must not be given away")
}

func TestRoom_RemovePlayer_EmptiesRoom(t *testing.T) {
	room := newTestRoom(nil)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", &fakeConn{}))

	assert.True(t, room.RemovePlayer("p1"))
	assert.False(t, room.IsEmpty())

	assert.True(t, room.RemovePlayer("p2"))
	assert.True(t, room.IsEmpty())

	assert.False(t, room.RemovePlayer("p1"), "removing twice is a no-op")
}

func TestRoom_RemovePlayer_FreesSideForNewPlayer(t *testing.T) {
	room := newTestRoom(nil)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", &fakeConn{}))
	require.True(t, room.RemovePlayer("p1"))

	result := room.AddPlayer("p3", &fakeConn{})
	require.NotNil(t, result)
	assert.Equal(t, SideAttacker, result.Side)
}

func TestRoom_RemovePlayer_NotifiesRemainingPlayer(t *testing.T) {
	room := newTestRoom(nil)
	c2 := &fakeConn{}
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", c2))

	require.True(t, room.RemovePlayer("p1"))

	assert.Equal(t, protocol.TypePlayerLeft, c2.lastMessageType(t))
}

func TestRoom_RemovePlayer_ConfirmsToTheLeaver(t *testing.T) {
	room := newTestRoom(nil)
	c1 := &fakeConn{}
	require.NotNil(t, room.AddPlayer("p1", c1))

	require.True(t, room.RemovePlayer("p1"))

	// The leaver hears their own departure rather than inferring it from
	// silence.
	assert.Equal(t, protocol.TypePlayerLeft, c1.lastMessageType(t))
}

func TestRoom_RemoveIfDisconnected(t *testing.T) {
	room := newTestRoom(nil)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))

	assert.False(t, room.RemoveIfDisconnected("p1"), "a connected player must not be evicted")

	room.DropConnection("p1")
	assert.True(t, room.RemoveIfDisconnected("p1"))
	assert.True(t, room.IsEmpty())
}

func TestRoom_HandleMessage_AppliesInArrivalOrder(t *testing.T) {
	sim := &recordingSim{}
	room := newTestRoom(sim)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", &fakeConn{}))

	room.HandleMessage("p1", mustDecode(t, `{"type":"PLACE_TOWER","x":1,"y":1,"towerType":"arrow"}`))
	room.HandleMessage("p2", mustDecode(t, `{"type":"WAVE_READY"}`))
	room.HandleMessage("p1", mustDecode(t, `{"type":"WAVE_READY"}`))

	require.Len(t, sim.applied, 3)
	assert.Equal(t, SideAttacker, sim.applied[0].side)
	assert.Equal(t, protocol.TypePlaceTower, sim.applied[0].kind)
	assert.Equal(t, SideDefender, sim.applied[1].side)
	assert.Equal(t, SideAttacker, sim.applied[2].side)
}

func TestRoom_HandleMessage_ConcurrentDeliveryLosesNothing(t *testing.T) {
	sim := &recordingSim{}
	room := newTestRoom(sim)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))
	require.NotNil(t, room.AddPlayer("p2", &fakeConn{}))

	const perPlayer = 200
	msg := mustDecode(t, `{"type":"WAVE_READY"}`)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, id := range []string{"p1", "p2"} {
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perPlayer; i++ {
				room.HandleMessage(id, msg)
			}
		}(id)
	}
	wg.Wait()

	// Per-player order is preserved by each goroutine's loop; the room must
	// additionally apply every message exactly once.
	assert.Len(t, sim.applied, 2*perPlayer)
}

func TestRoom_HandleMessage_DropsUnknownSender(t *testing.T) {
	sim := &recordingSim{}
	room := newTestRoom(sim)
	require.NotNil(t, room.AddPlayer("p1", &fakeConn{}))

	room.HandleMessage("intruder", mustDecode(t, `{"type":"WAVE_READY"}`))

	assert.Empty(t, sim.applied)
}

func TestRoom_HandleMessage_BroadcastSkipsDisconnected(t *testing.T) {
	c1 := &fakeConn{}
	c2 := &fakeConn{}
	room := newTestRoom(nil)
	require.NotNil(t, room.AddPlayer("p1", c1))
	require.NotNil(t, room.AddPlayer("p2", c2))

	room.DropConnection("p2")
	room.HandleMessage("p1", mustDecode(t, `{"type":"WAVE_READY"}`))

	assert.Equal(t, protocol.TypeStateUpdate, c1.lastMessageType(t))
	assert.Empty(t, c2.sent(), "disconnected sessions must be skipped, not queued")
}

func TestRoom_HandleMessage_SimulationErrorGoesToActorOnly(t *testing.T) {
	c1 := &fakeConn{}
	c2 := &fakeConn{}
	room := newTestRoom(&recordingSim{err: errors.New("not enough gold")})
	require.NotNil(t, room.AddPlayer("p1", c1))
	require.NotNil(t, room.AddPlayer("p2", c2))

	room.HandleMessage("p1", mustDecode(t, `{"type":"PLACE_TOWER"}`))

	assert.Equal(t, protocol.TypeActionFailed, c1.lastMessageType(t))
	assert.Empty(t, c2.sent(), "the opponent must not see the actor's failure")
}
