package game

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoomFactory builds a new room for the given id. The registry owns when a
// room is created; the factory owns how (which simulation it runs, etc).
type RoomFactory func(id string) *Room

// Registry tracks every open room and the single one currently accepting new
// players. It is the only process-wide decision point for joins: under
// concurrent join attempts exactly one room is created and every concurrent
// joiner observes the same instance. Rooms the registry has rotated away from
// stay indexed until they empty out, so a reconnecting player can be routed
// back to the room still holding their seat.
type Registry struct {
	mu      sync.Mutex
	current *Room
	open    map[string]*Room

	newRoom RoomFactory
	logger  *zap.SugaredLogger
}

func NewRegistry(newRoom RoomFactory, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		open:    make(map[string]*Room),
		newRoom: newRoom,
		logger:  logger,
	}
}

// GetOrCreateRoom returns the joinable room, rotating to a fresh one when
// none exists or the current one is full. The read-or-create decision is
// atomic under the registry mutex.
func (g *Registry) GetOrCreateRoom() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil || g.current.IsFull() {
		g.current = g.newRoom(uuid.New().String())
		g.open[g.current.ID] = g.current
		g.logger.Infof("opened room %s", g.current.ID)
	}
	return g.current
}

// FindRoomByPlayer returns the open room holding a session for playerID, or
// nil when none does. A held seat counts even while its player is
// disconnected, which is what routes a reconnect claim back into a room the
// registry has already rotated past. Looking up a claim never rotates the
// joinable room.
func (g *Registry) FindRoomByPlayer(playerID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, room := range g.open {
		if room.HasPlayer(playerID) {
			return room
		}
	}
	return nil
}

// Release forgets room once it has emptied out, whether or not it is still
// the current joinable room. Occupied rooms are left alone.
func (g *Registry) Release(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, open := g.open[room.ID]; !open || !room.IsEmpty() {
		return
	}

	delete(g.open, room.ID)
	if g.current == room {
		g.current = nil
	}
	g.logger.Infof("closed room %s", room.ID)
}
