package game

import (
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// ReconnectPolicy decides what eventually happens to a disconnected player's
// seat. The session core itself never starts timers; it reports disconnects
// and returns through this interface and lets the policy make the eviction
// call.
type ReconnectPolicy interface {
	// PlayerDisconnected is invoked when a transport closes while its player
	// still holds a seat in room.
	PlayerDisconnected(room *Room, playerID string)

	// PlayerReturned is invoked when a player successfully (re)joins, which
	// cancels any pending eviction.
	PlayerReturned(playerID string)
}

// NewReconnectPolicy returns the policy for the configured grace period. A
// zero or negative grace disables automatic eviction entirely: seats are then
// only freed by an explicit leave or operator action.
func NewReconnectPolicy(registry *Registry, grace time.Duration, logger *zap.SugaredLogger) ReconnectPolicy {
	if grace <= 0 {
		return noEviction{}
	}
	return newGraceEvictor(registry, grace, logger)
}

type noEviction struct{}

func (noEviction) PlayerDisconnected(*Room, string) {}
func (noEviction) PlayerReturned(string)            {}

// graceEvictor holds an expiring record per disconnected player and evicts
// the session when the record expires. Reconnecting deletes the record; the
// eviction callback re-checks connectivity under the room lock, so a record
// expiring concurrently with a reconnect can never remove a live player.
type graceEvictor struct {
	pending  *cache.Cache
	registry *Registry
	logger   *zap.SugaredLogger
}

func newGraceEvictor(registry *Registry, grace time.Duration, logger *zap.SugaredLogger) *graceEvictor {
	cleanupInterval := grace / 2
	if cleanupInterval < time.Second {
		cleanupInterval = time.Second
	}

	e := &graceEvictor{
		pending:  cache.New(grace, cleanupInterval),
		registry: registry,
		logger:   logger,
	}
	e.pending.OnEvicted(e.evict)
	return e
}

func (e *graceEvictor) PlayerDisconnected(room *Room, playerID string) {
	e.pending.Set(playerID, room, cache.DefaultExpiration)
}

func (e *graceEvictor) PlayerReturned(playerID string) {
	// This fires the eviction callback, which is a no-op now that the
	// session has a connection again.
	e.pending.Delete(playerID)
}

func (e *graceEvictor) evict(playerID string, v interface{}) {
	room, ok := v.(*Room)
	if !ok {
		return
	}

	if room.RemoveIfDisconnected(playerID) {
		e.registry.Release(room)
	}
}
