package game

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rampartgame/rampart/internal/protocol"
)

// AdmitResult is the outcome of a successful admission: the authoritative
// player identity and the side it occupies. The id may differ from the one
// the caller proposed when the admission resolved to an existing session.
type AdmitResult struct {
	PlayerID string
	Side     Side
}

// Room owns the state for one match: two player slots and the authoritative
// game state behind them. Every mutation goes through one of the exported
// methods, each of which holds the room's mutex for its full duration, so a
// room is a single serialization point for all messages regardless of which
// connection they arrived on. Two rooms never contend on the same lock.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	sessions map[Side]*PlayerSession
	sim      Simulator
	logger   *zap.SugaredLogger
}

func NewRoom(id string, sim Simulator, logger *zap.SugaredLogger) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		sessions:  make(map[Side]*PlayerSession),
		sim:       sim,
		logger:    logger,
	}
}

// AddPlayer admits a player to the room, or rebinds an existing session when
// playerID matches one already seated (the reconnection path). It returns nil
// when both sides are held by other identities, in which case the caller is
// expected to surface "Room is full" to the client.
func (r *Room) AddPlayer(playerID string, conn Conn) *AdmitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Reconnection: the session keeps its side and accumulated state, only
	// the transport binding is replaced.
	if session := r.findSession(playerID); session != nil {
		session.conn = conn
		r.logger.Infof("[room %s] player %s reconnected as %s", r.ID, playerID, session.Side)
		return &AdmitResult{PlayerID: session.PlayerID, Side: session.Side}
	}

	for _, side := range sideOrder {
		if _, occupied := r.sessions[side]; occupied {
			continue
		}

		r.sessions[side] = &PlayerSession{
			PlayerID: playerID,
			Side:     side,
			JoinedAt: time.Now(),
			conn:     conn,
		}
		r.logger.Infof("[room %s] player %s joined as %s", r.ID, playerID, side)
		return &AdmitResult{PlayerID: playerID, Side: side}
	}

	return nil
}

// RemovePlayer evicts the session for playerID entirely, freeing its side for
// a different player. This is the irrevocable path, distinct from a
// connection drop. The departure notice goes to the leaver as confirmation
// and to everyone remaining. Returns whether a session was removed.
func (r *Room) RemovePlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.findSession(playerID)
	if session == nil {
		return false
	}

	delete(r.sessions, session.Side)
	r.logger.Infof("[room %s] player %s removed from %s", r.ID, playerID, session.Side)

	notice := protocol.NewPlayerLeft(playerID)
	r.sendTo(session, notice)
	r.broadcast(notice)
	return true
}

// RemoveIfDisconnected evicts playerID only if their session exists and has
// no transport bound. The check and the eviction happen under the room lock
// so a reconnect can never race an eviction into removing a live player.
func (r *Room) RemoveIfDisconnected(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.findSession(playerID)
	if session == nil || session.Connected() {
		return false
	}

	delete(r.sessions, session.Side)
	r.logger.Infof("[room %s] player %s evicted from %s after grace period", r.ID, playerID, session.Side)

	r.broadcast(protocol.NewPlayerLeft(playerID))
	return true
}

// DropConnection clears the transport binding for playerID without giving up
// the seat. The session stays reconnect-eligible until it is removed.
func (r *Room) DropConnection(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session := r.findSession(playerID); session != nil {
		session.conn = nil
		r.logger.Infof("[room %s] player %s disconnected, holding %s", r.ID, playerID, session.Side)
	}
}

// HandleMessage applies a client message to the game state. Messages from
// identities with no session in the room are dropped. Simulation rejections
// go back to the acting player as ACTION_FAILED; accepted actions produce a
// state broadcast to every connected player.
func (r *Room) HandleMessage(playerID string, msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.findSession(playerID)
	if session == nil {
		r.logger.Debugf("[room %s] dropping %s from unknown player %s", r.ID, msg.Type, playerID)
		return
	}

	state, err := r.sim.Apply(session.Side, msg)
	if err != nil {
		r.sendTo(session, protocol.NewActionFailed(err.Error()))
		return
	}
	if state != nil {
		r.broadcast(protocol.NewStateUpdate(state))
	}
}

// HasPlayer reports whether playerID holds a seat in the room, connected
// or not.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findSession(playerID) != nil
}

// IsFull reports whether both sides hold a session. A disconnected player
// still counts: their side is reserved for the reconnection window.
func (r *Room) IsFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) == len(sideOrder)
}

// IsEmpty reports whether no side holds a session.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) == 0
}

// findSession returns the session for playerID, or nil. Callers must hold r.mu.
func (r *Room) findSession(playerID string) *PlayerSession {
	for _, session := range r.sessions {
		if session.PlayerID == playerID {
			return session
		}
	}
	return nil
}

// broadcast sends a server message to every connected session. Disconnected
// sessions are skipped rather than queued; a reconnecting player catches up
// from the next full-state snapshot. Callers must hold r.mu.
func (r *Room) broadcast(v interface{}) {
	data, err := protocol.Encode(v)
	if err != nil {
		r.logger.Warnf("[room %s] dropping broadcast: %v", r.ID, err)
		return
	}

	for _, session := range r.sessions {
		if session.Connected() {
			session.conn.Send(data)
		}
	}
}

// sendTo sends a server message to a single session if it is connected.
// Callers must hold r.mu.
func (r *Room) sendTo(session *PlayerSession, v interface{}) {
	if !session.Connected() {
		return
	}

	data, err := protocol.Encode(v)
	if err != nil {
		r.logger.Warnf("[room %s] dropping message to %s: %v", r.ID, session.PlayerID, err)
		return
	}
	session.conn.Send(data)
}
