package server

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rampartgame/rampart/internal/core/debug"
	"github.com/rampartgame/rampart/internal/game"
	"github.com/rampartgame/rampart/internal/protocol"
)

const reasonRoomFull = "Room is full"

// Gateway performs join/reconnect admission against the registry and routes
// every subsequent frame from an established connection into its bound room.
// Decode and routing faults are contained here; they never reach room state.
type Gateway struct {
	registry *game.Registry
	policy   game.ReconnectPolicy
	logger   *zap.SugaredLogger

	// Dump every decoded message to stdout (debugging.message_logging_enabled).
	messageLogging bool
}

func NewGateway(registry *game.Registry, policy game.ReconnectPolicy, logger *zap.SugaredLogger, messageLogging bool) *Gateway {
	return &Gateway{
		registry:       registry,
		policy:         policy,
		logger:         logger,
		messageLogging: messageLogging,
	}
}

// Connection lifecycle with respect to a room.
type sessionState int

const (
	// No room binding yet; only JOIN_GAME is honored.
	stateUnbound sessionState = iota
	// Admitted to a room; frames are forwarded to it.
	stateBound
	stateClosed
)

// session is the gateway's per-connection state. It is only ever touched
// from the connection's read goroutine, so it needs no locking.
type session struct {
	conn     *Conn
	state    sessionState
	playerID string
	room     *game.Room
}

// ServeConn runs the session for one websocket connection and blocks until
// the connection closes.
func (g *Gateway) ServeConn(ws *websocket.Conn) {
	conn := newConn(ws, g.logger)
	s := &session{conn: conn}

	go conn.writePump()
	conn.readPump(
		func(data []byte) { g.handleFrame(s, data) },
		func() { g.handleClose(s) },
	)
}

// handleFrame processes one inbound frame in arrival order. Malformed frames
// are dropped without touching any room state.
func (g *Gateway) handleFrame(s *session, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		g.logger.Debugf("[conn %s] dropping frame: %v", s.conn.RemoteAddr(), err)
		return
	}

	if g.messageLogging {
		debug.DumpMessage("client -> server", msg)
	}

	switch s.state {
	case stateUnbound:
		if msg.Type == protocol.TypeJoinGame {
			g.handleJoin(s, msg)
		}
		// Anything else has no room to route to and is ignored.

	case stateBound:
		switch msg.Type {
		case protocol.TypeJoinGame:
			// Already admitted; a repeat join is ignored.
		case protocol.TypeLeaveGame:
			g.handleLeave(s)
		default:
			s.room.HandleMessage(s.playerID, msg)
		}
	}
}

// handleJoin performs the two-phase admission: a candidate identity goes in,
// the authoritative identity comes back. The candidate is the client's claim
// when it has one (the reconnect case) or a freshly minted id otherwise.
func (g *Gateway) handleJoin(s *session, msg *protocol.Message) {
	payload, err := msg.JoinPayload()
	if err != nil {
		g.logger.Debugf("[conn %s] dropping join: %v", s.conn.RemoteAddr(), err)
		return
	}

	candidateID := payload.PlayerID

	// A claimed identity is resolved against the room holding its seat before
	// any room rotation happens: the claimant's room may be full (their held
	// seat counts) or long rotated past, and neither may push them into a
	// fresh room. Unclaimed joins mint an id and go through normal rotation.
	var room *game.Room
	if candidateID != "" {
		room = g.registry.FindRoomByPlayer(candidateID)
	} else {
		candidateID = uuid.New().String()
	}
	if room == nil {
		room = g.registry.GetOrCreateRoom()
	}
	result := room.AddPlayer(candidateID, s.conn)
	if result == nil {
		// Not a fault: the room filled up. The connection stays unbound and
		// may retry, e.g. once the registry rotates.
		g.send(s, protocol.NewActionFailed(reasonRoomFull))
		return
	}

	s.state = stateBound
	s.playerID = result.PlayerID
	s.room = room
	g.policy.PlayerReturned(result.PlayerID)

	g.send(s, protocol.NewGameJoined(result.PlayerID, string(result.Side), room.ID))
}

// handleLeave is the explicit, irrevocable exit: the session is evicted and
// the side freed for a different player. The connection returns to the
// unbound state and may join again as someone new.
func (g *Gateway) handleLeave(s *session) {
	room, playerID := s.room, s.playerID
	s.state = stateUnbound
	s.playerID = ""
	s.room = nil

	if room.RemovePlayer(playerID) {
		g.registry.Release(room)
	}
}

// handleClose treats a transport close as a disconnect, not a leave: the
// seat stays reserved and the reconnect policy decides its fate.
func (g *Gateway) handleClose(s *session) {
	if s.state == stateBound {
		s.room.DropConnection(s.playerID)
		g.policy.PlayerDisconnected(s.room, s.playerID)
	}
	s.state = stateClosed
}

func (g *Gateway) send(s *session, v interface{}) {
	if g.messageLogging {
		debug.DumpMessage("server -> client", v)
	}

	data, err := protocol.Encode(v)
	if err != nil {
		g.logger.Warnf("[conn %s] dropping reply: %v", s.conn.RemoteAddr(), err)
		return
	}
	s.conn.Send(data)
}
