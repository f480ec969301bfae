// The game package implements the authoritative room state for a match:
// player admission, the two exclusive sides, message dispatch, and the
// reconnect policy that decides when a disconnected player's seat is
// forfeited.
package game

import "time"

// Side identifies one of the two fixed roles in a room.
type Side string

const (
	SideAttacker Side = "attacker"
	SideDefender Side = "defender"
)

// sideOrder fixes the enumeration order used when assigning an empty slot to
// a new player: attacker first, then defender.
var sideOrder = [2]Side{SideAttacker, SideDefender}

// Conn is the transport binding for a player session. Send must enqueue the
// frame without blocking; transport failures surface asynchronously through
// the connection's close path, never to the sender.
type Conn interface {
	Send(data []byte)
}

// PlayerSession is the durable participation record for one player in a
// room. It outlives any single transport connection: a disconnect clears the
// conn binding but keeps the session (and its side) reserved until the room
// evicts it.
type PlayerSession struct {
	PlayerID string
	Side     Side
	JoinedAt time.Time

	// conn is nil while the player is disconnected but not yet evicted.
	conn Conn
}

// Connected reports whether the session currently has a transport bound.
func (s *PlayerSession) Connected() bool {
	return s.conn != nil
}
