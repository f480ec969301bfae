// The protocol package defines the JSON message envelope exchanged between
// the browser client and the server. Messages are a tagged union keyed by a
// "type" field; payloads of simulation messages are opaque to the session
// core and are carried through as raw JSON.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType is the discriminator carried in every frame's "type" field.
type MessageType string

// Messages sent by the client.
const (
	TypeJoinGame     MessageType = "JOIN_GAME"
	TypeLeaveGame    MessageType = "LEAVE_GAME"
	TypePlaceTower   MessageType = "PLACE_TOWER"
	TypeSellTower    MessageType = "SELL_TOWER"
	TypeUpgradeTower MessageType = "UPGRADE_TOWER"
	TypeWaveReady    MessageType = "WAVE_READY"
)

// Messages sent by the server.
const (
	TypeGameJoined   MessageType = "GAME_JOINED"
	TypeActionFailed MessageType = "ACTION_FAILED"
	TypeStateUpdate  MessageType = "STATE_UPDATE"
	TypePlayerLeft   MessageType = "PLAYER_LEFT"
)

var knownClientTypes = map[MessageType]bool{
	TypeJoinGame:     true,
	TypeLeaveGame:    true,
	TypePlaceTower:   true,
	TypeSellTower:    true,
	TypeUpgradeTower: true,
	TypeWaveReady:    true,
}

// Message is a decoded client frame. Raw retains the full frame so that
// simulation payloads can be forwarded without the session core needing to
// understand them.
type Message struct {
	Type MessageType
	Raw  json.RawMessage
}

// DecodeError is returned for any frame that cannot be turned into a valid
// Message. Callers are expected to drop the frame rather than propagate the
// failure any further.
type DecodeError struct {
	Reason string
	err    error
}

func (e *DecodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("decoding message: %s: %v", e.Reason, e.err)
	}
	return fmt.Sprintf("decoding message: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.err }

type envelope struct {
	Type MessageType `json:"type"`
}

// Decode parses a client frame into a Message. Malformed JSON, a missing
// "type" field, or a type outside the known client set all yield a
// *DecodeError; Decode never panics on untrusted input.
func Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "malformed frame", err: err}
	}
	if env.Type == "" {
		return nil, &DecodeError{Reason: "missing type field"}
	}
	if !knownClientTypes[env.Type] {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown message type %q", env.Type)}
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Message{Type: env.Type, Raw: raw}, nil
}

// Encode serializes a server message for transmission.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return data, nil
}

// JoinGamePayload is the optional body of a JOIN_GAME frame. PlayerID is the
// client's claimed identity; it's empty on a first join and carries the
// previously assigned id on a reconnect attempt.
type JoinGamePayload struct {
	PlayerID string `json:"playerId,omitempty"`
}

// JoinPayload extracts the JOIN_GAME body from a decoded message.
func (m *Message) JoinPayload() (JoinGamePayload, error) {
	var p JoinGamePayload
	if err := json.Unmarshal(m.Raw, &p); err != nil {
		return JoinGamePayload{}, &DecodeError{Reason: "malformed JOIN_GAME payload", err: err}
	}
	return p, nil
}

// GameJoined confirms a successful admission. PlayerID is the authoritative
// identity assigned by the room, which may differ from the id the client
// claimed.
type GameJoined struct {
	Type       MessageType `json:"type"`
	PlayerID   string      `json:"playerId"`
	PlayerSide string      `json:"playerSide"`
	RoomID     string      `json:"roomId"`
}

func NewGameJoined(playerID, side, roomID string) GameJoined {
	return GameJoined{Type: TypeGameJoined, PlayerID: playerID, PlayerSide: side, RoomID: roomID}
}

// ActionFailed reports a failed admission or rejected action to the client
// that requested it.
type ActionFailed struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

func NewActionFailed(reason string) ActionFailed {
	return ActionFailed{Type: TypeActionFailed, Reason: reason}
}

// StateUpdate carries an authoritative game state snapshot to every connected
// player in a room.
type StateUpdate struct {
	Type  MessageType `json:"type"`
	State interface{} `json:"state"`
}

func NewStateUpdate(state interface{}) StateUpdate {
	return StateUpdate{Type: TypeStateUpdate, State: state}
}

// PlayerLeft notifies the remaining player that their opponent's session was
// removed from the room for good.
type PlayerLeft struct {
	Type     MessageType `json:"type"`
	PlayerID string      `json:"playerId"`
}

func NewPlayerLeft(playerID string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, PlayerID: playerID}
}
