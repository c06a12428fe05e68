package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmat/mapracer/pkg/geo"

	"github.com/fxamacker/cbor/v2"
)

// ID discriminates the messages exchanged with sender devices.
type ID string

const (
	// Sent by sender devices.
	LoginMessage    ID = "login"
	LogoutMessage   ID = "logout"
	RequestMessage  ID = "request"
	PositionMessage ID = "position"

	// Sent by the receiver.
	GameStateMessage   ID = "game_state"
	PlayerStateMessage ID = "player_state"
	InfoMessage        ID = "info"
)

// ErrUnknownType is returned by Decode for message types the receiver does
// not understand. The session layer drops these silently.
var ErrUnknownType = errors.New("unknown message type")

// Message is implemented by every protocol message.
type Message interface {
	Type() ID
}

// Login associates a stable player identity with the current connection.
// The player id survives reconnects; the connection id does not.
type Login struct {
	ID   string `json:"id" cbor:"id"`
	Name string `json:"name,omitempty" cbor:"name,omitempty"`
}

func (Login) Type() ID { return LoginMessage }

// Logout announces that the player is leaving for good.
type Logout struct{}

func (Logout) Type() ID { return LogoutMessage }

// Request proposes a new race. Locations may be omitted, in which case the
// receiver picks and resolves them on its own.
type Request struct {
	TargetTitle    string     `json:"target_title,omitempty" cbor:"target_title,omitempty"`
	StartLocation  *geo.LatLng `json:"start_location,omitempty" cbor:"start_location,omitempty"`
	TargetLocation *geo.LatLng `json:"target_location,omitempty" cbor:"target_location,omitempty"`
}

func (Request) Type() ID { return RequestMessage }

// Position reports the sending player's current location.
type Position struct {
	Location geo.LatLng `json:"location" cbor:"location"`
}

func (Position) Type() ID { return PositionMessage }

// RaceSnapshot is the transport-safe form of a race.
type RaceSnapshot struct {
	ID             string      `json:"id" cbor:"id"`
	TargetTitle    string      `json:"target_title" cbor:"target_title"`
	StartLocation  *geo.LatLng `json:"start_location" cbor:"start_location"`
	TargetLocation *geo.LatLng `json:"target_location" cbor:"target_location"`
	// StartTime is unix milliseconds, zero until the race begins.
	StartTime int64 `json:"start_time" cbor:"start_time"`
}

// GameState is broadcast on every session state change.
type GameState struct {
	State   string       `json:"state" cbor:"state"`
	Players int          `json:"players" cbor:"players"`
	Race    RaceSnapshot `json:"race" cbor:"race"`
}

func (GameState) Type() ID { return GameStateMessage }

// PlayerState is addressed to a single player on every change of their
// own state.
type PlayerState struct {
	State string `json:"state" cbor:"state"`
}

func (PlayerState) Type() ID { return PlayerStateMessage }

// Info carries a human-readable, non-fatal notice (e.g. a location that
// could not be resolved).
type Info struct {
	Text string `json:"text" cbor:"text"`
}

func (Info) Type() ID { return InfoMessage }

type jsonEnvelope struct {
	Type    ID              `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type cborEnvelope struct {
	Type    ID              `cbor:"type"`
	Payload cbor.RawMessage `cbor:"payload,omitempty"`
}

// Encode serializes a message into an envelope. Text frames carry JSON,
// binary frames CBOR.
func Encode(msg Message, binary bool) ([]byte, error) {
	if binary {
		payload, err := cbor.Marshal(msg)
		if err != nil {
			return nil, err
		}
		return cbor.Marshal(cborEnvelope{Type: msg.Type(), Payload: payload})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonEnvelope{Type: msg.Type(), Payload: payload})
}

// Decode parses an envelope and returns the concrete message. Messages of
// unknown type yield ErrUnknownType.
func Decode(data []byte, binary bool) (Message, error) {
	var (
		kind    ID
		payload []byte
	)

	if binary {
		var envelope cborEnvelope
		if err := cbor.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("malformed envelope: %w", err)
		}
		kind, payload = envelope.Type, envelope.Payload
	} else {
		var envelope jsonEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("malformed envelope: %w", err)
		}
		kind, payload = envelope.Type, envelope.Payload
	}

	decode := func(msg Message) (Message, error) {
		if len(payload) == 0 {
			return msg, nil
		}
		var err error
		if binary {
			err = cbor.Unmarshal(payload, msg)
		} else {
			err = json.Unmarshal(payload, msg)
		}
		if err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", kind, err)
		}
		return msg, nil
	}

	switch kind {
	case LoginMessage:
		msg, err := decode(&Login{})
		if err != nil {
			return nil, err
		}
		login := msg.(*Login)
		if login.ID == "" {
			return nil, fmt.Errorf("login without a player id")
		}
		return login, nil
	case LogoutMessage:
		return decode(&Logout{})
	case RequestMessage:
		return decode(&Request{})
	case PositionMessage:
		return decode(&Position{})
	case GameStateMessage:
		return decode(&GameState{})
	case PlayerStateMessage:
		return decode(&PlayerState{})
	case InfoMessage:
		return decode(&Info{})
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
}
