package protocol

import (
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Type discriminates the payload carried by an Envelope.
type Type string

// Client -> server
const (
	TypeQueueJoin        Type = "queue-join"
	TypeQueueLeave       Type = "queue-leave"
	TypeMatchResult      Type = "match-result"
	TypeTournamentCreate Type = "tournament-create"
	TypeTournamentJoin   Type = "tournament-join"
	TypeTournamentLeave  Type = "tournament-leave"
	TypeTournamentReady  Type = "tournament-ready"
	TypePing             Type = "ping"
)

// Server -> client
const (
	TypeQueueJoined             Type = "queue-joined"
	TypeQueueLeft               Type = "queue-left"
	TypeMatchFound              Type = "match-found"
	TypeMatchEnded              Type = "match-ended"
	TypeTournamentCreated       Type = "tournament-created"
	TypeTournamentJoined        Type = "tournament-joined"
	TypeTournamentLeft          Type = "tournament-left"
	TypeTournamentBracketUpdate Type = "tournament-bracket-update"
	TypeTournamentMatchFound    Type = "tournament-match-found"
	TypeTournamentMatchStarted  Type = "tournament-match-started"
	TypeTournamentFinished      Type = "tournament-finished"
	TypeWarning                 Type = "warning"
	TypeError                   Type = "error"
	TypePong                    Type = "pong"
)

// TypeMatchUpdate flows both ways: a player sends opaque gameplay state and the
// server relays it to everyone else in the room.
const TypeMatchUpdate Type = "match-update"

var clientTypes = map[Type]bool{
	TypeQueueJoin:        true,
	TypeQueueLeave:       true,
	TypeMatchUpdate:      true,
	TypeMatchResult:      true,
	TypeTournamentCreate: true,
	TypeTournamentJoin:   true,
	TypeTournamentLeave:  true,
	TypeTournamentReady:  true,
	TypePing:             true,
}

// IsClientType reports whether clients are allowed to send t.
func IsClientType(t Type) bool {
	return clientTypes[t]
}

// Envelope is the only frame exchanged over the channel.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New wraps payload in an envelope of the given type. A nil payload produces
// an envelope without a payload field.
func New(t Type, payload any) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, eris.Wrapf(err, "marshal %s payload", t)
	}
	env.Payload = body
	return env, nil
}

// Encode serializes an envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	bz, err := json.Marshal(env)
	if err != nil {
		return nil, eris.Wrap(err, "encode envelope")
	}
	return bz, nil
}

// Decode parses a frame received from a client. Frames without a type are
// rejected.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, eris.Wrap(err, "decode envelope")
	}
	if env.Type == "" {
		return Envelope{}, eris.New("envelope has no type")
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into T. An absent payload
// yields the zero value.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, eris.Wrapf(err, "decode %s payload", env.Type)
	}
	return out, nil
}
