package matchmaking

import (
	"context"

	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
)

// Sessions is the part of the connection registry the engines use.
type Sessions interface {
	Lookup(sessionID string) (registry.Connection, bool)
	JoinRoom(sessionID, roomID string) error
	LeaveRoom(sessionID string) error
	CloseRoom(roomID string)
	Send(ctx context.Context, sessionID string, env protocol.Envelope) error
	Broadcast(ctx context.Context, roomID string, env protocol.Envelope, exclude ...string) []error
}

// OpenRoom places every session into roomID. If one of them is gone the
// sessions already moved are taken out again and the error is returned.
func OpenRoom(sessions Sessions, roomID string, sessionIDs ...string) error {
	for i, sid := range sessionIDs {
		if err := sessions.JoinRoom(sid, roomID); err != nil {
			for _, joined := range sessionIDs[:i] {
				_ = sessions.LeaveRoom(joined)
			}
			return err
		}
	}
	return nil
}

// ValidateResult checks a reported score line against the two seated players.
func ValidateResult(player1ID, player2ID, winnerID string, player1Score, player2Score int) error {
	if player1Score < 0 || player2Score < 0 {
		return ErrInvalidScore
	}
	if winnerID == "" || (winnerID != player1ID && winnerID != player2ID) {
		return ErrInvalidScore
	}
	return nil
}
