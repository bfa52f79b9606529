package matchmaking

import "github.com/e-kose/FT-PINPON-sub002/internal/apperr"

var (
	ErrAlreadyQueued   = apperr.New(apperr.Capacity, "already in matchmaking queue")
	ErrAlreadyInMatch  = apperr.New(apperr.InvalidState, "already in a match")
	ErrInTournament    = apperr.New(apperr.InvalidState, "leave the tournament before joining quick play")
	ErrSessionNotFound = apperr.New(apperr.NotFound, "session not found")
	ErrUnknownMatch    = apperr.New(apperr.NotFound, "match not found")
	ErrInvalidScore    = apperr.New(apperr.InvalidArgument, "invalid match result")
	ErrNotParticipant  = apperr.New(apperr.InvalidState, "not a participant of this match")
)
