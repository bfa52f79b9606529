package tournament

import "github.com/e-kose/FT-PINPON-sub002/internal/apperr"

// Tournament errors
var (
	// Creation
	ErrInvalidSize = apperr.New(apperr.InvalidArgument, "tournament size must be 4 or 8")

	// Lookup
	ErrTournamentNotFound = apperr.New(apperr.NotFound, "tournament not found")
	ErrMatchNotFound      = apperr.New(apperr.NotFound, "tournament match not found")
	ErrSessionNotFound    = apperr.New(apperr.NotFound, "session not found")
	ErrInvalidCode        = apperr.New(apperr.InvalidArgument, "invalid tournament code")

	// Registration
	ErrTournamentFull        = apperr.New(apperr.Capacity, "tournament is full")
	ErrTournamentNotJoinable = apperr.New(apperr.InvalidState, "tournament is not accepting players")
	ErrAlreadyJoined         = apperr.New(apperr.Capacity, "already joined this tournament")
	ErrInAnotherTournament   = apperr.New(apperr.InvalidState, "already playing in another tournament")
	ErrNotInTournament       = apperr.New(apperr.InvalidState, "not in a tournament")

	// Matches
	ErrMatchNotPlayable = apperr.New(apperr.InvalidState, "match is not ready to be played")
	ErrNotInMatch       = apperr.New(apperr.InvalidState, "not seated in this match")
)
