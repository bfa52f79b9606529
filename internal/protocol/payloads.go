package protocol

import "github.com/goccy/go-json"

// Opponent identifies the other side of a match.
type Opponent struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Client payloads

type MatchUpdatePayload struct {
	MatchID string          `json:"match_id"`
	State   json.RawMessage `json:"state"`
}

type MatchResultPayload struct {
	RequestID    string `json:"request_id,omitempty"`
	MatchID      string `json:"match_id"`
	WinnerID     string `json:"winner_id"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
}

type TournamentCreatePayload struct {
	Size int `json:"size"`
}

// TournamentJoinPayload accepts either the tournament id or its join code.
type TournamentJoinPayload struct {
	TournamentID string `json:"tournament_id,omitempty"`
	Code         string `json:"code,omitempty"`
}

type TournamentReadyPayload struct {
	MatchID string `json:"match_id"`
}

// Server payloads

type QueueJoinedPayload struct {
	Position    int `json:"position"`
	QueueLength int `json:"queue_length"`
}

type MatchFoundPayload struct {
	MatchID  string   `json:"match_id"`
	RoomID   string   `json:"room_id"`
	Side     int      `json:"side"`
	Opponent Opponent `json:"opponent"`
}

type MatchRelayPayload struct {
	MatchID string          `json:"match_id"`
	From    string          `json:"from"`
	State   json.RawMessage `json:"state"`
}

type MatchEndedPayload struct {
	MatchID      string `json:"match_id"`
	TournamentID string `json:"tournament_id,omitempty"`
	WinnerID     string `json:"winner_id,omitempty"`
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	Forfeit      bool   `json:"forfeit"`
}

// TournamentPayload carries a tournament snapshot. The snapshot type lives in
// the tournament package; the protocol only needs it to be serializable.
type TournamentPayload struct {
	Tournament any `json:"tournament"`
}

type TournamentLeftPayload struct {
	TournamentID string `json:"tournament_id"`
}

type TournamentMatchFoundPayload struct {
	TournamentID string   `json:"tournament_id"`
	MatchID      string   `json:"match_id"`
	Round        int      `json:"round"`
	Opponent     Opponent `json:"opponent"`
}

type TournamentMatchStartedPayload struct {
	TournamentID string `json:"tournament_id"`
	MatchID      string `json:"match_id"`
	RoomID       string `json:"room_id"`
	Side         int    `json:"side"`
}

type TournamentFinishedPayload struct {
	TournamentID   string `json:"tournament_id"`
	WinnerID       string `json:"winner_id"`
	WinnerUsername string `json:"winner_username"`
}

type WarningPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	RequestType Type   `json:"request_type,omitempty"`
}
