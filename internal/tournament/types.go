package tournament

import "time"

// State is the tournament lifecycle: waiting -> in_progress -> finished.
type State string

const (
	StateWaiting    State = "waiting"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
)

// MatchStatus is the lifecycle of one bracket slot.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
)

// Player is a tournament participant.
type Player struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	SessionID string `json:"-"`
	Seed      int    `json:"seed"`
	Connected bool   `json:"connected"`
	Exited    bool   `json:"exited"`
}

// Entrant fills one player slot of a match.
type Entrant struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Match is one bracket slot. A void slot will never be filled because the
// feeding match finished without a winner.
type Match struct {
	ID             string      `json:"id"`
	Round          int         `json:"round"`
	Position       int         `json:"position"`
	Player1        *Entrant    `json:"player1"`
	Player2        *Entrant    `json:"player2"`
	Player1Void    bool        `json:"player1_void,omitempty"`
	Player2Void    bool        `json:"player2_void,omitempty"`
	Player1Ready   bool        `json:"player1_ready"`
	Player2Ready   bool        `json:"player2_ready"`
	Player1Score   int         `json:"player1_score"`
	Player2Score   int         `json:"player2_score"`
	WinnerID       *string     `json:"winner_id"`
	WinnerUsername *string     `json:"winner_username"`
	NextMatchID    *string     `json:"next_match_id"`
	Status         MatchStatus `json:"status"`
	RoomID         *string     `json:"room_id,omitempty"`
	Bye            bool        `json:"bye,omitempty"`
	Forfeit        bool        `json:"forfeit,omitempty"`
	FinishedAt     *time.Time  `json:"finished_at,omitempty"`
}

// Round is the ordered list of matches of one round number.
type Round struct {
	Number  int      `json:"number"`
	Matches []*Match `json:"matches"`
}

// Bracket holds every round and, once the final is decided, the winner.
type Bracket struct {
	Rounds         []Round `json:"rounds"`
	WinnerID       *string `json:"winner_id"`
	WinnerUsername *string `json:"winner_username"`
}

// Tournament is the aggregate owned by the Engine. Callers only ever see
// copies produced by Snapshot.
type Tournament struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Size         int        `json:"size"`
	State        State      `json:"state"`
	Players      []Player   `json:"players"`
	Bracket      Bracket    `json:"bracket"`
	CurrentRound int        `json:"current_round"`
	Version      int64      `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Snapshot returns a deep copy.
func (t *Tournament) Snapshot() Tournament {
	out := *t
	out.Players = append([]Player(nil), t.Players...)
	out.Bracket = Bracket{
		WinnerID:       copyStr(t.Bracket.WinnerID),
		WinnerUsername: copyStr(t.Bracket.WinnerUsername),
	}
	for _, r := range t.Bracket.Rounds {
		round := Round{Number: r.Number, Matches: make([]*Match, len(r.Matches))}
		for i, m := range r.Matches {
			round.Matches[i] = m.clone()
		}
		out.Bracket.Rounds = append(out.Bracket.Rounds, round)
	}
	out.FinishedAt = copyTime(t.FinishedAt)
	return out
}

// Player returns the participant with the given user id.
func (t *Tournament) Player(userID string) (*Player, bool) {
	for i := range t.Players {
		if t.Players[i].UserID == userID {
			return &t.Players[i], true
		}
	}
	return nil, false
}

// Final returns the last round's only match, or nil before seeding.
func (t *Tournament) Final() *Match {
	if len(t.Bracket.Rounds) == 0 {
		return nil
	}
	last := t.Bracket.Rounds[len(t.Bracket.Rounds)-1]
	if len(last.Matches) == 0 {
		return nil
	}
	return last.Matches[0]
}

// Abandoned reports whether the final finished without a winner, so the
// tournament can never reach finished.
func (t *Tournament) Abandoned() bool {
	final := t.Final()
	return t.State == StateInProgress && final != nil && final.Status == MatchFinished && final.WinnerID == nil
}

func (m *Match) clone() *Match {
	c := *m
	c.Player1 = copyEntrant(m.Player1)
	c.Player2 = copyEntrant(m.Player2)
	c.WinnerID = copyStr(m.WinnerID)
	c.WinnerUsername = copyStr(m.WinnerUsername)
	c.NextMatchID = copyStr(m.NextMatchID)
	c.RoomID = copyStr(m.RoomID)
	c.FinishedAt = copyTime(m.FinishedAt)
	return &c
}

// seated reports which slot userID occupies: 1, 2 or 0 when absent.
func (m *Match) seated(userID string) int {
	switch {
	case m.Player1 != nil && m.Player1.UserID == userID:
		return 1
	case m.Player2 != nil && m.Player2.UserID == userID:
		return 2
	}
	return 0
}

func (m *Match) playable() bool {
	return m.Status == MatchScheduled || m.Status == MatchInProgress
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyEntrant(e *Entrant) *Entrant {
	if e == nil {
		return nil
	}
	v := *e
	return &v
}
