package tournament

import (
	"github.com/e-kose/FT-PINPON-sub002/internal/models"
)

// ToRecords converts a tournament into its persisted form.
func ToRecords(t Tournament) (models.Tournament, []models.TournamentMatch) {
	rec := models.Tournament{
		ID:             t.ID,
		Code:           t.Code,
		Size:           t.Size,
		Status:         string(t.State),
		CurrentRound:   t.CurrentRound,
		WinnerID:       copyStr(t.Bracket.WinnerID),
		WinnerUsername: copyStr(t.Bracket.WinnerUsername),
		CreatedAt:      t.CreatedAt,
		FinishedAt:     copyTime(t.FinishedAt),
	}
	for _, p := range t.Players {
		rec.Players = append(rec.Players, models.TournamentPlayer{
			TournamentID: t.ID,
			UserID:       p.UserID,
			Username:     p.Username,
			Seed:         p.Seed,
			Connected:    p.Connected,
			Exited:       p.Exited,
		})
	}

	var matches []models.TournamentMatch
	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			mr := models.TournamentMatch{
				ID:             m.ID,
				TournamentID:   t.ID,
				Round:          m.Round,
				Position:       m.Position,
				Player1Score:   m.Player1Score,
				Player2Score:   m.Player2Score,
				WinnerID:       copyStr(m.WinnerID),
				WinnerUsername: copyStr(m.WinnerUsername),
				NextMatchID:    copyStr(m.NextMatchID),
				Status:         string(m.Status),
				Bye:            m.Bye,
				Forfeit:        m.Forfeit,
				FinishedAt:     copyTime(m.FinishedAt),
			}
			if m.Player1 != nil {
				mr.Player1ID, mr.Player1Username = &m.Player1.UserID, &m.Player1.Username
			}
			if m.Player2 != nil {
				mr.Player2ID, mr.Player2Username = &m.Player2.UserID, &m.Player2.Username
			}
			matches = append(matches, mr)
		}
	}
	return rec, matches
}

// FromRecords rebuilds a tournament saved with ToRecords. Matches must be
// ordered by round and position.
func FromRecords(rec models.Tournament, matches []models.TournamentMatch) Tournament {
	t := Tournament{
		ID:           rec.ID,
		Code:         rec.Code,
		Size:         rec.Size,
		State:        State(rec.Status),
		CurrentRound: rec.CurrentRound,
		CreatedAt:    rec.CreatedAt,
		FinishedAt:   copyTime(rec.FinishedAt),
		Bracket: Bracket{
			WinnerID:       copyStr(rec.WinnerID),
			WinnerUsername: copyStr(rec.WinnerUsername),
		},
	}
	for _, p := range rec.Players {
		t.Players = append(t.Players, Player{
			UserID:    p.UserID,
			Username:  p.Username,
			Seed:      p.Seed,
			Connected: p.Connected,
			Exited:    p.Exited,
		})
	}

	for _, mr := range matches {
		for len(t.Bracket.Rounds) < mr.Round {
			t.Bracket.Rounds = append(t.Bracket.Rounds, Round{Number: len(t.Bracket.Rounds) + 1})
		}
		m := &Match{
			ID:             mr.ID,
			Round:          mr.Round,
			Position:       mr.Position,
			Player1Score:   mr.Player1Score,
			Player2Score:   mr.Player2Score,
			WinnerID:       copyStr(mr.WinnerID),
			WinnerUsername: copyStr(mr.WinnerUsername),
			NextMatchID:    copyStr(mr.NextMatchID),
			Status:         MatchStatus(mr.Status),
			Bye:            mr.Bye,
			Forfeit:        mr.Forfeit,
			FinishedAt:     copyTime(mr.FinishedAt),
		}
		if mr.Player1ID != nil {
			m.Player1 = &Entrant{UserID: *mr.Player1ID, Username: deref(mr.Player1Username)}
		}
		if mr.Player2ID != nil {
			m.Player2 = &Entrant{UserID: *mr.Player2ID, Username: deref(mr.Player2Username)}
		}
		r := &t.Bracket.Rounds[mr.Round-1]
		r.Matches = append(r.Matches, m)
	}
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
