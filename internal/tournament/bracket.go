package tournament

import (
	"math/bits"

	"github.com/google/uuid"
)

// validSize reports whether size is a supported bracket size.
func validSize(size int) bool {
	return size == 4 || size == 8
}

// roundCount returns log2(size) for a power-of-two size.
func roundCount(size int) int {
	return bits.TrailingZeros(uint(size))
}

// generateBracket builds a single-elimination bracket for players in join
// order. Round 1 pairs consecutive seeds and is scheduled; later rounds start
// pending with empty slots. The match at position p feeds position p/2 of the
// next round.
func generateBracket(players []Player) Bracket {
	rounds := make([]Round, roundCount(len(players)))
	for r := range rounds {
		n := len(players) >> (r + 1)
		rounds[r] = Round{Number: r + 1, Matches: make([]*Match, n)}
		for p := 0; p < n; p++ {
			rounds[r].Matches[p] = &Match{
				ID:       uuid.New().String(),
				Round:    r + 1,
				Position: p,
				Status:   MatchPending,
			}
		}
	}

	for r := 0; r < len(rounds)-1; r++ {
		for p, m := range rounds[r].Matches {
			next := rounds[r+1].Matches[p/2].ID
			m.NextMatchID = &next
		}
	}

	for p, m := range rounds[0].Matches {
		a, b := players[2*p], players[2*p+1]
		m.Player1 = &Entrant{UserID: a.UserID, Username: a.Username}
		m.Player2 = &Entrant{UserID: b.UserID, Username: b.Username}
		m.Status = MatchScheduled
	}

	return Bracket{Rounds: rounds}
}

// feedsSlot returns the downstream slot (1 or 2) filled by the winner of the
// match at position.
func feedsSlot(position int) int {
	if position%2 == 0 {
		return 1
	}
	return 2
}

// currentRound is the lowest round that still has an unfinished match, or the
// last round once everything is finished.
func currentRound(b Bracket) int {
	for _, r := range b.Rounds {
		for _, m := range r.Matches {
			if m.Status != MatchFinished {
				return r.Number
			}
		}
	}
	return len(b.Rounds)
}
