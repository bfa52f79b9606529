// Package matchmaking pairs queued connections into 1v1 quick-play matches.
package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/models"
	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/repository"
)

// Participant is one side of a match.
type Participant struct {
	SessionID string
	UserID    string
	Username  string
}

// Match is an active quick-play match.
type Match struct {
	ID        string
	RoomID    string
	Players   [2]Participant
	StartedAt time.Time
}

type queueEntry struct {
	Participant
	joinedAt time.Time
}

// Status describes where a session stands in matchmaking.
type Status struct {
	Queued   bool   `json:"queued"`
	Position int    `json:"position,omitempty"`
	MatchID  string `json:"match_id,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
}

// Engine owns the waiting queue and the active match table. Both are guarded
// by one mutex. Lock order is engine then registry.
type Engine struct {
	mu        sync.Mutex
	queue     []queueEntry
	queued    map[string]struct{}
	byUser    map[string]string
	matches   map[string]*Match
	bySession map[string]string

	sessions Sessions
	repo     repository.Repository
	log      zerolog.Logger
	now      func() time.Time
}

func NewEngine(sessions Sessions, repo repository.Repository, log zerolog.Logger) *Engine {
	if repo == nil {
		repo = repository.Nop{}
	}
	return &Engine{
		queued:    make(map[string]struct{}),
		byUser:    make(map[string]string),
		matches:   make(map[string]*Match),
		bySession: make(map[string]string),
		sessions:  sessions,
		repo:      repo,
		log:       log.With().Str("component", "matchmaking").Logger(),
		now:       time.Now,
	}
}

// Enqueue appends the session to the FIFO queue, confirms with queue-joined
// and pairs the two longest-waiting entries as long as two are available.
// It returns the 1-based queue position the session was given.
func (e *Engine) Enqueue(ctx context.Context, sessionID string) (int, error) {
	conn, ok := e.sessions.Lookup(sessionID)
	if !ok {
		return 0, ErrSessionNotFound
	}
	if conn.TournamentID != "" {
		return 0, ErrInTournament
	}

	e.mu.Lock()
	if _, ok := e.queued[sessionID]; ok {
		e.mu.Unlock()
		return 0, ErrAlreadyQueued
	}
	if _, ok := e.byUser[conn.Identity.UserID]; ok {
		e.mu.Unlock()
		return 0, ErrAlreadyQueued
	}
	if _, ok := e.bySession[sessionID]; ok {
		e.mu.Unlock()
		return 0, ErrAlreadyInMatch
	}

	e.queue = append(e.queue, queueEntry{
		Participant: Participant{
			SessionID: sessionID,
			UserID:    conn.Identity.UserID,
			Username:  conn.Identity.Username,
		},
		joinedAt: e.now(),
	})
	e.queued[sessionID] = struct{}{}
	e.byUser[conn.Identity.UserID] = sessionID
	position := len(e.queue)
	queueLength := len(e.queue)

	paired := e.pairLocked()
	e.mu.Unlock()

	e.log.Info().
		Str("session_id", sessionID).
		Str("user_id", conn.Identity.UserID).
		Int("position", position).
		Msg("joined matchmaking queue")

	e.send(ctx, sessionID, protocol.TypeQueueJoined, protocol.QueueJoinedPayload{
		Position:    position,
		QueueLength: queueLength,
	})
	for _, m := range paired {
		e.announce(ctx, m)
	}
	return position, nil
}

// Dequeue removes the session from the queue. It reports whether the session
// was queued.
func (e *Engine) Dequeue(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeQueuedLocked(sessionID)
}

// pairLocked pops the two longest-waiting entries while at least two are
// queued. A session that vanished before its room could be opened is dropped
// and its partner goes back to the head of the queue.
func (e *Engine) pairLocked() []*Match {
	var paired []*Match
	for len(e.queue) >= 2 {
		a, b := e.queue[0], e.queue[1]
		e.queue = e.queue[2:]

		m := &Match{
			ID:        uuid.New().String(),
			RoomID:    "room-" + uuid.New().String(),
			Players:   [2]Participant{a.Participant, b.Participant},
			StartedAt: e.now(),
		}

		if err := OpenRoom(e.sessions, m.RoomID, a.SessionID, b.SessionID); err != nil {
			e.log.Warn().Err(err).Str("match_id", m.ID).Msg("could not open room for pair")
			var keep []queueEntry
			for _, q := range []queueEntry{a, b} {
				if _, live := e.sessions.Lookup(q.SessionID); live {
					keep = append(keep, q)
				} else {
					e.forgetQueuedLocked(q)
				}
			}
			e.queue = append(keep, e.queue...)
			if len(keep) == 2 {
				break
			}
			continue
		}

		for _, p := range []queueEntry{a, b} {
			e.forgetQueuedLocked(p)
			e.bySession[p.SessionID] = m.ID
		}
		e.matches[m.ID] = m
		paired = append(paired, m)
	}
	return paired
}

func (e *Engine) announce(ctx context.Context, m *Match) {
	e.log.Info().
		Str("match_id", m.ID).
		Str("room_id", m.RoomID).
		Str("player1", m.Players[0].UserID).
		Str("player2", m.Players[1].UserID).
		Msg("match created")

	for i, p := range m.Players {
		opp := m.Players[1-i]
		e.send(ctx, p.SessionID, protocol.TypeMatchFound, protocol.MatchFoundPayload{
			MatchID: m.ID,
			RoomID:  m.RoomID,
			Side:    i + 1,
			Opponent: protocol.Opponent{
				UserID:   opp.UserID,
				Username: opp.Username,
			},
		})
	}
}

// ReportResult finalizes an active match and persists its record.
func (e *Engine) ReportResult(ctx context.Context, matchID, winnerID string, player1Score, player2Score int) error {
	e.mu.Lock()
	m, ok := e.matches[matchID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownMatch
	}
	if err := ValidateResult(m.Players[0].UserID, m.Players[1].UserID, winnerID, player1Score, player2Score); err != nil {
		e.mu.Unlock()
		return err
	}
	e.removeMatchLocked(m)
	e.mu.Unlock()

	e.finish(ctx, m, winnerID, player1Score, player2Score, false)
	return nil
}

// HandleDisconnect takes a gone session out of the queue and ends its match.
// A live opponent wins by forfeit; when nobody is left the match is dropped
// without a record.
func (e *Engine) HandleDisconnect(ctx context.Context, conn registry.Connection) {
	e.mu.Lock()
	e.removeQueuedLocked(conn.SessionID)
	matchID, ok := e.bySession[conn.SessionID]
	if !ok {
		e.mu.Unlock()
		return
	}
	m := e.matches[matchID]
	e.removeMatchLocked(m)
	e.mu.Unlock()

	opp := m.Players[0]
	if opp.SessionID == conn.SessionID {
		opp = m.Players[1]
	}
	if _, live := e.sessions.Lookup(opp.SessionID); !live {
		e.sessions.CloseRoom(m.RoomID)
		e.log.Info().Str("match_id", m.ID).Msg("match discarded, both players gone")
		return
	}

	e.log.Info().
		Str("match_id", m.ID).
		Str("winner_id", opp.UserID).
		Str("session_id", conn.SessionID).
		Msg("match forfeited on disconnect")
	e.finish(ctx, m, opp.UserID, 0, 0, true)
}

// finish notifies the room, closes it and persists the record. Must be
// called without holding e.mu.
func (e *Engine) finish(ctx context.Context, m *Match, winnerID string, player1Score, player2Score int, forfeit bool) {
	env, err := protocol.New(protocol.TypeMatchEnded, protocol.MatchEndedPayload{
		MatchID:      m.ID,
		WinnerID:     winnerID,
		Player1Score: player1Score,
		Player2Score: player2Score,
		Forfeit:      forfeit,
	})
	if err == nil {
		e.sessions.Broadcast(ctx, m.RoomID, env)
	}
	e.sessions.CloseRoom(m.RoomID)

	record := models.Match{
		ID:              m.ID,
		Player1ID:       m.Players[0].UserID,
		Player1Username: m.Players[0].Username,
		Player2ID:       m.Players[1].UserID,
		Player2Username: m.Players[1].Username,
		Player1Score:    player1Score,
		Player2Score:    player2Score,
		WinnerID:        winnerID,
		Forfeit:         forfeit,
		StartedAt:       m.StartedAt,
		EndedAt:         e.now(),
	}
	if err := e.repo.SaveMatch(ctx, record); err != nil {
		e.log.Error().Err(err).Str("match_id", m.ID).Msg("failed to save match")
		for _, p := range m.Players {
			e.send(ctx, p.SessionID, protocol.TypeWarning, protocol.WarningPayload{
				Message: "match result could not be saved",
			})
		}
		return
	}
	e.log.Info().Str("match_id", m.ID).Str("winner_id", winnerID).Msg("match finished")
}

// Status reports the queue position or active match of a session.
func (e *Engine) Status(sessionID string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if matchID, ok := e.bySession[sessionID]; ok {
		return Status{MatchID: matchID, RoomID: e.matches[matchID].RoomID}
	}
	for i, q := range e.queue {
		if q.SessionID == sessionID {
			return Status{Queued: true, Position: i + 1}
		}
	}
	return Status{}
}

// QueueLength returns the number of waiting sessions.
func (e *Engine) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// ActiveMatches returns the number of matches in play.
func (e *Engine) ActiveMatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.matches)
}

func (e *Engine) removeQueuedLocked(sessionID string) bool {
	if _, ok := e.queued[sessionID]; !ok {
		return false
	}
	for i, q := range e.queue {
		if q.SessionID == sessionID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			e.forgetQueuedLocked(q)
			break
		}
	}
	return true
}

func (e *Engine) forgetQueuedLocked(q queueEntry) {
	delete(e.queued, q.SessionID)
	if e.byUser[q.UserID] == q.SessionID {
		delete(e.byUser, q.UserID)
	}
}

func (e *Engine) removeMatchLocked(m *Match) {
	delete(e.matches, m.ID)
	for _, p := range m.Players {
		if e.bySession[p.SessionID] == m.ID {
			delete(e.bySession, p.SessionID)
		}
	}
}

func (e *Engine) send(ctx context.Context, sessionID string, t protocol.Type, payload any) {
	env, err := protocol.New(t, payload)
	if err != nil {
		e.log.Error().Err(err).Str("type", string(t)).Msg("failed to build envelope")
		return
	}
	if err := e.sessions.Send(ctx, sessionID, env); err != nil {
		e.log.Debug().Err(err).Str("session_id", sessionID).Str("type", string(t)).Msg("send failed")
	}
}
