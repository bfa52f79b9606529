// Package tournament runs single-elimination brackets of 4 or 8 players.
package tournament

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/matchmaking"
	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/repository"
)

// Sessions is the registry surface the engine needs, including the
// tournament back-reference.
type Sessions interface {
	matchmaking.Sessions
	JoinTournament(sessionID, tournamentID string) error
	LeaveTournament(sessionID string) error
}

type entry struct {
	mu      sync.Mutex
	t       *Tournament
	matches map[string]*Match
}

// Engine owns every tournament. Each tournament is serialized by its own
// mutex; the engine lock only guards the indexes and is never held while a
// tournament lock is acquired.
type Engine struct {
	mu          sync.RWMutex
	tournaments map[string]*entry
	codes       map[string]string
	matchIndex  map[string]string

	sessions Sessions
	repo     repository.Repository
	archiver Archiver
	log      zerolog.Logger
	now      func() time.Time
}

// Archiver receives every finished bracket after it is saved.
type Archiver interface {
	ArchiveTournament(ctx context.Context, t Tournament) error
}

func NewEngine(sessions Sessions, repo repository.Repository, log zerolog.Logger) *Engine {
	if repo == nil {
		repo = repository.Nop{}
	}
	return &Engine{
		tournaments: make(map[string]*entry),
		codes:       make(map[string]string),
		matchIndex:  make(map[string]string),
		sessions:    sessions,
		repo:        repo,
		log:         log.With().Str("component", "tournament").Logger(),
		now:         time.Now,
	}
}

// SetArchiver installs an archiver for finished brackets. Call it before the
// engine is used.
func (e *Engine) SetArchiver(a Archiver) {
	e.archiver = a
}

// Create registers an empty tournament in the waiting state.
func (e *Engine) Create(ctx context.Context, size int) (Tournament, error) {
	if !validSize(size) {
		return Tournament{}, ErrInvalidSize
	}

	t := &Tournament{
		ID:        uuid.New().String(),
		Size:      size,
		State:     StateWaiting,
		Players:   []Player{},
		CreatedAt: e.now(),
	}

	e.mu.Lock()
	for {
		code, err := GenerateCode()
		if err != nil {
			e.mu.Unlock()
			return Tournament{}, err
		}
		if _, taken := e.codes[code]; !taken {
			t.Code = code
			break
		}
	}
	e.tournaments[t.ID] = &entry{t: t, matches: make(map[string]*Match)}
	e.codes[t.Code] = t.ID
	e.mu.Unlock()

	e.log.Info().
		Str("tournament_id", t.ID).
		Str("code", t.Code).
		Int("size", size).
		Msg("tournament created")

	return t.Snapshot(), nil
}

// Join seats the session's user. The tournament starts as soon as the last
// seat is taken.
func (e *Engine) Join(ctx context.Context, tournamentID, sessionID string) (Tournament, error) {
	// The back-reference read here is only ever set by the session's own
	// requests, which are dispatched one at a time; other goroutines only
	// clear it (finish, reap). A stale read can refuse a join, never double
	// seat a session.
	conn, ok := e.sessions.Lookup(sessionID)
	if !ok {
		return Tournament{}, ErrSessionNotFound
	}
	if conn.TournamentID == tournamentID {
		return Tournament{}, ErrAlreadyJoined
	}
	if conn.TournamentID != "" {
		return Tournament{}, ErrInAnotherTournament
	}

	en, err := e.entry(tournamentID)
	if err != nil {
		return Tournament{}, err
	}

	var out outbox
	en.mu.Lock()
	t := en.t
	switch {
	case t.State == StateFinished:
		en.mu.Unlock()
		return Tournament{}, ErrTournamentNotJoinable
	case len(t.Players) >= t.Size:
		en.mu.Unlock()
		return Tournament{}, ErrTournamentFull
	case t.State != StateWaiting:
		en.mu.Unlock()
		return Tournament{}, ErrTournamentNotJoinable
	}
	if _, dup := t.Player(conn.Identity.UserID); dup {
		en.mu.Unlock()
		return Tournament{}, ErrAlreadyJoined
	}
	if err := e.sessions.JoinTournament(sessionID, t.ID); err != nil {
		en.mu.Unlock()
		return Tournament{}, err
	}

	t.Players = append(t.Players, Player{
		UserID:    conn.Identity.UserID,
		Username:  conn.Identity.Username,
		SessionID: sessionID,
		Seed:      len(t.Players) + 1,
		Connected: true,
	})
	t.Version++

	e.log.Info().
		Str("tournament_id", t.ID).
		Str("user_id", conn.Identity.UserID).
		Int("players", len(t.Players)).
		Msg("player joined tournament")

	if len(t.Players) == t.Size {
		e.startLocked(en, &out)
	}
	snap := t.Snapshot()
	out.to(sessionID, protocol.TypeTournamentJoined, protocol.TournamentPayload{Tournament: snap})
	out.bracketUpdate(t)
	en.mu.Unlock()

	e.flush(ctx, &out)
	return snap, nil
}

// startLocked seeds the bracket by join order and moves to in_progress.
func (e *Engine) startLocked(en *entry, out *outbox) {
	t := en.t
	t.Bracket = generateBracket(t.Players)
	t.State = StateInProgress
	t.CurrentRound = 1

	e.mu.Lock()
	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			en.matches[m.ID] = m
			e.matchIndex[m.ID] = t.ID
		}
	}
	e.mu.Unlock()

	e.log.Info().Str("tournament_id", t.ID).Int("rounds", len(t.Bracket.Rounds)).Msg("tournament started")

	for _, m := range t.Bracket.Rounds[0].Matches {
		e.announceLocked(t, m, out)
	}
}

// Ready records that a seated player is ready. Once both are, the match is
// put in play in a fresh room.
func (e *Engine) Ready(ctx context.Context, matchID, sessionID string) error {
	conn, ok := e.sessions.Lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	en, err := e.entryForMatch(matchID)
	if err != nil {
		return err
	}

	var out outbox
	en.mu.Lock()
	t := en.t
	m := en.matches[matchID]
	slot := m.seated(conn.Identity.UserID)
	if slot == 0 {
		en.mu.Unlock()
		return ErrNotInMatch
	}
	if m.Status == MatchInProgress {
		en.mu.Unlock()
		return nil
	}
	if m.Status != MatchScheduled {
		en.mu.Unlock()
		return ErrMatchNotPlayable
	}

	if slot == 1 {
		m.Player1Ready = true
	} else {
		m.Player2Ready = true
	}
	t.Version++

	if m.Player1Ready && m.Player2Ready {
		e.startMatchLocked(t, m, &out)
	}
	out.bracketUpdate(t)
	en.mu.Unlock()

	e.flush(ctx, &out)
	return nil
}

func (e *Engine) startMatchLocked(t *Tournament, m *Match, out *outbox) {
	p1, _ := t.Player(m.Player1.UserID)
	p2, _ := t.Player(m.Player2.UserID)
	room := "room-" + uuid.New().String()

	if err := matchmaking.OpenRoom(e.sessions, room, p1.SessionID, p2.SessionID); err != nil {
		// the disconnect hook of the missing player forfeits the match
		e.log.Warn().Err(err).Str("match_id", m.ID).Msg("could not open tournament room")
		return
	}

	m.Status = MatchInProgress
	m.RoomID = &room

	e.log.Info().Str("tournament_id", t.ID).Str("match_id", m.ID).Str("room_id", room).Msg("tournament match started")

	for side, p := range []*Player{p1, p2} {
		out.to(p.SessionID, protocol.TypeTournamentMatchStarted, protocol.TournamentMatchStartedPayload{
			TournamentID: t.ID,
			MatchID:      m.ID,
			RoomID:       room,
			Side:         side + 1,
		})
	}
}

// ReportMatchResult applies a played result and advances the bracket.
func (e *Engine) ReportMatchResult(ctx context.Context, matchID, winnerID string, player1Score, player2Score int) error {
	en, err := e.entryForMatch(matchID)
	if err != nil {
		return err
	}

	var out outbox
	en.mu.Lock()
	t := en.t
	m := en.matches[matchID]
	if !m.playable() {
		en.mu.Unlock()
		return ErrMatchNotPlayable
	}
	if err := matchmaking.ValidateResult(m.Player1.UserID, m.Player2.UserID, winnerID, player1Score, player2Score); err != nil {
		en.mu.Unlock()
		return err
	}

	winner := m.Player1
	if m.Player2.UserID == winnerID {
		winner = m.Player2
	}
	m.Player1Score, m.Player2Score = player1Score, player2Score
	e.finishMatchLocked(t, en, m, winner, false, &out)
	out.bracketUpdate(t)
	en.mu.Unlock()

	e.flush(ctx, &out)
	return nil
}

// IsSeated reports whether userID plays in the tournament match.
func (e *Engine) IsSeated(matchID, userID string) (bool, error) {
	en, err := e.entryForMatch(matchID)
	if err != nil {
		return false, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.matches[matchID].seated(userID) != 0, nil
}

// Leave removes the session's user from its tournament. Before the start the
// seat is freed; afterwards the player exits and forfeits like a disconnect.
func (e *Engine) Leave(ctx context.Context, sessionID string) error {
	conn, ok := e.sessions.Lookup(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if conn.TournamentID == "" {
		return ErrNotInTournament
	}
	en, err := e.entry(conn.TournamentID)
	if err != nil {
		_ = e.sessions.LeaveTournament(sessionID)
		return err
	}

	var out outbox
	en.mu.Lock()
	e.removePlayerLocked(en, conn, &out)
	_ = e.sessions.LeaveTournament(sessionID)
	out.to(sessionID, protocol.TypeTournamentLeft, protocol.TournamentLeftPayload{TournamentID: en.t.ID})
	en.mu.Unlock()

	e.flush(ctx, &out)
	return nil
}

// HandleDisconnect is the tournament's disconnect entry point.
func (e *Engine) HandleDisconnect(ctx context.Context, conn registry.Connection) {
	if conn.TournamentID == "" {
		return
	}
	en, err := e.entry(conn.TournamentID)
	if err != nil {
		return
	}

	var out outbox
	en.mu.Lock()
	e.removePlayerLocked(en, conn, &out)
	en.mu.Unlock()

	e.flush(ctx, &out)
}

func (e *Engine) removePlayerLocked(en *entry, conn registry.Connection, out *outbox) {
	t := en.t
	p, ok := t.Player(conn.Identity.UserID)
	if !ok || p.SessionID != conn.SessionID {
		return
	}

	switch t.State {
	case StateWaiting:
		e.freeSeatLocked(t, conn.Identity.UserID)
	case StateInProgress:
		if p.Exited {
			p.Connected = false
			break
		}
		e.exitLocked(t, en, p, out)
	default:
		p.Connected = false
	}
	t.Version++
	out.bracketUpdate(t)
}

func (e *Engine) freeSeatLocked(t *Tournament, userID string) {
	kept := t.Players[:0]
	for _, p := range t.Players {
		if p.UserID != userID {
			p.Seed = len(kept) + 1
			kept = append(kept, p)
		}
	}
	t.Players = kept

	e.log.Info().Str("tournament_id", t.ID).Str("user_id", userID).Msg("seat freed")
}

// exitLocked marks a started player as gone and forfeits their current
// match. A match that is still pending is forfeited once it is scheduled.
func (e *Engine) exitLocked(t *Tournament, en *entry, p *Player, out *outbox) {
	p.Connected = false
	p.Exited = true

	e.log.Info().Str("tournament_id", t.ID).Str("user_id", p.UserID).Msg("player exited tournament")

	for _, r := range t.Bracket.Rounds {
		for _, m := range r.Matches {
			if !m.playable() || m.seated(p.UserID) == 0 {
				continue
			}
			e.forfeitLocked(t, en, m, out)
			return
		}
	}
}

// forfeitLocked finishes a match in which at least one seated player is no
// longer live. The remaining live player wins; if both are gone nobody does.
func (e *Engine) forfeitLocked(t *Tournament, en *entry, m *Match, out *outbox) {
	p1, _ := t.Player(m.Player1.UserID)
	p2, _ := t.Player(m.Player2.UserID)
	p1Live, p2Live := e.liveLocked(p1), e.liveLocked(p2)

	var winner *Entrant
	switch {
	case p1Live && !p2Live:
		winner = m.Player1
	case p2Live && !p1Live:
		winner = m.Player2
	}
	e.finishMatchLocked(t, en, m, winner, true, out)
}

// liveLocked reports whether the player is still in the tournament with a
// registered session. A player whose session vanished before its own
// disconnect hook ran is marked exited here.
func (e *Engine) liveLocked(p *Player) bool {
	if p.Exited {
		return false
	}
	if _, ok := e.sessions.Lookup(p.SessionID); ok {
		return true
	}
	p.Connected = false
	p.Exited = true
	return false
}

// finishMatchLocked closes a match and pushes its outcome downstream. A nil
// winner voids the downstream slot.
func (e *Engine) finishMatchLocked(t *Tournament, en *entry, m *Match, winner *Entrant, forfeit bool, out *outbox) {
	now := e.now()
	m.Status = MatchFinished
	m.Forfeit = forfeit
	m.FinishedAt = &now
	if winner != nil {
		id, name := winner.UserID, winner.Username
		m.WinnerID, m.WinnerUsername = &id, &name
	}
	if m.RoomID != nil {
		out.closeRooms = append(out.closeRooms, *m.RoomID)
	}
	t.Version++

	ended := protocol.MatchEndedPayload{
		MatchID:      m.ID,
		TournamentID: t.ID,
		WinnerID:     derefOr(m.WinnerID),
		Player1Score: m.Player1Score,
		Player2Score: m.Player2Score,
		Forfeit:      forfeit,
	}
	for _, ent := range []*Entrant{m.Player1, m.Player2} {
		if ent == nil {
			continue
		}
		if p, ok := t.Player(ent.UserID); ok && p.Connected {
			out.to(p.SessionID, protocol.TypeMatchEnded, ended)
		}
	}

	e.log.Info().
		Str("tournament_id", t.ID).
		Str("match_id", m.ID).
		Str("winner_id", derefOr(m.WinnerID)).
		Bool("forfeit", forfeit).
		Bool("bye", m.Bye).
		Msg("tournament match finished")

	if m.NextMatchID == nil {
		if winner != nil {
			e.completeLocked(t, winner, out)
		}
		t.CurrentRound = currentRound(t.Bracket)
		return
	}

	next := en.matches[*m.NextMatchID]
	switch feedsSlot(m.Position) {
	case 1:
		next.Player1 = copyEntrant(winner)
		next.Player1Void = winner == nil
	case 2:
		next.Player2 = copyEntrant(winner)
		next.Player2Void = winner == nil
	}
	e.resolveLocked(t, en, next, out)
	t.CurrentRound = currentRound(t.Bracket)
}

// resolveLocked decides what happens to a pending match after one of its
// slots changed: wait, schedule, bye, forfeit or void.
func (e *Engine) resolveLocked(t *Tournament, en *entry, m *Match, out *outbox) {
	if m.Status != MatchPending {
		return
	}
	slot1Done := m.Player1 != nil || m.Player1Void
	slot2Done := m.Player2 != nil || m.Player2Void
	if !slot1Done || !slot2Done {
		return
	}

	switch {
	case m.Player1Void && m.Player2Void:
		e.finishMatchLocked(t, en, m, nil, false, out)
	case m.Player1Void:
		e.byeLocked(t, en, m, m.Player2, out)
	case m.Player2Void:
		e.byeLocked(t, en, m, m.Player1, out)
	default:
		m.Status = MatchScheduled
		p1, _ := t.Player(m.Player1.UserID)
		p2, _ := t.Player(m.Player2.UserID)
		if !e.liveLocked(p1) || !e.liveLocked(p2) {
			e.forfeitLocked(t, en, m, out)
			return
		}
		e.announceLocked(t, m, out)
	}
}

// byeLocked advances the sole seated player past a void slot. A player who
// already exited gets no bye; the match finishes empty and the void moves on.
func (e *Engine) byeLocked(t *Tournament, en *entry, m *Match, sole *Entrant, out *outbox) {
	p, ok := t.Player(sole.UserID)
	if !ok || !e.liveLocked(p) {
		e.finishMatchLocked(t, en, m, nil, true, out)
		return
	}
	m.Bye = true
	e.finishMatchLocked(t, en, m, sole, false, out)
}

func (e *Engine) announceLocked(t *Tournament, m *Match, out *outbox) {
	for _, pair := range [][2]*Entrant{{m.Player1, m.Player2}, {m.Player2, m.Player1}} {
		p, ok := t.Player(pair[0].UserID)
		if !ok || !p.Connected {
			continue
		}
		out.to(p.SessionID, protocol.TypeTournamentMatchFound, protocol.TournamentMatchFoundPayload{
			TournamentID: t.ID,
			MatchID:      m.ID,
			Round:        m.Round,
			Opponent: protocol.Opponent{
				UserID:   pair[1].UserID,
				Username: pair[1].Username,
			},
		})
	}
}

// completeLocked records the bracket winner and stages the archive.
func (e *Engine) completeLocked(t *Tournament, winner *Entrant, out *outbox) {
	now := e.now()
	id, name := winner.UserID, winner.Username
	t.Bracket.WinnerID, t.Bracket.WinnerUsername = &id, &name
	t.State = StateFinished
	t.FinishedAt = &now

	e.log.Info().Str("tournament_id", t.ID).Str("winner_id", id).Msg("tournament finished")

	out.toPlayers(t, protocol.TypeTournamentFinished, protocol.TournamentFinishedPayload{
		TournamentID:   t.ID,
		WinnerID:       id,
		WinnerUsername: name,
	})

	snap := t.Snapshot()
	rec, matches := ToRecords(snap)
	job := &archiveJob{snapshot: snap, tournament: rec, matches: matches}
	for _, p := range t.Players {
		if p.Connected {
			job.notify = append(job.notify, p.SessionID)
		}
	}
	out.archive = job

	for _, p := range t.Players {
		e.releaseLocked(t, p.SessionID)
	}
}

// releaseLocked clears the session's tournament back-reference if it still
// points at t. The session may have moved on to another tournament.
func (e *Engine) releaseLocked(t *Tournament, sessionID string) bool {
	conn, ok := e.sessions.Lookup(sessionID)
	if !ok || conn.TournamentID != t.ID {
		return false
	}
	_ = e.sessions.LeaveTournament(sessionID)
	return true
}

// Get returns a snapshot of the tournament.
func (e *Engine) Get(id string) (Tournament, error) {
	en, err := e.entry(id)
	if err != nil {
		return Tournament{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.t.Snapshot(), nil
}

// ByCode resolves a join code.
func (e *Engine) ByCode(code string) (Tournament, error) {
	code = NormalizeCode(code)
	if !ValidateCode(code) {
		return Tournament{}, ErrInvalidCode
	}
	e.mu.RLock()
	id, ok := e.codes[code]
	e.mu.RUnlock()
	if !ok {
		return Tournament{}, ErrTournamentNotFound
	}
	return e.Get(id)
}

// List returns snapshots of every tournament in state, or all of them when
// state is empty, oldest first.
func (e *Engine) List(state State) []Tournament {
	e.mu.RLock()
	entries := make([]*entry, 0, len(e.tournaments))
	for _, en := range e.tournaments {
		entries = append(entries, en)
	}
	e.mu.RUnlock()

	out := make([]Tournament, 0, len(entries))
	for _, en := range entries {
		en.mu.Lock()
		if state == "" || en.t.State == state {
			out = append(out, en.t.Snapshot())
		}
		en.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Reap drops finished tournaments older than retention, abandoned brackets
// and empty lobbies older than retention. It returns the number removed.
func (e *Engine) Reap(ctx context.Context, now time.Time, retention time.Duration) int {
	e.mu.RLock()
	entries := make([]*entry, 0, len(e.tournaments))
	for _, en := range e.tournaments {
		entries = append(entries, en)
	}
	e.mu.RUnlock()

	var (
		removed int
		out     outbox
	)
	for _, en := range entries {
		en.mu.Lock()
		t := en.t
		var reason string
		switch {
		case t.State == StateFinished && t.FinishedAt != nil && now.Sub(*t.FinishedAt) > retention:
			reason = "expired"
		case t.Abandoned():
			reason = "abandoned"
		case t.State == StateWaiting && len(t.Players) == 0 && now.Sub(t.CreatedAt) > retention:
			reason = "empty"
		}
		if reason == "" {
			en.mu.Unlock()
			continue
		}

		for _, p := range t.Players {
			if e.releaseLocked(t, p.SessionID) {
				out.to(p.SessionID, protocol.TypeTournamentLeft, protocol.TournamentLeftPayload{TournamentID: t.ID})
			}
		}
		e.mu.Lock()
		delete(e.tournaments, t.ID)
		delete(e.codes, t.Code)
		for id := range en.matches {
			delete(e.matchIndex, id)
		}
		e.mu.Unlock()
		en.mu.Unlock()

		removed++
		e.log.Info().Str("tournament_id", t.ID).Str("reason", reason).Msg("tournament reaped")
	}

	e.flush(ctx, &out)
	return removed
}

func (e *Engine) entry(id string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	en, ok := e.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return en, nil
}

func (e *Engine) entryForMatch(matchID string) (*entry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tid, ok := e.matchIndex[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	en, ok := e.tournaments[tid]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return en, nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
