package tournament

import (
	"context"

	"github.com/e-kose/FT-PINPON-sub002/internal/models"
	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
)

type outMsg struct {
	sessionID string
	typ       protocol.Type
	payload   any
}

// outbox collects side effects produced under a tournament lock. It is
// flushed after the lock is released.
type outbox struct {
	msgs       []outMsg
	closeRooms []string
	archive    *archiveJob
}

type archiveJob struct {
	snapshot   Tournament
	tournament models.Tournament
	matches    []models.TournamentMatch
	notify     []string
}

func (o *outbox) to(sessionID string, typ protocol.Type, payload any) {
	if sessionID == "" {
		return
	}
	o.msgs = append(o.msgs, outMsg{sessionID: sessionID, typ: typ, payload: payload})
}

// toPlayers addresses every participant that is still connected.
func (o *outbox) toPlayers(t *Tournament, typ protocol.Type, payload any) {
	for _, p := range t.Players {
		if p.Connected {
			o.to(p.SessionID, typ, payload)
		}
	}
}

// bracketUpdate stages a fresh snapshot for every connected participant.
func (o *outbox) bracketUpdate(t *Tournament) {
	o.toPlayers(t, protocol.TypeTournamentBracketUpdate, protocol.TournamentPayload{Tournament: t.Snapshot()})
}

func (e *Engine) flush(ctx context.Context, o *outbox) {
	for _, m := range o.msgs {
		env, err := protocol.New(m.typ, m.payload)
		if err != nil {
			e.log.Error().Err(err).Str("type", string(m.typ)).Msg("failed to build envelope")
			continue
		}
		if err := e.sessions.Send(ctx, m.sessionID, env); err != nil {
			e.log.Debug().Err(err).Str("session_id", m.sessionID).Str("type", string(m.typ)).Msg("send failed")
		}
	}
	for _, room := range o.closeRooms {
		e.sessions.CloseRoom(room)
	}
	if o.archive != nil {
		e.persist(ctx, o.archive)
	}
}

// persist writes the finished tournament. Failures are logged and reported
// to the participants; in-memory state is kept.
func (e *Engine) persist(ctx context.Context, job *archiveJob) {
	log := e.log.With().Str("tournament_id", job.tournament.ID).Logger()

	failed := false
	if err := e.repo.SaveTournament(ctx, job.tournament); err != nil {
		log.Error().Err(err).Msg("failed to save tournament")
		failed = true
	}
	for _, m := range job.matches {
		if err := e.repo.SaveTournamentMatch(ctx, m); err != nil {
			log.Error().Err(err).Str("match_id", m.ID).Msg("failed to save tournament match")
			failed = true
		}
	}
	if e.archiver != nil {
		if err := e.archiver.ArchiveTournament(ctx, job.snapshot); err != nil {
			log.Error().Err(err).Msg("failed to archive tournament")
		}
	}
	if !failed {
		log.Info().Int("matches", len(job.matches)).Msg("tournament saved")
		return
	}

	env, err := protocol.New(protocol.TypeWarning, protocol.WarningPayload{
		Message: "tournament result could not be saved",
	})
	if err != nil {
		return
	}
	for _, sid := range job.notify {
		_ = e.sessions.Send(ctx, sid, env)
	}
}
