package websocket

import (
	"context"
	"runtime/debug"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
	"github.com/e-kose/FT-PINPON-sub002/internal/matchmaking"
	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/tournament"
	"github.com/e-kose/FT-PINPON-sub002/internal/validation"
)

var (
	ErrMalformedMessage = apperr.New(apperr.InvalidArgument, "malformed message")
	ErrUnknownType      = apperr.New(apperr.InvalidArgument, "unknown message type")
	ErrRateLimited      = apperr.New(apperr.RateLimited, "too many messages, slow down")
	ErrNotInRoom        = apperr.New(apperr.InvalidState, "not in a match room")
	errPanic            = apperr.New(apperr.Internal, "internal server error")
)

// dispatch handles one inbound frame. Every failure is answered with an
// error envelope; the connection stays open.
func (h *Handler) dispatch(sessionID string, raw []byte) {
	ctx := h.ctx
	var reqType protocol.Type

	defer func() {
		if r := recover(); r != nil {
			h.log.Error().
				Interface("panic", r).
				Str("session_id", sessionID).
				Str("type", string(reqType)).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic in message handler")
			h.replyError(ctx, sessionID, reqType, errPanic)
		}
	}()

	if h.limiter != nil && !h.limiter.Allow(sessionID) {
		h.replyError(ctx, sessionID, "", ErrRateLimited)
		return
	}

	env, err := protocol.Decode(raw)
	if err != nil {
		h.replyError(ctx, sessionID, "", ErrMalformedMessage)
		return
	}
	reqType = env.Type

	conn, ok := h.reg.Lookup(sessionID)
	if !ok {
		return
	}
	if err := h.route(ctx, conn, env); err != nil {
		h.replyError(ctx, sessionID, env.Type, err)
	}
}

func (h *Handler) route(ctx context.Context, conn registry.Connection, env protocol.Envelope) error {
	if !protocol.IsClientType(env.Type) {
		return ErrUnknownType
	}

	switch env.Type {
	case protocol.TypePing:
		return h.send(ctx, conn.SessionID, protocol.TypePong, nil)

	case protocol.TypeQueueJoin:
		_, err := h.mm.Enqueue(ctx, conn.SessionID)
		return err

	case protocol.TypeQueueLeave:
		h.mm.Dequeue(conn.SessionID)
		return h.send(ctx, conn.SessionID, protocol.TypeQueueLeft, nil)

	case protocol.TypeMatchUpdate:
		p, err := protocol.DecodePayload[protocol.MatchUpdatePayload](env)
		if err != nil {
			return ErrMalformedMessage
		}
		return h.relay(ctx, conn, p)

	case protocol.TypeMatchResult:
		p, err := protocol.DecodePayload[protocol.MatchResultPayload](env)
		if err != nil || p.MatchID == "" {
			return ErrMalformedMessage
		}
		return h.reportResult(ctx, conn, p)

	case protocol.TypeTournamentCreate:
		p, err := protocol.DecodePayload[protocol.TournamentCreatePayload](env)
		if err != nil {
			return ErrMalformedMessage
		}
		return h.createTournament(ctx, conn, p)

	case protocol.TypeTournamentJoin:
		p, err := protocol.DecodePayload[protocol.TournamentJoinPayload](env)
		if err != nil {
			return ErrMalformedMessage
		}
		return h.joinTournament(ctx, conn, p)

	case protocol.TypeTournamentLeave:
		return h.tournaments.Leave(ctx, conn.SessionID)

	case protocol.TypeTournamentReady:
		p, err := protocol.DecodePayload[protocol.TournamentReadyPayload](env)
		if err != nil || p.MatchID == "" {
			return ErrMalformedMessage
		}
		return h.tournaments.Ready(ctx, p.MatchID, conn.SessionID)
	}
	return ErrUnknownType
}

// relay forwards opaque gameplay state to the rest of the sender's room.
func (h *Handler) relay(ctx context.Context, conn registry.Connection, p protocol.MatchUpdatePayload) error {
	if conn.RoomID == "" {
		return ErrNotInRoom
	}
	env, err := protocol.New(protocol.TypeMatchUpdate, protocol.MatchRelayPayload{
		MatchID: p.MatchID,
		From:    conn.Identity.UserID,
		State:   p.State,
	})
	if err != nil {
		return err
	}
	for _, err := range h.reg.Broadcast(ctx, conn.RoomID, env, conn.SessionID) {
		h.log.Debug().Err(err).Str("room_id", conn.RoomID).Msg("relay delivery failed")
	}
	return nil
}

// reportResult routes a result to the engine that owns the match. A request
// id seen before is dropped without a reply.
func (h *Handler) reportResult(ctx context.Context, conn registry.Connection, p protocol.MatchResultPayload) error {
	if err := validation.ValidateScores(p.Player1Score, p.Player2Score); err != nil {
		return err
	}
	if !h.tracker.MarkProcessed(p.RequestID, conn.Identity.UserID, p.MatchID) {
		h.log.Debug().
			Str("request_id", p.RequestID).
			Str("match_id", p.MatchID).
			Msg("duplicate match result ignored")
		return nil
	}

	err := h.applyResult(ctx, conn, p)
	if err != nil {
		h.tracker.Unmark(p.RequestID, conn.Identity.UserID)
	}
	return err
}

func (h *Handler) applyResult(ctx context.Context, conn registry.Connection, p protocol.MatchResultPayload) error {
	if h.mm.Status(conn.SessionID).MatchID == p.MatchID {
		return h.mm.ReportResult(ctx, p.MatchID, p.WinnerID, p.Player1Score, p.Player2Score)
	}

	seated, err := h.tournaments.IsSeated(p.MatchID, conn.Identity.UserID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return matchmaking.ErrUnknownMatch
		}
		return err
	}
	if !seated {
		return tournament.ErrNotInMatch
	}
	return h.tournaments.ReportMatchResult(ctx, p.MatchID, p.WinnerID, p.Player1Score, p.Player2Score)
}

func (h *Handler) createTournament(ctx context.Context, conn registry.Connection, p protocol.TournamentCreatePayload) error {
	if conn.TournamentID != "" {
		return tournament.ErrInAnotherTournament
	}
	if err := h.leaveQuickPlay(ctx, conn.SessionID); err != nil {
		return err
	}

	t, err := h.tournaments.Create(ctx, p.Size)
	if err != nil {
		return err
	}
	if err := h.send(ctx, conn.SessionID, protocol.TypeTournamentCreated, protocol.TournamentPayload{Tournament: t}); err != nil {
		h.log.Debug().Err(err).Str("session_id", conn.SessionID).Msg("tournament-created not delivered")
	}
	_, err = h.tournaments.Join(ctx, t.ID, conn.SessionID)
	return err
}

func (h *Handler) joinTournament(ctx context.Context, conn registry.Connection, p protocol.TournamentJoinPayload) error {
	id := p.TournamentID
	if id == "" {
		if p.Code == "" {
			return ErrMalformedMessage
		}
		t, err := h.tournaments.ByCode(p.Code)
		if err != nil {
			return err
		}
		id = t.ID
	}
	if conn.TournamentID == "" {
		if err := h.leaveQuickPlay(ctx, conn.SessionID); err != nil {
			return err
		}
	}
	_, err := h.tournaments.Join(ctx, id, conn.SessionID)
	return err
}

// leaveQuickPlay takes the session out of the matchmaking queue before it
// enters a tournament. A session in a live match is refused.
func (h *Handler) leaveQuickPlay(ctx context.Context, sessionID string) error {
	st := h.mm.Status(sessionID)
	if st.MatchID != "" {
		return matchmaking.ErrAlreadyInMatch
	}
	if st.Queued && h.mm.Dequeue(sessionID) {
		_ = h.send(ctx, sessionID, protocol.TypeQueueLeft, nil)
	}
	return nil
}

func (h *Handler) send(ctx context.Context, sessionID string, t protocol.Type, payload any) error {
	env, err := protocol.New(t, payload)
	if err != nil {
		return err
	}
	return h.reg.Send(ctx, sessionID, env)
}

func (h *Handler) replyError(ctx context.Context, sessionID string, reqType protocol.Type, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.log.Error().Err(err).Str("session_id", sessionID).Str("type", string(reqType)).Msg("message handling failed")
	}
	sendErr := h.send(ctx, sessionID, protocol.TypeError, protocol.ErrorPayload{
		Code:        string(kind),
		Message:     apperr.Message(err),
		RequestType: reqType,
	})
	if sendErr != nil {
		h.log.Debug().Err(sendErr).Str("session_id", sessionID).Msg("error envelope not delivered")
	}
}
