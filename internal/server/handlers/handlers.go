// Package handlers serves the read-only HTTP API next to the websocket
// endpoint: tournament lookups, queue statistics, presence and match history.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
	"github.com/e-kose/FT-PINPON-sub002/internal/models"
	"github.com/e-kose/FT-PINPON-sub002/internal/tournament"
	"github.com/e-kose/FT-PINPON-sub002/internal/validation"
)

// Tournaments is the query side of the tournament engine.
type Tournaments interface {
	Get(id string) (tournament.Tournament, error)
	ByCode(code string) (tournament.Tournament, error)
	List(state tournament.State) []tournament.Tournament
}

// TournamentLoader reads tournaments that are no longer held in memory.
type TournamentLoader interface {
	LoadTournament(ctx context.Context, id string) (models.Tournament, []models.TournamentMatch, error)
}

// QueueStats reports the quick-play queue.
type QueueStats interface {
	QueueLength() int
	ActiveMatches() int
}

// OnlineLister lists users with at least one live connection.
type OnlineLister interface {
	Online(ctx context.Context) ([]string, error)
}

// MatchHistory returns finished quick-play matches.
type MatchHistory interface {
	RecentMatches(ctx context.Context, userID string, limit int) ([]models.Match, error)
}

// HandleListTournaments lists in-memory tournaments, optionally filtered by
// ?state=waiting|in_progress|finished.
func HandleListTournaments(c *gin.Context, tournaments Tournaments) {
	state := tournament.State(c.Query("state"))
	switch state {
	case "", tournament.StateWaiting, tournament.StateInProgress, tournament.StateFinished:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state filter"})
		return
	}

	list := tournaments.List(state)
	c.JSON(http.StatusOK, gin.H{"tournaments": list, "count": len(list)})
}

// HandleGetTournament returns a tournament by id. Tournaments already reaped
// from memory are served from the database when a loader is configured.
func HandleGetTournament(c *gin.Context, tournaments Tournaments, loader TournamentLoader, log zerolog.Logger) {
	id := c.Param("id")
	if err := validation.ValidateUUID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
		return
	}

	t, err := tournaments.Get(id)
	if err == nil {
		c.JSON(http.StatusOK, t)
		return
	}
	if !apperr.Is(err, apperr.NotFound) || loader == nil {
		respondError(c, err, log)
		return
	}

	rec, matches, err := loader.LoadTournament(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, tournament.FromRecords(rec, matches))
}

// HandleGetTournamentByCode resolves a join code. Codes are case-insensitive.
func HandleGetTournamentByCode(c *gin.Context, tournaments Tournaments, log zerolog.Logger) {
	t, err := tournaments.ByCode(c.Param("code"))
	if err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, t)
}

// HandleQueueStats reports how many players wait and how many quick-play
// matches are running.
func HandleQueueStats(c *gin.Context, queue QueueStats) {
	c.JSON(http.StatusOK, gin.H{
		"queued":         queue.QueueLength(),
		"active_matches": queue.ActiveMatches(),
	})
}

// HandleOnlineUsers lists online user ids. Presence is optional; without it
// the endpoint answers 503.
func HandleOnlineUsers(c *gin.Context, presence OnlineLister, log zerolog.Logger) {
	if presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Presence tracking is disabled"})
		return
	}
	users, err := presence.Online(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list online users")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Presence store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// HandleUserMatches returns the latest quick-play matches of a user,
// ?limit= defaults to 20.
func HandleUserMatches(c *gin.Context, history MatchHistory, log zerolog.Logger) {
	userID := c.Param("id")
	if err := validation.ValidateUserID(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	if err := validation.ValidateIntRange(limit, 1, 100, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
		return
	}

	matches, err := history.RecentMatches(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err, log)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

func respondError(c *gin.Context, err error, log zerolog.Logger) {
	status := statusFor(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.InvalidState, apperr.Capacity:
		return http.StatusConflict
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
