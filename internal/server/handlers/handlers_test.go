package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/e-kose/FT-PINPON-sub002/internal/models"
	"github.com/e-kose/FT-PINPON-sub002/internal/repository"
	"github.com/e-kose/FT-PINPON-sub002/internal/tournament"
)

const liveID = "3f1c2a34-5b6d-4e7f-8a9b-0c1d2e3f4a5b"
const archivedID = "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d"

type fakeTournaments struct {
	items []tournament.Tournament
}

func (f *fakeTournaments) Get(id string) (tournament.Tournament, error) {
	for _, t := range f.items {
		if t.ID == id {
			return t, nil
		}
	}
	return tournament.Tournament{}, tournament.ErrTournamentNotFound
}

func (f *fakeTournaments) ByCode(code string) (tournament.Tournament, error) {
	code = tournament.NormalizeCode(code)
	if !tournament.ValidateCode(code) {
		return tournament.Tournament{}, tournament.ErrInvalidCode
	}
	for _, t := range f.items {
		if t.Code == code {
			return t, nil
		}
	}
	return tournament.Tournament{}, tournament.ErrTournamentNotFound
}

func (f *fakeTournaments) List(state tournament.State) []tournament.Tournament {
	var out []tournament.Tournament
	for _, t := range f.items {
		if state == "" || t.State == state {
			out = append(out, t)
		}
	}
	return out
}

type fakeQueue struct{ queued, active int }

func (f fakeQueue) QueueLength() int   { return f.queued }
func (f fakeQueue) ActiveMatches() int { return f.active }

type fakeOnline struct {
	users []string
	err   error
}

func (f fakeOnline) Online(context.Context) ([]string, error) { return f.users, f.err }

func setupRepo(t *testing.T) *repository.GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return repository.NewGormRepository(db)
}

func setupRouter(t *testing.T, repo *repository.GormRepository, presence OnlineLister) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tournaments := &fakeTournaments{items: []tournament.Tournament{
		{ID: liveID, Code: "ABCD2345", Size: 4, State: tournament.StateWaiting, CreatedAt: time.Now()},
	}}
	log := zerolog.Nop()

	r := gin.New()
	r.GET("/api/tournaments", func(c *gin.Context) { HandleListTournaments(c, tournaments) })
	r.GET("/api/tournaments/:id", func(c *gin.Context) { HandleGetTournament(c, tournaments, repo, log) })
	r.GET("/api/tournaments/code/:code", func(c *gin.Context) { HandleGetTournamentByCode(c, tournaments, log) })
	r.GET("/api/matchmaking/queue", func(c *gin.Context) { HandleQueueStats(c, fakeQueue{queued: 3, active: 2}) })
	r.GET("/api/presence", func(c *gin.Context) { HandleOnlineUsers(c, presence, log) })
	r.GET("/api/users/:id/matches", func(c *gin.Context) { HandleUserMatches(c, repo, log) })
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListTournaments(t *testing.T) {
	r := setupRouter(t, setupRepo(t), nil)

	w := get(r, "/api/tournaments")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tournaments []tournament.Tournament `json:"tournaments"`
		Count       int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, liveID, body.Tournaments[0].ID)

	w = get(r, "/api/tournaments?state=finished")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Count)

	w = get(r, "/api/tournaments?state=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTournament(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	winner := "u1"
	finished := time.Now().UTC()
	require.NoError(t, repo.SaveTournament(ctx, models.Tournament{
		ID: archivedID, Code: "WXYZ6789", Size: 4, Status: string(tournament.StateFinished),
		CurrentRound: 2, WinnerID: &winner, CreatedAt: finished.Add(-time.Hour), FinishedAt: &finished,
		Players: []models.TournamentPlayer{
			{TournamentID: archivedID, UserID: "u1", Username: "one", Seed: 1},
		},
	}))

	r := setupRouter(t, repo, nil)

	tests := []struct {
		name   string
		path   string
		status int
		wantID string
	}{
		{"in memory", "/api/tournaments/" + liveID, http.StatusOK, liveID},
		{"from database", "/api/tournaments/" + archivedID, http.StatusOK, archivedID},
		{"unknown", "/api/tournaments/00000000-0000-4000-8000-000000000000", http.StatusNotFound, ""},
		{"not a uuid", "/api/tournaments/nope", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.wantID == "" {
				return
			}
			var got tournament.Tournament
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestGetTournamentByCode(t *testing.T) {
	r := setupRouter(t, setupRepo(t), nil)

	w := get(r, "/api/tournaments/code/abcd2345")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, get(r, "/api/tournaments/code/ZZZZ2345").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/tournaments/code/bad").Code)
}

func TestQueueStats(t *testing.T) {
	r := setupRouter(t, setupRepo(t), nil)

	w := get(r, "/api/matchmaking/queue")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"queued":3,"active_matches":2}`, w.Body.String())
}

func TestOnlineUsers(t *testing.T) {
	repo := setupRepo(t)

	w := get(setupRouter(t, repo, nil), "/api/presence")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = get(setupRouter(t, repo, fakeOnline{err: errors.New("redis down")}), "/api/presence")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = get(setupRouter(t, repo, fakeOnline{users: []string{"a", "b"}}), "/api/presence")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"users":["a","b"],"count":2}`, w.Body.String())
}

func TestUserMatches(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, repo.SaveMatch(ctx, models.Match{
			ID: id, Player1ID: "alice", Player1Username: "alice", Player2ID: "bob", Player2Username: "bob",
			Player1Score: 11, Player2Score: i, WinnerID: "alice",
			StartedAt: now.Add(-time.Minute), EndedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	r := setupRouter(t, repo, nil)

	w := get(r, "/api/users/bob/matches?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Matches []models.Match `json:"matches"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "m3", body.Matches[0].ID)

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/users/bob/matches?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/users/bob/matches?limit=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/users/b%20b/matches").Code)
}
