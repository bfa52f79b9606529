package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/e-kose/FT-PINPON-sub002/internal/models"
	"github.com/e-kose/FT-PINPON-sub002/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gormDB.AutoMigrate(models.All()...))
	return gormDB
}

func finishedMatches(tour Tournament) map[string]string {
	out := make(map[string]string)
	for _, r := range tour.Bracket.Rounds {
		for _, m := range r.Matches {
			if m.Status == MatchFinished {
				out[m.ID] = derefOr(m.WinnerID)
			}
		}
	}
	return out
}

func TestRoundTrip_SavedTournamentReloads(t *testing.T) {
	repo := repository.NewGormRepository(setupTestDB(t))
	h := newHarnessWithRepo(t, repo)

	tour := h.start(t, 8, "A", "B", "C", "D", "E", "F", "G", "H")
	for _, m := range tour.Bracket.Rounds[0].Matches {
		require.NoError(t, h.engine.ReportMatchResult(h.ctx, m.ID, m.Player1.UserID, 11, 5))
	}
	// one semi-final decided by forfeit
	h.disconnect("E")
	tour = h.get(t, tour.ID)
	require.NoError(t, h.engine.ReportMatchResult(h.ctx, match(tour, 2, 0).ID, "C", 9, 11))
	tour = h.get(t, tour.ID)
	require.NoError(t, h.engine.ReportMatchResult(h.ctx, match(tour, 3, 0).ID, "G", 7, 11))

	original := h.get(t, tour.ID)
	require.Equal(t, StateFinished, original.State)

	rec, matches, err := repo.LoadTournament(h.ctx, original.ID)
	require.NoError(t, err)
	reloaded := FromRecords(rec, matches)

	assert.Equal(t, original.State, reloaded.State)
	require.NotNil(t, reloaded.Bracket.WinnerID)
	assert.Equal(t, *original.Bracket.WinnerID, *reloaded.Bracket.WinnerID)
	assert.Equal(t, finishedMatches(original), finishedMatches(reloaded))
	assert.Len(t, reloaded.Bracket.Rounds, 3)
	assert.Len(t, reloaded.Players, 8)

	semi := match(reloaded, 2, 1)
	assert.True(t, semi.Forfeit)
	assert.Equal(t, "G", *semi.WinnerID)
	assert.Equal(t, match(original, 3, 0).ID, *semi.NextMatchID)
}

func TestToRecords_PendingSlotsStayEmpty(t *testing.T) {
	h := newHarness(t)
	tour := h.start(t, 4, "A", "B", "C", "D")

	rec, matches := ToRecords(tour)
	assert.Equal(t, "in_progress", rec.Status)
	require.Len(t, matches, 3)
	assert.Nil(t, matches[2].Player1ID)
	assert.Nil(t, matches[2].NextMatchID)
	assert.Equal(t, "A", *matches[0].Player1ID)
}
