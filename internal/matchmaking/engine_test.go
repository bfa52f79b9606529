package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-kose/FT-PINPON-sub002/internal/models"
	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry/registrytest"
)

type recordingRepo struct {
	mu      sync.Mutex
	matches []models.Match
	err     error
}

func (r *recordingRepo) SaveMatch(_ context.Context, m models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.matches = append(r.matches, m)
	return nil
}

func (r *recordingRepo) SaveTournament(context.Context, models.Tournament) error { return nil }

func (r *recordingRepo) SaveTournamentMatch(context.Context, models.TournamentMatch) error {
	return nil
}

func (r *recordingRepo) saved() []models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Match(nil), r.matches...)
}

type harness struct {
	reg        *registry.Registry
	engine     *Engine
	repo       *recordingRepo
	transports map[string]*registrytest.Transport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := registry.New(100*time.Millisecond, zerolog.Nop())
	repo := &recordingRepo{}
	return &harness{
		reg:        reg,
		engine:     NewEngine(reg, repo, zerolog.Nop()),
		repo:       repo,
		transports: make(map[string]*registrytest.Transport),
	}
}

func (h *harness) connect(t *testing.T, userID string) string {
	t.Helper()
	tr := registrytest.NewTransport()
	sid, err := h.reg.Register(tr, registry.Identity{UserID: userID, Username: "name-" + userID})
	require.NoError(t, err)
	h.transports[sid] = tr
	return sid
}

func (h *harness) matchFound(t *testing.T, sid string) protocol.MatchFoundPayload {
	t.Helper()
	env, ok := h.transports[sid].Last(protocol.TypeMatchFound)
	require.True(t, ok, "session %s got no match-found", sid)
	p, err := protocol.DecodePayload[protocol.MatchFoundPayload](env)
	require.NoError(t, err)
	return p
}

func TestEnqueue_FIFOFairness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var sids []string
	for i := 1; i <= 5; i++ {
		sid := h.connect(t, fmt.Sprintf("u%d", i))
		sids = append(sids, sid)
		_, err := h.engine.Enqueue(ctx, sid)
		require.NoError(t, err)
	}

	first := h.matchFound(t, sids[0])
	assert.Equal(t, "u2", first.Opponent.UserID)
	assert.Equal(t, 1, first.Side)
	second := h.matchFound(t, sids[1])
	assert.Equal(t, first.MatchID, second.MatchID)
	assert.Equal(t, 2, second.Side)

	third := h.matchFound(t, sids[2])
	assert.Equal(t, "u4", third.Opponent.UserID)
	assert.NotEqual(t, first.RoomID, third.RoomID)

	_, ok := h.transports[sids[4]].Last(protocol.TypeMatchFound)
	assert.False(t, ok)
	assert.Equal(t, 1, h.engine.QueueLength())
	assert.Equal(t, Status{Queued: true, Position: 1}, h.engine.Status(sids[4]))

	assert.ElementsMatch(t, []string{sids[0], sids[1]}, h.reg.RoomMembers(first.RoomID))
}

func TestEnqueue_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.connect(t, "u1")
	_, err := h.engine.Enqueue(ctx, a)
	require.NoError(t, err)

	_, err = h.engine.Enqueue(ctx, a)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	otherTab := h.connect(t, "u1")
	_, err = h.engine.Enqueue(ctx, otherTab)
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	b := h.connect(t, "u2")
	_, err = h.engine.Enqueue(ctx, b)
	require.NoError(t, err)

	_, err = h.engine.Enqueue(ctx, a)
	assert.ErrorIs(t, err, ErrAlreadyInMatch)

	_, err = h.engine.Enqueue(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	c := h.connect(t, "u3")
	require.NoError(t, h.reg.JoinTournament(c, "t-1"))
	_, err = h.engine.Enqueue(ctx, c)
	assert.ErrorIs(t, err, ErrInTournament)
}

func TestDequeue(t *testing.T) {
	h := newHarness(t)
	a := h.connect(t, "u1")
	_, err := h.engine.Enqueue(context.Background(), a)
	require.NoError(t, err)

	assert.True(t, h.engine.Dequeue(a))
	assert.False(t, h.engine.Dequeue(a))
	assert.Zero(t, h.engine.QueueLength())

	// the user may queue again afterwards
	_, err = h.engine.Enqueue(context.Background(), a)
	assert.NoError(t, err)
}

func TestReportResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := h.connect(t, "u1"), h.connect(t, "u2")
	_, _ = h.engine.Enqueue(ctx, a)
	_, _ = h.engine.Enqueue(ctx, b)
	found := h.matchFound(t, a)

	tests := []struct {
		name    string
		matchID string
		winner  string
		s1, s2  int
		wantErr error
	}{
		{"unknown match", "nope", "u1", 1, 0, ErrUnknownMatch},
		{"negative score", found.MatchID, "u1", -1, 0, ErrInvalidScore},
		{"winner not seated", found.MatchID, "u9", 3, 1, ErrInvalidScore},
		{"empty winner", found.MatchID, "", 3, 1, ErrInvalidScore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.engine.ReportResult(ctx, tt.matchID, tt.winner, tt.s1, tt.s2)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 1, h.engine.ActiveMatches())

	require.NoError(t, h.engine.ReportResult(ctx, found.MatchID, "u2", 5, 11))

	saved := h.repo.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "u2", saved[0].WinnerID)
	assert.Equal(t, 11, saved[0].Player2Score)
	assert.False(t, saved[0].Forfeit)

	for _, sid := range []string{a, b} {
		env, ok := h.transports[sid].Last(protocol.TypeMatchEnded)
		require.True(t, ok)
		ended, err := protocol.DecodePayload[protocol.MatchEndedPayload](env)
		require.NoError(t, err)
		assert.Equal(t, "u2", ended.WinnerID)
		conn, _ := h.reg.Lookup(sid)
		assert.Empty(t, conn.RoomID)
	}
	assert.Zero(t, h.engine.ActiveMatches())
	assert.ErrorIs(t, h.engine.ReportResult(ctx, found.MatchID, "u2", 5, 11), ErrUnknownMatch)
}

func TestHandleDisconnect_OpponentWinsByForfeit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.reg.OnDisconnect(func(c registry.Connection) { h.engine.HandleDisconnect(ctx, c) })

	a, b := h.connect(t, "u1"), h.connect(t, "u2")
	_, _ = h.engine.Enqueue(ctx, a)
	_, _ = h.engine.Enqueue(ctx, b)

	h.reg.Unregister(a)

	saved := h.repo.saved()
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Forfeit)
	assert.Equal(t, "u2", saved[0].WinnerID)

	env, ok := h.transports[b].Last(protocol.TypeMatchEnded)
	require.True(t, ok)
	ended, _ := protocol.DecodePayload[protocol.MatchEndedPayload](env)
	assert.True(t, ended.Forfeit)
	assert.Equal(t, Status{}, h.engine.Status(b))
}

func TestHandleDisconnect_BothGoneDiscardsMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := h.connect(t, "u1"), h.connect(t, "u2")
	_, _ = h.engine.Enqueue(ctx, a)
	_, _ = h.engine.Enqueue(ctx, b)

	connA, _ := h.reg.Lookup(a)
	connB, _ := h.reg.Lookup(b)
	h.reg.Unregister(a)
	h.reg.Unregister(b)

	h.engine.HandleDisconnect(ctx, connA)
	h.engine.HandleDisconnect(ctx, connB)

	assert.Empty(t, h.repo.saved())
	assert.Zero(t, h.engine.ActiveMatches())
}

func TestHandleDisconnect_LeavesQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.reg.OnDisconnect(func(c registry.Connection) { h.engine.HandleDisconnect(ctx, c) })

	a := h.connect(t, "u1")
	_, _ = h.engine.Enqueue(ctx, a)
	h.reg.Unregister(a)

	assert.Zero(t, h.engine.QueueLength())
}

func TestPairing_SkipsVanishedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	gone := h.connect(t, "u1")
	_, _ = h.engine.Enqueue(ctx, gone)
	// no disconnect hook: the engine only notices when pairing
	h.reg.Unregister(gone)

	b := h.connect(t, "u2")
	_, err := h.engine.Enqueue(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, 1, h.engine.QueueLength())
	assert.Equal(t, Status{Queued: true, Position: 1}, h.engine.Status(b))

	c := h.connect(t, "u3")
	_, err = h.engine.Enqueue(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "u3", h.matchFound(t, b).Opponent.UserID)
}

func TestFinish_PersistenceFailureWarnsPlayers(t *testing.T) {
	h := newHarness(t)
	h.repo.err = errors.New("db down")
	ctx := context.Background()
	a, b := h.connect(t, "u1"), h.connect(t, "u2")
	_, _ = h.engine.Enqueue(ctx, a)
	_, _ = h.engine.Enqueue(ctx, b)

	require.NoError(t, h.engine.ReportResult(ctx, h.matchFound(t, a).MatchID, "u1", 11, 2))

	for _, sid := range []string{a, b} {
		_, ok := h.transports[sid].Last(protocol.TypeWarning)
		assert.True(t, ok)
	}
	assert.Zero(t, h.engine.ActiveMatches())
}

func TestValidateResult(t *testing.T) {
	assert.NoError(t, ValidateResult("a", "b", "a", 0, 0))
	assert.ErrorIs(t, ValidateResult("a", "b", "c", 1, 0), ErrInvalidScore)
	assert.ErrorIs(t, ValidateResult("a", "b", "b", 0, -2), ErrInvalidScore)
}
