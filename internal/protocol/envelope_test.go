package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WithoutPayloadOmitsField(t *testing.T) {
	env, err := New(TypePong, nil)
	require.NoError(t, err)

	bz, err := Encode(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(bz))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Type
		wantErr bool
	}{
		{"queue join", `{"type":"queue-join"}`, TypeQueueJoin, false},
		{"with payload", `{"type":"tournament-create","payload":{"size":4}}`, TypeTournamentCreate, false},
		{"missing type", `{"payload":{}}`, "", true},
		{"not json", `hello`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Type)
		})
	}
}

func TestDecodePayload(t *testing.T) {
	env, err := Decode([]byte(`{"type":"match-result","payload":{"match_id":"m1","winner_id":"u1","player1_score":11,"player2_score":7}}`))
	require.NoError(t, err)

	p, err := DecodePayload[MatchResultPayload](env)
	require.NoError(t, err)
	assert.Equal(t, "m1", p.MatchID)
	assert.Equal(t, "u1", p.WinnerID)
	assert.Equal(t, 11, p.Player1Score)
	assert.Equal(t, 7, p.Player2Score)

	_, err = DecodePayload[TournamentCreatePayload](Envelope{Type: TypeTournamentCreate, Payload: []byte(`{"size":"four"}`)})
	assert.Error(t, err)

	empty, err := DecodePayload[TournamentJoinPayload](Envelope{Type: TypeTournamentJoin})
	require.NoError(t, err)
	assert.Empty(t, empty.Code)
}

func TestIsClientType(t *testing.T) {
	assert.True(t, IsClientType(TypeQueueJoin))
	assert.True(t, IsClientType(TypeMatchUpdate))
	assert.False(t, IsClientType(TypeMatchFound))
	assert.False(t, IsClientType("bogus"))
}
