package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token, err := v.GenerateToken(Identity{ID: "u1", Username: "alice", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Username: "alice", Email: "a@example.com"}, id)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	other := NewJWTVerifier("other-secret")

	wrongKey, err := other.GenerateToken(Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	expired, err := v.GenerateToken(Identity{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong key", wrongKey},
		{"expired", expired},
		{"no user claim", noUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestJWTVerifier_AcceptsSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "u7",
		"username": "grace",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s"))
	require.NoError(t, err)

	id, err := NewJWTVerifier("s").Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u7", id.ID)
	assert.Equal(t, "grace", id.Username)
}

func TestClient_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify", r.URL.Path)
		assert.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"u1","username":"alice","email":"a@example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "svc-token", zerolog.Nop())

	id, err := c.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Username: "alice", Email: "a@example.com"}, id)

	_, err = c.Verify(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_TransportFailureIsNotUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", zerolog.Nop()).Verify(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
