package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Client delegates verification to the auth service over HTTP.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
	log     zerolog.Logger
}

type verifyResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "auth-client").Logger(),
	}
}

// Verify calls POST /auth/verify. Any non-200 answer is ErrUnauthorized;
// transport failures are returned wrapped so the gate can log them apart.
func (c *Client) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, ErrUnauthorized
	}

	url := fmt.Sprintf("%s/auth/verify", c.BaseURL)
	body, err := json.Marshal(map[string]string{"token": accessToken})
	if err != nil {
		return Identity{}, eris.Wrap(err, "encode verify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Identity{}, eris.Wrap(err, "build verify request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.Token != "" {
		req.Header.Set("X-Service-Token", c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Identity{}, eris.Wrap(err, "call auth service")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Identity{}, eris.Wrap(err, "read verify response")
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Debug().Int("status", resp.StatusCode).Str("body", string(raw)).Msg("auth service rejected token")
		return Identity{}, ErrUnauthorized
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Identity{}, eris.Wrap(err, "decode verify response")
	}
	id := out.ID
	if id == "" {
		id = out.UserID
	}
	if id == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{ID: id, Username: out.Username, Email: out.Email}, nil
}
