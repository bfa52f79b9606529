// Package websocket admits proxied websocket connections into the registry and
// dispatches their messages to the matchmaking and tournament engines.
package websocket

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/gate"
	"github.com/e-kose/FT-PINPON-sub002/internal/matchmaking"
	"github.com/e-kose/FT-PINPON-sub002/internal/middleware"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/tournament"
	"github.com/e-kose/FT-PINPON-sub002/internal/validation"
)

// Config wires a Handler.
type Config struct {
	Registry    *registry.Registry
	Matchmaking *matchmaking.Engine
	Tournaments *tournament.Engine
	// Limiter bounds inbound messages per session. Nil disables it.
	Limiter *middleware.RateLimiter
	Tracker *RequestTracker
	// GatewaySecret, when set, must match the X-Gateway-Token header.
	GatewaySecret string
	// CheckOrigin overrides the ALLOWED_ORIGINS check.
	CheckOrigin func(*http.Request) bool
	Log         zerolog.Logger
}

// Handler serves GET /ws.
type Handler struct {
	reg         *registry.Registry
	mm          *matchmaking.Engine
	tournaments *tournament.Engine
	limiter     *middleware.RateLimiter
	tracker     *RequestTracker
	secret      string
	upgrader    websocket.Upgrader
	ctx         context.Context
	log         zerolog.Logger
}

// NewHandler builds the handler and registers the engines' disconnect
// handling with the registry.
func NewHandler(ctx context.Context, cfg Config) *Handler {
	check := cfg.CheckOrigin
	if check == nil {
		check = checkOrigin
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewRequestTracker()
	}

	h := &Handler{
		reg:         cfg.Registry,
		mm:          cfg.Matchmaking,
		tournaments: cfg.Tournaments,
		limiter:     cfg.Limiter,
		tracker:     tracker,
		secret:      cfg.GatewaySecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     check,
		},
		ctx: ctx,
		log: cfg.Log.With().Str("component", "websocket").Logger(),
	}
	h.reg.OnDisconnect(h.onDisconnect)
	return h
}

// ServeWS admits a connection already verified by the gateway. The identity
// comes from the headers the gateway sets.
func (h *Handler) ServeWS(c *gin.Context) {
	if h.secret != "" {
		token := c.GetHeader(gate.HeaderGatewayToken)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			h.log.Warn().Str("remote", c.ClientIP()).Msg("upgrade without gateway token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	id, ok := identityFromHeaders(c.Request.Header)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", id.UserID).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn)
	sessionID, err := h.reg.Register(client, id)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", id.UserID).Msg("register connection")
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(func(msg []byte) { h.dispatch(sessionID, msg) })
		h.reg.Unregister(sessionID)
	}()
}

func identityFromHeaders(hdr http.Header) (registry.Identity, bool) {
	id := registry.Identity{
		UserID:   validation.SanitizeString(hdr.Get(gate.HeaderUserID)),
		Username: validation.SanitizeString(hdr.Get(gate.HeaderUserUsername)),
		Email:    validation.SanitizeString(hdr.Get(gate.HeaderUserEmail)),
	}
	if validation.ValidateUserID(id.UserID) != nil {
		return registry.Identity{}, false
	}
	if id.Username == "" || validation.ValidateStringLength(id.Username, 1, validation.MaxDisplayNameLength, "username") != nil {
		id.Username = id.UserID
	}
	if validation.ValidateEmail(id.Email) != nil {
		id.Email = ""
	}
	return id, true
}

// onDisconnect runs once per unregistered session.
func (h *Handler) onDisconnect(conn registry.Connection) {
	h.mm.HandleDisconnect(h.ctx, conn)
	h.tournaments.HandleDisconnect(h.ctx, conn)
	if h.limiter != nil {
		h.limiter.Forget(conn.SessionID)
	}
	h.log.Info().
		Str("session_id", conn.SessionID).
		Str("user_id", conn.Identity.UserID).
		Msg("connection closed")
}
