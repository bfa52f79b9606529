// Package registry tracks every live connection admitted by the game service
// together with its current room and tournament association.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
)

var (
	ErrDuplicateSession = apperr.New(apperr.InvalidState, "transport is already registered")
	ErrSessionNotFound  = apperr.New(apperr.NotFound, "session not found")
)

// Transport is the send/close capability of one live connection. Values must
// be comparable; the registry uses them as map keys to reject duplicates.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Identity is the verified user behind a connection.
type Identity struct {
	UserID   string
	Username string
	Email    string
}

// Connection is a snapshot of one registry entry.
type Connection struct {
	SessionID    string
	Identity     Identity
	RoomID       string
	TournamentID string
	ConnectedAt  time.Time
}

// Hook receives a connection snapshot. Hooks run outside the registry lock.
type Hook func(Connection)

type entry struct {
	conn      Connection
	transport Transport
}

// Registry is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*entry
	byUser     map[string]map[string]struct{}
	byRoom     map[string]map[string]struct{}
	transports map[Transport]string

	hookMu       sync.RWMutex
	onConnect    []Hook
	onDisconnect []Hook

	sendTimeout time.Duration
	log         zerolog.Logger
}

// New creates an empty registry. Sends to a single recipient are bounded by
// sendTimeout.
func New(sendTimeout time.Duration, log zerolog.Logger) *Registry {
	if sendTimeout <= 0 {
		sendTimeout = 2 * time.Second
	}
	return &Registry{
		sessions:    make(map[string]*entry),
		byUser:      make(map[string]map[string]struct{}),
		byRoom:      make(map[string]map[string]struct{}),
		transports:  make(map[Transport]string),
		sendTimeout: sendTimeout,
		log:         log.With().Str("component", "registry").Logger(),
	}
}

// OnConnect registers a hook that runs after every successful Register.
func (r *Registry) OnConnect(h Hook) {
	r.hookMu.Lock()
	r.onConnect = append(r.onConnect, h)
	r.hookMu.Unlock()
}

// OnDisconnect registers a hook that runs exactly once per unregistered
// session, in registration order.
func (r *Registry) OnDisconnect(h Hook) {
	r.hookMu.Lock()
	r.onDisconnect = append(r.onDisconnect, h)
	r.hookMu.Unlock()
}

// Register stores a new live connection and returns its session id.
func (r *Registry) Register(t Transport, id Identity) (string, error) {
	r.mu.Lock()
	if _, ok := r.transports[t]; ok {
		r.mu.Unlock()
		return "", ErrDuplicateSession
	}

	e := &entry{
		conn: Connection{
			SessionID:   uuid.New().String(),
			Identity:    id,
			ConnectedAt: time.Now(),
		},
		transport: t,
	}
	r.sessions[e.conn.SessionID] = e
	r.transports[t] = e.conn.SessionID
	addIndex(r.byUser, id.UserID, e.conn.SessionID)
	snapshot := e.conn
	r.mu.Unlock()

	r.log.Info().
		Str("session_id", snapshot.SessionID).
		Str("user_id", id.UserID).
		Msg("connection registered")

	r.runHooks(r.connectHooks(), snapshot)
	return snapshot.SessionID, nil
}

// Unregister removes the connection and every association, closes its
// transport and runs the disconnect hooks. Unknown ids are ignored, so
// concurrent callers for the same session trigger the hooks only once.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, sessionID)
	delete(r.transports, e.transport)
	removeIndex(r.byUser, e.conn.Identity.UserID, sessionID)
	if e.conn.RoomID != "" {
		removeIndex(r.byRoom, e.conn.RoomID, sessionID)
	}
	snapshot := e.conn
	r.mu.Unlock()

	if err := e.transport.Close(); err != nil {
		r.log.Debug().Err(err).Str("session_id", sessionID).Msg("transport close")
	}

	r.log.Info().
		Str("session_id", sessionID).
		Str("user_id", snapshot.Identity.UserID).
		Msg("connection unregistered")

	r.runHooks(r.disconnectHooks(), snapshot)
}

// Lookup returns a snapshot of the connection.
func (r *Registry) Lookup(sessionID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return Connection{}, false
	}
	return e.conn, true
}

// LookupByUser returns every live connection of a user, oldest first.
func (r *Registry) LookupByUser(userID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.byUser[userID]))
	for sid := range r.byUser[userID] {
		out = append(out, r.sessions[sid].conn)
	}
	sortByConnectedAt(out)
	return out
}

// JoinRoom moves the session into roomID, leaving any previous room.
func (r *Registry) JoinRoom(sessionID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if e.conn.RoomID == roomID {
		return nil
	}
	if e.conn.RoomID != "" {
		removeIndex(r.byRoom, e.conn.RoomID, sessionID)
	}
	e.conn.RoomID = roomID
	if roomID != "" {
		addIndex(r.byRoom, roomID, sessionID)
	}
	return nil
}

// LeaveRoom clears the session's room association.
func (r *Registry) LeaveRoom(sessionID string) error {
	return r.JoinRoom(sessionID, "")
}

// CloseRoom detaches every member from roomID.
func (r *Registry) CloseRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid := range r.byRoom[roomID] {
		if e, ok := r.sessions[sid]; ok {
			e.conn.RoomID = ""
		}
	}
	delete(r.byRoom, roomID)
}

// JoinTournament records the session's tournament back-reference.
func (r *Registry) JoinTournament(sessionID, tournamentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	e.conn.TournamentID = tournamentID
	return nil
}

// LeaveTournament clears the tournament back-reference.
func (r *Registry) LeaveTournament(sessionID string) error {
	return r.JoinTournament(sessionID, "")
}

// RoomMembers returns the session ids currently in roomID.
func (r *Registry) RoomMembers(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byRoom[roomID]))
	for sid := range r.byRoom[roomID] {
		out = append(out, sid)
	}
	return out
}

// CloseAll unregisters every live session. Used on shutdown, since hijacked
// connections are invisible to http.Server.Shutdown.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
	return len(ids)
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Users returns the ids of users with at least one live connection, sorted.
func (r *Registry) Users() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		out = append(out, userID)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) connectHooks() []Hook {
	r.hookMu.RLock()
	defer r.hookMu.RUnlock()
	return append([]Hook(nil), r.onConnect...)
}

func (r *Registry) disconnectHooks() []Hook {
	r.hookMu.RLock()
	defer r.hookMu.RUnlock()
	return append([]Hook(nil), r.onDisconnect...)
}

func (r *Registry) runHooks(hooks []Hook, c Connection) {
	for _, h := range hooks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error().
						Interface("panic", rec).
						Str("session_id", c.SessionID).
						Msg("registry hook panicked")
				}
			}()
			h(c)
		}()
	}
}

func addIndex(idx map[string]map[string]struct{}, key, sessionID string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[sessionID] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, key, sessionID string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(idx, key)
	}
}
