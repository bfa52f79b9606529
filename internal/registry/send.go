package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
)

// SendError reports a failed delivery to one recipient.
type SendError struct {
	SessionID string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to session %s: %v", e.SessionID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Send delivers an envelope to one session.
func (r *Registry) Send(ctx context.Context, sessionID string, env protocol.Envelope) error {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return r.deliver(ctx, sessionID, e.transport, data)
}

// Broadcast sends env to every session in roomID except the excluded ones.
// Recipients are served concurrently and a failure on one never stops the
// others; each failure is returned as a *SendError.
func (r *Registry) Broadcast(ctx context.Context, roomID string, env protocol.Envelope, exclude ...string) []error {
	data, err := protocol.Encode(env)
	if err != nil {
		return []error{err}
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, sid := range exclude {
		skip[sid] = struct{}{}
	}

	type target struct {
		sessionID string
		transport Transport
	}

	r.mu.RLock()
	targets := make([]target, 0, len(r.byRoom[roomID]))
	for sid := range r.byRoom[roomID] {
		if _, excluded := skip[sid]; excluded {
			continue
		}
		targets = append(targets, target{sessionID: sid, transport: r.sessions[sid].transport})
	}
	r.mu.RUnlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			if err := r.deliver(ctx, t.sessionID, t.transport, data); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(t)
	}
	wg.Wait()

	for _, err := range errs {
		r.log.Warn().Err(err).Str("room_id", roomID).Msg("broadcast delivery failed")
	}
	return errs
}

func (r *Registry) deliver(ctx context.Context, sessionID string, t Transport, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	if err := t.Send(ctx, data); err != nil {
		return &SendError{SessionID: sessionID, Err: err}
	}
	return nil
}

func sortByConnectedAt(conns []Connection) {
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].ConnectedAt.Before(conns[j].ConnectedAt)
	})
}
