// Package registrytest provides an in-memory registry.Transport for tests.
package registrytest

import (
	"context"
	"errors"
	"sync"

	"github.com/e-kose/FT-PINPON-sub002/internal/protocol"
)

var ErrClosed = errors.New("transport closed")

// Transport records every frame it is asked to send.
type Transport struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	failErr error
	block   bool
}

func NewTransport() *Transport {
	return &Transport{}
}

// Failing returns a transport whose sends always fail with err.
func Failing(err error) *Transport {
	return &Transport{failErr: err}
}

// Blocking returns a transport whose sends wait until the context expires.
func Blocking() *Transport {
	return &Transport{block: true}
}

func (t *Transport) Send(ctx context.Context, data []byte) error {
	if t.block {
		<-ctx.Done()
		return ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.failErr != nil {
		return t.failErr
	}
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Envelopes decodes every recorded frame.
func (t *Transport) Envelopes() []protocol.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(t.frames))
	for _, f := range t.frames {
		env, err := protocol.Decode(f)
		if err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}

// Types lists the envelope types received so far, in order.
func (t *Transport) Types() []protocol.Type {
	envs := t.Envelopes()
	out := make([]protocol.Type, len(envs))
	for i, env := range envs {
		out[i] = env.Type
	}
	return out
}

// Last returns the most recent envelope of type typ.
func (t *Transport) Last(typ protocol.Type) (protocol.Envelope, bool) {
	envs := t.Envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == typ {
			return envs[i], true
		}
	}
	return protocol.Envelope{}, false
}

// Reset forgets every recorded frame.
func (t *Transport) Reset() {
	t.mu.Lock()
	t.frames = nil
	t.mu.Unlock()
}
