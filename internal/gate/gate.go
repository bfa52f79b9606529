// Package gate admits websocket upgrades only after the caller's identity
// token is verified, then proxies the handshake to the game service with the
// identity attached as headers.
package gate

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
	"github.com/e-kose/FT-PINPON-sub002/internal/auth"
)

// Headers forwarded to the game service.
const (
	HeaderUserID       = "X-User-Id"
	HeaderUserEmail    = "X-User-Email"
	HeaderUserUsername = "X-User-Username"
	HeaderGatewayToken = "X-Gateway-Token"
)

var (
	ErrNoVerifier = errors.New("gate: identity verifier is required")
	ErrNoTarget   = errors.New("gate: target URL is required")
)

// Config wires a Gate.
type Config struct {
	Target       *url.URL
	Verifier     auth.Verifier
	SharedSecret string
	Log          zerolog.Logger
}

// Gate is an http.Handler.
type Gate struct {
	verifier auth.Verifier
	proxy    *httputil.ReverseProxy
	secret   string
	log      zerolog.Logger
}

// New fails when the verifier or target is missing; the gateway must not
// start without them.
func New(cfg Config) (*Gate, error) {
	if cfg.Verifier == nil {
		return nil, ErrNoVerifier
	}
	if cfg.Target == nil || cfg.Target.Host == "" {
		return nil, ErrNoTarget
	}

	g := &Gate{
		verifier: cfg.Verifier,
		secret:   cfg.SharedSecret,
		log:      cfg.Log.With().Str("component", "gate").Logger(),
	}
	target := cfg.Target
	g.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: g.proxyError,
	}
	return g, nil
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := TokenFromRequest(r)

	out := r.Clone(r.Context())
	for _, h := range []string{HeaderUserID, HeaderUserEmail, HeaderUserUsername, HeaderGatewayToken} {
		out.Header.Del(h)
	}

	id, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		// Every verification failure answers 401; only the log level differs.
		if apperr.Is(err, apperr.Unauthorized) {
			g.log.Info().Str("remote", r.RemoteAddr).Msg("upgrade rejected, invalid token")
		} else {
			g.log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("identity verifier failed")
		}
		reject(w, http.StatusUnauthorized)
		return
	}

	out.Header.Set(HeaderUserID, id.ID)
	out.Header.Set(HeaderUserEmail, id.Email)
	out.Header.Set(HeaderUserUsername, id.Username)
	if g.secret != "" {
		out.Header.Set(HeaderGatewayToken, g.secret)
	}
	out.Header.Del("Authorization")
	q := out.URL.Query()
	if q.Has("token") {
		q.Del("token")
		out.URL.RawQuery = q.Encode()
	}

	g.log.Debug().Str("user_id", id.ID).Str("path", r.URL.Path).Msg("upgrade admitted")
	g.proxy.ServeHTTP(w, out)
}

// TokenFromRequest reads a bearer token from the Authorization header or,
// for browsers that cannot set headers on a websocket, the token query
// parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if rest, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return r.URL.Query().Get("token")
}

func (g *Gate) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	g.log.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error, closing connection")
	closeConn(w)
}

// reject writes a bare status line on the raw connection and closes it, so
// the client sees an explicit refusal of the handshake.
func reject(w http.ResponseWriter, status int) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.Header().Set("Connection", "close")
		http.Error(w, http.StatusText(status), status)
		return
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return
	}
	defer conn.Close()
	writeStatus(buf, status)
}

func writeStatus(buf *bufio.ReadWriter, status int) {
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\nConnection: close\r\nContent-Length: 0\r\n\r\n",
		status, http.StatusText(status))
	_ = buf.Flush()
}

// closeConn drops the client connection without leaving it half open.
func closeConn(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = conn.Close()
}
