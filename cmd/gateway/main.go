package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/auth"
	"github.com/e-kose/FT-PINPON-sub002/internal/gate"
	"github.com/e-kose/FT-PINPON-sub002/internal/janitor"
	"github.com/e-kose/FT-PINPON-sub002/internal/logging"
	"github.com/e-kose/FT-PINPON-sub002/internal/middleware"
)

func main() {
	config := LoadConfig()
	log := logging.New(config.Environment, config.LogLevel, "gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, log); err != nil {
		log.Fatal().Err(err).Msg("gateway stopped")
	}
}

func run(ctx context.Context, config Config, log zerolog.Logger) error {
	verifier, err := buildVerifier(config, log)
	if err != nil {
		return err
	}
	target, err := url.Parse(config.GameServiceURL)
	if err != nil {
		return eris.Wrap(err, "parse GAME_SERVICE_URL")
	}
	g, err := gate.New(gate.Config{
		Target:       target,
		Verifier:     verifier,
		SharedSecret: config.SharedSecret,
		Log:          log,
	})
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: config.RequestsPerSecond,
		BurstSize:         config.BurstSize,
		IdleTTL:           middleware.DefaultRateLimiterConfig.IdleTTL,
	}, log)

	jan, err := janitor.New(janitor.Config{}, janitor.Deps{
		Limiters: []janitor.LimiterCleaner{limiter},
	}, log)
	if err != nil {
		return err
	}
	jan.Start()
	defer jan.Shutdown()

	if config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           newRouter(g, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", config.Port).Str("target", target.String()).Msg("gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return eris.Wrap(srv.Shutdown(shutdownCtx), "shutdown http")
}

// buildVerifier picks local JWT verification or the remote auth service.
func buildVerifier(config Config, log zerolog.Logger) (auth.Verifier, error) {
	switch config.AuthMode {
	case AuthModeJWT:
		if config.JWTSecret == "" {
			return nil, eris.New("JWT_SECRET is required in jwt mode")
		}
		return auth.NewJWTVerifier(config.JWTSecret), nil
	case AuthModeRemote:
		if config.AuthServiceURL == "" {
			return nil, eris.New("AUTH_SERVICE_URL is required in remote mode")
		}
		return auth.NewClient(config.AuthServiceURL, config.AuthServiceToken, log), nil
	default:
		return nil, eris.Errorf("unknown AUTH_MODE %q", config.AuthMode)
	}
}

// newRouter exposes only the upgrade path; everything else is 404.
func newRouter(g http.Handler, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/ws", limiter.Middleware(), gin.WrapH(g))
	return router
}
