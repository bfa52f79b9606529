package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/e-kose/FT-PINPON-sub002/internal/archive"
	"github.com/e-kose/FT-PINPON-sub002/internal/db"
	"github.com/e-kose/FT-PINPON-sub002/internal/janitor"
	"github.com/e-kose/FT-PINPON-sub002/internal/matchmaking"
	"github.com/e-kose/FT-PINPON-sub002/internal/middleware"
	"github.com/e-kose/FT-PINPON-sub002/internal/presence"
	"github.com/e-kose/FT-PINPON-sub002/internal/redis"
	"github.com/e-kose/FT-PINPON-sub002/internal/registry"
	"github.com/e-kose/FT-PINPON-sub002/internal/repository"
	"github.com/e-kose/FT-PINPON-sub002/internal/server/handlers"
	"github.com/e-kose/FT-PINPON-sub002/internal/server/websocket"
	"github.com/e-kose/FT-PINPON-sub002/internal/tournament"
)

// Server holds all dependencies of the game service
type Server struct {
	config Config
	db     *db.DB
	redis  *redis.Client
	log    zerolog.Logger

	repo        *repository.GormRepository
	registry    *registry.Registry
	matchmaking *matchmaking.Engine
	tournaments *tournament.Engine
	presence    *presence.Tracker
	limiter     *middleware.RateLimiter
	ws          *websocket.Handler
	janitor     *janitor.Janitor
}

// NewServer connects the stores and wires the engines. Redis and the
// archive bucket are optional.
func NewServer(ctx context.Context, config Config, log zerolog.Logger) (*Server, error) {
	database, err := db.New(config.DBConfig, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config: config,
		db:     database,
		log:    log,
		repo:   repository.NewGormRepository(database.DB),
	}

	s.registry = registry.New(config.SendTimeout, log)
	s.matchmaking = matchmaking.NewEngine(s.registry, s.repo, log)
	s.tournaments = tournament.NewEngine(s.registry, s.repo, log)

	if config.ArchiveConfig.Bucket != "" {
		client, err := archive.NewS3Client(ctx, config.ArchiveConfig)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.tournaments.SetArchiver(archive.New(client, config.ArchiveConfig.Bucket, config.ArchiveConfig.Prefix, log))
		log.Info().Str("bucket", config.ArchiveConfig.Bucket).Msg("tournament archive enabled")
	}

	if config.RedisConfig.Host != "" {
		rdb, err := redis.New(ctx, config.RedisConfig, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = rdb
		s.presence = presence.NewTracker(rdb.Client, "", 0, log)
		s.presence.Attach(s.registry)
	} else {
		log.Info().Msg("REDIS_HOST not set, presence tracking disabled")
	}

	s.limiter = middleware.NewRateLimiter(middleware.DefaultMessageLimiterConfig, log)
	tracker := websocket.NewRequestTracker()
	s.ws = websocket.NewHandler(ctx, websocket.Config{
		Registry:      s.registry,
		Matchmaking:   s.matchmaking,
		Tournaments:   s.tournaments,
		Limiter:       s.limiter,
		Tracker:       tracker,
		GatewaySecret: config.GatewaySecret,
		Log:           log,
	})
	if config.GatewaySecret == "" {
		log.Warn().Msg("GATEWAY_SHARED_SECRET not set, upgrades are trusted without a gateway token")
	}

	deps := janitor.Deps{
		Tournaments: s.tournaments,
		Requests:    tracker,
		Limiters:    []janitor.LimiterCleaner{s.limiter},
		Users:       s.registry.Users,
	}
	if s.presence != nil {
		deps.Presence = s.presence
	}
	s.janitor, err = janitor.New(janitor.Config{TournamentRetention: config.TournamentRetention}, deps, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + s.config.ServerPort,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.janitor.Start()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("port", s.config.ServerPort).Msg("game service listening")
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

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if n := s.registry.CloseAll(); n > 0 {
		s.log.Info().Int("sessions", n).Msg("closed live connections")
	}
	return eris.Wrap(srv.Shutdown(shutdownCtx), "shutdown http")
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     websocket.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "connections": s.registry.Count()}
		if s.redis != nil {
			if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
				status["redis"] = "unavailable"
			}
		}
		c.JSON(http.StatusOK, status)
	})

	router.GET("/ws", s.ws.ServeWS)

	api := router.Group("/api")
	{
		api.GET("/tournaments", func(c *gin.Context) {
			handlers.HandleListTournaments(c, s.tournaments)
		})
		api.GET("/tournaments/:id", func(c *gin.Context) {
			handlers.HandleGetTournament(c, s.tournaments, s.repo, s.log)
		})
		api.GET("/tournaments/code/:code", func(c *gin.Context) {
			handlers.HandleGetTournamentByCode(c, s.tournaments, s.log)
		})
		api.GET("/matchmaking/queue", func(c *gin.Context) {
			handlers.HandleQueueStats(c, s.matchmaking)
		})
		api.GET("/presence", func(c *gin.Context) {
			var online handlers.OnlineLister
			if s.presence != nil {
				online = s.presence
			}
			handlers.HandleOnlineUsers(c, online, s.log)
		})
		api.GET("/users/:id/matches", func(c *gin.Context) {
			handlers.HandleUserMatches(c, s.repo, s.log)
		})
	}

	return router
}

// Close releases the stores and stops the janitor.
func (s *Server) Close() {
	if s.janitor != nil {
		if err := s.janitor.Shutdown(); err != nil {
			s.log.Error().Err(err).Msg("stop janitor")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error().Err(err).Msg("close redis")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error().Err(err).Msg("close database")
		}
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
