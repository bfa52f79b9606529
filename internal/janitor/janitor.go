// Package janitor runs the periodic housekeeping of the game service.
package janitor

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type Reaper interface {
	Reap(ctx context.Context, now time.Time, retention time.Duration) int
}

type RequestCleaner interface {
	Cleanup(retention time.Duration) int
}

type LimiterCleaner interface {
	Cleanup() int
}

type PresenceRefresher interface {
	Refresh(ctx context.Context, userIDs []string) error
}

// Config sets job intervals and retention windows. Zero values take the
// defaults below.
type Config struct {
	Interval            time.Duration
	TournamentRetention time.Duration
	RequestRetention    time.Duration
	PresenceInterval    time.Duration
}

// Deps are the components the jobs clean up. Nil members are skipped.
type Deps struct {
	Tournaments Reaper
	Requests    RequestCleaner
	Limiters    []LimiterCleaner
	Presence    PresenceRefresher
	// Users lists the users connected to this instance.
	Users func() []string
}

type Janitor struct {
	sched gocron.Scheduler
	cfg   Config
	deps  Deps
	now   func() time.Time
	log   zerolog.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.TournamentRetention <= 0 {
		cfg.TournamentRetention = time.Hour
	}
	if cfg.RequestRetention <= 0 {
		cfg.RequestRetention = 10 * time.Minute
	}
	if cfg.PresenceInterval <= 0 {
		cfg.PresenceInterval = 30 * time.Second
	}
	return cfg
}

// New schedules the jobs; nothing runs until Start.
func New(cfg Config, deps Deps, log zerolog.Logger) (*Janitor, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, eris.Wrap(err, "create scheduler")
	}

	j := &Janitor{
		sched: sched,
		cfg:   withDefaults(cfg),
		deps:  deps,
		now:   time.Now,
		log:   log.With().Str("component", "janitor").Logger(),
	}

	jobs := []struct {
		name     string
		interval time.Duration
		task     func()
	}{
		{"reap-tournaments", j.cfg.Interval, j.reapTournaments},
		{"cleanup-requests", j.cfg.Interval, j.cleanupRequests},
		{"cleanup-limiters", j.cfg.Interval, j.cleanupLimiters},
		{"refresh-presence", j.cfg.PresenceInterval, j.refreshPresence},
	}
	for _, job := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.task),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, eris.Wrapf(err, "schedule %s", job.name)
		}
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.sched.Start()
	j.log.Info().Dur("interval", j.cfg.Interval).Msg("janitor started")
}

// Shutdown stops the scheduler and waits for running jobs.
func (j *Janitor) Shutdown() error {
	return eris.Wrap(j.sched.Shutdown(), "stop scheduler")
}

func (j *Janitor) reapTournaments() {
	if j.deps.Tournaments == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Interval)
	defer cancel()
	if n := j.deps.Tournaments.Reap(ctx, j.now(), j.cfg.TournamentRetention); n > 0 {
		j.log.Info().Int("removed", n).Msg("reaped tournaments")
	}
}

func (j *Janitor) cleanupRequests() {
	if j.deps.Requests == nil {
		return
	}
	if n := j.deps.Requests.Cleanup(j.cfg.RequestRetention); n > 0 {
		j.log.Debug().Int("removed", n).Msg("cleaned up processed requests")
	}
}

func (j *Janitor) cleanupLimiters() {
	for _, l := range j.deps.Limiters {
		l.Cleanup()
	}
}

func (j *Janitor) refreshPresence() {
	if j.deps.Presence == nil || j.deps.Users == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.PresenceInterval)
	defer cancel()
	if err := j.deps.Presence.Refresh(ctx, j.deps.Users()); err != nil {
		j.log.Warn().Err(err).Msg("refresh presence")
	}
}
