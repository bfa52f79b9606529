// Package repository persists finished matches and tournaments.
package repository

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/e-kose/FT-PINPON-sub002/internal/apperr"
	"github.com/e-kose/FT-PINPON-sub002/internal/models"
)

var ErrTournamentNotFound = apperr.New(apperr.NotFound, "tournament not found")

// Repository is written to after a match or tournament completes. Every save
// is an upsert so callers may retry.
type Repository interface {
	SaveMatch(ctx context.Context, m models.Match) error
	SaveTournament(ctx context.Context, t models.Tournament) error
	SaveTournamentMatch(ctx context.Context, m models.TournamentMatch) error
}

// Loader reads a saved tournament back.
type Loader interface {
	LoadTournament(ctx context.Context, id string) (models.Tournament, []models.TournamentMatch, error)
}

// GormRepository implements Repository and Loader on gorm.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) SaveMatch(ctx context.Context, m models.Match) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	return eris.Wrapf(err, "save match %s", m.ID)
}

// SaveTournament upserts the tournament header and its players in one
// transaction.
func (r *GormRepository) SaveTournament(ctx context.Context, t models.Tournament) error {
	players := t.Players
	t.Players = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(&t).Error; err != nil {
			return err
		}
		for i := range players {
			players[i].TournamentID = t.ID
		}
		if len(players) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&players).Error
	})
	return eris.Wrapf(err, "save tournament %s", t.ID)
}

func (r *GormRepository) SaveTournamentMatch(ctx context.Context, m models.TournamentMatch) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	return eris.Wrapf(err, "save tournament match %s", m.ID)
}

// LoadTournament returns the tournament with its players ordered by seed and
// its matches ordered by round and position.
func (r *GormRepository) LoadTournament(ctx context.Context, id string) (models.Tournament, []models.TournamentMatch, error) {
	var t models.Tournament
	err := r.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("seed ASC") }).
		First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Tournament{}, nil, ErrTournamentNotFound
	}
	if err != nil {
		return models.Tournament{}, nil, eris.Wrapf(err, "load tournament %s", id)
	}

	var matches []models.TournamentMatch
	if err := r.db.WithContext(ctx).
		Where("tournament_id = ?", id).
		Order("round ASC, position ASC").
		Find(&matches).Error; err != nil {
		return models.Tournament{}, nil, eris.Wrapf(err, "load matches of tournament %s", id)
	}
	return t, matches, nil
}

// RecentMatches returns the latest finished quick-play matches of a user.
func (r *GormRepository) RecentMatches(ctx context.Context, userID string, limit int) ([]models.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.Match
	err := r.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", userID, userID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, eris.Wrapf(err, "recent matches of %s", userID)
}
