package models

import (
	"time"
)

// Match is a finished quick-play match
type Match struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Player1ID       string    `gorm:"column:player1_id;type:varchar(64);not null;index:idx_match_player1" json:"player1_id"`
	Player1Username string    `gorm:"column:player1_username;type:varchar(64);not null" json:"player1_username"`
	Player2ID       string    `gorm:"column:player2_id;type:varchar(64);not null;index:idx_match_player2" json:"player2_id"`
	Player2Username string    `gorm:"column:player2_username;type:varchar(64);not null" json:"player2_username"`
	Player1Score    int       `gorm:"column:player1_score;not null;default:0" json:"player1_score"`
	Player2Score    int       `gorm:"column:player2_score;not null;default:0" json:"player2_score"`
	WinnerID        string    `gorm:"column:winner_id;type:varchar(64);not null" json:"winner_id"`
	Forfeit         bool      `gorm:"column:forfeit;not null;default:false" json:"forfeit"`
	StartedAt       time.Time `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt         time.Time `gorm:"column:ended_at;not null" json:"ended_at"`
}

// TableName specifies the table name for Match
func (Match) TableName() string {
	return "matches"
}

// Tournament is a tournament header together with its participants
type Tournament struct {
	ID             string             `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Code           string             `gorm:"column:code;type:varchar(8);uniqueIndex;not null" json:"code"`
	Size           int                `gorm:"column:size;not null" json:"size"`
	Status         string             `gorm:"column:status;type:varchar(20);not null" json:"status"`
	CurrentRound   int                `gorm:"column:current_round;not null;default:0" json:"current_round"`
	WinnerID       *string            `gorm:"column:winner_id;type:varchar(64)" json:"winner_id,omitempty"`
	WinnerUsername *string            `gorm:"column:winner_username;type:varchar(64)" json:"winner_username,omitempty"`
	CreatedAt      time.Time          `gorm:"column:created_at;not null" json:"created_at"`
	FinishedAt     *time.Time         `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Players        []TournamentPlayer `gorm:"foreignKey:TournamentID" json:"players,omitempty"`
}

// TableName specifies the table name for Tournament
func (Tournament) TableName() string {
	return "tournaments"
}

// TournamentPlayer is one participant of a tournament
type TournamentPlayer struct {
	TournamentID string `gorm:"column:tournament_id;type:varchar(36);primaryKey" json:"tournament_id"`
	UserID       string `gorm:"column:user_id;type:varchar(64);primaryKey" json:"user_id"`
	Username     string `gorm:"column:username;type:varchar(64);not null" json:"username"`
	Seed         int    `gorm:"column:seed;not null" json:"seed"`
	Connected    bool   `gorm:"column:connected;not null;default:false" json:"connected"`
	Exited       bool   `gorm:"column:exited;not null;default:false" json:"exited"`
}

// TableName specifies the table name for TournamentPlayer
func (TournamentPlayer) TableName() string {
	return "tournament_players"
}

// TournamentMatch is one bracket slot
type TournamentMatch struct {
	ID              string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	TournamentID    string     `gorm:"column:tournament_id;type:varchar(36);not null;index:idx_tournament_round" json:"tournament_id"`
	Round           int        `gorm:"column:round;not null;index:idx_tournament_round" json:"round"`
	Position        int        `gorm:"column:position;not null" json:"position"`
	Player1ID       *string    `gorm:"column:player1_id;type:varchar(64)" json:"player1_id,omitempty"`
	Player1Username *string    `gorm:"column:player1_username;type:varchar(64)" json:"player1_username,omitempty"`
	Player2ID       *string    `gorm:"column:player2_id;type:varchar(64)" json:"player2_id,omitempty"`
	Player2Username *string    `gorm:"column:player2_username;type:varchar(64)" json:"player2_username,omitempty"`
	Player1Score    int        `gorm:"column:player1_score;not null;default:0" json:"player1_score"`
	Player2Score    int        `gorm:"column:player2_score;not null;default:0" json:"player2_score"`
	WinnerID        *string    `gorm:"column:winner_id;type:varchar(64)" json:"winner_id,omitempty"`
	WinnerUsername  *string    `gorm:"column:winner_username;type:varchar(64)" json:"winner_username,omitempty"`
	NextMatchID     *string    `gorm:"column:next_match_id;type:varchar(36)" json:"next_match_id,omitempty"`
	Status          string     `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Bye             bool       `gorm:"column:bye;not null;default:false" json:"bye"`
	Forfeit         bool       `gorm:"column:forfeit;not null;default:false" json:"forfeit"`
	FinishedAt      *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

// TableName specifies the table name for TournamentMatch
func (TournamentMatch) TableName() string {
	return "tournament_matches"
}

// All lists every model, in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{&Match{}, &Tournament{}, &TournamentPlayer{}, &TournamentMatch{}}
}
