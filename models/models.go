// models/models.go
package models

import (
	"time"
)

// Player outcomes stored with each archived round.
const (
	OutcomeWin     = "win"
	OutcomeLose    = "lose"
	OutcomeStopped = "stopped"
	OutcomeTimeout = "timeout"
)

// RoundRecord is a finished round as it is archived.
type RoundRecord struct {
	ID          int64        `json:"id"`
	RoundID     int          `json:"round_id"`
	Variant     string       `json:"variant"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Length      int          `json:"length"`
	WinnerID    string       `json:"winner_id,omitempty"`
	Termination string       `json:"termination"` // won/stopped/timeout
	Players     []PlayerInfo `json:"players"`
	Moves       []MoveInfo   `json:"moves"`
	StartedAt   time.Time    `json:"started_at"`
	EndedAt     time.Time    `json:"ended_at"`
}

// PlayerInfo 玩家信息（用于对局记录）
type PlayerInfo struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
}

// MoveInfo is one placed chip; Row 0 is the top of the board.
type MoveInfo struct {
	Player int `json:"player"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	UserID     string `json:"user_id"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Unfinished int    `json:"unfinished"` // stopped or timed out
}

// Add counts one archived outcome.
func (s *PlayerStats) Add(outcome string, n int) {
	s.TotalGames += n
	switch outcome {
	case OutcomeWin:
		s.Wins += n
	case OutcomeLose:
		s.Losses += n
	default:
		s.Unfinished += n
	}
}
