// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormRoundRecord 对局记录模型
type GormRoundRecord struct {
	gorm.Model
	RoundID     int          `gorm:"index;not null"`
	Variant     string       `gorm:"not null"`
	Width       int          `gorm:"not null"`
	Height      int          `gorm:"not null"`
	Length      int          `gorm:"not null"`
	WinnerID    string       `gorm:"index"`
	Termination string       `gorm:"not null"`
	Players     []PlayerInfo `gorm:"serializer:json;type:jsonb;not null"`
	Moves       []MoveInfo   `gorm:"serializer:json;type:jsonb;not null"`
	StartedAt   time.Time
	EndedAt     time.Time
	Seats       []GormRoundPlayer `gorm:"foreignKey:RoundRecordID"`
}

// GormRoundPlayer is one participant of an archived round, kept in its own
// table so stats can be grouped by user.
type GormRoundPlayer struct {
	gorm.Model
	RoundRecordID uint   `gorm:"index;not null"`
	UserID        string `gorm:"index;not null"`
	Outcome       string `gorm:"not null"`
}

func NewGormRoundRecord(rec *RoundRecord) *GormRoundRecord {
	g := &GormRoundRecord{
		RoundID:     rec.RoundID,
		Variant:     rec.Variant,
		Width:       rec.Width,
		Height:      rec.Height,
		Length:      rec.Length,
		WinnerID:    rec.WinnerID,
		Termination: rec.Termination,
		Players:     rec.Players,
		Moves:       rec.Moves,
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
	}
	for _, p := range rec.Players {
		g.Seats = append(g.Seats, GormRoundPlayer{UserID: p.UserID, Outcome: p.Outcome})
	}
	return g
}

func (g *GormRoundRecord) Record() *RoundRecord {
	return &RoundRecord{
		ID:          int64(g.ID),
		RoundID:     g.RoundID,
		Variant:     g.Variant,
		Width:       g.Width,
		Height:      g.Height,
		Length:      g.Length,
		WinnerID:    g.WinnerID,
		Termination: g.Termination,
		Players:     g.Players,
		Moves:       g.Moves,
		StartedAt:   g.StartedAt,
		EndedAt:     g.EndedAt,
	}
}
