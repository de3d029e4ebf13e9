package services

import (
	"github.com/wfunc/connect4bot/models"
	"github.com/wfunc/connect4bot/round"
)

// RecordOf builds the archive record of an ended round.
func RecordOf(r *round.Round) *models.RoundRecord {
	winner, how := r.Result()
	rec := &models.RoundRecord{
		RoundID:     r.ID,
		Variant:     r.Variant.String(),
		Width:       r.Config.Width,
		Height:      r.Config.Height,
		Length:      r.Config.Length,
		Termination: string(how),
		StartedAt:   r.CreatedAt,
		EndedAt:     r.EndedAt(),
	}
	if winner != round.NoWinner {
		rec.WinnerID = r.Players[winner].ID
	}

	for i, p := range r.Players {
		info := models.PlayerInfo{UserID: p.ID, Name: p.Name}
		switch {
		case how == round.EndWon && i == winner:
			info.Outcome = models.OutcomeWin
		case how == round.EndWon:
			info.Outcome = models.OutcomeLose
		case how == round.EndTimeout:
			info.Outcome = models.OutcomeTimeout
		default:
			info.Outcome = models.OutcomeStopped
		}
		rec.Players = append(rec.Players, info)
	}

	for _, m := range r.Moves() {
		rec.Moves = append(rec.Moves, models.MoveInfo{Player: m.Player, Column: m.Column, Row: m.Row})
	}
	return rec
}
