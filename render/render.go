// Package render turns round snapshots into the text shown in chat.
package render

import (
	"fmt"
	"strings"

	"github.com/wfunc/connect4bot/grid"
	"github.com/wfunc/connect4bot/round"
)

// EmptyChip is the background of the board.
const EmptyChip = "⚪"

var chips = []string{"🔴", "🔵", "🟢", "🟡", "🟣", "🟠"}

// Chip returns the emoji for a player index, or the background for
// grid.Empty.
func Chip(player int) string {
	if player == grid.Empty || player < 0 || player >= len(chips) {
		return EmptyChip
	}
	return chips[player]
}

// Title is the message content above the board, e.g.
// "Game 3 (Lightning, 10 Second Timeout, Ended)".
func Title(s round.Snapshot) string {
	if len(s.Tags) == 0 {
		return fmt.Sprintf("Game %d", s.ID)
	}
	return fmt.Sprintf("Game %d (%s)", s.ID, strings.Join(s.Tags, ", "))
}

// FieldName heads the board.
func FieldName(s round.Snapshot) string {
	return fmt.Sprintf("Turn %d", s.Turn)
}

// Board draws the grid, the column header and the status line.
func Board(s round.Snapshot) string {
	var b strings.Builder
	for _, row := range s.Cells {
		for _, cell := range row {
			b.WriteString(Chip(cell))
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(s.Columns, ""))
	b.WriteByte('\n')
	b.WriteString(Status(s))
	return b.String()
}

// Status names whose move it is, or who won. A round that ended without a
// winner has an empty status.
func Status(s round.Snapshot) string {
	if !s.Ended {
		p := s.Players[s.Current]
		return fmt.Sprintf("%s's move! %s", mention(p), Chip(s.Current))
	}
	if s.Winner == round.NoWinner {
		return ""
	}
	return fmt.Sprintf("%s won! %s", mention(s.Players[s.Winner]), Chip(s.Winner))
}

// Text is the whole render as plain text, for surfaces without embeds.
func Text(s round.Snapshot) string {
	return Title(s) + "\n" + FieldName(s) + "\n" + Board(s)
}

// WinNotice is the reply posted when a round is won.
func WinNotice(p round.Player) string {
	return mention(p) + " won :D"
}

// EndNotice is the reply posted when a round is stopped or times out.
const EndNotice = "Game ended"

// History lists moves with 1-based columns and rows counted from the
// bottom. Hidden moves show as question marks.
func History(players []round.Player, height int, entries []round.HistoryEntry) string {
	if len(entries) == 0 {
		return "Game History:\n*Empty :/*"
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, "Game History:")
	for _, e := range entries {
		column, row := "?", "?"
		if !e.Hidden {
			column = fmt.Sprint(e.Column + 1)
			row = fmt.Sprint(height - e.Row)
		}
		lines = append(lines, fmt.Sprintf("%s %s at column %s row %s", name(players[e.Player]), Chip(e.Player), column, row))
	}
	return strings.Join(lines, "\n")
}

func mention(p round.Player) string {
	if p.Mention != "" {
		return p.Mention
	}
	return name(p)
}

func name(p round.Player) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
