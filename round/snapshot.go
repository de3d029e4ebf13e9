package round

import (
	"strings"
)

// Column and cancel affordances. The i-th symbol selects column i.
var ColumnSymbols = func() []string {
	symbols := make([]string, 0, 35)
	for i := 1; i <= 9; i++ {
		symbols = append(symbols, string(rune('0'+i))+"\u20e3")
	}
	for i := 0; i < 26; i++ {
		symbols = append(symbols, string(rune(0x1F1E6+i)))
	}
	return symbols
}()

const CancelSymbol = "❌"

// ColumnFor maps a selectable symbol back to its column for a board of the
// given width.
func ColumnFor(symbol string, width int) (int, bool) {
	// Some clients send keycaps with a variation selector.
	symbol = strings.ReplaceAll(symbol, "\ufe0f", "")
	for i, s := range ColumnSymbols[:width] {
		if s == symbol {
			return i, true
		}
	}
	return -1, false
}

// Snapshot is the render model of a round: everything a renderer needs and
// nothing it could mutate.
type Snapshot struct {
	ID       int      `json:"id"`
	Variant  string   `json:"variant"`
	Tags     []string `json:"tags"`
	Turn     int      `json:"turn"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Length   int      `json:"length"`
	Cells    [][]int  `json:"cells"`
	Columns  []string `json:"columns"`
	Players  []Player `json:"players"`
	Current  int      `json:"current"`
	Ended    bool     `json:"ended"`
	Winner   int      `json:"winner"`
	Moves    int      `json:"moves"`
	Finished string   `json:"termination,omitempty"`
}

// Snapshot captures the round under its read lock. Tags hold the variant
// tags followed by "Ended" once the round is over.
func (r *Round) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := append([]string(nil), r.rules.tags()...)
	if r.ended {
		tags = append(tags, "Ended")
	}
	return Snapshot{
		ID:       r.ID,
		Variant:  r.Variant.String(),
		Tags:     tags,
		Turn:     r.turn + 1,
		Width:    r.Config.Width,
		Height:   r.Config.Height,
		Length:   r.Config.Length,
		Cells:    r.rules.view(r).Rows(),
		Columns:  append([]string(nil), ColumnSymbols[:r.Config.Width]...),
		Players:  append([]Player(nil), r.Players...),
		Current:  r.current,
		Ended:    r.ended,
		Winner:   r.winner,
		Moves:    len(r.history),
		Finished: string(r.endedBy),
	}
}

// Options returns the symbols to offer on a fresh surface: one per column
// plus cancel while the round runs, nothing once it has ended.
func (r *Round) Options() []string {
	if r.Ended() {
		return nil
	}
	symbols := append([]string(nil), ColumnSymbols[:r.Config.Width]...)
	return append(symbols, CancelSymbol)
}
