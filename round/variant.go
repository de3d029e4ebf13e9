package round

import (
	"fmt"

	"github.com/wfunc/connect4bot/grid"
)

// Variant selects the rule set a round is played with.
type Variant int

const (
	Classic Variant = iota
	Timed
	Fog
)

func (v Variant) String() string {
	switch v {
	case Classic:
		return "classic"
	case Timed:
		return "lightning"
	case Fog:
		return "delayed"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// rules is the per-variant behaviour. Every method is called with r.mu held
// (write lock for winner/afterMove, at least read lock for the rest).
type rules interface {
	// winner decides, after the newest move was appended and placed,
	// whether some player has now won.
	winner(r *Round) (int, bool)
	// afterMove runs after every applied (non-Ignored) move.
	afterMove(r *Round)
	// view is the grid players may see.
	view(r *Round) *grid.Grid
	// hidden is how many of the newest history entries players may not see.
	hidden(r *Round) int
	tags() []string
}

func rulesFor(v Variant, cfg Config) rules {
	switch v {
	case Timed:
		return &timedRules{timeoutSeconds: cfg.TimeoutSeconds}
	case Fog:
		return &fogRules{delay: cfg.Delay}
	default:
		return classicRules{}
	}
}

type classicRules struct{}

func (classicRules) winner(r *Round) (int, bool) {
	last := r.history[len(r.history)-1]
	if r.grid.CheckWin(last.Row, last.Column, last.Player, r.Config.Length) {
		return last.Player, true
	}
	return NoWinner, false
}

func (classicRules) afterMove(*Round) {}

func (classicRules) view(r *Round) *grid.Grid { return r.grid }

func (classicRules) hidden(*Round) int { return 0 }

func (classicRules) tags() []string { return nil }
