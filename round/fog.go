package round

import (
	"fmt"

	"github.com/wfunc/connect4bot/grid"
)

// fogRules hide the newest delay moves from players and only judge a move
// once delay further moves have been made on top of it.
type fogRules struct {
	delay int
}

// winner checks the move at index len(history)-delay-1 against the grid as
// it stood right after that move: the live grid minus the delay newest
// moves. Nothing is judged while len(history) <= delay.
func (f *fogRules) winner(r *Round) (int, bool) {
	n := len(r.history)
	if n <= f.delay {
		return NoWinner, false
	}
	matured := r.history[n-f.delay-1]
	g := r.retracted(f.delay)
	if g.CheckWin(matured.Row, matured.Column, matured.Player, r.Config.Length) {
		return matured.Player, true
	}
	return NoWinner, false
}

func (f *fogRules) afterMove(*Round) {}

func (f *fogRules) view(r *Round) *grid.Grid {
	if r.ended {
		return r.grid
	}
	return r.retracted(f.delay)
}

func (f *fogRules) hidden(r *Round) int {
	if r.ended {
		return 0
	}
	return min(f.delay, len(r.history))
}

func (f *fogRules) tags() []string {
	return []string{"Delayed", fmt.Sprintf("%d Move Delay", f.delay)}
}
