// round/round.go
package round

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/connect4bot/grid"
	"github.com/wfunc/connect4bot/logger"
)

// NoWinner is the winner index of a round that ended without a win.
const NoWinner = -1

// Player is one participant. ID is the chat user id used for turn checks;
// Mention and Name are display forms supplied by the messaging surface.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Mention string `json:"mention"`
}

// Move is one placed chip.
type Move struct {
	Player int `json:"player"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

// Signature identifies a point in the turn order. It changes on every
// applied move, which is what a pending deadline compares against.
type Signature struct {
	Turn    int
	Current int
}

// OutcomeKind tells the caller what a move did.
type OutcomeKind int

const (
	Ignored OutcomeKind = iota
	Continued
	Won
)

func (k OutcomeKind) String() string {
	switch k {
	case Ignored:
		return "ignored"
	case Continued:
		return "continued"
	case Won:
		return "won"
	}
	return "unknown"
}

// Outcome of ApplyMove. Move is zero for Ignored moves; Winner is set only
// for Won.
type Outcome struct {
	Kind   OutcomeKind
	Move   Move
	Winner int
}

// Termination records how a round ended.
type Termination string

const (
	InProgress Termination = ""
	EndWon     Termination = "won"
	EndStopped Termination = "stopped"
	EndTimeout Termination = "timeout"
)

// Scheduler runs fn once after d. Scheduling again under the same key may
// cancel the earlier task; callers must not rely on that.
type Scheduler interface {
	Schedule(key string, d time.Duration, fn func())
}

// Env carries the collaborators a round needs beyond its own state.
type Env struct {
	Scheduler Scheduler
	// OnExpire is called, outside the round lock, after a deadline ended
	// the round.
	OnExpire func(r *Round)
	Now      func() time.Time
}

// Round is one game. All mutation goes through ApplyMove, ForceEnd and the
// deadline callback, serialised by mu.
type Round struct {
	ID        int
	Variant   Variant
	Players   []Player
	Config    Config
	CreatedAt time.Time

	env   Env
	rules rules

	mu      sync.RWMutex
	grid    *grid.Grid
	history []Move
	current int
	turn    int
	ended   bool
	winner  int
	endedBy Termination
	endedAt time.Time
}

// New builds a round with an empty grid. The configuration is validated
// against the variant and the player count.
func New(id int, players []Player, cfg Config, variant Variant, env Env) (*Round, error) {
	if err := cfg.validate(variant, len(players)); err != nil {
		return nil, err
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	if variant == Timed && env.Scheduler == nil {
		return nil, fmt.Errorf("%w: timed rounds need a scheduler", ErrInvalidConfiguration)
	}

	r := &Round{
		ID:        id,
		Variant:   variant,
		Players:   append([]Player(nil), players...),
		Config:    cfg,
		CreatedAt: env.Now(),
		env:       env,
		rules:     rulesFor(variant, cfg),
		grid:      grid.New(cfg.Width, cfg.Height),
		winner:    NoWinner,
	}
	return r, nil
}

// ApplyMove drops the current player's chip into column. Turn ownership is
// checked by the caller. A full column is Ignored and changes nothing.
func (r *Round) ApplyMove(column int) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(column)
}

// Play is ApplyMove for a specific actor: the turn check and the move
// happen under one lock, so two inputs from the same actor cannot both pass
// the check.
func (r *Round) Play(actorID string, column int) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ended && r.Players[r.current].ID != actorID {
		return Outcome{}, ErrNotYourTurn
	}
	return r.applyLocked(column)
}

func (r *Round) applyLocked(column int) (Outcome, error) {
	if r.ended {
		return Outcome{}, ErrRoundEnded
	}
	player := r.current
	row, err := r.grid.Drop(column, player)
	if errors.Is(err, grid.ErrColumnFull) {
		return Outcome{Kind: Ignored}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidColumn, column+1)
	}

	move := Move{Player: player, Column: column, Row: row}
	r.history = append(r.history, move)
	out := Outcome{Kind: Continued, Move: move, Winner: NoWinner}

	if winner, ok := r.rules.winner(r); ok {
		r.finish(winner, EndWon)
		out.Kind = Won
		out.Winner = winner
	} else {
		r.current++
		if r.current == len(r.Players) {
			r.current = 0
			r.turn++
		}
	}

	r.rules.afterMove(r)
	return out, nil
}

// ForceEnd ends the round without a winner. It reports false when the round
// had already ended.
func (r *Round) ForceEnd() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return false
	}
	r.finish(NoWinner, EndStopped)
	return true
}

// Cancel ends the round without a winner on behalf of actorID. Like Play,
// the turn check and the end happen under one lock; it reports false when
// the round had ended or it was not actorID's turn.
func (r *Round) Cancel(actorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended || r.Players[r.current].ID != actorID {
		return false
	}
	r.finish(NoWinner, EndStopped)
	return true
}

// expire is the deadline callback: it ends the round only when no move was
// applied since sig was captured.
func (r *Round) expire(sig Signature) {
	r.mu.Lock()
	if r.ended || r.signature() != sig {
		r.mu.Unlock()
		logger.Log.Debugw("stale deadline ignored", "round", r.ID, "turn", sig.Turn, "current", sig.Current)
		return
	}
	r.finish(NoWinner, EndTimeout)
	r.mu.Unlock()

	logger.Log.Infof("Game %d timed out waiting for player %d", r.ID, sig.Current)
	if r.env.OnExpire != nil {
		r.env.OnExpire(r)
	}
}

func (r *Round) finish(winner int, how Termination) {
	r.ended = true
	r.winner = winner
	r.endedBy = how
	r.endedAt = r.env.Now()
}

func (r *Round) signature() Signature {
	return Signature{Turn: r.turn, Current: r.current}
}

// Signature returns the current (turn, current player) pair.
func (r *Round) Signature() Signature {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.signature()
}

// CurrentPlayer returns the participant whose move it is.
func (r *Round) CurrentPlayer() Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Players[r.current]
}

// IsCurrent reports whether actorID may move now.
func (r *Round) IsCurrent(actorID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.ended && r.Players[r.current].ID == actorID
}

func (r *Round) Ended() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ended
}

// Result returns the winner index (NoWinner when there is none) and how the
// round ended. Termination is InProgress while the round is running.
func (r *Round) Result() (int, Termination) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.winner, r.endedBy
}

func (r *Round) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

// Moves returns a copy of the full, unmasked history.
func (r *Round) Moves() []Move {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Move(nil), r.history...)
}

// Grid returns a copy of the live grid.
func (r *Round) Grid() *grid.Grid {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grid.Clone()
}

// ViewGrid returns the grid as it may be shown to players.
func (r *Round) ViewGrid() *grid.Grid {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules.view(r).Clone()
}

// HistoryEntry is one move as it may be shown to players.
type HistoryEntry struct {
	Move
	Hidden bool `json:"hidden"`
}

// History returns the move list with entries the variant still hides
// marked Hidden. Hidden entries carry only the player.
func (r *Round) History() []HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hidden := r.rules.hidden(r)
	entries := make([]HistoryEntry, len(r.history))
	for i, m := range r.history {
		if i >= len(r.history)-hidden {
			entries[i] = HistoryEntry{Move: Move{Player: m.Player, Column: -1, Row: -1}, Hidden: true}
			continue
		}
		entries[i] = HistoryEntry{Move: m}
	}
	return entries
}

// retracted returns a copy of the live grid with the newest n moves removed.
// Callers hold mu.
func (r *Round) retracted(n int) *grid.Grid {
	g := r.grid.Clone()
	if n > len(r.history) {
		n = len(r.history)
	}
	for _, m := range r.history[len(r.history)-n:] {
		g.Set(m.Row, m.Column, grid.Empty)
	}
	return g
}
