package round

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/connect4bot/grid"
)

func testPlayers(n int) []Player {
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	players := make([]Player, n)
	for i := range players {
		players[i] = Player{ID: names[i], Name: names[i], Mention: "@" + names[i]}
	}
	return players
}

func newClassic(t *testing.T, cfg Config, players int) *Round {
	t.Helper()
	r, err := New(1, testPlayers(players), cfg, Classic, Env{})
	require.NoError(t, err)
	return r
}

func defaultConfig() Config {
	return Config{Width: 7, Height: 6, Length: 4}
}

func play(t *testing.T, r *Round, columns ...int) Outcome {
	t.Helper()
	var out Outcome
	for _, c := range columns {
		var err error
		out, err = r.ApplyMove(c)
		require.NoError(t, err)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(1, testPlayers(1), defaultConfig(), Classic, Env{})
	assert.ErrorIs(t, err, ErrInsufficientPlayers)

	_, err = New(1, testPlayers(2), Config{Width: 0, Height: 6, Length: 4}, Classic, Env{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(1, testPlayers(2), Config{Width: 36, Height: 6, Length: 4}, Classic, Env{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = New(1, testPlayers(2), Config{Width: 7, Height: 6, Length: 4, TimeoutSeconds: 10}, Timed, Env{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "timed rounds need a scheduler")

	_, err = New(1, testPlayers(2), Config{Width: 7, Height: 6, Length: 4}, Fog, Env{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "fog rounds need a positive delay")
}

func TestClassic_ColumnZeroScenario(t *testing.T) {
	r := newClassic(t, defaultConfig(), 2)

	// A in column 0, B in column 1, three times.
	for i := 0; i < 3; i++ {
		out := play(t, r, 0)
		assert.Equal(t, Continued, out.Kind)
		out = play(t, r, 1)
		assert.Equal(t, Continued, out.Kind)
	}

	out, err := r.ApplyMove(0)
	require.NoError(t, err)
	assert.Equal(t, Won, out.Kind)
	assert.Equal(t, 0, out.Winner)
	assert.Equal(t, Move{Player: 0, Column: 0, Row: 2}, out.Move)

	winner, how := r.Result()
	assert.Equal(t, 0, winner)
	assert.Equal(t, EndWon, how)
	assert.True(t, r.Ended())

	before := r.Grid()
	_, err = r.ApplyMove(2)
	assert.ErrorIs(t, err, ErrRoundEnded)
	assert.True(t, before.Equal(r.Grid()), "an ended round must not change")
	assert.False(t, r.ForceEnd(), "ForceEnd on an ended round is a no-op")
	winner, how = r.Result()
	assert.Equal(t, 0, winner)
	assert.Equal(t, EndWon, how)
}

func TestClassic_TurnAdvance(t *testing.T) {
	r := newClassic(t, defaultConfig(), 3)

	assert.Equal(t, Signature{Turn: 0, Current: 0}, r.Signature())
	play(t, r, 0)
	assert.Equal(t, Signature{Turn: 0, Current: 1}, r.Signature())
	play(t, r, 1)
	assert.Equal(t, Signature{Turn: 0, Current: 2}, r.Signature())
	play(t, r, 2)
	assert.Equal(t, Signature{Turn: 1, Current: 0}, r.Signature(), "turn counter increments on wrap")
	assert.Equal(t, "alice", r.CurrentPlayer().ID)
	assert.True(t, r.IsCurrent("alice"))
	assert.False(t, r.IsCurrent("bob"))
}

func TestClassic_FullColumnIgnored(t *testing.T) {
	r := newClassic(t, Config{Width: 3, Height: 2, Length: 3}, 2)
	play(t, r, 1, 1)

	sig := r.Signature()
	g := r.Grid()
	moves := r.Moves()

	out, err := r.ApplyMove(1)
	require.NoError(t, err)
	assert.Equal(t, Ignored, out.Kind)
	assert.Equal(t, sig, r.Signature())
	assert.True(t, g.Equal(r.Grid()))
	assert.Equal(t, moves, r.Moves())
}

func TestClassic_InvalidColumn(t *testing.T) {
	r := newClassic(t, defaultConfig(), 2)
	_, err := r.ApplyMove(7)
	assert.ErrorIs(t, err, ErrInvalidColumn)
	assert.Empty(t, r.Moves())
}

func TestClassic_HistoryReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for game := 0; game < 50; game++ {
		r := newClassic(t, Config{Width: 5, Height: 4, Length: 4}, 2+game%3)
		applied := 0
		for i := 0; i < 40 && !r.Ended(); i++ {
			out, err := r.ApplyMove(rng.Intn(5))
			require.NoError(t, err)
			if out.Kind != Ignored {
				applied++
			}
		}

		moves := r.Moves()
		require.Len(t, moves, applied)

		replay := grid.New(5, 4)
		for _, m := range moves {
			row, err := replay.Drop(m.Column, m.Player)
			require.NoError(t, err)
			require.Equal(t, m.Row, row)
		}
		require.True(t, replay.Equal(r.Grid()), "replaying history must reproduce the grid")
	}
}

func TestForceEnd(t *testing.T) {
	r := newClassic(t, defaultConfig(), 2)
	play(t, r, 3)

	assert.True(t, r.ForceEnd())
	winner, how := r.Result()
	assert.Equal(t, NoWinner, winner)
	assert.Equal(t, EndStopped, how)
	assert.False(t, r.EndedAt().IsZero())

	_, err := r.ApplyMove(3)
	assert.ErrorIs(t, err, ErrRoundEnded)
}

func TestSnapshot(t *testing.T) {
	r := newClassic(t, defaultConfig(), 2)
	play(t, r, 3, 3, 4)

	s := r.Snapshot()
	assert.Equal(t, 1, s.ID)
	assert.Equal(t, "classic", s.Variant)
	assert.Empty(t, s.Tags)
	assert.Equal(t, 2, s.Turn)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 3, s.Moves)
	assert.Len(t, s.Columns, 7)
	assert.Equal(t, 0, s.Cells[5][3])
	assert.Equal(t, 1, s.Cells[4][3])
	assert.Equal(t, 0, s.Cells[5][4])
	assert.Equal(t, NoWinner, s.Winner)

	s.Cells[0][0] = 1
	assert.Equal(t, grid.Empty, r.Grid().At(0, 0), "snapshot cells are a copy")

	r.ForceEnd()
	s = r.Snapshot()
	assert.Equal(t, []string{"Ended"}, s.Tags)
	assert.Equal(t, "stopped", s.Finished)
}

func TestOptionsAffordances(t *testing.T) {
	r := newClassic(t, Config{Width: 4, Height: 4, Length: 3}, 2)
	assert.Equal(t, append(append([]string(nil), ColumnSymbols[:4]...), CancelSymbol), r.Options())
	r.ForceEnd()
	assert.Empty(t, r.Options())
}

func TestColumnFor(t *testing.T) {
	c, ok := ColumnFor(ColumnSymbols[2], 7)
	assert.True(t, ok)
	assert.Equal(t, 2, c)

	c, ok = ColumnFor("3\ufe0f\u20e3", 7)
	assert.True(t, ok, "variation selector is ignored")
	assert.Equal(t, 2, c)

	_, ok = ColumnFor(ColumnSymbols[9], 7)
	assert.False(t, ok, "symbols past the board width are not columns")

	_, ok = ColumnFor(CancelSymbol, 7)
	assert.False(t, ok)
}

func TestConcurrentMovesSerialised(t *testing.T) {
	r := newClassic(t, Config{Width: 7, Height: 6, Length: 7}, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(col int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = r.ApplyMove(col % 7)
				_ = r.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	moves := r.Moves()
	for i, m := range moves {
		assert.Equal(t, i%4, m.Player, "turn order must hold under concurrency")
	}
	replay := grid.New(7, 6)
	for _, m := range moves {
		replay.Drop(m.Column, m.Player)
	}
	assert.True(t, replay.Equal(r.Grid()))
}

func TestPlay_ChecksTurn(t *testing.T) {
	r := newClassic(t, defaultConfig(), 2)

	_, err := r.Play("bob", 0)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Empty(t, r.Moves())

	out, err := r.Play("alice", 0)
	require.NoError(t, err)
	assert.Equal(t, Continued, out.Kind)

	_, err = r.Play("alice", 0)
	assert.ErrorIs(t, err, ErrNotYourTurn, "a second input from the same actor is rejected")

	r.ForceEnd()
	_, err = r.Play("bob", 0)
	assert.ErrorIs(t, err, ErrRoundEnded)
}

func TestCancel_ChecksTurn(t *testing.T) {
	r := newClassic(t, defaultConfig(), 2)

	assert.False(t, r.Cancel("bob"), "only the current player may cancel")
	assert.False(t, r.Ended())

	play(t, r, 0)
	assert.False(t, r.Cancel("alice"), "alice is no longer current after her move")
	assert.False(t, r.Ended())

	assert.True(t, r.Cancel("bob"))
	winner, how := r.Result()
	assert.Equal(t, NoWinner, winner)
	assert.Equal(t, EndStopped, how)

	assert.False(t, r.Cancel("alice"), "an ended round cannot be cancelled again")
}

func TestCancel_RacesWithPlay(t *testing.T) {
	for i := 0; i < 50; i++ {
		r := newClassic(t, defaultConfig(), 2)

		var wg sync.WaitGroup
		var played, cancelled bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := r.Play("alice", 0)
			played = err == nil
		}()
		go func() {
			defer wg.Done()
			cancelled = r.Cancel("alice")
		}()
		wg.Wait()

		// alice's move and alice's cancel cannot both pass the turn check.
		assert.NotEqual(t, played, cancelled)
		assert.Equal(t, cancelled, r.Ended())
	}
}
