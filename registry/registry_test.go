package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/surface"
)

func twoPlayers() []round.Player {
	return []round.Player{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
}

func classicConfig() round.Config {
	return round.Config{Width: 7, Height: 6, Length: 4}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := NewRegistry(nil, nil)

	r1, err := reg.Create(twoPlayers(), classicConfig(), round.Classic)
	if err != nil {
		t.Fatalf("Create should not fail: %v", err)
	}
	r2, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)

	if r1.ID != 1 || r2.ID != 2 {
		t.Errorf("Expected ids 1 and 2, got %d and %d", r1.ID, r2.ID)
	}

	got, exists := reg.Get(1)
	if !exists || got != r1 {
		t.Fatal("Get should return the same round instance")
	}
	if _, exists := reg.Get(3); exists {
		t.Error("Get should not find an unknown id")
	}
}

func TestRegistry_FailedCreateKeepsId(t *testing.T) {
	reg := NewRegistry(nil, nil)

	_, err := reg.Create(twoPlayers()[:1], classicConfig(), round.Classic)
	if !errors.Is(err, round.ErrInsufficientPlayers) {
		t.Fatalf("Expected ErrInsufficientPlayers, got %v", err)
	}
	r, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)
	if r.ID != 1 {
		t.Errorf("A rejected round must not consume an id, got %d", r.ID)
	}
	if len(reg.Rounds()) != 1 {
		t.Errorf("Expected 1 round, got %d", len(reg.Rounds()))
	}
}

func TestRegistry_AttachTwice(t *testing.T) {
	reg := NewRegistry(nil, nil)
	r, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)

	first := surface.Handle{ChannelID: "c", MessageID: "m1"}
	second := surface.Handle{ChannelID: "c", MessageID: "m2"}

	if _, had := reg.Attach(r, first); had {
		t.Error("A fresh round has no previous surface")
	}
	prev, had := reg.Attach(r, second)
	if !had || prev != first {
		t.Errorf("Expected the first surface to be returned, got %v", prev)
	}

	if _, exists := reg.BySurface(first); exists {
		t.Error("The first surface must no longer resolve")
	}
	if got, exists := reg.BySurface(second); !exists || got != r {
		t.Error("The second surface should resolve to the round")
	}
	if got, exists := reg.Get(r.ID); !exists || got != r {
		t.Error("The id lookup must survive re-attaching")
	}
	if h, _ := reg.SurfaceOf(r.ID); h != second {
		t.Errorf("Expected SurfaceOf to be the second surface, got %v", h)
	}
}

func TestRegistry_AttachTakesSurfaceFromOtherRound(t *testing.T) {
	reg := NewRegistry(nil, nil)
	r1, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)
	r2, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)
	h := surface.Handle{ChannelID: "c", MessageID: "shared"}

	reg.Attach(r1, h)
	reg.Attach(r2, h)

	if got, _ := reg.BySurface(h); got != r2 {
		t.Error("The surface should now show the second round")
	}
	if _, exists := reg.SurfaceOf(r1.ID); exists {
		t.Error("The first round must not keep pointing at a surface that lost it")
	}
}

func TestRegistry_Detach(t *testing.T) {
	reg := NewRegistry(nil, nil)
	r, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)
	h := surface.Handle{ChannelID: "c", MessageID: "m"}
	reg.Attach(r, h)

	got, had := reg.Detach(r)
	if !had || got != h {
		t.Fatalf("Detach should return the attached surface, got %v", got)
	}
	if _, exists := reg.BySurface(h); exists {
		t.Error("A detached surface must not resolve")
	}
	if _, exists := reg.Get(r.ID); !exists {
		t.Error("A detached round stays addressable by id")
	}
	if _, had := reg.Detach(r); had {
		t.Error("Detaching twice reports nothing to detach")
	}
}

func TestRegistry_Active(t *testing.T) {
	reg := NewRegistry(nil, nil)
	r1, _ := reg.Create(twoPlayers(), classicConfig(), round.Classic)
	reg.Create(twoPlayers(), classicConfig(), round.Classic)

	if reg.Active() != 2 {
		t.Errorf("Expected 2 active rounds, got %d", reg.Active())
	}
	r1.ForceEnd()
	if reg.Active() != 1 {
		t.Errorf("Expected 1 active round, got %d", reg.Active())
	}
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	reg := NewRegistry(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := reg.Create(twoPlayers(), classicConfig(), round.Classic)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			reg.Attach(r, surface.Handle{ChannelID: "c", MessageID: string(rune('A' + r.ID))})
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, r := range reg.Rounds() {
		if seen[r.ID] {
			t.Fatalf("Duplicate id %d", r.ID)
		}
		seen[r.ID] = true
	}
	if len(seen) != 50 {
		t.Errorf("Expected 50 rounds, got %d", len(seen))
	}
}
