// services/round_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/connect4bot/logger"
	"github.com/wfunc/connect4bot/models"
	"github.com/wfunc/connect4bot/persistence"
	"github.com/wfunc/connect4bot/registry"
	"github.com/wfunc/connect4bot/render"
	"github.com/wfunc/connect4bot/round"
	"github.com/wfunc/connect4bot/surface"
)

// ErrNoArchive is returned by archive queries when no database is configured.
var ErrNoArchive = errors.New("no round archive configured")

// Metrics is what the service reports. monitor.Monitor implements it.
type Metrics interface {
	RoundCreated(variant string)
	MoveApplied(outcome string)
	RoundEnded(reason string)
	SurfaceError(op string)
	SetActiveRounds(count int)
	ObserveInputLatency(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RoundCreated(string)               {}
func (nopMetrics) MoveApplied(string)                {}
func (nopMetrics) RoundEnded(string)                 {}
func (nopMetrics) SurfaceError(string)               {}
func (nopMetrics) SetActiveRounds(int)               {}
func (nopMetrics) ObserveInputLatency(time.Duration) {}

type Option func(*RoundService)

func WithMetrics(m Metrics) Option {
	return func(s *RoundService) { s.metrics = m }
}

// WithDatabase archives every finished round into db.
func WithDatabase(db persistence.Database) Option {
	return func(s *RoundService) { s.db = db }
}

// WithSurfaceTimeout bounds every call to the messaging surface.
func WithSurfaceTimeout(d time.Duration) Option {
	return func(s *RoundService) { s.timeout = d }
}

// RoundService connects rounds to the chat they are played in: it turns
// commands and reactions into round operations, re-renders after every
// change and posts the end notices.
type RoundService struct {
	registry *registry.Registry
	surface  surface.Surface
	metrics  Metrics
	db       persistence.Database
	timeout  time.Duration

	optMutex sync.Mutex
	options  round.Options

	// per-round publish locks; renders of one round go out in order
	publish sync.Map
}

func NewRoundService(reg *registry.Registry, surf surface.Surface, opts ...Option) *RoundService {
	s := &RoundService{
		registry: reg,
		surface:  surf,
		metrics:  nopMetrics{},
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	reg.SetExpireHandler(s.onExpire)
	return s
}

func (s *RoundService) Registry() *registry.Registry { return s.registry }

// Options returns the pending options for the next started round.
func (s *RoundService) Options() round.Options {
	s.optMutex.Lock()
	defer s.optMutex.Unlock()
	return s.options
}

// SetOptions applies key=value arguments to the pending options. Nothing is
// applied if any argument is invalid.
func (s *RoundService) SetOptions(args []string) (round.Options, error) {
	s.optMutex.Lock()
	defer s.optMutex.Unlock()

	next, err := s.options.Apply(args)
	if err != nil {
		return s.options, err
	}
	s.options = next
	return next, nil
}

// Start creates a round with the pending options and shows it in channelID.
func (s *RoundService) Start(ctx context.Context, channelID string, players []round.Player, variant round.Variant) (*round.Round, error) {
	cfg := s.Options().Config(variant, len(players))
	r, err := s.registry.Create(players, cfg, variant)
	if err != nil {
		return nil, err
	}
	s.metrics.RoundCreated(variant.String())
	s.metrics.SetActiveRounds(s.registry.Active())
	logger.Log.Infow("round created", "round", r.ID, "variant", variant.String(), "players", len(players), "channel", channelID)

	return r, s.show(ctx, channelID, r)
}

// Show posts a fresh message for round id in channelID. The previous message
// stops accepting input.
func (s *RoundService) Show(ctx context.Context, channelID string, id int) error {
	r, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.show(ctx, channelID, r)
}

func (s *RoundService) show(ctx context.Context, channelID string, r *round.Round) error {
	mu := s.lockFor(r.ID)
	mu.Lock()
	defer mu.Unlock()

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	h, err := s.surface.Send(callCtx, channelID, "...", nil)
	if err != nil {
		s.metrics.SurfaceError("send")
		return fmt.Errorf("show game %d: %w", r.ID, err)
	}
	if prev, had := s.registry.Attach(r, h); had {
		logger.Log.Infow("round moved to a new message", "round", r.ID, "from", prev.MessageID, "to", h.MessageID)
	}

	if symbols := r.Options(); len(symbols) > 0 {
		if err := s.surface.AddOptions(callCtx, h, symbols); err != nil {
			s.metrics.SurfaceError("add_options")
			logger.Log.Warnf("Failed to add options to game %d: %v", r.ID, err)
		}
	}

	snap := r.Snapshot()
	if err := s.surface.Edit(callCtx, h, render.Title(snap), &snap); err != nil {
		s.metrics.SurfaceError("edit")
		logger.Log.Warnf("Failed to render game %d: %v", r.ID, err)
	}
	return nil
}

// Place drops actorID's chip into a 1-based column.
func (s *RoundService) Place(ctx context.Context, id int, actorID string, column int) error {
	r, err := s.lookup(id)
	if err != nil {
		return err
	}
	if r.Ended() {
		return fmt.Errorf("%w: %d", round.ErrRoundEnded, id)
	}
	if !r.IsCurrent(actorID) {
		return round.ErrNotYourTurn
	}
	if column < 1 || column > r.Config.Width {
		return fmt.Errorf("%w: column must be between 1 and %d", round.ErrInvalidColumn, r.Config.Width)
	}
	return s.play(ctx, r, actorID, column-1)
}

// End stops round id without a winner.
func (s *RoundService) End(ctx context.Context, id int) error {
	r, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !r.ForceEnd() {
		return fmt.Errorf("%w: %d", round.ErrRoundEnded, id)
	}
	logger.Log.Infow("round stopped", "round", r.ID)
	s.finish(ctx, r)
	return nil
}

// History renders the move list of round id.
func (s *RoundService) History(id int) (string, error) {
	r, err := s.lookup(id)
	if err != nil {
		return "", err
	}
	return render.History(r.Players, r.Config.Height, r.History()), nil
}

// Round returns round id.
func (s *RoundService) Round(id int) (*round.Round, error) {
	return s.lookup(id)
}

// HandleReaction applies a selection made on a round's message. Anything
// that is not a valid input from the current player is ignored.
func (s *RoundService) HandleReaction(ctx context.Context, ev surface.Event) {
	if ev.Removed {
		return
	}
	r, exists := s.registry.BySurface(ev.Handle)
	if !exists || !r.IsCurrent(ev.ActorID) {
		return
	}

	if ev.Symbol == round.CancelSymbol {
		if r.Cancel(ev.ActorID) {
			logger.Log.Infow("round cancelled", "round", r.ID, "by", ev.ActorID)
			s.finish(ctx, r)
		}
		return
	}

	column, ok := round.ColumnFor(ev.Symbol, r.Config.Width)
	if !ok {
		return
	}

	callCtx, cancel := s.callContext(ctx)
	if err := s.surface.RemoveOption(callCtx, ev.Handle, ev.Symbol, ev.ActorID); err != nil {
		s.metrics.SurfaceError("remove_option")
		logger.Log.Warnf("Failed to remove reaction on game %d: %v", r.ID, err)
	}
	cancel()

	if err := s.play(ctx, r, ev.ActorID, column); err != nil {
		logger.Log.Debugw("reaction dropped", "round", r.ID, "actor", ev.ActorID, "error", err)
	}
}

func (s *RoundService) play(ctx context.Context, r *round.Round, actorID string, column int) error {
	start := time.Now()
	out, err := r.Play(actorID, column)
	if err != nil {
		return err
	}
	s.metrics.MoveApplied(out.Kind.String())

	switch out.Kind {
	case round.Ignored:
		return nil
	case round.Won:
		logger.Log.Infow("round won", "round", r.ID, "winner", r.Players[out.Winner].ID)
		s.finish(ctx, r)
	default:
		s.refresh(ctx, r)
	}
	s.metrics.ObserveInputLatency(time.Since(start))
	return nil
}

// refresh re-renders a round on its current message, if it has one.
func (s *RoundService) refresh(ctx context.Context, r *round.Round) {
	mu := s.lockFor(r.ID)
	mu.Lock()
	defer mu.Unlock()

	h, exists := s.registry.SurfaceOf(r.ID)
	if !exists {
		return
	}
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	snap := r.Snapshot()
	if err := s.surface.Edit(callCtx, h, render.Title(snap), &snap); err != nil {
		s.metrics.SurfaceError("edit")
		logger.Log.Warnf("Failed to render game %d: %v", r.ID, err)
	}
}

// finish publishes the final state of an ended round, detaches its message
// and archives it. Callers make sure it runs once per round.
func (s *RoundService) finish(ctx context.Context, r *round.Round) {
	mu := s.lockFor(r.ID)
	mu.Lock()
	if h, exists := s.registry.SurfaceOf(r.ID); exists {
		callCtx, cancel := s.callContext(ctx)
		snap := r.Snapshot()
		if err := s.surface.Edit(callCtx, h, render.Title(snap), &snap); err != nil {
			s.metrics.SurfaceError("edit")
			logger.Log.Warnf("Failed to render game %d: %v", r.ID, err)
		}
		if err := s.surface.Reply(callCtx, h, endNotice(r)); err != nil {
			s.metrics.SurfaceError("reply")
			logger.Log.Warnf("Failed to post end of game %d: %v", r.ID, err)
		}
		cancel()
		s.registry.Detach(r)
	}
	mu.Unlock()

	_, how := r.Result()
	s.metrics.RoundEnded(string(how))
	s.metrics.SetActiveRounds(s.registry.Active())
	s.archive(ctx, r)
}

func (s *RoundService) onExpire(r *round.Round) {
	s.finish(context.Background(), r)
}

func (s *RoundService) archive(ctx context.Context, r *round.Round) {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	rec := RecordOf(r)
	if err := s.db.SaveRoundRecord(ctx, rec); err != nil {
		logger.Log.Errorf("Failed to archive game %d: %v", r.ID, err)
		return
	}
	logger.Log.Debugw("round archived", "round", r.ID, "record", rec.ID)
}

// Archived loads the newest archive of round id.
func (s *RoundService) Archived(ctx context.Context, id int) (*models.RoundRecord, error) {
	if s.db == nil {
		return nil, ErrNoArchive
	}
	return s.db.LoadRoundRecord(ctx, id)
}

// Stats returns archived results for one user.
func (s *RoundService) Stats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	if s.db == nil {
		return nil, ErrNoArchive
	}
	return s.db.GetPlayerStats(ctx, userID)
}

func (s *RoundService) lookup(id int) (*round.Round, error) {
	r, exists := s.registry.Get(id)
	if !exists {
		return nil, fmt.Errorf("%w: %d", round.ErrUnknownRound, id)
	}
	return r, nil
}

func (s *RoundService) lockFor(id int) *sync.Mutex {
	mu, _ := s.publish.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *RoundService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func endNotice(r *round.Round) string {
	winner, how := r.Result()
	if how == round.EndWon {
		return render.WinNotice(r.Players[winner])
	}
	return render.EndNotice
}
