// Package workflow runs a message turn: the inbound message is stored and
// broadcast, then each persona gets one chance to react.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tabletop-chat/backend/ai"
	cmodels "tabletop-chat/backend/conversation/models"
	"tabletop-chat/backend/conversation/window"
	gmodels "tabletop-chat/backend/game/models"
	"tabletop-chat/backend/game/repository"
	"tabletop-chat/backend/pkg/logger"
	"tabletop-chat/backend/pkg/metrics"
)

// Outcome of one persona generation
type Outcome string

const (
	OutcomeReacted Outcome = "reacted"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// PersonaResult records what one persona did during a turn
type PersonaResult struct {
	PersonaID string
	Mode      string
	Outcome   Outcome
	Message   *cmodels.Message
	Err       error
}

// Config tunes a workflow
type Config struct {
	// WindowSize bounds both conversation windows
	WindowSize int
	// GenerationTimeout bounds each generation call; zero means unbounded
	GenerationTimeout time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		WindowSize:        window.DefaultSize,
		GenerationTimeout: 90 * time.Second,
	}
}

// Workflow orchestrates message turns
type Workflow struct {
	store     MessageStore
	games     GameLoader
	broadcast Broadcaster
	generator Generator
	cfg       Config
	log       *logger.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	turns     *turnLock
}

// Option customizes a workflow
type Option func(*Workflow)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(w *Workflow) { w.tracer = t }
}

// New creates a workflow
func New(store MessageStore, games GameLoader, broadcast Broadcaster, generator Generator, cfg Config, opts ...Option) *Workflow {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = window.DefaultSize
	}
	w := &Workflow{
		store:     store,
		games:     games,
		broadcast: broadcast,
		generator: generator,
		cfg:       cfg,
		log:       logger.GetGlobal(),
		tracer:    otel.Tracer("tabletop-chat/workflow"),
		turns:     newTurnLock(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleIncomingMessage runs a full turn for a message written by the game
// master (nil senderID), a gamer or the coach. The game must exist: an
// unknown game fails before anything is stored. Once stored and broadcast,
// the inbound message is returned whatever happens to the reactions;
// generation and window failures are logged and never returned.
//
// Turns of one game generate one at a time, but storing and broadcasting
// the inbound message never waits for a running turn.
func (w *Workflow) HandleIncomingMessage(ctx context.Context, content, gameID string, senderID *string, isCoaching bool) (*cmodels.Message, error) {
	msg, _, err := w.handle(ctx, content, gameID, senderID, isCoaching)
	return msg, err
}

func (w *Workflow) handle(ctx context.Context, content, gameID string, senderID *string, isCoaching bool) (*cmodels.Message, []PersonaResult, error) {
	ctx, span := w.tracer.Start(ctx, "workflow.turn", trace.WithAttributes(
		attribute.String("game.id", gameID),
		attribute.Bool("message.coaching", isCoaching),
	))
	defer span.End()

	log := w.log.WithGameID(gameID)

	game, err := w.games.FindByIDWithDetails(ctx, gameID)
	if err == nil && game == nil {
		err = repository.ErrGameNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load game")
		return nil, nil, fmt.Errorf("load game %s: %w", gameID, err)
	}

	inbound, err := w.store.CreateMessage(ctx, content, gameID, senderID, isCoaching)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist inbound message")
		return nil, nil, fmt.Errorf("persist inbound message: %w", err)
	}
	w.broadcast.EmitMessageCreated(inbound)
	w.metrics.Turn(isCoaching)

	// The turn outlives a disconnected client; its messages are broadcast anyway.
	genCtx := context.WithoutCancel(ctx)

	release := w.turns.lock(gameID)
	defer release()

	coachWin := w.fetchWindow(genCtx, log, gameID, inbound, true)
	playerWin := w.fetchWindow(genCtx, log, gameID, inbound, false)

	t := &turn{
		Workflow:  w,
		log:       log,
		game:      game,
		trigger:   *inbound,
		coachWin:  coachWin,
		playerWin: playerWin,
	}

	if isCoaching {
		t.coachDiscussion(genCtx)
	} else {
		t.playerReactions(genCtx)
		t.coachReaction(genCtx)
	}

	span.SetAttributes(attribute.Int("turn.personas", len(t.results)))
	return inbound, t.results, nil
}

// fetchWindow loads a window and appends the inbound message. A store
// failure is logged and degrades to a window holding the inbound message only.
func (w *Workflow) fetchWindow(ctx context.Context, log *logger.Logger, gameID string, inbound *cmodels.Message, includeCoachChannel bool) window.Window {
	win, err := window.Fetch(ctx, w.store, gameID, includeCoachChannel, w.cfg.WindowSize)
	if err != nil {
		log.LogError(err, "Failed to load conversation window",
			"message_id", inbound.ID,
			"coach_channel", includeCoachChannel,
		)
		win = window.New(w.cfg.WindowSize, includeCoachChannel)
	}
	return win.Append(*inbound)
}

// turn holds the windows of one turn. Windows are values; each accepted
// reaction replaces them with an extended copy.
type turn struct {
	*Workflow
	log       *logger.Logger
	game      *gmodels.Game
	trigger   cmodels.Message
	coachWin  window.Window
	playerWin window.Window
	results   []PersonaResult
}

func (t *turn) playerReactions(ctx context.Context) {
	senderID := t.trigger.Sender()

	for i := range t.game.Gamers {
		gamer := &t.game.Gamers[i]
		if senderID != "" && gamer.ID == senderID {
			continue
		}

		req := ai.PlayerRequest{
			Game:    t.game,
			Gamer:   gamer,
			Window:  t.playerWin,
			Trigger: t.trigger,
		}
		t.generate(ctx, gamer.ID, ai.ModePlayerReaction, false, func(ctx context.Context) (string, error) {
			return t.generator.PlayerReaction(ctx, req)
		})
	}
}

func (t *turn) coachReaction(ctx context.Context) {
	req := ai.CoachRequest{
		Game:    t.game,
		Gamers:  t.game.Gamers,
		Window:  t.coachWin,
		Trigger: t.trigger,
	}
	t.generate(ctx, cmodels.CoachSenderID, ai.ModeCoachReaction, true, func(ctx context.Context) (string, error) {
		return t.generator.CoachReaction(ctx, req)
	})
}

func (t *turn) coachDiscussion(ctx context.Context) {
	req := ai.CoachRequest{
		Game:    t.game,
		Gamers:  t.game.Gamers,
		Window:  t.coachWin,
		Trigger: t.trigger,
	}
	t.generate(ctx, cmodels.CoachSenderID, ai.ModeCoachDiscussion, true, func(ctx context.Context) (string, error) {
		return t.generator.CoachDiscussion(ctx, req)
	})
}

// generate runs one persona generation and applies its result
func (t *turn) generate(ctx context.Context, personaID, mode string, coaching bool, call func(context.Context) (string, error)) {
	ctx, span := t.tracer.Start(ctx, "workflow.generate", trace.WithAttributes(
		attribute.String("persona.id", personaID),
		attribute.String("generation.mode", mode),
	))
	defer span.End()

	if t.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.GenerationTimeout)
		defer cancel()
	}

	start := time.Now()
	reaction, err := call(ctx)
	t.metrics.ObserveGeneration(mode, time.Since(start))

	result := PersonaResult{PersonaID: personaID, Mode: mode}
	switch {
	case err != nil:
		result.Outcome = OutcomeFailed
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
	case ai.IsAbstention(reaction):
		result.Outcome = OutcomeSkipped
	default:
		msg, err := t.persist(ctx, personaID, coaching, reaction)
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Err = err
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist reaction")
			break
		}
		result.Outcome = OutcomeReacted
		result.Message = msg
	}

	span.SetAttributes(attribute.String("generation.outcome", string(result.Outcome)))
	t.record(result)
}

func (t *turn) persist(ctx context.Context, personaID string, coaching bool, reaction string) (*cmodels.Message, error) {
	// Persistence gets its own context so a generation that used up the
	// timeout still has its answer stored.
	storeCtx := context.WithoutCancel(ctx)
	sender := personaID
	msg, err := t.store.CreateMessage(storeCtx, reaction, t.game.ID, &sender, coaching)
	if err != nil {
		return nil, fmt.Errorf("persist reaction: %w", err)
	}

	t.playerWin = t.playerWin.Append(*msg)
	t.coachWin = t.coachWin.Append(*msg)
	t.broadcast.EmitMessageCreated(msg)
	return msg, nil
}

func (t *turn) record(r PersonaResult) {
	t.results = append(t.results, r)
	t.metrics.PersonaOutcome(r.Mode, string(r.Outcome))

	args := []any{"persona_id", r.PersonaID, "mode", r.Mode, "outcome", string(r.Outcome)}
	switch r.Outcome {
	case OutcomeFailed:
		t.log.LogError(r.Err, "Persona generation failed", args...)
	case OutcomeReacted:
		t.log.Info("Persona reacted", append(args, "message_id", r.Message.ID)...)
	default:
		t.log.Info("Persona abstained", args...)
	}
}
