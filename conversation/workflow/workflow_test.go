package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabletop-chat/backend/ai"
	cmodels "tabletop-chat/backend/conversation/models"
	gmodels "tabletop-chat/backend/game/models"
	"tabletop-chat/backend/game/repository"
	"tabletop-chat/backend/pkg/logger"
	"tabletop-chat/backend/pkg/metrics"
)

type memStore struct {
	mu       sync.Mutex
	messages []cmodels.Message
	seq      int
	failFor  map[string]bool
	// recentErr makes FindRecentByGame fail
	recentErr error
}

func newMemStore() *memStore {
	return &memStore{failFor: map[string]bool{}}
}

func (s *memStore) CreateMessage(_ context.Context, content, gameID string, senderID *string, isCoaching bool) (*cmodels.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if senderID != nil && s.failFor[*senderID] {
		return nil, errors.New("disk full")
	}
	s.seq++
	m := cmodels.Message{
		ID:         fmt.Sprintf("m%02d", s.seq),
		Content:    content,
		SenderID:   senderID,
		IsCoaching: isCoaching,
		GameID:     gameID,
		Date:       time.Unix(int64(s.seq), 0).UTC(),
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *memStore) FindRecentByGame(_ context.Context, gameID string, includeCoachChannel bool, limit int) ([]cmodels.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []cmodels.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.GameID != gameID || (!includeCoachChannel && m.IsCoaching) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *memStore) all() []cmodels.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cmodels.Message(nil), s.messages...)
}

type memGames map[string]*gmodels.Game

func (g memGames) FindByIDWithDetails(_ context.Context, id string) (*gmodels.Game, error) {
	game, ok := g[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	return game, nil
}

type recorder struct {
	mu     sync.Mutex
	events []cmodels.Message
}

func (r *recorder) EmitMessageCreated(msg *cmodels.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *msg)
}

func (r *recorder) contents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, m := range r.events {
		out[i] = m.Content
	}
	return out
}

type call struct {
	mode    string
	persona string
	context []string
	trigger string
}

// scripted answers by persona id; a func value can block or fail
type scripted struct {
	mu      sync.Mutex
	answers map[string]func(ctx context.Context) (string, error)
	calls   []call
}

func (s *scripted) answer(ctx context.Context, mode, persona string, msgs []cmodels.Message, trigger cmodels.Message) (string, error) {
	s.mu.Lock()
	c := call{mode: mode, persona: persona, trigger: trigger.Content}
	for _, m := range msgs {
		c.context = append(c.context, m.Content)
	}
	s.calls = append(s.calls, c)
	fn := s.answers[persona]
	s.mu.Unlock()
	if fn == nil {
		return ai.NoReaction, nil
	}
	return fn(ctx)
}

func (s *scripted) PlayerReaction(ctx context.Context, req ai.PlayerRequest) (string, error) {
	return s.answer(ctx, ai.ModePlayerReaction, req.Gamer.ID, req.Window.Messages(), req.Trigger)
}

func (s *scripted) CoachReaction(ctx context.Context, req ai.CoachRequest) (string, error) {
	return s.answer(ctx, ai.ModeCoachReaction, cmodels.CoachSenderID, req.Window.Messages(), req.Trigger)
}

func (s *scripted) CoachDiscussion(ctx context.Context, req ai.CoachRequest) (string, error) {
	return s.answer(ctx, ai.ModeCoachDiscussion, cmodels.CoachSenderID, req.Window.Messages(), req.Trigger)
}

func says(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fails(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

type fixture struct {
	store *memStore
	bcast *recorder
	gen   *scripted
	wf    *Workflow
}

func newFixture(t *testing.T, answers map[string]func(context.Context) (string, error), cfg Config) *fixture {
	t.Helper()
	game := &gmodels.Game{
		ID:   "g1",
		Name: "Valdor",
		Gamers: []gmodels.Gamer{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
	}
	f := &fixture{
		store: newMemStore(),
		bcast: &recorder{},
		gen:   &scripted{answers: answers},
	}
	f.wf = New(f.store, memGames{"g1": game}, f.bcast, f.gen, cfg,
		WithLogger(logger.Nop()),
		WithMetrics(metrics.New()),
	)
	return f
}

func str(s string) *string { return &s }

func TestGameMasterBeatReachesEveryGamerInOrder(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice":               says("I hide behind the bar."),
		"bob":                 says("I grab my axe."),
		cmodels.CoachSenderID: says("Let them act before the dragon does."),
	}, DefaultConfig())

	inbound, results, err := f.wf.handle(context.Background(), "A dragon lands.", "g1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "A dragon lands.", inbound.Content)

	require.Len(t, f.gen.calls, 3)
	assert.Equal(t, "alice", f.gen.calls[0].persona)
	assert.Equal(t, []string{"A dragon lands."}, f.gen.calls[0].context)
	assert.Equal(t, "bob", f.gen.calls[1].persona)
	assert.Equal(t, []string{"A dragon lands.", "I hide behind the bar."}, f.gen.calls[1].context)
	assert.Equal(t, ai.ModeCoachReaction, f.gen.calls[2].mode)
	assert.Equal(t, []string{"A dragon lands.", "I hide behind the bar.", "I grab my axe."}, f.gen.calls[2].context)
	for _, c := range f.gen.calls {
		assert.Equal(t, "A dragon lands.", c.trigger)
	}

	assert.Equal(t, []string{
		"A dragon lands.",
		"I hide behind the bar.",
		"I grab my axe.",
		"Let them act before the dragon does.",
	}, f.bcast.contents())

	stored := f.store.all()
	require.Len(t, stored, 4)
	assert.Equal(t, "alice", stored[1].Sender())
	assert.False(t, stored[1].IsCoaching)
	assert.Equal(t, cmodels.CoachSenderID, stored[3].Sender())
	assert.True(t, stored[3].IsCoaching)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, OutcomeReacted, r.Outcome)
	}
}

func TestSenderDoesNotReactToItself(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice": says("should not be asked"),
		"bob":   says("Nice move."),
	}, DefaultConfig())

	_, _, err := f.wf.handle(context.Background(), "I pick the lock.", "g1", str("alice"), false)
	require.NoError(t, err)

	var personas []string
	for _, c := range f.gen.calls {
		personas = append(personas, c.persona)
	}
	assert.Equal(t, []string{"bob", cmodels.CoachSenderID}, personas)
}

func TestCoachingMessageOnlyWakesTheCoach(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice":               says("never"),
		cmodels.CoachSenderID: says("Raise the stakes."),
	}, DefaultConfig())

	_, err := f.wf.HandleIncomingMessage(context.Background(), "Players look bored.", "g1", nil, false)
	require.NoError(t, err)
	f.gen.calls = nil

	_, results, err := f.wf.handle(context.Background(), "How do I keep them engaged?", "g1", nil, true)
	require.NoError(t, err)

	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, ai.ModeCoachDiscussion, f.gen.calls[0].mode)
	assert.Contains(t, f.gen.calls[0].context, "How do I keep them engaged?")
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeReacted, results[0].Outcome)
}

func TestPlayerWindowHidesCoachingChannel(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		cmodels.CoachSenderID: says("secret advice"),
	}, DefaultConfig())

	_, err := f.wf.HandleIncomingMessage(context.Background(), "private question", "g1", nil, true)
	require.NoError(t, err)
	f.gen.calls = nil

	_, err = f.wf.HandleIncomingMessage(context.Background(), "The gate opens.", "g1", nil, false)
	require.NoError(t, err)

	require.Len(t, f.gen.calls, 3)
	for _, c := range f.gen.calls[:2] {
		assert.Equal(t, []string{"The gate opens."}, c.context)
	}
	assert.Equal(t, []string{"private question", "secret advice", "The gate opens."}, f.gen.calls[2].context)
}

func TestAbstentionsAreNeverPersisted(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice":               says("  " + ai.NoReaction + "\n"),
		"bob":                 says("   "),
		cmodels.CoachSenderID: says(ai.NoReaction),
	}, DefaultConfig())

	_, results, err := f.wf.handle(context.Background(), "Nothing happens.", "g1", nil, false)
	require.NoError(t, err)

	assert.Len(t, f.store.all(), 1)
	assert.Equal(t, []string{"Nothing happens."}, f.bcast.contents())
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, OutcomeSkipped, r.Outcome)
	}
}

func TestGeneratorFailureDoesNotStopTheTurn(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice":               fails(ai.ErrGeneration),
		"bob":                 says("I keep watch."),
		cmodels.CoachSenderID: says("Good."),
	}, DefaultConfig())

	inbound, results, err := f.wf.handle(context.Background(), "Night falls.", "g1", nil, false)
	require.NoError(t, err)
	require.NotNil(t, inbound)

	require.Len(t, results, 3)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, ai.ErrGeneration)
	assert.Equal(t, OutcomeReacted, results[1].Outcome)
	assert.Equal(t, OutcomeReacted, results[2].Outcome)
	assert.Equal(t, []string{"Night falls.", "I keep watch."}, f.gen.calls[1].context)
}

func TestPersistenceFailureOfReactionIsContained(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice":               says("lost"),
		"bob":                 says("kept"),
		cmodels.CoachSenderID: says("ok"),
	}, DefaultConfig())
	f.store.failFor["alice"] = true

	_, results, err := f.wf.handle(context.Background(), "Rain.", "g1", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, []string{"Rain."}, f.gen.calls[1].context)
	assert.Equal(t, []string{"Rain.", "kept", "ok"}, f.bcast.contents())
}

func TestGenerationTimeoutIsAFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GenerationTimeout = 20 * time.Millisecond
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice": func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		"bob": says("Still here."),
	}, cfg)

	_, results, err := f.wf.handle(context.Background(), "Silence.", "g1", nil, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.Equal(t, OutcomeReacted, results[1].Outcome)
}

func TestCanceledRequestStillCompletesTheTurn(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice": func(ctx context.Context) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return "Made it.", nil
		},
	}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	f.bcast = &recorder{}
	f.wf.broadcast = cancelOnFirst{rec: f.bcast, cancel: cancel}

	_, results, err := f.wf.handle(ctx, "Go.", "g1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReacted, results[0].Outcome)
}

type cancelOnFirst struct {
	rec    *recorder
	cancel context.CancelFunc
}

func (c cancelOnFirst) EmitMessageCreated(msg *cmodels.Message) {
	c.cancel()
	c.rec.EmitMessageCreated(msg)
}

func TestMissingGameFailsBeforeGeneration(t *testing.T) {
	f := newFixture(t, nil, DefaultConfig())

	_, err := f.wf.HandleIncomingMessage(context.Background(), "Hello?", "nope", nil, false)
	assert.ErrorIs(t, err, repository.ErrGameNotFound)
	assert.Empty(t, f.gen.calls)
	assert.Empty(t, f.store.all())
	assert.Empty(t, f.bcast.contents())
}

func TestWindowLoadFailureKeepsTheInboundMessage(t *testing.T) {
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice": says("I draw my blade."),
	}, DefaultConfig())
	f.store.recentErr = errors.New("db hiccup")

	msg, err := f.wf.HandleIncomingMessage(context.Background(), "A troll appears.", "g1", nil, false)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "A troll appears.", msg.Content)

	require.NotEmpty(t, f.gen.calls)
	assert.Equal(t, []string{"A troll appears."}, f.gen.calls[0].context)
	assert.Equal(t, []string{"A troll appears.", "I draw my blade."}, f.bcast.contents())
}

func TestInboundMessageIsBroadcastWhileAnotherTurnGenerates(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	alice := func(context.Context) (string, error) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(started)
			<-unblock
		}
		return ai.NoReaction, nil
	}
	f := newFixture(t, map[string]func(context.Context) (string, error){"alice": alice}, DefaultConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.wf.HandleIncomingMessage(context.Background(), "beat A", "g1", nil, false)
		assert.NoError(t, err)
	}()
	<-started

	go func() {
		defer wg.Done()
		_, err := f.wf.HandleIncomingMessage(context.Background(), "beat B", "g1", nil, false)
		assert.NoError(t, err)
	}()

	assert.Eventually(t, func() bool {
		return len(f.bcast.contents()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"beat A", "beat B"}, f.bcast.contents())
	assert.Len(t, f.store.all(), 2)

	f.gen.mu.Lock()
	callsDuringTurnA := len(f.gen.calls)
	f.gen.mu.Unlock()
	assert.Equal(t, 1, callsDuringTurnA)

	close(unblock)
	wg.Wait()
	assert.Equal(t, 0, f.wf.turns.size())
}

func TestWindowIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 3
	f := newFixture(t, nil, cfg)

	for i := 0; i < 5; i++ {
		_, err := f.wf.HandleIncomingMessage(context.Background(), fmt.Sprintf("beat %d", i), "g1", nil, false)
		require.NoError(t, err)
	}

	last := f.gen.calls[len(f.gen.calls)-1]
	assert.Equal(t, []string{"beat 2", "beat 3", "beat 4"}, last.context)
}

func TestTurnsOfOneGameAreSerialized(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	slow := func(context.Context) (string, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return ai.NoReaction, nil
	}
	f := newFixture(t, map[string]func(context.Context) (string, error){
		"alice": slow, "bob": slow, cmodels.CoachSenderID: slow,
	}, DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.wf.HandleIncomingMessage(context.Background(), fmt.Sprintf("beat %d", i), "g1", nil, false)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, 0, f.wf.turns.size())

	contents := f.bcast.contents()
	sort.Strings(contents)
	assert.Equal(t, []string{"beat 0", "beat 1", "beat 2", "beat 3"}, contents)
}
