package ai

import (
	"context"
	"fmt"
	"strings"
)

// ReactionGenerator produces persona reactions from an engine. Results are
// trimmed; NoReaction is returned as is and left to the caller to discard.
type ReactionGenerator struct {
	engine   Engine
	prompter *Prompter
}

// NewReactionGenerator creates a generator over engine
func NewReactionGenerator(engine Engine, prompter *Prompter) *ReactionGenerator {
	if prompter == nil {
		prompter = NewPrompter(0)
	}
	return &ReactionGenerator{engine: engine, prompter: prompter}
}

// PlayerReaction generates what the gamer says in reaction to the trigger
func (g *ReactionGenerator) PlayerReaction(ctx context.Context, req PlayerRequest) (string, error) {
	return g.run(ctx, ModePlayerReaction, g.prompter.PlayerPrompt(req))
}

// CoachReaction generates the coach's advice after a player channel beat
func (g *ReactionGenerator) CoachReaction(ctx context.Context, req CoachRequest) (string, error) {
	return g.run(ctx, ModeCoachReaction, g.prompter.CoachReactionPrompt(req))
}

// CoachDiscussion generates the coach's answer on the coaching channel
func (g *ReactionGenerator) CoachDiscussion(ctx context.Context, req CoachRequest) (string, error) {
	return g.run(ctx, ModeCoachDiscussion, g.prompter.CoachDiscussionPrompt(req))
}

func (g *ReactionGenerator) run(ctx context.Context, mode, prompt string) (string, error) {
	out, err := g.engine.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrGeneration, mode, err)
	}
	return strings.TrimSpace(out), nil
}

// IsAbstention reports whether a generated reaction must be discarded
func IsAbstention(reaction string) bool {
	r := strings.TrimSpace(reaction)
	return r == "" || r == NoReaction
}
