package ai

import (
	"context"
	"errors"
)

// NoReaction is the answer a persona gives when it chooses not to speak
const NoReaction = "__NO_REACT__"

// Generation modes
const (
	ModePlayerReaction  = "player_reaction"
	ModeCoachReaction   = "coach_reaction"
	ModeCoachDiscussion = "coach_discussion"
)

// ErrGeneration wraps every failure of a generation backend
var ErrGeneration = errors.New("generation failed")

// Engine turns a prompt into raw model output
type Engine interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EngineFunc adapts a function to Engine
type EngineFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f
func (f EngineFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
