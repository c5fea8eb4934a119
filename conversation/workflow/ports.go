package workflow

import (
	"context"

	"tabletop-chat/backend/ai"
	cmodels "tabletop-chat/backend/conversation/models"
	gmodels "tabletop-chat/backend/game/models"
)

// MessageStore persists messages and returns the newest ones of a game,
// newest first
type MessageStore interface {
	CreateMessage(ctx context.Context, content, gameID string, senderID *string, isCoaching bool) (*cmodels.Message, error)
	FindRecentByGame(ctx context.Context, gameID string, includeCoachChannel bool, limit int) ([]cmodels.Message, error)
}

// GameLoader loads a game with its gamers and their sheets
type GameLoader interface {
	FindByIDWithDetails(ctx context.Context, id string) (*gmodels.Game, error)
}

// Broadcaster fans a persisted message out to connected clients. It must
// not block.
type Broadcaster interface {
	EmitMessageCreated(msg *cmodels.Message)
}

// Generator produces persona reactions. Implementations return the text
// trimmed, ai.NoReaction to abstain, or an error.
type Generator interface {
	PlayerReaction(ctx context.Context, req ai.PlayerRequest) (string, error)
	CoachReaction(ctx context.Context, req ai.CoachRequest) (string, error)
	CoachDiscussion(ctx context.Context, req ai.CoachRequest) (string, error)
}
