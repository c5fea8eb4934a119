package repository

import (
	"context"

	"tabletop-chat/backend/game/models"
	"tabletop-chat/backend/pkg/cache"
)

// CachedGameRepository serves FindByIDWithDetails from a TTL cache. Game
// level writes drop the game's entry; gamer level writes flush the cache
// since they do not name the owning game.
type CachedGameRepository struct {
	GameRepository
	games *cache.Cache[*models.Game]
}

// NewCachedGameRepository wraps inner with c
func NewCachedGameRepository(inner GameRepository, c *cache.Cache[*models.Game]) *CachedGameRepository {
	return &CachedGameRepository{GameRepository: inner, games: c}
}

// FindByIDWithDetails returns a copy of the cached game, loading it on miss
func (r *CachedGameRepository) FindByIDWithDetails(ctx context.Context, id string) (*models.Game, error) {
	if game, ok := r.games.Get(id); ok {
		return cloneGame(game), nil
	}

	game, err := r.GameRepository.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	r.games.Set(id, cloneGame(game))
	return game, nil
}

// Update drops the cached game
func (r *CachedGameRepository) Update(ctx context.Context, id string, upd GameUpdate) (*models.Game, error) {
	defer r.games.Delete(id)
	return r.GameRepository.Update(ctx, id, upd)
}

// Delete drops the cached game
func (r *CachedGameRepository) Delete(ctx context.Context, id string) error {
	defer r.games.Delete(id)
	return r.GameRepository.Delete(ctx, id)
}

// AddGamer drops the cached game
func (r *CachedGameRepository) AddGamer(ctx context.Context, gameID string, gamer *models.Gamer) (*models.Game, error) {
	defer r.games.Delete(gameID)
	return r.GameRepository.AddGamer(ctx, gameID, gamer)
}

// UpdateGamer flushes the cache
func (r *CachedGameRepository) UpdateGamer(ctx context.Context, gamerID string, gamer *models.Gamer) (*models.Gamer, error) {
	defer r.games.Flush()
	return r.GameRepository.UpdateGamer(ctx, gamerID, gamer)
}

// DeleteGamer flushes the cache
func (r *CachedGameRepository) DeleteGamer(ctx context.Context, gamerID string) error {
	defer r.games.Flush()
	return r.GameRepository.DeleteGamer(ctx, gamerID)
}

// cloneGame copies the game and its top level slices so callers may reorder
// or append without touching the cached value
func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.Gamers = append([]models.Gamer(nil), g.Gamers...)
	c.StatisticTypes = append([]models.StatisticType(nil), g.StatisticTypes...)
	return &c
}
