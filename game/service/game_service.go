package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tabletop-chat/backend/game/models"
	"tabletop-chat/backend/game/repository"
)

// ErrInvalidInput wraps every validation failure of the service
var ErrInvalidInput = errors.New("invalid input")

// StatisticTypeInput names a statistic type; ID is set when updating one
type StatisticTypeInput struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// StatisticInput references a statistic type by id or by name
type StatisticInput struct {
	StatisticTypeID string `json:"statisticTypeId,omitempty"`
	Name            string `json:"name,omitempty"`
	Value           int    `json:"value"`
}

// NamedValueInput is a competence or fighting competence
type NamedValueInput struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// GamerInput describes a gamer to create or update. Nil slices leave the
// existing rows untouched on update.
type GamerInput struct {
	ID                  string            `json:"id,omitempty"`
	Name                string            `json:"name"`
	Color               string            `json:"color"`
	Age                 int               `json:"age"`
	Lore                string            `json:"lore"`
	Personality         string            `json:"personality"`
	PhysicalDescription string            `json:"physicalDescription"`
	Statistics          []StatisticInput  `json:"statistics"`
	Competences         []NamedValueInput `json:"competences"`
	FightingCompetences []NamedValueInput `json:"fightingCompetences"`
}

// CreateGameInput is the payload of a new game
type CreateGameInput struct {
	Name           string               `json:"name"`
	Lore           string               `json:"lore"`
	StatisticTypes []StatisticTypeInput `json:"statisticTypes"`
	Gamers         []GamerInput         `json:"gamers,omitempty"`
}

// UpdateGameInput changes a game; omitted fields are left untouched
type UpdateGameInput struct {
	Name           *string              `json:"name"`
	Lore           *string              `json:"lore"`
	StatisticTypes []StatisticTypeInput `json:"statisticTypes"`
	Gamers         []GamerInput         `json:"gamers"`
}

// GameService implements game and gamer management
type GameService struct {
	repo repository.GameRepository
}

// NewGameService creates a new game service
func NewGameService(repo repository.GameRepository) *GameService {
	return &GameService{repo: repo}
}

// FindAll lists every game
func (s *GameService) FindAll(ctx context.Context) ([]models.Game, error) {
	games, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	if games == nil {
		games = []models.Game{}
	}
	return games, nil
}

// FindByID returns the game aggregate
func (s *GameService) FindByID(ctx context.Context, id string) (*models.Game, error) {
	return s.repo.FindByIDWithDetails(ctx, id)
}

// Create validates and stores a new game
func (s *GameService) Create(ctx context.Context, in CreateGameInput) (*models.Game, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	types, err := toStatisticTypes(in.StatisticTypes)
	if err != nil {
		return nil, err
	}

	game := &models.Game{
		Name:           strings.TrimSpace(in.Name),
		Lore:           in.Lore,
		StatisticTypes: types,
	}
	for _, g := range in.Gamers {
		gamer, err := toGamer(g)
		if err != nil {
			return nil, err
		}
		game.Gamers = append(game.Gamers, *gamer)
	}

	if err := s.repo.Create(ctx, game); err != nil {
		return nil, err
	}
	return s.repo.FindByIDWithDetails(ctx, game.ID)
}

// Update changes the name and lore, and replaces the statistic type and
// gamer sets when given
func (s *GameService) Update(ctx context.Context, id string, in UpdateGameInput) (*models.Game, error) {
	upd := repository.GameUpdate{Lore: in.Lore}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		upd.Name = &name
	}

	if in.StatisticTypes != nil {
		types, err := toStatisticTypes(in.StatisticTypes)
		if err != nil {
			return nil, err
		}
		upd.StatisticTypes = types
	}

	if in.Gamers != nil {
		upd.Gamers = make([]models.Gamer, 0, len(in.Gamers))
		for _, g := range in.Gamers {
			gamer, err := toGamer(g)
			if err != nil {
				return nil, err
			}
			upd.Gamers = append(upd.Gamers, *gamer)
		}
	}

	return s.repo.Update(ctx, id, upd)
}

// Delete removes a game and everything it owns
func (s *GameService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// AddGamer appends a gamer to the game
func (s *GameService) AddGamer(ctx context.Context, gameID string, in GamerInput) (*models.Game, error) {
	gamer, err := toGamer(in)
	if err != nil {
		return nil, err
	}
	return s.repo.AddGamer(ctx, gameID, gamer)
}

// UpdateGamer overwrites a gamer
func (s *GameService) UpdateGamer(ctx context.Context, gamerID string, in GamerInput) (*models.Gamer, error) {
	gamer, err := toGamer(in)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateGamer(ctx, gamerID, gamer)
}

// DeleteGamer removes a gamer
func (s *GameService) DeleteGamer(ctx context.Context, gamerID string) error {
	return s.repo.DeleteGamer(ctx, gamerID)
}

func toStatisticTypes(in []StatisticTypeInput) ([]models.StatisticType, error) {
	if in == nil {
		return nil, nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]models.StatisticType, 0, len(in))
	for _, st := range in {
		name := strings.TrimSpace(st.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: statistic type name is required", ErrInvalidInput)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate statistic type %q", ErrInvalidInput, name)
		}
		seen[name] = true
		out = append(out, models.StatisticType{ID: st.ID, Name: name})
	}
	return out, nil
}

func toGamer(in GamerInput) (*models.Gamer, error) {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return nil, fmt.Errorf("%w: gamer name is required", ErrInvalidInput)
	case strings.TrimSpace(in.Color) == "":
		return nil, fmt.Errorf("%w: gamer color is required", ErrInvalidInput)
	case in.Age < 0:
		return nil, fmt.Errorf("%w: gamer age must not be negative", ErrInvalidInput)
	}

	gamer := &models.Gamer{
		ID:                  in.ID,
		Name:                strings.TrimSpace(in.Name),
		Color:               in.Color,
		Age:                 in.Age,
		Lore:                in.Lore,
		Personality:         in.Personality,
		PhysicalDescription: in.PhysicalDescription,
	}

	if in.Statistics != nil {
		gamer.Statistics = make([]models.Statistic, 0, len(in.Statistics))
		for _, st := range in.Statistics {
			stat := models.Statistic{StatisticTypeID: st.StatisticTypeID, Value: st.Value}
			if st.StatisticTypeID == "" {
				if strings.TrimSpace(st.Name) == "" {
					return nil, fmt.Errorf("%w: statistic needs a statisticTypeId or a name", ErrInvalidInput)
				}
				stat.StatisticType = &models.StatisticType{Name: strings.TrimSpace(st.Name)}
			}
			gamer.Statistics = append(gamer.Statistics, stat)
		}
	}

	if in.Competences != nil {
		gamer.Competences = make([]models.Competence, 0, len(in.Competences))
		for _, c := range in.Competences {
			gamer.Competences = append(gamer.Competences, models.Competence{Name: c.Name, Value: c.Value})
		}
	}

	if in.FightingCompetences != nil {
		gamer.FightingCompetences = make([]models.FightingCompetence, 0, len(in.FightingCompetences))
		for _, c := range in.FightingCompetences {
			gamer.FightingCompetences = append(gamer.FightingCompetences, models.FightingCompetence{Name: c.Name, Value: c.Value})
		}
	}

	return gamer, nil
}
