package repository

import (
	"context"
	"errors"
	"fmt"

	convmodels "tabletop-chat/backend/conversation/models"
	"tabletop-chat/backend/game/models"

	"gorm.io/gorm"
)

// Lookup errors
var (
	ErrGameNotFound         = errors.New("game not found")
	ErrGamerNotFound        = errors.New("gamer not found")
	ErrUnknownStatisticType = errors.New("unknown statistic type")
)

// GameUpdate lists the parts of a game to change. A nil field is left
// untouched; a non-nil slice replaces the whole set.
type GameUpdate struct {
	Name           *string
	Lore           *string
	StatisticTypes []models.StatisticType
	Gamers         []models.Gamer
}

// GameRepository persists games and their gamers
type GameRepository interface {
	FindAll(ctx context.Context) ([]models.Game, error)
	FindByIDWithDetails(ctx context.Context, id string) (*models.Game, error)
	Create(ctx context.Context, game *models.Game) error
	Update(ctx context.Context, id string, upd GameUpdate) (*models.Game, error)
	Delete(ctx context.Context, id string) error
	AddGamer(ctx context.Context, gameID string, gamer *models.Gamer) (*models.Game, error)
	FindGamer(ctx context.Context, gamerID string) (*models.Gamer, error)
	UpdateGamer(ctx context.Context, gamerID string, gamer *models.Gamer) (*models.Gamer, error)
	DeleteGamer(ctx context.Context, gamerID string) error
}

// GormGameRepository is the gorm implementation of GameRepository
type GormGameRepository struct {
	db *gorm.DB
}

// NewGormGameRepository creates a repository over db
func NewGormGameRepository(db *gorm.DB) *GormGameRepository {
	return &GormGameRepository{db: db}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("StatisticTypes", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("statistic_types.name ASC")
		}).
		Preload("Gamers", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("gamers.position ASC").Order("gamers.created_at ASC")
		}).
		Preload("Gamers.Statistics").
		Preload("Gamers.Statistics.StatisticType").
		Preload("Gamers.Competences").
		Preload("Gamers.FightingCompetences")
}

// FindAll returns every game with its details, oldest first
func (r *GormGameRepository) FindAll(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	err := withDetails(r.db.WithContext(ctx)).Order("games.created_at ASC").Find(&games).Error
	return games, err
}

// FindByIDWithDetails returns one game with gamers in game order, their
// statistics, competences and fighting competences
func (r *GormGameRepository) FindByIDWithDetails(ctx context.Context, id string) (*models.Game, error) {
	return findGame(withDetails(r.db.WithContext(ctx)), id)
}

func findGame(db *gorm.DB, id string) (*models.Game, error) {
	var game models.Game
	err := db.Where("id = ?", id).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// Create inserts the game with its statistic types, then its gamers
func (r *GormGameRepository) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gamers := game.Gamers
		game.Gamers = nil
		defer func() { game.Gamers = gamers }()

		if err := tx.Create(game).Error; err != nil {
			return fmt.Errorf("create game: %w", err)
		}

		for i := range gamers {
			gamers[i].GameID = game.ID
			gamers[i].Position = i
			if err := createGamer(tx, game.StatisticTypes, &gamers[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update applies upd in one transaction and returns the reloaded game
func (r *GormGameRepository) Update(ctx context.Context, id string, upd GameUpdate) (*models.Game, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := findGame(tx.Preload("StatisticTypes").Preload("Gamers"), id)
		if err != nil {
			return err
		}

		fields := map[string]any{}
		if upd.Name != nil {
			fields["name"] = *upd.Name
		}
		if upd.Lore != nil {
			fields["lore"] = *upd.Lore
		}
		if len(fields) > 0 {
			if err := tx.Model(&models.Game{ID: game.ID}).Updates(fields).Error; err != nil {
				return fmt.Errorf("update game: %w", err)
			}
		}

		types := game.StatisticTypes
		if upd.StatisticTypes != nil {
			if types, err = replaceStatisticTypes(tx, game, upd.StatisticTypes); err != nil {
				return err
			}
		}

		if upd.Gamers != nil {
			if err := replaceGamers(tx, game, types, upd.Gamers); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByIDWithDetails(ctx, id)
}

func replaceStatisticTypes(tx *gorm.DB, game *models.Game, wanted []models.StatisticType) ([]models.StatisticType, error) {
	existing := make(map[string]bool, len(game.StatisticTypes))
	for _, st := range game.StatisticTypes {
		existing[st.ID] = true
	}

	kept := make(map[string]bool, len(wanted))
	result := make([]models.StatisticType, 0, len(wanted))
	for _, st := range wanted {
		st.GameID = game.ID
		if st.ID != "" && existing[st.ID] {
			if err := tx.Model(&models.StatisticType{}).Where("id = ?", st.ID).Update("name", st.Name).Error; err != nil {
				return nil, fmt.Errorf("update statistic type: %w", err)
			}
		} else {
			st.ID = ""
			if err := tx.Create(&st).Error; err != nil {
				return nil, fmt.Errorf("create statistic type: %w", err)
			}
		}
		kept[st.ID] = true
		result = append(result, st)
	}

	var removed []string
	for id := range existing {
		if !kept[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		if err := tx.Where("statistic_type_id IN ?", removed).Delete(&models.Statistic{}).Error; err != nil {
			return nil, fmt.Errorf("delete statistics: %w", err)
		}
		if err := tx.Where("id IN ?", removed).Delete(&models.StatisticType{}).Error; err != nil {
			return nil, fmt.Errorf("delete statistic types: %w", err)
		}
	}
	return result, nil
}

func replaceGamers(tx *gorm.DB, game *models.Game, types []models.StatisticType, wanted []models.Gamer) error {
	existing := make(map[string]bool, len(game.Gamers))
	for _, g := range game.Gamers {
		existing[g.ID] = true
	}

	kept := make(map[string]bool, len(wanted))
	for i := range wanted {
		g := wanted[i]
		g.GameID = game.ID
		g.Position = i
		if g.ID != "" && existing[g.ID] {
			if err := updateGamer(tx, types, &g); err != nil {
				return err
			}
		} else {
			g.ID = ""
			if err := createGamer(tx, types, &g); err != nil {
				return err
			}
		}
		kept[g.ID] = true
	}

	for id := range existing {
		if !kept[id] {
			if err := deleteGamer(tx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes the game, its gamers, statistic types and messages
func (r *GormGameRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findGame(tx, id); err != nil {
			return err
		}

		gamerIDs := tx.Model(&models.Gamer{}).Select("id").Where("game_id = ?", id)
		if err := deleteGamerChildren(tx, gamerIDs); err != nil {
			return err
		}

		steps := []struct {
			what  string
			model any
			where string
		}{
			{"gamers", &models.Gamer{}, "game_id = ?"},
			{"statistic types", &models.StatisticType{}, "game_id = ?"},
			{"messages", &convmodels.Message{}, "game_id = ?"},
			{"game", &models.Game{}, "id = ?"},
		}
		for _, s := range steps {
			if err := tx.Where(s.where, id).Delete(s.model).Error; err != nil {
				return fmt.Errorf("delete %s: %w", s.what, err)
			}
		}
		return nil
	})
}

// AddGamer appends gamer after the game's current gamers
func (r *GormGameRepository) AddGamer(ctx context.Context, gameID string, gamer *models.Gamer) (*models.Game, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game, err := findGame(tx.Preload("StatisticTypes"), gameID)
		if err != nil {
			return err
		}

		var next int
		if err := tx.Model(&models.Gamer{}).
			Select("COALESCE(MAX(position) + 1, 0)").
			Where("game_id = ?", gameID).
			Scan(&next).Error; err != nil {
			return fmt.Errorf("next gamer position: %w", err)
		}

		gamer.ID = ""
		gamer.GameID = gameID
		gamer.Position = next
		return createGamer(tx, game.StatisticTypes, gamer)
	})
	if err != nil {
		return nil, err
	}
	return r.FindByIDWithDetails(ctx, gameID)
}

// FindGamer returns one gamer with statistics and competences
func (r *GormGameRepository) FindGamer(ctx context.Context, gamerID string) (*models.Gamer, error) {
	var gamer models.Gamer
	err := r.db.WithContext(ctx).
		Preload("Statistics").
		Preload("Statistics.StatisticType").
		Preload("Competences").
		Preload("FightingCompetences").
		Where("id = ?", gamerID).
		First(&gamer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGamerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gamer, nil
}

// UpdateGamer overwrites the gamer's fields. Nil child slices are left
// untouched, others replace the existing rows.
func (r *GormGameRepository) UpdateGamer(ctx context.Context, gamerID string, gamer *models.Gamer) (*models.Gamer, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Gamer
		err := tx.Where("id = ?", gamerID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGamerNotFound
		}
		if err != nil {
			return err
		}

		var types []models.StatisticType
		if err := tx.Where("game_id = ?", current.GameID).Find(&types).Error; err != nil {
			return err
		}

		gamer.ID = gamerID
		gamer.GameID = current.GameID
		gamer.Position = current.Position
		return updateGamer(tx, types, gamer)
	})
	if err != nil {
		return nil, err
	}
	return r.FindGamer(ctx, gamerID)
}

// DeleteGamer removes a gamer and its statistics and competences. Messages
// the gamer wrote stay in the history.
func (r *GormGameRepository) DeleteGamer(ctx context.Context, gamerID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Gamer{}).Where("id = ?", gamerID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrGamerNotFound
		}
		return deleteGamer(tx, gamerID)
	})
}

func createGamer(tx *gorm.DB, types []models.StatisticType, gamer *models.Gamer) error {
	stats, err := resolveStatistics(types, gamer.Statistics)
	if err != nil {
		return err
	}
	gamer.Statistics = stats

	if err := tx.Create(gamer).Error; err != nil {
		return fmt.Errorf("create gamer: %w", err)
	}
	return nil
}

func updateGamer(tx *gorm.DB, types []models.StatisticType, gamer *models.Gamer) error {
	if err := tx.Model(&models.Gamer{}).Where("id = ?", gamer.ID).
		Select("position", "name", "color", "age", "physical_description", "personality", "lore").
		Updates(map[string]any{
			"position":             gamer.Position,
			"name":                 gamer.Name,
			"color":                gamer.Color,
			"age":                  gamer.Age,
			"physical_description": gamer.PhysicalDescription,
			"personality":          gamer.Personality,
			"lore":                 gamer.Lore,
		}).Error; err != nil {
		return fmt.Errorf("update gamer: %w", err)
	}

	if gamer.Statistics != nil {
		stats, err := resolveStatistics(types, gamer.Statistics)
		if err != nil {
			return err
		}
		if err := tx.Where("gamer_id = ?", gamer.ID).Delete(&models.Statistic{}).Error; err != nil {
			return fmt.Errorf("delete statistics: %w", err)
		}
		for i := range stats {
			stats[i].ID = ""
			stats[i].GamerID = gamer.ID
		}
		if len(stats) > 0 {
			if err := tx.Create(&stats).Error; err != nil {
				return fmt.Errorf("create statistics: %w", err)
			}
		}
		gamer.Statistics = stats
	}

	if gamer.Competences != nil {
		if err := tx.Where("gamer_id = ?", gamer.ID).Delete(&models.Competence{}).Error; err != nil {
			return fmt.Errorf("delete competences: %w", err)
		}
		for i := range gamer.Competences {
			gamer.Competences[i].ID = ""
			gamer.Competences[i].GamerID = gamer.ID
		}
		if len(gamer.Competences) > 0 {
			if err := tx.Create(&gamer.Competences).Error; err != nil {
				return fmt.Errorf("create competences: %w", err)
			}
		}
	}

	if gamer.FightingCompetences != nil {
		if err := tx.Where("gamer_id = ?", gamer.ID).Delete(&models.FightingCompetence{}).Error; err != nil {
			return fmt.Errorf("delete fighting competences: %w", err)
		}
		for i := range gamer.FightingCompetences {
			gamer.FightingCompetences[i].ID = ""
			gamer.FightingCompetences[i].GamerID = gamer.ID
		}
		if len(gamer.FightingCompetences) > 0 {
			if err := tx.Create(&gamer.FightingCompetences).Error; err != nil {
				return fmt.Errorf("create fighting competences: %w", err)
			}
		}
	}
	return nil
}

func deleteGamer(tx *gorm.DB, gamerID string) error {
	if err := deleteGamerChildren(tx, []string{gamerID}); err != nil {
		return err
	}
	if err := tx.Where("id = ?", gamerID).Delete(&models.Gamer{}).Error; err != nil {
		return fmt.Errorf("delete gamer: %w", err)
	}
	return nil
}

// deleteGamerChildren accepts ids as a slice or a subquery
func deleteGamerChildren(tx *gorm.DB, gamerIDs any) error {
	for what, model := range map[string]any{
		"statistics":           &models.Statistic{},
		"competences":          &models.Competence{},
		"fighting competences": &models.FightingCompetence{},
	} {
		if err := tx.Where("gamer_id IN (?)", gamerIDs).Delete(model).Error; err != nil {
			return fmt.Errorf("delete %s: %w", what, err)
		}
	}
	return nil
}

// resolveStatistics binds each statistic to one of the game's types, either
// by StatisticTypeID or by the name carried in StatisticType
func resolveStatistics(types []models.StatisticType, stats []models.Statistic) ([]models.Statistic, error) {
	if stats == nil {
		return nil, nil
	}

	byID := make(map[string]bool, len(types))
	byName := make(map[string]string, len(types))
	for _, st := range types {
		byID[st.ID] = true
		byName[st.Name] = st.ID
	}

	out := make([]models.Statistic, 0, len(stats))
	for _, s := range stats {
		switch {
		case s.StatisticTypeID != "" && byID[s.StatisticTypeID]:
		case s.StatisticType != nil && byName[s.StatisticType.Name] != "":
			s.StatisticTypeID = byName[s.StatisticType.Name]
		default:
			name := s.StatisticTypeID
			if s.StatisticType != nil {
				name = s.StatisticType.Name
			}
			return nil, fmt.Errorf("%w: %q", ErrUnknownStatisticType, name)
		}
		s.StatisticType = nil
		s.ID = ""
		out = append(out, s)
	}
	return out, nil
}
