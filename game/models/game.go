package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Game is a tabletop session: its lore, the gamers the model plays and the
// statistics those gamers carry
type Game struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name           string          `json:"name" gorm:"not null"`
	Lore           string          `json:"lore" gorm:"type:text"`
	Gamers         []Gamer         `json:"gamers" gorm:"foreignKey:GameID"`
	StatisticTypes []StatisticType `json:"statisticTypes" gorm:"foreignKey:GameID"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// BeforeCreate assigns a uuid when none is set
func (g *Game) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// FindGamer returns the gamer with the given id, if it belongs to the game
func (g *Game) FindGamer(id string) (*Gamer, bool) {
	for i := range g.Gamers {
		if g.Gamers[i].ID == id {
			return &g.Gamers[i], true
		}
	}
	return nil, false
}

// StatisticType names a statistic every gamer of the game can carry
type StatisticType struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name   string `json:"name" gorm:"not null"`
	GameID string `json:"-" gorm:"type:varchar(36);not null;index"`
}

// BeforeCreate assigns a uuid when none is set
func (s *StatisticType) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Gamer is a non-player persona of a game
type Gamer struct {
	ID                  string               `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GameID              string               `json:"-" gorm:"type:varchar(36);not null;index"`
	Position            int                  `json:"position" gorm:"not null;default:0"`
	Name                string               `json:"name" gorm:"not null"`
	Color               string               `json:"color"`
	Age                 int                  `json:"age"`
	PhysicalDescription string               `json:"physicalDescription" gorm:"type:text"`
	Personality         string               `json:"personality" gorm:"type:text"`
	Lore                string               `json:"lore" gorm:"type:text"`
	Statistics          []Statistic          `json:"statistics" gorm:"foreignKey:GamerID"`
	Competences         []Competence         `json:"competences" gorm:"foreignKey:GamerID"`
	FightingCompetences []FightingCompetence `json:"fightingCompetences" gorm:"foreignKey:GamerID"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// BeforeCreate assigns a uuid when none is set
func (g *Gamer) BeforeCreate(*gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// Statistic is the value a gamer has for one of the game's statistic types.
// StatisticType is only populated on reads.
type Statistic struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GamerID         string         `json:"-" gorm:"type:varchar(36);not null;index"`
	StatisticTypeID string         `json:"statisticTypeId" gorm:"type:varchar(36);not null;index"`
	StatisticType   *StatisticType `json:"statisticType,omitempty" gorm:"foreignKey:StatisticTypeID"`
	Value           int            `json:"value"`
}

// BeforeCreate assigns a uuid when none is set
func (s *Statistic) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Competence is a general skill of a gamer
type Competence struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GamerID string `json:"-" gorm:"type:varchar(36);not null;index"`
	Name    string `json:"name" gorm:"not null"`
	Value   int    `json:"value"`
}

// BeforeCreate assigns a uuid when none is set
func (c *Competence) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// FightingCompetence is a combat skill of a gamer
type FightingCompetence struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GamerID string `json:"-" gorm:"type:varchar(36);not null;index"`
	Name    string `json:"name" gorm:"not null"`
	Value   int    `json:"value"`
}

// BeforeCreate assigns a uuid when none is set
func (c *FightingCompetence) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
