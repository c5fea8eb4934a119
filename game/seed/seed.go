// Package seed imports games described in YAML fixtures.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"tabletop-chat/backend/game/models"
	"tabletop-chat/backend/game/service"

	"gopkg.in/yaml.v3"
)

// File is the layout of a fixture
type File struct {
	Name           string   `yaml:"name"`
	Lore           string   `yaml:"lore"`
	StatisticTypes []string `yaml:"statisticTypes"`
	Gamers         []Gamer  `yaml:"gamers"`
}

// Gamer is one gamer of a fixture; statistics are keyed by type name
type Gamer struct {
	Name                string         `yaml:"name"`
	Color               string         `yaml:"color"`
	Age                 int            `yaml:"age"`
	Lore                string         `yaml:"lore"`
	Personality         string         `yaml:"personality"`
	PhysicalDescription string         `yaml:"physicalDescription"`
	Statistics          map[string]int `yaml:"statistics"`
	Competences         map[string]int `yaml:"competences"`
	FightingCompetences map[string]int `yaml:"fightingCompetences"`
}

// Creator stores a new game
type Creator interface {
	Create(ctx context.Context, in service.CreateGameInput) (*models.Game, error)
}

// Parse decodes a fixture, rejecting unknown fields
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("seed file has no game name")
	}
	return &f, nil
}

// Input converts the fixture to a create request. Map entries are sorted by
// name so imports are reproducible.
func (f *File) Input() service.CreateGameInput {
	in := service.CreateGameInput{Name: f.Name, Lore: f.Lore}

	for _, st := range f.StatisticTypes {
		in.StatisticTypes = append(in.StatisticTypes, service.StatisticTypeInput{Name: st})
	}

	for _, g := range f.Gamers {
		gamer := service.GamerInput{
			Name:                g.Name,
			Color:               g.Color,
			Age:                 g.Age,
			Lore:                g.Lore,
			Personality:         g.Personality,
			PhysicalDescription: g.PhysicalDescription,
		}
		for _, name := range sortedKeys(g.Statistics) {
			gamer.Statistics = append(gamer.Statistics, service.StatisticInput{Name: name, Value: g.Statistics[name]})
		}
		for _, name := range sortedKeys(g.Competences) {
			gamer.Competences = append(gamer.Competences, service.NamedValueInput{Name: name, Value: g.Competences[name]})
		}
		for _, name := range sortedKeys(g.FightingCompetences) {
			gamer.FightingCompetences = append(gamer.FightingCompetences, service.NamedValueInput{Name: name, Value: g.FightingCompetences[name]})
		}
		in.Gamers = append(in.Gamers, gamer)
	}
	return in
}

// Import reads the fixture at path and creates its game
func Import(ctx context.Context, creator Creator, path string) (*models.Game, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, err
	}
	return creator.Create(ctx, f.Input())
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
