package ai

import (
	"fmt"
	"strings"

	cmodels "tabletop-chat/backend/conversation/models"
	"tabletop-chat/backend/conversation/window"
	gmodels "tabletop-chat/backend/game/models"
)

// PlayerRequest asks one gamer persona to react to the last beat
type PlayerRequest struct {
	Game    *gmodels.Game
	Gamer   *gmodels.Gamer
	Window  window.Window
	Trigger cmodels.Message
}

// CoachRequest asks the coach persona to react to a beat or to answer the
// game master on the coaching channel
type CoachRequest struct {
	Game    *gmodels.Game
	Gamers  []gmodels.Gamer
	Window  window.Window
	Trigger cmodels.Message
}

// Prompter renders generation requests into prompts
type Prompter struct {
	// RenderSize is how many of the newest window messages are shown
	RenderSize int
}

// NewPrompter returns a prompter showing renderSize messages of history
func NewPrompter(renderSize int) *Prompter {
	if renderSize <= 0 {
		renderSize = window.DefaultRenderSize
	}
	return &Prompter{RenderSize: renderSize}
}

// PlayerPrompt asks the gamer to answer in character, or to abstain
func (p *Prompter) PlayerPrompt(req PlayerRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a player character in the tabletop role-playing game %q.\n", req.Gamer.Name, req.Game.Name)
	writeLore(&b, req.Game)
	b.WriteString("\nYour character sheet:\n")
	writeSheet(&b, req.Game, req.Gamer)

	p.writeHistory(&b, req.Game, req.Window)
	writeTrigger(&b, req.Game, req.Trigger)

	fmt.Fprintf(&b, "\nReply as %s with one short in-character message, without any name prefix. ", req.Gamer.Name)
	fmt.Fprintf(&b, "If %s would not react to this, answer exactly %s and nothing else.\n", req.Gamer.Name, NoReaction)
	return b.String()
}

// CoachReactionPrompt asks the coach to comment on the beat and on how the
// gamers answered it
func (p *Prompter) CoachReactionPrompt(req CoachRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the coach of the game master running the tabletop role-playing game %q.\n", req.Game.Name)
	b.WriteString("You never speak to the players. You give the game master short, practical advice on pacing, tension and how to use each character.\n")
	writeLore(&b, req.Game)
	writeParty(&b, req.Game, req.Gamers)

	p.writeHistory(&b, req.Game, req.Window)
	writeTrigger(&b, req.Game, req.Trigger)

	b.WriteString("\nGive the game master one short piece of advice about what just happened. ")
	fmt.Fprintf(&b, "If there is nothing useful to say, answer exactly %s and nothing else.\n", NoReaction)
	return b.String()
}

// CoachDiscussionPrompt asks the coach to answer the game master directly
func (p *Prompter) CoachDiscussionPrompt(req CoachRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the coach of the game master running the tabletop role-playing game %q.\n", req.Game.Name)
	b.WriteString("The game master is talking to you privately. The players cannot read this.\n")
	writeLore(&b, req.Game)
	writeParty(&b, req.Game, req.Gamers)

	p.writeHistory(&b, req.Game, req.Window)
	writeTrigger(&b, req.Game, req.Trigger)

	b.WriteString("\nAnswer the game master concisely. ")
	fmt.Fprintf(&b, "If no answer is needed, answer exactly %s and nothing else.\n", NoReaction)
	return b.String()
}

func (p *Prompter) writeHistory(b *strings.Builder, game *gmodels.Game, w window.Window) {
	tail := w.Tail(p.RenderSize)
	if len(tail) == 0 {
		return
	}
	b.WriteString("\nRecent conversation:\n")
	for _, m := range tail {
		fmt.Fprintf(b, "%s: %s\n", AuthorLabel(game, m), m.Content)
	}
}

func writeTrigger(b *strings.Builder, game *gmodels.Game, m cmodels.Message) {
	fmt.Fprintf(b, "\nLast message, from %s:\n%s\n", AuthorLabel(game, m), m.Content)
}

func writeLore(b *strings.Builder, game *gmodels.Game) {
	if strings.TrimSpace(game.Lore) == "" {
		return
	}
	fmt.Fprintf(b, "\nWorld lore:\n%s\n", game.Lore)
}

func writeParty(b *strings.Builder, game *gmodels.Game, gamers []gmodels.Gamer) {
	if len(gamers) == 0 {
		return
	}
	b.WriteString("\nThe party:\n")
	for i := range gamers {
		fmt.Fprintf(b, "- %s\n", gamers[i].Name)
		writeSheet(b, game, &gamers[i])
	}
}

func writeSheet(b *strings.Builder, game *gmodels.Game, g *gmodels.Gamer) {
	field := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(b, "  %s: %s\n", label, value)
		}
	}

	fmt.Fprintf(b, "  Age: %d\n", g.Age)
	field("Personality", g.Personality)
	field("Appearance", g.PhysicalDescription)
	field("Background", g.Lore)

	if len(g.Statistics) > 0 {
		parts := make([]string, 0, len(g.Statistics))
		for _, s := range g.Statistics {
			parts = append(parts, fmt.Sprintf("%s %d", statisticName(game, s), s.Value))
		}
		field("Statistics", strings.Join(parts, ", "))
	}
	if len(g.Competences) > 0 {
		parts := make([]string, 0, len(g.Competences))
		for _, c := range g.Competences {
			parts = append(parts, fmt.Sprintf("%s %d", c.Name, c.Value))
		}
		field("Competences", strings.Join(parts, ", "))
	}
	if len(g.FightingCompetences) > 0 {
		parts := make([]string, 0, len(g.FightingCompetences))
		for _, c := range g.FightingCompetences {
			parts = append(parts, fmt.Sprintf("%s %d", c.Name, c.Value))
		}
		field("Fighting competences", strings.Join(parts, ", "))
	}
}

func statisticName(game *gmodels.Game, s gmodels.Statistic) string {
	if s.StatisticType != nil {
		return s.StatisticType.Name
	}
	for _, st := range game.StatisticTypes {
		if st.ID == s.StatisticTypeID {
			return st.Name
		}
	}
	return "Unknown"
}

// AuthorLabel names the author of a message the way prompts show it
func AuthorLabel(game *gmodels.Game, m cmodels.Message) string {
	switch {
	case m.IsFromGameMaster():
		return "Game master"
	case m.IsFromCoach():
		return "Coach"
	}
	if g, ok := game.FindGamer(m.Sender()); ok {
		return g.Name
	}
	return "Former player"
}
