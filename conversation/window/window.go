// Package window keeps the bounded, oldest-first slices of a conversation
// that ground persona generation.
package window

import (
	"context"
	"fmt"

	"tabletop-chat/backend/conversation/models"
)

// Default bounds of a window and of its rendered tail
const (
	DefaultSize       = 20
	DefaultRenderSize = 12
)

// RecentFinder returns the newest messages of a game, newest first
type RecentFinder interface {
	FindRecentByGame(ctx context.Context, gameID string, includeCoachChannel bool, limit int) ([]models.Message, error)
}

// Window is an immutable, oldest-first run of at most Size messages.
// Append returns a new window and never alters the receiver.
type Window struct {
	size     int
	coaching bool
	messages []models.Message
}

// New builds a window from oldest-first messages, keeping the newest size
func New(size int, includeCoachChannel bool, oldestFirst ...models.Message) Window {
	if size <= 0 {
		size = DefaultSize
	}
	w := Window{size: size, coaching: includeCoachChannel}
	w.messages = trim(append([]models.Message(nil), oldestFirst...), size)
	return w
}

// FromNewestFirst builds a window from a store result, reversing it
func FromNewestFirst(size int, includeCoachChannel bool, newestFirst []models.Message) Window {
	oldestFirst := make([]models.Message, len(newestFirst))
	for i, m := range newestFirst {
		oldestFirst[len(newestFirst)-1-i] = m
	}
	return New(size, includeCoachChannel, oldestFirst...)
}

// Fetch loads the window of a game from the store. The coach window sees
// both channels, the player window only the player channel.
func Fetch(ctx context.Context, store RecentFinder, gameID string, includeCoachChannel bool, size int) (Window, error) {
	if size <= 0 {
		size = DefaultSize
	}
	recent, err := store.FindRecentByGame(ctx, gameID, includeCoachChannel, size)
	if err != nil {
		return Window{}, fmt.Errorf("load recent messages: %w", err)
	}
	return FromNewestFirst(size, includeCoachChannel, recent), nil
}

// Visible reports whether m belongs in this window
func (w Window) Visible(m models.Message) bool {
	return w.coaching || !m.IsCoaching
}

// Append returns the window with m added at the end and trimmed from the
// front. Messages already present, or not visible in this window, are ignored.
func (w Window) Append(m models.Message) Window {
	if !w.Visible(m) || w.Contains(m.ID) {
		return w
	}
	next := make([]models.Message, 0, len(w.messages)+1)
	next = append(next, w.messages...)
	next = append(next, m)
	w.messages = trim(next, w.Size())
	return w
}

// Contains reports whether a message with that id is in the window
func (w Window) Contains(id string) bool {
	for _, m := range w.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Messages returns a copy of the window, oldest first
func (w Window) Messages() []models.Message {
	return append([]models.Message(nil), w.messages...)
}

// Tail returns a copy of the last n messages, oldest first
func (w Window) Tail(n int) []models.Message {
	if n <= 0 || n >= len(w.messages) {
		return w.Messages()
	}
	return append([]models.Message(nil), w.messages[len(w.messages)-n:]...)
}

// Len returns the number of messages
func (w Window) Len() int {
	return len(w.messages)
}

// Size returns the bound of the window
func (w Window) Size() int {
	if w.size <= 0 {
		return DefaultSize
	}
	return w.size
}

// IncludesCoachChannel reports whether this is a coach window
func (w Window) IncludesCoachChannel() bool {
	return w.coaching
}

func trim(messages []models.Message, size int) []models.Message {
	if len(messages) <= size {
		return messages
	}
	return messages[len(messages)-size:]
}
