package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CoachSenderID is the sender id of everything the coach persona writes
const CoachSenderID = "ai-coach"

// Message is one immutable entry of a game's conversation. A nil SenderID
// means the game master wrote it.
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	SenderID   *string   `json:"senderId" gorm:"type:varchar(64)"`
	IsCoaching bool      `json:"isCoaching" gorm:"not null"`
	Date       time.Time `json:"date" gorm:"not null;index:idx_messages_game_date,priority:2"`
	GameID     string    `json:"gameId" gorm:"type:varchar(36);not null;index:idx_messages_game_date,priority:1"`
}

// BeforeCreate assigns the id and a creation timestamp that is strictly
// later than any other issued by this process
func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Date.IsZero() {
		m.Date = nextTimestamp(time.Now())
	}
	return nil
}

// IsFromGameMaster reports whether the game master wrote the message
func (m *Message) IsFromGameMaster() bool {
	return m.SenderID == nil
}

// IsFromCoach reports whether the coach persona wrote the message
func (m *Message) IsFromCoach() bool {
	return m.SenderID != nil && *m.SenderID == CoachSenderID
}

// Sender returns the sender id, empty for the game master
func (m *Message) Sender() string {
	if m.SenderID == nil {
		return ""
	}
	return *m.SenderID
}

var (
	clockMu   sync.Mutex
	lastStamp time.Time
)

// nextTimestamp returns now in UTC at microsecond precision, bumped by one
// microsecond when it would not be after the previous stamp. Messages of one
// turn are created faster than the clock resolution of some databases.
func nextTimestamp(now time.Time) time.Time {
	clockMu.Lock()
	defer clockMu.Unlock()

	ts := now.UTC().Truncate(time.Microsecond)
	if !ts.After(lastStamp) {
		ts = lastStamp.Add(time.Microsecond)
	}
	lastStamp = ts
	return ts
}
