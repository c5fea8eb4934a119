package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTimestampIsStrictlyIncreasing(t *testing.T) {
	frozen := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

	first := nextTimestamp(frozen)
	second := nextTimestamp(frozen)
	third := nextTimestamp(frozen.Add(-time.Hour))

	assert.True(t, second.After(first))
	assert.True(t, third.After(second))
	assert.Equal(t, time.Microsecond, second.Sub(first))
}

func TestBeforeCreateFillsIDAndDate(t *testing.T) {
	m := &Message{Content: "A door creaks open.", GameID: "g-1"}
	require.NoError(t, m.BeforeCreate(nil))

	assert.NotEmpty(t, m.ID)
	assert.False(t, m.Date.IsZero())
	assert.Equal(t, time.UTC, m.Date.Location())
	assert.True(t, m.IsFromGameMaster())
}

func TestSenderHelpers(t *testing.T) {
	coach := CoachSenderID
	m := &Message{SenderID: &coach}
	assert.True(t, m.IsFromCoach())
	assert.False(t, m.IsFromGameMaster())
	assert.Equal(t, CoachSenderID, m.Sender())
}
