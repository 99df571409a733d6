package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvp-match-system/models"
)

func TestEventCursorReplay(t *testing.T) {
	db := testDB(t)
	s := NewEventService(db)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Emit(db, "match-1", "user-a", fmt.Sprintf("event_%d", i), models.JSONMap{"n": i}))
	}
	require.NoError(t, s.Emit(db, "match-2", "user-b", "other_match", nil))

	// page through the log with the cursor
	var seen []string
	cursor := uint64(0)
	for {
		events, lastID, err := s.FetchAfter("match-1", cursor, 2)
		require.NoError(t, err)
		if len(events) == 0 {
			assert.Equal(t, cursor, lastID)
			break
		}
		for _, ev := range events {
			assert.Greater(t, ev.ID, cursor)
			seen = append(seen, ev.Type)
		}
		cursor = lastID
	}
	assert.Equal(t, []string{"event_0", "event_1", "event_2", "event_3", "event_4"}, seen)

	// replaying from the start yields the same sequence
	events, _, err := s.FetchAfter("match-1", 0, 100)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, seen[i], ev.Type)
	}

	assert.Equal(t, cursor, s.LastEventID(db, "match-1"))
	assert.Zero(t, s.LastEventID(db, "no-such-match"))
}

func TestEventLimitClamp(t *testing.T) {
	assert.Equal(t, defaultEventLimit, clampLimit(0))
	assert.Equal(t, defaultEventLimit, clampLimit(-3))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, maxEventLimit, clampLimit(10000))
}

func TestEmitDrafts(t *testing.T) {
	db := testDB(t)
	s := NewEventService(db)

	drafts := []EventDraft{
		{UserID: "user-a", Type: "first", Payload: models.JSONMap{"k": "v"}},
		{Type: "second"},
	}
	require.NoError(t, s.EmitDrafts(db, "match-1", drafts))

	events, lastID, err := s.FetchAfter("match-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Type)
	assert.Equal(t, "user-a", events[0].UserID)
	assert.Equal(t, "second", events[1].Type)
	assert.Equal(t, events[1].ID, lastID)
}
