package store

import (
	"encoding/json"
	"testing"
	"time"

	"minima/minima/sync/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionAt(id string, updated time.Time) model.Session {
	return model.Session{
		ID:        id,
		UserID:    "u1",
		Title:     "t-" + id,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func ids(sessions []model.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestApplySessionsKeepsRecencyOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var list []model.Session
	list = applySessions(list, insertEvent(sessionAt("a", base)))
	list = applySessions(list, insertEvent(sessionAt("b", base.Add(time.Minute))))
	list = applySessions(list, insertEvent(sessionAt("c", base.Add(2*time.Minute))))
	assert.Equal(t, []string{"c", "b", "a"}, ids(list))

	// Updating the oldest bumps it to the top.
	bumped := sessionAt("a", base.Add(time.Hour))
	list = applySessions(list, updateEvent(bumped))
	assert.Equal(t, []string{"a", "c", "b"}, ids(list))
}

func TestApplySessionsInsertIsIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := sessionAt("a", base)

	list := applySessions(nil, insertEvent(sess))
	list = applySessions(list, insertEvent(sess))
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

func TestApplySessionsUpdateWithoutTimestampChangeKeepsOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := applySessions(nil, insertEvent(sessionAt("a", base)))
	list = applySessions(list, insertEvent(sessionAt("b", base.Add(time.Minute))))

	renamed := sessionAt("a", base)
	renamed.Title = "renamed"
	list = applySessions(list, updateEvent(renamed))
	assert.Equal(t, []string{"b", "a"}, ids(list))
	assert.Equal(t, "renamed", list[1].Title)
}

func TestApplySessionsDelete(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := applySessions(nil, insertEvent(sessionAt("a", base)))
	list = applySessions(list, insertEvent(sessionAt("b", base.Add(time.Minute))))

	list = applySessions(list, deleteEvent("b"))
	assert.Equal(t, []string{"a"}, ids(list))

	// Deleting something unknown is a no-op.
	list = applySessions(list, deleteEvent("zzz"))
	assert.Equal(t, []string{"a"}, ids(list))
}

func TestApplySessionsRejectsRowWithoutID(t *testing.T) {
	raw, err := json.Marshal(map[string]string{"title": "no id here"})
	require.NoError(t, err)
	ev := model.ChangeEvent{Kind: model.EventInsert, Collection: model.SessionsCollection, Row: raw}

	list := applySessions(nil, ev)
	assert.Empty(t, list)
}

func TestSortMessagesAscending(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []model.Message{
		{ID: "m2", CreatedAt: base.Add(time.Second)},
		{ID: "m1", CreatedAt: base},
		{ID: "m3", CreatedAt: base.Add(2 * time.Second)},
	}
	sorted := sortMessages(msgs)
	assert.Equal(t, "m1", sorted[0].ID)
	assert.Equal(t, "m3", sorted[2].ID)
}
