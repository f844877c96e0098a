package store

import (
	"encoding/json"
	"sort"

	"minima/minima/sync/model"
	"minima/minima/utils/logging"

	"go.uber.org/zap"
)

// applySessions reconciles one change event into the session list and returns
// the new list. It is a pure function of its inputs: the feed dispatcher must
// never mutate the list through a captured closure.
func applySessions(sessions []model.Session, ev model.ChangeEvent) []model.Session {
	switch ev.Kind {
	case model.EventInsert:
		row, err := ev.DecodeSession()
		if err != nil {
			logging.AppLogger.Warn("rejecting session row", zap.Error(err))
			return sessions
		}
		// Dedupe against entries already added optimistically by CreateSession.
		for _, s := range sessions {
			if s.ID == row.ID {
				return sessions
			}
		}
		out := make([]model.Session, 0, len(sessions)+1)
		out = append(out, row)
		out = append(out, sessions...)
		return sortSessions(out)

	case model.EventUpdate:
		row, err := ev.DecodeSession()
		if err != nil {
			logging.AppLogger.Warn("rejecting session row", zap.Error(err))
			return sessions
		}
		out := make([]model.Session, len(sessions))
		copy(out, sessions)
		resort := false
		for i, s := range out {
			if s.ID == row.ID {
				resort = !s.UpdatedAt.Equal(row.UpdatedAt)
				out[i] = row
				break
			}
		}
		if resort {
			return sortSessions(out)
		}
		return out

	case model.EventDelete:
		// Delete events carry only the primary key of the removed row.
		var key struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Row, &key); err != nil || key.ID == "" {
			logging.AppLogger.Warn("rejecting session delete without id", zap.Error(err))
			return sessions
		}
		out := make([]model.Session, 0, len(sessions))
		for _, s := range sessions {
			if s.ID != key.ID {
				out = append(out, s)
			}
		}
		return out
	}
	return sessions
}

// sortSessions orders by recency, newest first. Stable so equal timestamps
// keep their arrival order.
func sortSessions(sessions []model.Session) []model.Session {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions
}

// sortMessages orders by creation time ascending, the display order of a
// conversation.
func sortMessages(messages []model.Message) []model.Message {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages
}
