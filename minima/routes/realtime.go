package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"minima/minima/config"
	"minima/minima/middlewares"
	"minima/minima/realtime"
	"minima/minima/sources/psql/dao"
	"minima/minima/utils/logging"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type realtimeFrame struct {
	Action     string          `json:"action"`
	Collection string          `json:"collection"`
	Filter     realtime.Filter `json:"filter"`
}

// RealtimeRoutes serves the change-feed websocket. A connection authenticates
// with its first frame ({"token": ...}) and then subscribes to collections
// with {"action":"subscribe","collection":...,"filter":{...}} frames. Filters
// are authorized against the token identity: a user only ever sees rows they
// own.
func RealtimeRoutes(hub *realtime.Hub, messageDAO *dao.MessageDAO, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := r.Context()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "unsupported data")
			return
		}
		var hello struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(data, &hello); err != nil {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid json"}`))
			return
		}
		userID, ok := middlewares.ParseUserID(cfg, hello.Token)
		if !ok {
			conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid token"}`))
			conn.Close(websocket.StatusPolicyViolation, "invalid token")
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"status":"subscribed"}`)); err != nil {
			return
		}

		client := hub.Register()
		defer hub.Drop(client)

		// Writer: hub events out to the socket.
		writeCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			for ev := range client.Events() {
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader: subscription management frames.
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			var frame realtimeFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				conn.Write(ctx, websocket.MessageText, []byte(`{"error":"invalid json"}`))
				continue
			}
			switch frame.Action {
			case "subscribe":
				if !authorizeFilter(ctx, messageDAO, userID, frame.Collection, frame.Filter) {
					conn.Write(ctx, websocket.MessageText, []byte(`{"error":"forbidden filter"}`))
					continue
				}
				client.Watch(frame.Collection, frame.Filter)
			case "unsubscribe":
				client.Unwatch(frame.Collection)
			default:
				logging.AppLogger.Warn("unknown realtime action", zap.String("action", frame.Action))
			}
		}
	})
	return r
}

func authorizeFilter(ctx context.Context, messageDAO *dao.MessageDAO, userID uuid.UUID, collection string, f realtime.Filter) bool {
	switch collection {
	case "chat_sessions":
		return f.Column == "user_id" && f.Value == userID.String()
	case "messages":
		if f.Column != "chat_session_id" {
			return false
		}
		sessionID, err := uuid.Parse(f.Value)
		if err != nil {
			return false
		}
		return messageDAO.Owns(ctx, userID, sessionID)
	default:
		return false
	}
}
