package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"minima/minima/config"
	"minima/minima/controllers"
	"minima/minima/middlewares"
	"minima/minima/sources/psql/dao"
	"minima/minima/utils/types"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeDAOError(w http.ResponseWriter, err error) {
	if errors.Is(err, dao.ErrForbidden) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func SessionRoutes(ctrl *controllers.SessionController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	// GET /sessions : list the caller's chat sessions, most recent first
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middlewares.UserID(r.Context())
		sessions, err := ctrl.ListSessions(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(sessions)
	})
	// POST /sessions : create a session
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		userID, _ := middlewares.UserID(r.Context())
		session, err := ctrl.CreateSession(r.Context(), userID, req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(session)
	})
	// PATCH /sessions/{session_id} : rename
	r.Patch("/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		var req types.UpdateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		userID, _ := middlewares.UserID(r.Context())
		session, err := ctrl.UpdateSession(r.Context(), userID, sessionID, req)
		if err != nil {
			writeDAOError(w, err)
			return
		}
		json.NewEncoder(w).Encode(session)
	})
	// DELETE /sessions/{session_id} : delete one session (thread)
	r.Delete("/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		userID, _ := middlewares.UserID(r.Context())
		if err := ctrl.DeleteSession(r.Context(), userID, sessionID); err != nil {
			writeDAOError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	// GET /sessions/{session_id}/messages : all messages for a session
	r.Get("/{session_id}/messages", func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := uuid.Parse(chi.URLParam(r, "session_id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		userID, _ := middlewares.UserID(r.Context())
		msgs, err := ctrl.GetMessagesForSession(r.Context(), userID, sessionID)
		if err != nil {
			writeDAOError(w, err)
			return
		}
		json.NewEncoder(w).Encode(msgs)
	})
	// POST /sessions/messages : append a message to one of the caller's sessions
	r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		userID, _ := middlewares.UserID(r.Context())
		msg, err := ctrl.CreateMessage(r.Context(), userID, req)
		if err != nil {
			if errors.Is(err, controllers.ErrInvalidRole) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeDAOError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(msg)
	})
	return r
}
