package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"minima/minima/config"
	"minima/minima/controllers"
	"minima/minima/middlewares"
	"minima/minima/utils/types"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(ctrl *controllers.AuthController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", func(w http.ResponseWriter, r *http.Request) {
		var req types.SignUpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, user, err := ctrl.SignUp(r.Context(), req.Email, req.Password, req.Name)
		if err != nil {
			if errors.Is(err, controllers.ErrEmailTaken) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"token": token, "user": user})
	})
	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, user, err := ctrl.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, controllers.ErrInvalidCredentials) {
				http.Error(w, err.Error(), http.StatusUnauthorized)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"token": token, "user": user})
	})
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		gr.Get("/session", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middlewares.UserID(r.Context())
			user, err := ctrl.Session(r.Context(), userID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"user": user})
		})
		// Tokens are stateless; logout exists so clients have a uniform
		// sign-out call whether or not the server keeps session state.
		gr.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}
