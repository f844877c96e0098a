package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"minima/minima/controllers"
	"minima/minima/utils/types"

	"github.com/go-chi/chi/v5"
)

func GenerateRoutes(ctrl *controllers.GenerateController, health *controllers.HealthController) chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := ctrl.Generate(r.Context(), req)
		if err != nil {
			if errors.Is(err, controllers.ErrEmptyPrompt) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(resp)
	})
	r.Get("/health", health.HealthCheck)
	r.Get("/provider", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"provider": ctrl.Provider()})
	})
	r.Post("/provider", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Provider string `json:"provider"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Provider == "" {
			http.Error(w, "provider is required", http.StatusBadRequest)
			return
		}
		if err := ctrl.SwitchProvider(req.Provider); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"provider": ctrl.Provider()})
	})
	return r
}
