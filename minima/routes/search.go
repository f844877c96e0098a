package routes

import (
	"encoding/json"
	"net/http"
	"strconv"

	"minima/minima/config"
	"minima/minima/controllers"
	"minima/minima/middlewares"

	"github.com/go-chi/chi/v5"
)

func SearchRoutes(ctrl *controllers.SearchController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	// GET /search?q=...&max=5
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			http.Error(w, "q is required", http.StatusBadRequest)
			return
		}
		max, _ := strconv.Atoi(r.URL.Query().Get("max"))
		results, err := ctrl.Query(r.Context(), query, max)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(results)
	})
	return r
}
