package routes

import (
	"encoding/json"
	"net/http"

	"minima/minima/config"
	"minima/minima/controllers"
	"minima/minima/middlewares"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 32 << 20 // 32 MiB

func DocumentRoutes(ctrl *controllers.DocumentController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))

	// POST /upload : multipart document upload, returns extracted text
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		userID, _ := middlewares.UserID(r.Context())
		resp, err := ctrl.Upload(r.Context(), userID, header.Filename, file, header.Size)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(resp)
	})
	return r
}
