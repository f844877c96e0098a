package controllers

import (
	"encoding/json"
	"net/http"
)

type HealthController struct {
	provider func() string
}

func NewHealthController(provider func() string) *HealthController {
	return &HealthController{provider: provider}
}

func (hc *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "ok",
		"provider": hc.provider(),
	})
}
