package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/L-Mariam/Grocery-Guessr/game"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Message string                 `json:"message,omitempty"`
	Errors  []game.ValidationError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func success(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

func failure(w http.ResponseWriter, status int, msg string, errs []game.ValidationError) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg, Errors: errs})
}
