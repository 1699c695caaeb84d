package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"subsBridge/internal/models"
)

// getParam returns a pat path parameter, falling back to the query string.
func getParam(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	if val := r.URL.Query().Get(":" + name); val != "" {
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(r.URL.Query().Get(name))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeRejection answers a synchronous argument or configuration rejection.
func writeRejection(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.Rejection{Message: message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
