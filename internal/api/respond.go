package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the response wrapper for every monitor endpoint.
type envelope struct {
	StatusCode int  `json:"status_code"`
	Success    bool `json:"success"`
	Data       any  `json:"data"`
}

// errorBody is the response body for failed requests.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{
		StatusCode: status,
		Success:    true,
		Data:       data,
	})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
