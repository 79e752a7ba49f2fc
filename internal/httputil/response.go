package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Envelope is the response shape every endpoint uses. Failures are encoded
// in Success/Message rather than the HTTP status, which stays 200; the
// frontend keys off the success flag.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RespondJSON writes data as JSON with the given status code.
// Encoding errors are logged to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondSuccess writes a success envelope with an optional message.
func RespondSuccess(w http.ResponseWriter, message string) {
	RespondJSON(w, Envelope{Success: true, Message: message}, http.StatusOK)
}

// RespondFailure writes a success=false envelope with the given message.
func RespondFailure(w http.ResponseWriter, message string) {
	RespondJSON(w, Envelope{Success: false, Message: message}, http.StatusOK)
}
