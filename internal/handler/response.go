package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"bookvault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("[Handler] failed to encode response: %v", err)
		}
	}
}

// writeError переводит классифицированную ошибку в HTTP-статус.
// Внутренние подробности отказов хранилищ клиенту не раскрываются.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	var status int
	message := err.Error()
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPermissionDenied:
		status = http.StatusForbidden
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindStorage, apperr.KindPersistence:
		if apperr.IsTransient(err) {
			status = http.StatusServiceUnavailable
			message = "temporary storage failure, please retry"
		} else {
			status = http.StatusInternalServerError
			message = "internal storage error"
		}
		log.Printf("[Handler] storage error: %v", err)
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
		log.Printf("[Handler] unexpected error: %v", err)
	}

	writeJSON(w, status, map[string]string{"error": message})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
