package handler

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"bookvault/internal/cache"
)

// HealthHandler отвечает на проверки живости сервиса
type HealthHandler struct {
	db    *sqlx.DB
	cache *cache.Cache
}

func NewHealthHandler(db *sqlx.DB, c *cache.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{"database": "ok", "cache": "ok"}

	ctx := r.Context()
	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if !h.cache.Available(ctx) {
		// Кеш необязателен, сервис остается живым
		checks["cache"] = "unavailable"
	}

	writeJSON(w, status, map[string]interface{}{
		"status": http.StatusText(status),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}
