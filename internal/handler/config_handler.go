package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bookvault/internal/apperr"
	"bookvault/internal/service"
)

// ConfigHandler отдает и меняет настройки системы. Только для администраторов.
type ConfigHandler struct {
	configService  *service.ConfigService
	historyService *service.HistoryService
}

func NewConfigHandler(configService *service.ConfigService, historyService *service.HistoryService) *ConfigHandler {
	return &ConfigHandler{configService: configService, historyService: historyService}
}

func (h *ConfigHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.All)
	r.Put("/{key}", h.Update)
	r.Post("/purge-history", h.PurgeHistory)
	return r
}

func (h *ConfigHandler) All(w http.ResponseWriter, r *http.Request) {
	configs, err := h.configService.All(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"configs": configs})
}

type updateConfigRequest struct {
	Value string `json:"value"`
}

func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	if req.Value == "" {
		writeError(w, apperr.New(apperr.KindValidation, "value is required"))
		return
	}

	key := chi.URLParam(r, "key")
	if err := h.configService.Update(r.Context(), key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "key": key})
}

// PurgeHistory запускает очистку истекшей истории вне планового расписания
func (h *ConfigHandler) PurgeHistory(w http.ResponseWriter, r *http.Request) {
	policy := h.configService.RetentionPolicy(r.Context())
	deleted, err := h.historyService.PurgeExpired(r.Context(), policy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}
