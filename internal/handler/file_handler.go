package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookvault/internal/apperr"
	"bookvault/internal/auth"
	"bookvault/internal/domain"
	"bookvault/internal/service"
)

// FileHandler обслуживает загрузку, скачивание и версии файлов
type FileHandler struct {
	uploadService  *service.UploadService
	versionService *service.VersionService
	historyService *service.HistoryService
	maxUploadSize  int64
}

func NewFileHandler(
	uploadService *service.UploadService,
	versionService *service.VersionService,
	historyService *service.HistoryService,
	maxUploadSize int64,
) *FileHandler {
	return &FileHandler{
		uploadService:  uploadService,
		versionService: versionService,
		historyService: historyService,
		maxUploadSize:  maxUploadSize,
	}
}

func (h *FileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload", h.Upload)
	r.Get("/", h.List)
	r.Delete("/", h.Delete)
	r.Get("/current", h.Current)
	r.Get("/download", h.Download)
	r.Get("/view", h.View)
	r.Get("/versions", h.Versions)
	r.Post("/versions/{id}/restore", h.Restore)
	r.Post("/retention", h.EnforceRetention)
	r.Get("/history", h.History)
	return r
}

// groupKeyFromQuery собирает ключ группы из параметров запроса.
// Владелец по умолчанию — сам пользователь; администратор может
// указать owner_id явно.
func groupKeyFromQuery(r *http.Request, claims *auth.Claims) (domain.GroupKey, error) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return domain.GroupKey{}, apperr.New(apperr.KindValidation, "filename query parameter is required")
	}

	ownerID := claims.UserID
	if raw := r.URL.Query().Get("owner_id"); raw != "" && claims.IsAdmin {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.GroupKey{}, apperr.New(apperr.KindValidation, "invalid owner_id")
		}
		ownerID = parsed
	}

	return domain.GroupKey{
		OriginalFilename: service.SanitizeFilename(filename),
		FolderPath:       service.SanitizeFolderPath(r.URL.Query().Get("folder")),
		OwnerID:          ownerID,
	}, nil
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "invalid multipart request: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "file field is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "failed to read file: %v", err))
		return
	}

	rec, err := h.uploadService.Upload(r.Context(), service.UploadInput{
		Filename:    header.Filename,
		FolderPath:  r.FormValue("folder_path"),
		OwnerID:     claims.UserID,
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		UploadIP:    clientIP(r),
		UserAgent:   r.UserAgent(),
		Comment:     r.FormValue("comment"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, total, err := h.uploadService.ListUploads(r.Context(), claims.UserID, r.URL.Query().Get("folder"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files": records,
		"total": total,
	})
}

func (h *FileHandler) Current(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	rec, err := h.versionService.GetCurrent(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	url, rec, err := h.uploadService.DownloadURL(r.Context(), key, claims.UserID, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"download_url": url,
		"filename":     rec.OriginalFilename,
		"version":      rec.Version,
		"file_size":    rec.FileSize,
	})
}

func (h *FileHandler) View(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	obj, rec, err := h.uploadService.GetObject(r.Context(), key, claims.UserID, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.OriginalFilename))
	io.Copy(w, obj)
}

func (h *FileHandler) Versions(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.versionService.ListVersions(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"versions": records})
}

// EnforceRetention усекает версии группы до действующего лимита.
// Нужен после снижения max_file_versions, когда старые группы еще
// хранят больше версий, чем разрешено.
func (h *FileHandler) EnforceRetention(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.versionService.EnforceRetention(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (h *FileHandler) Restore(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "invalid record id"))
		return
	}

	rec, err := h.versionService.RestoreVersion(r.Context(), id, claims.UserID, claims.IsAdmin, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *FileHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	if !h.historyService.CanView(r.Context(), claims.IsAdmin) {
		writeError(w, apperr.New(apperr.KindPermissionDenied, "history access is disabled"))
		return
	}

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.historyService.Query(r.Context(), key, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	key, err := groupKeyFromQuery(r, claims)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.uploadService.Delete(r.Context(), key, claims.UserID, claims.IsAdmin, clientIP(r), r.UserAgent()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
