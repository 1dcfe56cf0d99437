package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
	"bookvault/internal/service"
)

// BookHandler обслуживает каталог книг
type BookHandler struct {
	bookService *service.BookService
}

func NewBookHandler(bookService *service.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

func (h *BookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{bookID}", h.Get)
	r.Patch("/{bookID}", h.Update)
	r.Delete("/{bookID}", h.Delete)
	return r
}

type createBookRequest struct {
	Name  string  `json:"name"`
	Genre string  `json:"genre"`
	Price float64 `json:"price"`
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	book, err := h.bookService.Create(r.Context(), req.Name, req.Genre, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, err := h.bookService.Get(r.Context(), chi.URLParam(r, "bookID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	books, err := h.bookService.List(r.Context(), r.URL.Query().Get("genre"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"books": books})
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update domain.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	book, err := h.bookService.Update(r.Context(), chi.URLParam(r, "bookID"), update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bookService.Delete(r.Context(), chi.URLParam(r, "bookID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
