package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
	"bookvault/internal/repository"
)

// BookStore — операции над книгами, нужные сервису
type BookStore interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByBookID(ctx context.Context, bookID string) (*domain.Book, error)
	List(ctx context.Context, genre string, limit, offset int) ([]domain.Book, error)
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, bookID string) error
}

// BookService — CRUD каталога книг
type BookService struct {
	bookRepo BookStore
}

func NewBookService(bookRepo BookStore) *BookService {
	return &BookService{bookRepo: bookRepo}
}

func validGenre(genre string) bool {
	return genre == domain.GenreFiction || genre == domain.GenreNonFiction
}

// Create добавляет книгу в каталог и присваивает ей внешний идентификатор
func (s *BookService) Create(ctx context.Context, name, genre string, price float64) (*domain.Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "book name is required")
	}
	if !validGenre(genre) {
		return nil, apperr.New(apperr.KindValidation, "genre must be %q or %q", domain.GenreFiction, domain.GenreNonFiction)
	}
	if price < 0 {
		return nil, apperr.New(apperr.KindValidation, "price must not be negative")
	}

	book := &domain.Book{
		BookID: strings.ReplaceAll(uuid.New().String(), "-", ""),
		Name:   name,
		Genre:  genre,
		Price:  price,
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.KindConflict, "book %s already exists", book.BookID)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to create book")
	}

	log.Printf("[BookService] created book %s (%s)", book.BookID, book.Name)
	return book, nil
}

// Get возвращает книгу по внешнему идентификатору
func (s *BookService) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.bookRepo.GetByBookID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "book %s not found", bookID)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get book")
	}
	return book, nil
}

// List возвращает страницу каталога, опционально по жанру
func (s *BookService) List(ctx context.Context, genre string, limit, offset int) ([]domain.Book, error) {
	if genre != "" && !validGenre(genre) {
		return nil, apperr.New(apperr.KindValidation, "genre must be %q or %q", domain.GenreFiction, domain.GenreNonFiction)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	books, err := s.bookRepo.List(ctx, genre, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to list books")
	}
	return books, nil
}

// Update меняет переданные поля книги, остальные не трогает
func (s *BookService) Update(ctx context.Context, bookID string, update domain.BookUpdate) (*domain.Book, error) {
	book, err := s.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperr.New(apperr.KindValidation, "book name must not be empty")
		}
		book.Name = name
	}
	if update.Genre != nil {
		if !validGenre(*update.Genre) {
			return nil, apperr.New(apperr.KindValidation, "genre must be %q or %q", domain.GenreFiction, domain.GenreNonFiction)
		}
		book.Genre = *update.Genre
	}
	if update.Price != nil {
		if *update.Price < 0 {
			return nil, apperr.New(apperr.KindValidation, "price must not be negative")
		}
		book.Price = *update.Price
	}

	if err := s.bookRepo.Update(ctx, book); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "book %s not found", bookID)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to update book")
	}
	return book, nil
}

// Delete убирает книгу из каталога
func (s *BookService) Delete(ctx context.Context, bookID string) error {
	if err := s.bookRepo.Delete(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "book %s not found", bookID)
		}
		return apperr.Wrap(apperr.KindPersistence, err, "failed to delete book")
	}
	log.Printf("[BookService] deleted book %s", bookID)
	return nil
}
