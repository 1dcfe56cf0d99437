package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/apperr"
	"bookvault/internal/domain"
	"bookvault/internal/repository"
)

type memBookStore struct {
	mu     sync.Mutex
	books  map[string]*domain.Book
	nextID int64
}

func newMemBookStore() *memBookStore {
	return &memBookStore{books: make(map[string]*domain.Book)}
}

func (s *memBookStore) Create(ctx context.Context, book *domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.books[book.BookID]; exists {
		return repository.ErrDuplicate
	}
	s.nextID++
	book.ID = s.nextID
	c := *book
	s.books[book.BookID] = &c
	return nil
}

func (s *memBookStore) GetByBookID(ctx context.Context, bookID string) (*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[bookID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *book
	return &c, nil
}

func (s *memBookStore) List(ctx context.Context, genre string, limit, offset int) ([]domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Book
	for _, book := range s.books {
		if genre != "" && book.Genre != genre {
			continue
		}
		out = append(out, *book)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memBookStore) Update(ctx context.Context, book *domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.books[book.BookID]
	if !ok {
		return repository.ErrNotFound
	}
	*stored = *book
	return nil
}

func (s *memBookStore) Delete(ctx context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.books, bookID)
	return nil
}

func TestBookCreate(t *testing.T) {
	svc := NewBookService(newMemBookStore())

	book, err := svc.Create(context.Background(), "The Go Programming Language", domain.GenreNonFiction, 39.99)
	require.NoError(t, err)
	assert.Len(t, book.BookID, 32)
	assert.Equal(t, "The Go Programming Language", book.Name)
	assert.Equal(t, 39.99, book.Price)
}

func TestBookCreate_Validation(t *testing.T) {
	svc := NewBookService(newMemBookStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, "", domain.GenreFiction, 10)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(ctx, "Name", "mystery", 10)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Create(ctx, "Name", domain.GenreFiction, -1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBookGet_NotFound(t *testing.T) {
	svc := NewBookService(newMemBookStore())

	_, err := svc.Get(context.Background(), "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBookList_FilterByGenre(t *testing.T) {
	svc := NewBookService(newMemBookStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, "Novel", domain.GenreFiction, 10)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Textbook", domain.GenreNonFiction, 20)
	require.NoError(t, err)

	fiction, err := svc.List(ctx, domain.GenreFiction, 10, 0)
	require.NoError(t, err)
	require.Len(t, fiction, 1)
	assert.Equal(t, "Novel", fiction[0].Name)

	all, err := svc.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, "mystery", 10, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBookUpdate_PartialFields(t *testing.T) {
	svc := NewBookService(newMemBookStore())
	ctx := context.Background()

	book, err := svc.Create(ctx, "Old Name", domain.GenreFiction, 10)
	require.NoError(t, err)

	newPrice := 15.5
	updated, err := svc.Update(ctx, book.BookID, domain.BookUpdate{Price: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, "Old Name", updated.Name)
	assert.Equal(t, 15.5, updated.Price)

	badGenre := "mystery"
	_, err = svc.Update(ctx, book.BookID, domain.BookUpdate{Genre: &badGenre})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBookDelete(t *testing.T) {
	svc := NewBookService(newMemBookStore())
	ctx := context.Background()

	book, err := svc.Create(ctx, "Name", domain.GenreFiction, 10)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, book.BookID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(svc.Delete(ctx, book.BookID)))
}
