package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bookvault/internal/domain"
)

type BookRepository struct {
	db *sqlx.DB
}

func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `
        INSERT INTO books (book_id, name, genre, price)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, book.BookID, book.Name, book.Genre, book.Price).
		Scan(&book.ID, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: book %s", ErrDuplicate, book.BookID)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

func (r *BookRepository) GetByBookID(ctx context.Context, bookID string) (*domain.Book, error) {
	var book domain.Book
	query := `SELECT * FROM books WHERE book_id = $1`

	err := r.db.GetContext(ctx, &book, query, bookID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", bookID, err)
	}
	return &book, nil
}

func (r *BookRepository) List(ctx context.Context, genre string, limit, offset int) ([]domain.Book, error) {
	var books []domain.Book

	if genre != "" {
		query := `SELECT * FROM books WHERE genre = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		if err := r.db.SelectContext(ctx, &books, query, genre, limit, offset); err != nil {
			return nil, fmt.Errorf("failed to list books: %w", err)
		}
		return books, nil
	}

	query := `SELECT * FROM books ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &books, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

func (r *BookRepository) Update(ctx context.Context, book *domain.Book) error {
	query := `
        UPDATE books
        SET name = $1, genre = $2, price = $3, updated_at = CURRENT_TIMESTAMP
        WHERE book_id = $4
        RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, book.Name, book.Genre, book.Price, book.BookID).
		Scan(&book.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: book %s", ErrNotFound, book.BookID)
	}
	if err != nil {
		return fmt.Errorf("failed to update book %s: %w", book.BookID, err)
	}
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, bookID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE book_id = $1`, bookID)
	if err != nil {
		return fmt.Errorf("failed to delete book %s: %w", bookID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: book %s", ErrNotFound, bookID)
	}
	return nil
}
