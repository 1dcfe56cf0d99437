package domain

import "time"

// Жанры книг
const (
	GenreFiction    = "fiction"
	GenreNonFiction = "non-fiction"
)

type Book struct {
	ID        int64     `json:"-" db:"id"`
	BookID    string    `json:"book_id" db:"book_id"`
	Name      string    `json:"name" db:"name"`
	Genre     string    `json:"genre" db:"genre"`
	Price     float64   `json:"price" db:"price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BookUpdate содержит изменяемые поля книги; nil означает «не менять»
type BookUpdate struct {
	Name  *string  `json:"name,omitempty"`
	Genre *string  `json:"genre,omitempty"`
	Price *float64 `json:"price,omitempty"`
}
