package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// BookRepository implements persistence.BookRepository using SQLite.
type BookRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookRepository creates a new SQLite book repository.
func NewBookRepository(pool *ConnectionPool) *BookRepository {
	return &BookRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const bookColumns = `id, name, author_name, category, image, rating, description,
	isbn, published_year, quantity, available, created_at, updated_at`

// CreateBook inserts a new catalog entry.
func (r *BookRepository) CreateBook(ctx context.Context, book persistence.Book) error {
	if book.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		book.ID,
		book.Name,
		book.AuthorName,
		book.Category,
		book.Image,
		book.Rating,
		book.Description,
		nullableString(book.ISBN),
		nullableInt(book.PublishedYear),
		book.Quantity,
		boolToInt(book.Available),
		book.CreatedAt.Format(time.RFC3339),
		book.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return r.mapBookError(err)
	}

	return nil
}

// UpdateBook updates an existing catalog entry.
func (r *BookRepository) UpdateBook(ctx context.Context, book persistence.Book) error {
	book.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE books
		SET name = ?, author_name = ?, category = ?, image = ?, rating = ?,
		    description = ?, isbn = ?, published_year = ?, quantity = ?,
		    available = ?, updated_at = ?
		WHERE id = ?
	`,
		book.Name,
		book.AuthorName,
		book.Category,
		book.Image,
		book.Rating,
		book.Description,
		nullableString(book.ISBN),
		nullableInt(book.PublishedYear),
		book.Quantity,
		boolToInt(book.Available),
		book.UpdatedAt.Format(time.RFC3339),
		book.ID,
	)
	if err != nil {
		return r.mapBookError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// GetBook retrieves a book by ID.
func (r *BookRepository) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	if id == "" {
		return persistence.Book{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = ?
	`, id)

	book, err := scanBook(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Book{}, persistence.ErrNotFound
		}
		return persistence.Book{}, r.mapper.MapError(err)
	}

	return book, nil
}

// ListBooks returns the catalog ordered by name. An empty category matches
// every book.
func (r *BookRepository) ListBooks(ctx context.Context, category string) ([]persistence.Book, error) {
	query := "SELECT " + bookColumns + " FROM books"
	var args []interface{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY name ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var books []persistence.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return books, nil
}

// DeleteBook removes a catalog entry. Books referenced by borrow records
// cannot be removed and report ErrForeignKeyViolation.
func (r *BookRepository) DeleteBook(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return r.mapBookError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// RepairAvailability forces the derived available flag back to quantity > 0.
func (r *BookRepository) RepairAvailability(ctx context.Context, id string, now time.Time) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE books
		SET available = CASE WHEN quantity > 0 THEN 1 ELSE 0 END, updated_at = ?
		WHERE id = ?
	`, now.UTC().Format(time.RFC3339), id)
	if err != nil {
		return r.mapBookError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

func scanBook(row rowScanner) (persistence.Book, error) {
	var book persistence.Book
	var isbn sql.NullString
	var publishedYear sql.NullInt64
	var available int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&book.ID,
		&book.Name,
		&book.AuthorName,
		&book.Category,
		&book.Image,
		&book.Rating,
		&book.Description,
		&isbn,
		&publishedYear,
		&book.Quantity,
		&available,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Book{}, err
	}

	if isbn.Valid {
		book.ISBN = &isbn.String
	}
	if publishedYear.Valid {
		year := int(publishedYear.Int64)
		book.PublishedYear = &year
	}
	book.Available = available != 0

	if book.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Book{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if book.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Book{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return book, nil
}

func nullableString(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// mapBookError maps SQLite errors to persistence errors for book operations.
func (r *BookRepository) mapBookError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if containsAny(errStr, []string{"UNIQUE constraint failed"}) {
		return persistence.ErrDuplicate
	}
	if containsAny(errStr, []string{"FOREIGN KEY constraint failed"}) {
		return persistence.ErrForeignKeyViolation
	}
	if containsAny(errStr, []string{"CHECK constraint failed"}) {
		return persistence.ErrConstraintViolation
	}

	return r.mapper.MapError(err)
}
