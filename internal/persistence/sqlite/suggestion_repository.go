package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// SuggestionRepository implements persistence.SuggestionRepository using SQLite.
type SuggestionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSuggestionRepository creates a new SQLite suggestion repository.
func NewSuggestionRepository(pool *ConnectionPool) *SuggestionRepository {
	return &SuggestionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const suggestionColumns = `id, user_id, email, name, author_name, category, image,
	rating, description, isbn, published_year, status, created_at, updated_at`

// CreateSuggestion inserts a new book suggestion.
func (r *SuggestionRepository) CreateSuggestion(ctx context.Context, suggestion persistence.BookSuggestion) error {
	if suggestion.ID == "" || suggestion.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	suggestion.CreatedAt = now
	suggestion.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO book_suggestions (`+suggestionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		suggestion.ID,
		suggestion.UserID,
		normalizeEmail(suggestion.Email),
		suggestion.Name,
		suggestion.AuthorName,
		suggestion.Category,
		suggestion.Image,
		suggestion.Rating,
		suggestion.Description,
		nullableString(suggestion.ISBN),
		nullableInt(suggestion.PublishedYear),
		suggestion.Status,
		suggestion.CreatedAt.Format(time.RFC3339),
		suggestion.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return r.mapSuggestionError(err)
	}

	return nil
}

// UpdateSuggestion updates an existing suggestion.
func (r *SuggestionRepository) UpdateSuggestion(ctx context.Context, suggestion persistence.BookSuggestion) error {
	suggestion.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE book_suggestions
		SET name = ?, author_name = ?, category = ?, image = ?, rating = ?,
		    description = ?, isbn = ?, published_year = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		suggestion.Name,
		suggestion.AuthorName,
		suggestion.Category,
		suggestion.Image,
		suggestion.Rating,
		suggestion.Description,
		nullableString(suggestion.ISBN),
		nullableInt(suggestion.PublishedYear),
		suggestion.Status,
		suggestion.UpdatedAt.Format(time.RFC3339),
		suggestion.ID,
	)
	if err != nil {
		return r.mapSuggestionError(err)
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

// GetSuggestion retrieves a suggestion by ID.
func (r *SuggestionRepository) GetSuggestion(ctx context.Context, id string) (persistence.BookSuggestion, error) {
	if id == "" {
		return persistence.BookSuggestion{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `
		SELECT `+suggestionColumns+`
		FROM book_suggestions
		WHERE id = ?
	`, id)

	suggestion, err := scanSuggestion(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.BookSuggestion{}, persistence.ErrNotFound
		}
		return persistence.BookSuggestion{}, r.mapper.MapError(err)
	}

	return suggestion, nil
}

// ListSuggestions returns suggestions newest first. An empty email matches
// every submitter.
func (r *SuggestionRepository) ListSuggestions(ctx context.Context, email string) ([]persistence.BookSuggestion, error) {
	query := "SELECT " + suggestionColumns + " FROM book_suggestions"
	var args []interface{}
	if email != "" {
		query += " WHERE email = ?"
		args = append(args, normalizeEmail(email))
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var suggestions []persistence.BookSuggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		suggestions = append(suggestions, suggestion)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return suggestions, nil
}

// DeleteSuggestion removes a suggestion.
func (r *SuggestionRepository) DeleteSuggestion(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM book_suggestions WHERE id = ?", id)
	if err != nil {
		return r.mapSuggestionError(err)
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

func scanSuggestion(row rowScanner) (persistence.BookSuggestion, error) {
	var suggestion persistence.BookSuggestion
	var isbn sql.NullString
	var publishedYear sql.NullInt64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&suggestion.ID,
		&suggestion.UserID,
		&suggestion.Email,
		&suggestion.Name,
		&suggestion.AuthorName,
		&suggestion.Category,
		&suggestion.Image,
		&suggestion.Rating,
		&suggestion.Description,
		&isbn,
		&publishedYear,
		&suggestion.Status,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.BookSuggestion{}, err
	}

	if isbn.Valid {
		suggestion.ISBN = &isbn.String
	}
	if publishedYear.Valid {
		year := int(publishedYear.Int64)
		suggestion.PublishedYear = &year
	}

	if suggestion.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.BookSuggestion{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if suggestion.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.BookSuggestion{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return suggestion, nil
}

// mapSuggestionError maps SQLite errors to persistence errors for suggestion
// operations.
func (r *SuggestionRepository) mapSuggestionError(err error) error {
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
