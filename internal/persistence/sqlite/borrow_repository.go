package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// BorrowRepository implements persistence.BorrowRepository using SQLite.
//
// The inventory-coupled transitions (borrow, confirmed return) run inside a
// single transaction so a record can never exist without its matching stock
// adjustment. The one-active-borrow rule is enforced by the partial unique
// index on (user_id, book_id), not by an application-level existence check.
type BorrowRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBorrowRepository creates a new SQLite borrow repository.
func NewBorrowRepository(pool *ConnectionPool) *BorrowRepository {
	return &BorrowRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const borrowColumns = `id, user_id, book_id, email, book_name, author_name, category, image,
	borrowed_at, return_due_at, return_requested_at, return_date_edit_count, status, fine,
	created_at, updated_at`

// CreateBorrow inserts the record and decrements the book's quantity as a unit.
func (r *BorrowRepository) CreateBorrow(ctx context.Context, record persistence.BorrowRecord) error {
	if record.ID == "" || record.UserID == "" || record.BookID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		// The quantity guard doubles as the stock check: zero rows affected
		// means the book is either missing or out of copies.
		result, err := r.helper.ExecTx(tx, `
			UPDATE books
			SET quantity = quantity - 1,
			    available = CASE WHEN quantity > 1 THEN 1 ELSE 0 END,
			    updated_at = ?
			WHERE id = ? AND quantity > 0
		`, now.Format(time.RFC3339), record.BookID)
		if err != nil {
			return r.mapBorrowError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			var count int
			if err := r.helper.QueryRowTx(tx, "SELECT COUNT(*) FROM books WHERE id = ?", record.BookID).Scan(&count); err != nil {
				return r.mapBorrowError(err)
			}
			if count == 0 {
				return persistence.ErrNotFound
			}
			return persistence.ErrConstraintViolation
		}

		_, err = r.helper.ExecTx(tx, `
			INSERT INTO borrow_records (`+borrowColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			record.ID,
			record.UserID,
			record.BookID,
			record.Email,
			record.BookName,
			record.AuthorName,
			record.Category,
			record.Image,
			record.BorrowedAt.Format(time.RFC3339),
			record.ReturnDueAt.Format(time.RFC3339),
			nullableTime(record.ReturnRequestedAt),
			record.ReturnDateEditCount,
			record.Status,
			record.Fine,
			record.CreatedAt.Format(time.RFC3339),
			record.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return r.mapBorrowError(err)
		}

		return nil
	})
}

// ConfirmReturn updates the record and restores one copy to the shelf as a unit.
func (r *BorrowRepository) ConfirmReturn(ctx context.Context, record persistence.BorrowRecord) error {
	now := time.Now().UTC()
	record.UpdatedAt = now

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(tx, `
			UPDATE borrow_records
			SET status = ?, return_requested_at = NULL, return_due_at = ?,
			    return_date_edit_count = ?, fine = ?, updated_at = ?
			WHERE id = ?
		`,
			record.Status,
			record.ReturnDueAt.Format(time.RFC3339),
			record.ReturnDateEditCount,
			record.Fine,
			record.UpdatedAt.Format(time.RFC3339),
			record.ID,
		)
		if err != nil {
			return r.mapBorrowError(err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		_, err = r.helper.ExecTx(tx, `
			UPDATE books
			SET quantity = quantity + 1, available = 1, updated_at = ?
			WHERE id = ?
		`, now.Format(time.RFC3339), record.BookID)
		if err != nil {
			return r.mapBorrowError(err)
		}

		return nil
	})
}

// UpdateBorrow updates a record without touching the catalog.
func (r *BorrowRepository) UpdateBorrow(ctx context.Context, record persistence.BorrowRecord) error {
	record.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE borrow_records
		SET email = ?, book_name = ?, author_name = ?, category = ?, image = ?,
		    return_due_at = ?, return_requested_at = ?, return_date_edit_count = ?,
		    status = ?, fine = ?, updated_at = ?
		WHERE id = ?
	`,
		record.Email,
		record.BookName,
		record.AuthorName,
		record.Category,
		record.Image,
		record.ReturnDueAt.Format(time.RFC3339),
		nullableTime(record.ReturnRequestedAt),
		record.ReturnDateEditCount,
		record.Status,
		record.Fine,
		record.UpdatedAt.Format(time.RFC3339),
		record.ID,
	)
	if err != nil {
		return r.mapBorrowError(err)
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

// GetBorrow retrieves a borrow record by ID.
func (r *BorrowRepository) GetBorrow(ctx context.Context, id string) (persistence.BorrowRecord, error) {
	if id == "" {
		return persistence.BorrowRecord{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `
		SELECT `+borrowColumns+`
		FROM borrow_records
		WHERE id = ?
	`, id)

	record, err := scanBorrowRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.BorrowRecord{}, persistence.ErrNotFound
		}
		return persistence.BorrowRecord{}, r.mapper.MapError(err)
	}

	return record, nil
}

// ListBorrows returns matching records ordered by borrow time, newest first.
func (r *BorrowRepository) ListBorrows(ctx context.Context, filter persistence.BorrowFilter) ([]persistence.BorrowRecord, error) {
	query := "SELECT " + borrowColumns + " FROM borrow_records"
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, len(filter.Statuses)+1)

	if filter.Email != "" {
		conditions = append(conditions, "email = ?")
		args = append(args, normalizeEmail(filter.Email))
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.Repeat("?, ", len(filter.Statuses))
		conditions = append(conditions, "status IN ("+placeholders[:len(placeholders)-2]+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY borrowed_at DESC, id ASC"

	return r.queryBorrows(ctx, query, args...)
}

// ListPendingReturns returns return_pending records, most recent request first.
func (r *BorrowRepository) ListPendingReturns(ctx context.Context) ([]persistence.BorrowRecord, error) {
	return r.queryBorrows(ctx, `
		SELECT `+borrowColumns+`
		FROM borrow_records
		WHERE status = 'return_pending'
		ORDER BY return_requested_at DESC, id ASC
	`)
}

// DeleteBorrow removes a record without any inventory side effects.
func (r *BorrowRepository) DeleteBorrow(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM borrow_records WHERE id = ?", id)
	if err != nil {
		return r.mapBorrowError(err)
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

func (r *BorrowRepository) queryBorrows(ctx context.Context, query string, args ...interface{}) ([]persistence.BorrowRecord, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []persistence.BorrowRecord
	for rows.Next() {
		record, err := scanBorrowRecord(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBorrowRecord(row rowScanner) (persistence.BorrowRecord, error) {
	var record persistence.BorrowRecord
	var borrowedAtStr, dueAtStr, createdAtStr, updatedAtStr string
	var requestedAtStr sql.NullString

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.BookID,
		&record.Email,
		&record.BookName,
		&record.AuthorName,
		&record.Category,
		&record.Image,
		&borrowedAtStr,
		&dueAtStr,
		&requestedAtStr,
		&record.ReturnDateEditCount,
		&record.Status,
		&record.Fine,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.BorrowRecord{}, err
	}

	if record.BorrowedAt, err = time.Parse(time.RFC3339, borrowedAtStr); err != nil {
		return persistence.BorrowRecord{}, fmt.Errorf("failed to parse borrowed_at: %w", err)
	}
	if record.ReturnDueAt, err = time.Parse(time.RFC3339, dueAtStr); err != nil {
		return persistence.BorrowRecord{}, fmt.Errorf("failed to parse return_due_at: %w", err)
	}
	if requestedAtStr.Valid {
		requestedAt, err := time.Parse(time.RFC3339, requestedAtStr.String)
		if err != nil {
			return persistence.BorrowRecord{}, fmt.Errorf("failed to parse return_requested_at: %w", err)
		}
		record.ReturnRequestedAt = &requestedAt
	}
	if record.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.BorrowRecord{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.BorrowRecord{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return record, nil
}

func nullableTime(value *time.Time) interface{} {
	if value == nil {
		return nil
	}
	return value.Format(time.RFC3339)
}

// mapBorrowError maps SQLite errors to persistence errors for borrow operations.
func (r *BorrowRepository) mapBorrowError(err error) error {
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
