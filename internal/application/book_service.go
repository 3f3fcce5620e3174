package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// BookRepository captures the persistence operations needed by the service.
type BookRepository interface {
	CreateBook(ctx context.Context, book Book) error
	UpdateBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, category string) ([]Book, error)
	DeleteBook(ctx context.Context, id string) error
	RepairAvailability(ctx context.Context, id string, now time.Time) error
}

// BookService orchestrates validation, authorization, and persistence for the
// catalog.
type BookService struct {
	books       BookRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookService constructs a book service with the provided dependencies.
func NewBookService(books BookRepository, idGenerator func() string, now func() time.Time) *BookService {
	return NewBookServiceWithLogger(books, idGenerator, now, nil)
}

// NewBookServiceWithLogger constructs a book service with a specified logger.
func NewBookServiceWithLogger(books BookRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookService{books: books, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *BookService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookService", operation, attrs...)
}

// CreateBook validates input and persists a new catalog entry for administrators.
func (s *BookService) CreateBook(ctx context.Context, principal Principal, input BookInput) (book Book, err error) {
	if s == nil {
		err = fmt.Errorf("BookService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateBook", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create book", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("book_id", book.ID).InfoContext(ctx, "book created")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	vErr := validateBookInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.books == nil {
		err = fmt.Errorf("book repository not configured")
		return
	}

	now := s.now()
	book = Book{
		ID:            s.idGenerator(),
		Name:          strings.TrimSpace(input.Name),
		AuthorName:    strings.TrimSpace(input.AuthorName),
		Category:      strings.TrimSpace(input.Category),
		Image:         strings.TrimSpace(input.Image),
		Rating:        input.Rating,
		Description:   strings.TrimSpace(input.Description),
		ISBN:          normalizeOptionalString(input.ISBN),
		PublishedYear: input.PublishedYear,
		Quantity:      input.Quantity,
		Available:     input.Quantity > 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err = s.books.CreateBook(ctx, book); err != nil {
		err = mapBookRepoError(err)
		return
	}

	return
}

// UpdateBook validates input and updates an existing catalog entry for administrators.
func (s *BookService) UpdateBook(ctx context.Context, principal Principal, bookID string, input BookInput) (book Book, err error) {
	if s == nil {
		err = fmt.Errorf("BookService is nil")
		return
	}
	if s.books == nil {
		err = fmt.Errorf("book repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBook",
		"principal_id", principal.UserID,
		"book_id", bookID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update book", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book updated")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}

	var existing Book
	existing, err = s.books.GetBook(ctx, bookID)
	if err != nil {
		err = mapBookRepoError(err)
		return
	}

	vErr := validateBookInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	book = existing
	book.Name = strings.TrimSpace(input.Name)
	book.AuthorName = strings.TrimSpace(input.AuthorName)
	book.Category = strings.TrimSpace(input.Category)
	book.Image = strings.TrimSpace(input.Image)
	book.Rating = input.Rating
	book.Description = strings.TrimSpace(input.Description)
	book.ISBN = normalizeOptionalString(input.ISBN)
	book.PublishedYear = input.PublishedYear
	book.Quantity = input.Quantity
	book.Available = input.Quantity > 0
	book.UpdatedAt = s.now()

	if err = s.books.UpdateBook(ctx, book); err != nil {
		err = mapBookRepoError(err)
		book = Book{}
		return
	}

	return
}

// GetBook retrieves a single catalog entry, repairing a stale available flag
// on the way out.
func (s *BookService) GetBook(ctx context.Context, id string) (book Book, err error) {
	if s == nil {
		return Book{}, fmt.Errorf("BookService is nil")
	}
	if s.books == nil {
		return Book{}, fmt.Errorf("book repository not configured")
	}

	book, err = s.books.GetBook(ctx, id)
	if err != nil {
		return Book{}, mapBookRepoError(err)
	}

	book = s.repairIfStale(ctx, book)
	return book, nil
}

// ListBooks returns the catalog, optionally narrowed to one category.
func (s *BookService) ListBooks(ctx context.Context, category string) ([]Book, error) {
	if s == nil {
		return nil, fmt.Errorf("BookService is nil")
	}
	if s.books == nil {
		return nil, fmt.Errorf("book repository not configured")
	}

	books, err := s.books.ListBooks(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, mapBookRepoError(err)
	}

	for i := range books {
		books[i] = s.repairIfStale(ctx, books[i])
	}
	return books, nil
}

// DeleteBook removes a catalog entry for administrators. Books with borrow
// history cannot be removed.
func (s *BookService) DeleteBook(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("BookService is nil")
	}
	if s.books == nil {
		return fmt.Errorf("book repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteBook",
		"principal_id", principal.UserID,
		"book_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete book", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "book deleted")
	}()

	if !principal.IsAdmin {
		return ErrForbidden
	}

	if err = s.books.DeleteBook(ctx, id); err != nil {
		err = mapBookRepoError(err)
		return
	}

	return nil
}

func (s *BookService) repairIfStale(ctx context.Context, book Book) Book {
	expected := book.Quantity > 0
	if book.Available == expected {
		return book
	}

	logger := s.loggerWith(ctx, "RepairAvailability", "book_id", book.ID)
	logger.WarnContext(ctx, "repairing stale availability flag",
		"quantity", book.Quantity, "available", book.Available)

	if err := s.books.RepairAvailability(ctx, book.ID, s.now()); err != nil {
		logger.ErrorContext(ctx, "failed to repair availability", "error", err)
	}
	book.Available = expected
	return book
}

func validateBookInput(input BookInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "is required")
	}
	if strings.TrimSpace(input.AuthorName) == "" {
		vErr.add("authorName", "is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		vErr.add("category", "is required")
	}
	if input.Rating < 0 || input.Rating > 5 {
		vErr.add("rating", "must be between 0 and 5")
	}
	if input.Quantity < 0 {
		vErr.add("quantity", "must not be negative")
	}
	if input.PublishedYear != nil && (*input.PublishedYear < 0 || *input.PublishedYear > 9999) {
		vErr.add("publishedYear", "must be a four digit year")
	}
	return vErr
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// mapBookRepoError converts persistence sentinels to application errors.
func mapBookRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return &InvalidStateError{Reason: "book has borrow records"}
	default:
		return err
	}
}
