package persistence

import "context"
import "time"

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// BookRepository exposes catalog operations for books.
type BookRepository interface {
	CreateBook(ctx context.Context, book Book) error
	UpdateBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, category string) ([]Book, error)
	DeleteBook(ctx context.Context, id string) error
	// RepairAvailability forces the derived available flag back to
	// quantity > 0 for the given book.
	RepairAvailability(ctx context.Context, id string, now time.Time) error
}

// BorrowRepository stores borrow records and performs the inventory-coupled
// transitions on them.
type BorrowRepository interface {
	// CreateBorrow inserts the record and decrements the book's quantity in a
	// single transaction. It returns ErrDuplicate when the user already holds
	// an active record for the book, ErrConstraintViolation when the book has
	// no copies left, and ErrNotFound when the book does not exist.
	CreateBorrow(ctx context.Context, record BorrowRecord) error
	// ConfirmReturn updates the record and increments the book's quantity in a
	// single transaction, marking the book available again.
	ConfirmReturn(ctx context.Context, record BorrowRecord) error
	UpdateBorrow(ctx context.Context, record BorrowRecord) error
	GetBorrow(ctx context.Context, id string) (BorrowRecord, error)
	// ListBorrows returns matching records ordered by borrow time, newest first.
	ListBorrows(ctx context.Context, filter BorrowFilter) ([]BorrowRecord, error)
	// ListPendingReturns returns return_pending records ordered by request
	// time, newest first.
	ListPendingReturns(ctx context.Context) ([]BorrowRecord, error)
	DeleteBorrow(ctx context.Context, id string) error
}

// SuggestionRepository stores reader-submitted book suggestions.
type SuggestionRepository interface {
	CreateSuggestion(ctx context.Context, suggestion BookSuggestion) error
	UpdateSuggestion(ctx context.Context, suggestion BookSuggestion) error
	GetSuggestion(ctx context.Context, id string) (BookSuggestion, error)
	ListSuggestions(ctx context.Context, email string) ([]BookSuggestion, error)
	DeleteSuggestion(ctx context.Context, id string) error
}

// TokenRepository stores the revocation list for logged-out JWTs.
type TokenRepository interface {
	RevokeToken(ctx context.Context, token RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) error
}
