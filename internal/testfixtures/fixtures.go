package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/librarian/internal/application"
)

var (
	userCounter   uint64
	bookCounter   uint64
	borrowCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures the generated user fixture.
type UserOption func(*application.User)

// NewUserFixture returns a deterministic user with optional overrides.
func NewUserFixture(opts ...UserOption) application.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := application.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		Name:         fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         application.RoleUser,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// AsAdmin marks the fixture user as an administrator.
func AsAdmin() UserOption {
	return func(u *application.User) { u.Role = application.RoleAdmin }
}

// WithEmail overrides the fixture user's email.
func WithEmail(email string) UserOption {
	return func(u *application.User) { u.Email = email }
}

// BookOption configures the generated book fixture.
type BookOption func(*application.Book)

// NewBookFixture returns a deterministic book with optional overrides.
func NewBookFixture(opts ...BookOption) application.Book {
	idx := atomic.AddUint64(&bookCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	book := application.Book{
		ID:         fmt.Sprintf("book-%03d", idx),
		Name:       fmt.Sprintf("Book %03d", idx),
		AuthorName: fmt.Sprintf("Author %03d", idx),
		Category:   "fiction",
		Rating:     4,
		Quantity:   3,
		Available:  true,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&book)
	}
	return book
}

// WithQuantity overrides the fixture book's shelf count and keeps the
// availability flag consistent with it.
func WithQuantity(quantity int) BookOption {
	return func(b *application.Book) {
		b.Quantity = quantity
		b.Available = quantity > 0
	}
}

// WithStaleAvailability forces the availability flag out of line with the
// quantity to exercise the self-healing read path.
func WithStaleAvailability(available bool) BookOption {
	return func(b *application.Book) { b.Available = available }
}

// BorrowOption configures the generated borrow record fixture.
type BorrowOption func(*application.BorrowRecord)

// NewBorrowFixture returns a deterministic borrow record linking the given
// user and book, with optional overrides.
func NewBorrowFixture(user application.User, book application.Book, opts ...BorrowOption) application.BorrowRecord {
	idx := atomic.AddUint64(&borrowCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	record := application.BorrowRecord{
		ID:          fmt.Sprintf("borrow-%03d", idx),
		UserID:      user.ID,
		BookID:      book.ID,
		Email:       user.Email,
		BookName:    book.Name,
		AuthorName:  book.AuthorName,
		Category:    book.Category,
		Image:       book.Image,
		BorrowedAt:  created,
		ReturnDueAt: created.AddDate(0, 0, 14),
		Status:      application.StatusBorrowed,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&record)
	}
	return record
}

// WithStatus overrides the fixture record's lifecycle status. Pending records
// also get a request timestamp.
func WithStatus(status string) BorrowOption {
	return func(r *application.BorrowRecord) {
		r.Status = status
		if status == application.StatusReturnPending {
			requested := r.BorrowedAt.Add(time.Hour)
			r.ReturnRequestedAt = &requested
		}
	}
}

// WithEditCount overrides the fixture record's return date edit count.
func WithEditCount(count int) BorrowOption {
	return func(r *application.BorrowRecord) { r.ReturnDateEditCount = count }
}
