package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// Role values for user accounts.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Borrow record lifecycle statuses. Transitions only move forward:
// borrowed, then return_pending, then returned.
const (
	StatusBorrowed      = "borrowed"
	StatusReturnPending = "return_pending"
	StatusReturned      = "returned"
)

// Suggestion moderation statuses.
const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

// User represents a library member or administrator account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Book represents a catalog entry. Available is derived from Quantity and is
// repaired on read whenever the two disagree.
type Book struct {
	ID            string
	Name          string
	AuthorName    string
	Category      string
	Image         string
	Rating        float64
	Description   string
	ISBN          *string
	PublishedYear *int
	Quantity      int
	Available     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BookInput captures caller provided catalog fields.
type BookInput struct {
	Name          string
	AuthorName    string
	Category      string
	Image         string
	Rating        float64
	Description   string
	ISBN          *string
	PublishedYear *int
	Quantity      int
}

// BorrowRecord represents one user's borrowing of one book copy. The book
// fields are snapshots taken at borrow time.
type BorrowRecord struct {
	ID                  string
	UserID              string
	BookID              string
	Email               string
	BookName            string
	AuthorName          string
	Category            string
	Image               string
	BorrowedAt          time.Time
	ReturnDueAt         time.Time
	ReturnRequestedAt   *time.Time
	ReturnDateEditCount int
	Status              string
	Fine                float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BorrowInput captures the caller supplied fields of a borrow request. The
// snapshot fields are optional; missing ones are filled from the catalog.
type BorrowInput struct {
	BookID      string
	BookName    string
	AuthorName  string
	Category    string
	Image       string
	ReturnDueAt time.Time
}

// BorrowBookParams wraps the data required to create a borrow record.
type BorrowBookParams struct {
	Principal Principal
	Input     BorrowInput
}

// RequestReturnParams wraps the data required to flag a record for return.
type RequestReturnParams struct {
	Principal Principal
	RecordID  string
}

// UpdateReturnDateParams wraps the data required to move a planned return date.
type UpdateReturnDateParams struct {
	Principal   Principal
	RecordID    string
	ReturnDueAt time.Time
}

// SetStatusParams wraps the data required for an administrator status change.
type SetStatusParams struct {
	Principal Principal
	RecordID  string
	Status    string
	Fine      *float64
}

// DeleteRecordParams wraps the data required to delete a borrow record.
type DeleteRecordParams struct {
	Principal Principal
	RecordID  string
}

// ListBorrowsParams wraps the data required to list a user's borrow records.
// Statuses defaults to the active statuses when empty.
type ListBorrowsParams struct {
	Principal Principal
	Email     string
	Statuses  []string
}

// BookSuggestion represents a reader-submitted catalog candidate.
type BookSuggestion struct {
	ID            string
	UserID        string
	Email         string
	Name          string
	AuthorName    string
	Category      string
	Image         string
	Rating        float64
	Description   string
	ISBN          *string
	PublishedYear *int
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SuggestionInput captures caller provided suggestion fields.
type SuggestionInput struct {
	Name          string
	AuthorName    string
	Category      string
	Image         string
	Rating        float64
	Description   string
	ISBN          *string
	PublishedYear *int
}

// Identity describes a verified token: who presented it and when it expires.
type Identity struct {
	Principal Principal
	TokenID   string
	ExpiresAt time.Time
}
