package persistence

import "time"

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

// Book represents a catalog entry. Quantity counts the copies currently on the
// shelf; Available is a derived flag kept equal to Quantity > 0.
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

// BorrowRecord represents one user's active or historical borrowing of one
// book copy. The name, author, category and image fields are snapshots taken
// at borrow time and may drift from the catalog afterwards.
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

// BookSuggestion represents a reader-submitted catalog candidate awaiting
// moderation.
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

// RevokedToken records a JWT that was invalidated by logout before its
// natural expiry.
type RevokedToken struct {
	TokenID   string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// BorrowFilter narrows borrow record queries. An empty Email matches all
// users; an empty Statuses slice matches all statuses.
type BorrowFilter struct {
	Email    string
	Statuses []string
}
