package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/librarian/internal/persistence"
)

type bookRepoStub struct {
	books map[string]Book

	createErr error
	updateErr error
	getErr    error
	listErr   error
	deleteErr error
	repairErr error

	created  Book
	updated  Book
	deleted  string
	repaired []string
}

func newBookRepoStub(books ...Book) *bookRepoStub {
	stub := &bookRepoStub{books: make(map[string]Book)}
	for _, book := range books {
		stub.books[book.ID] = book
	}
	return stub
}

func (s *bookRepoStub) CreateBook(ctx context.Context, book Book) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = book
	s.books[book.ID] = book
	return nil
}

func (s *bookRepoStub) UpdateBook(ctx context.Context, book Book) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = book
	s.books[book.ID] = book
	return nil
}

func (s *bookRepoStub) GetBook(ctx context.Context, id string) (Book, error) {
	if s.getErr != nil {
		return Book{}, s.getErr
	}
	book, ok := s.books[id]
	if !ok {
		return Book{}, persistence.ErrNotFound
	}
	return book, nil
}

func (s *bookRepoStub) ListBooks(ctx context.Context, category string) ([]Book, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Book
	for _, book := range s.books {
		if category != "" && book.Category != category {
			continue
		}
		out = append(out, book)
	}
	return out, nil
}

func (s *bookRepoStub) DeleteBook(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.books[id]; !ok {
		return persistence.ErrNotFound
	}
	s.deleted = id
	delete(s.books, id)
	return nil
}

func (s *bookRepoStub) RepairAvailability(ctx context.Context, id string, now time.Time) error {
	if s.repairErr != nil {
		return s.repairErr
	}
	book, ok := s.books[id]
	if !ok {
		return persistence.ErrNotFound
	}
	book.Available = book.Quantity > 0
	s.books[id] = book
	s.repaired = append(s.repaired, id)
	return nil
}

func TestBookService_CreateBook(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewBookService(newBookRepoStub(), nil, func() time.Time { return now })

		_, err := svc.CreateBook(context.Background(), Principal{UserID: "user-1"}, BookInput{Name: "Dune"})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewBookService(newBookRepoStub(), nil, func() time.Time { return now })

		_, err := svc.CreateBook(context.Background(), admin, BookInput{Rating: 9})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"name", "authorName", "category", "rating"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("persists the entry with a derived availability flag", func(t *testing.T) {
		repo := newBookRepoStub()
		svc := NewBookService(repo, func() string { return "book-1" }, func() time.Time { return now })

		book, err := svc.CreateBook(context.Background(), admin, BookInput{
			Name:       " Dune ",
			AuthorName: "Frank Herbert",
			Category:   "sci-fi",
			Rating:     4.5,
			Quantity:   3,
		})
		if err != nil {
			t.Fatalf("CreateBook returned error: %v", err)
		}
		if book.ID != "book-1" {
			t.Fatalf("expected generated ID, got %q", book.ID)
		}
		if book.Name != "Dune" {
			t.Fatalf("expected trimmed name, got %q", book.Name)
		}
		if !book.Available {
			t.Fatalf("expected available with three copies")
		}
		if repo.created.ID != "book-1" {
			t.Fatalf("book not persisted")
		}
	})

	t.Run("zero copies start unavailable", func(t *testing.T) {
		svc := NewBookService(newBookRepoStub(), nil, func() time.Time { return now })

		book, err := svc.CreateBook(context.Background(), admin, BookInput{
			Name:       "Dune",
			AuthorName: "Frank Herbert",
			Category:   "sci-fi",
		})
		if err != nil {
			t.Fatalf("CreateBook returned error: %v", err)
		}
		if book.Available {
			t.Fatalf("expected unavailable with zero copies")
		}
	})
}

func TestBookService_UpdateBook(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	admin := Principal{UserID: "admin-1", IsAdmin: true}
	existing := Book{ID: "book-1", Name: "Dune", AuthorName: "Frank Herbert", Category: "sci-fi", Quantity: 1, Available: true}

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewBookService(newBookRepoStub(existing), nil, func() time.Time { return now })

		_, err := svc.UpdateBook(context.Background(), Principal{UserID: "user-1"}, "book-1", BookInput{})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("reports missing books", func(t *testing.T) {
		svc := NewBookService(newBookRepoStub(), nil, func() time.Time { return now })

		_, err := svc.UpdateBook(context.Background(), admin, "nope", BookInput{})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("applies the new attributes", func(t *testing.T) {
		repo := newBookRepoStub(existing)
		svc := NewBookService(repo, nil, func() time.Time { return now })

		book, err := svc.UpdateBook(context.Background(), admin, "book-1", BookInput{
			Name:       "Dune Messiah",
			AuthorName: "Frank Herbert",
			Category:   "sci-fi",
			Quantity:   0,
		})
		if err != nil {
			t.Fatalf("UpdateBook returned error: %v", err)
		}
		if book.Name != "Dune Messiah" {
			t.Fatalf("expected updated name, got %q", book.Name)
		}
		if book.Available {
			t.Fatalf("expected unavailable after quantity set to zero")
		}
		if !repo.updated.UpdatedAt.Equal(now) {
			t.Fatalf("expected update timestamp %v, got %v", now, repo.updated.UpdatedAt)
		}
	})
}

func TestBookService_GetBook(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

	t.Run("returns the entry as stored when consistent", func(t *testing.T) {
		repo := newBookRepoStub(Book{ID: "book-1", Quantity: 2, Available: true})
		svc := NewBookService(repo, nil, func() time.Time { return now })

		book, err := svc.GetBook(context.Background(), "book-1")
		if err != nil {
			t.Fatalf("GetBook returned error: %v", err)
		}
		if !book.Available {
			t.Fatalf("expected available book")
		}
		if len(repo.repaired) != 0 {
			t.Fatalf("unexpected repair for a consistent flag")
		}
	})

	t.Run("repairs a stale flag on the way out", func(t *testing.T) {
		repo := newBookRepoStub(Book{ID: "book-1", Quantity: 2, Available: false})
		svc := NewBookService(repo, nil, func() time.Time { return now })

		book, err := svc.GetBook(context.Background(), "book-1")
		if err != nil {
			t.Fatalf("GetBook returned error: %v", err)
		}
		if !book.Available {
			t.Fatalf("expected repaired flag in the response")
		}
		if len(repo.repaired) != 1 || repo.repaired[0] != "book-1" {
			t.Fatalf("expected repair call for book-1, got %v", repo.repaired)
		}
	})

	t.Run("serves the corrected flag even when the repair fails", func(t *testing.T) {
		repo := newBookRepoStub(Book{ID: "book-1", Quantity: 0, Available: true})
		repo.repairErr = errors.New("disk full")
		svc := NewBookService(repo, nil, func() time.Time { return now })

		book, err := svc.GetBook(context.Background(), "book-1")
		if err != nil {
			t.Fatalf("GetBook returned error: %v", err)
		}
		if book.Available {
			t.Fatalf("expected corrected flag despite repair failure")
		}
	})
}

func TestBookService_ListBooks(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	repo := newBookRepoStub(
		Book{ID: "book-1", Category: "sci-fi", Quantity: 1, Available: true},
		Book{ID: "book-2", Category: "history", Quantity: 0, Available: true},
	)
	svc := NewBookService(repo, nil, func() time.Time { return now })

	t.Run("filters by category", func(t *testing.T) {
		books, err := svc.ListBooks(context.Background(), "history")
		if err != nil {
			t.Fatalf("ListBooks returned error: %v", err)
		}
		if len(books) != 1 || books[0].ID != "book-2" {
			t.Fatalf("expected only the history entry, got %+v", books)
		}
	})

	t.Run("repairs stale flags across the listing", func(t *testing.T) {
		books, err := svc.ListBooks(context.Background(), "")
		if err != nil {
			t.Fatalf("ListBooks returned error: %v", err)
		}
		for _, book := range books {
			if book.Available != (book.Quantity > 0) {
				t.Fatalf("stale flag served for %s: %+v", book.ID, book)
			}
		}
	})
}

func TestBookService_DeleteBook(t *testing.T) {
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewBookService(newBookRepoStub(Book{ID: "book-1"}), nil, nil)

		err := svc.DeleteBook(context.Background(), Principal{UserID: "user-1"}, "book-1")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("removes the entry", func(t *testing.T) {
		repo := newBookRepoStub(Book{ID: "book-1"})
		svc := NewBookService(repo, nil, nil)

		if err := svc.DeleteBook(context.Background(), admin, "book-1"); err != nil {
			t.Fatalf("DeleteBook returned error: %v", err)
		}
		if repo.deleted != "book-1" {
			t.Fatalf("expected book-1 deleted, got %q", repo.deleted)
		}
	})

	t.Run("rejects books with borrow history", func(t *testing.T) {
		repo := newBookRepoStub(Book{ID: "book-1"})
		repo.deleteErr = persistence.ErrForeignKeyViolation
		svc := NewBookService(repo, nil, nil)

		err := svc.DeleteBook(context.Background(), admin, "book-1")
		var sErr *InvalidStateError
		if !errors.As(err, &sErr) {
			t.Fatalf("expected InvalidStateError, got %v", err)
		}
	})
}
