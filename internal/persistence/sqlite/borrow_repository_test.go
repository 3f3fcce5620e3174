package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/librarian/internal/persistence"
)

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	pool, err := NewConnectionPool("file::memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return pool
}

func seedUser(t *testing.T, pool *ConnectionPool, id, email string) persistence.User {
	t.Helper()

	user := persistence.User{
		ID:           id,
		Email:        email,
		Name:         "Test User",
		PasswordHash: "hash",
		Role:         "user",
	}
	if err := NewUserRepository(pool).CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

func seedBook(t *testing.T, pool *ConnectionPool, id string, quantity int) persistence.Book {
	t.Helper()

	book := persistence.Book{
		ID:         id,
		Name:       "Dune",
		AuthorName: "Frank Herbert",
		Category:   "sci-fi",
		Quantity:   quantity,
		Available:  quantity > 0,
	}
	if err := NewBookRepository(pool).CreateBook(context.Background(), book); err != nil {
		t.Fatalf("failed to seed book %s: %v", id, err)
	}
	return book
}

func newBorrowRecord(user persistence.User, book persistence.Book, id string) persistence.BorrowRecord {
	borrowed := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	return persistence.BorrowRecord{
		ID:          id,
		UserID:      user.ID,
		BookID:      book.ID,
		Email:       user.Email,
		BookName:    book.Name,
		AuthorName:  book.AuthorName,
		Category:    book.Category,
		BorrowedAt:  borrowed,
		ReturnDueAt: borrowed.AddDate(0, 0, 14),
		Status:      "borrowed",
	}
}

func TestBorrowRepository_CreateBorrow(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements the book's quantity with the insert", func(t *testing.T) {
		pool := newTestPool(t)
		user := seedUser(t, pool, "user-1", "reader@example.com")
		book := seedBook(t, pool, "book-1", 2)
		repo := NewBorrowRepository(pool)

		if err := repo.CreateBorrow(ctx, newBorrowRecord(user, book, "rec-1")); err != nil {
			t.Fatalf("CreateBorrow returned error: %v", err)
		}

		stored, err := NewBookRepository(pool).GetBook(ctx, "book-1")
		if err != nil {
			t.Fatalf("GetBook returned error: %v", err)
		}
		if stored.Quantity != 1 {
			t.Fatalf("expected quantity 1, got %d", stored.Quantity)
		}
		if !stored.Available {
			t.Fatalf("expected book still available with one copy left")
		}
	})

	t.Run("taking the last copy clears the available flag", func(t *testing.T) {
		pool := newTestPool(t)
		user := seedUser(t, pool, "user-1", "reader@example.com")
		book := seedBook(t, pool, "book-1", 1)
		repo := NewBorrowRepository(pool)

		if err := repo.CreateBorrow(ctx, newBorrowRecord(user, book, "rec-1")); err != nil {
			t.Fatalf("CreateBorrow returned error: %v", err)
		}

		stored, err := NewBookRepository(pool).GetBook(ctx, "book-1")
		if err != nil {
			t.Fatalf("GetBook returned error: %v", err)
		}
		if stored.Quantity != 0 || stored.Available {
			t.Fatalf("expected empty shelf, got %+v", stored)
		}
	})

	t.Run("rejects a second active borrow for the same pair", func(t *testing.T) {
		pool := newTestPool(t)
		user := seedUser(t, pool, "user-1", "reader@example.com")
		book := seedBook(t, pool, "book-1", 5)
		repo := NewBorrowRepository(pool)

		if err := repo.CreateBorrow(ctx, newBorrowRecord(user, book, "rec-1")); err != nil {
			t.Fatalf("first CreateBorrow returned error: %v", err)
		}

		err := repo.CreateBorrow(ctx, newBorrowRecord(user, book, "rec-2"))
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		// The failed insert must roll back its quantity decrement.
		stored, err := NewBookRepository(pool).GetBook(ctx, "book-1")
		if err != nil {
			t.Fatalf("GetBook returned error: %v", err)
		}
		if stored.Quantity != 4 {
			t.Fatalf("expected quantity 4 after rollback, got %d", stored.Quantity)
		}
	})

	t.Run("a returned record does not block a fresh borrow", func(t *testing.T) {
		pool := newTestPool(t)
		user := seedUser(t, pool, "user-1", "reader@example.com")
		book := seedBook(t, pool, "book-1", 5)
		repo := NewBorrowRepository(pool)

		first := newBorrowRecord(user, book, "rec-1")
		if err := repo.CreateBorrow(ctx, first); err != nil {
			t.Fatalf("first CreateBorrow returned error: %v", err)
		}
		first.Status = "returned"
		if err := repo.ConfirmReturn(ctx, first); err != nil {
			t.Fatalf("ConfirmReturn returned error: %v", err)
		}

		if err := repo.CreateBorrow(ctx, newBorrowRecord(user, book, "rec-2")); err != nil {
			t.Fatalf("fresh borrow after return failed: %v", err)
		}
	})

	t.Run("reports exhausted stock", func(t *testing.T) {
		pool := newTestPool(t)
		first := seedUser(t, pool, "user-1", "reader@example.com")
		second := seedUser(t, pool, "user-2", "other@example.com")
		book := seedBook(t, pool, "book-1", 1)
		repo := NewBorrowRepository(pool)

		if err := repo.CreateBorrow(ctx, newBorrowRecord(first, book, "rec-1")); err != nil {
			t.Fatalf("first CreateBorrow returned error: %v", err)
		}

		err := repo.CreateBorrow(ctx, newBorrowRecord(second, book, "rec-2"))
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
	})

	t.Run("reports missing books", func(t *testing.T) {
		pool := newTestPool(t)
		user := seedUser(t, pool, "user-1", "reader@example.com")
		repo := NewBorrowRepository(pool)

		record := newBorrowRecord(user, persistence.Book{ID: "ghost"}, "rec-1")
		err := repo.CreateBorrow(ctx, record)
		if !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestBorrowRepository_ConfirmReturn(t *testing.T) {
	ctx := context.Background()

	pool := newTestPool(t)
	user := seedUser(t, pool, "user-1", "reader@example.com")
	book := seedBook(t, pool, "book-1", 1)
	repo := NewBorrowRepository(pool)

	record := newBorrowRecord(user, book, "rec-1")
	if err := repo.CreateBorrow(ctx, record); err != nil {
		t.Fatalf("CreateBorrow returned error: %v", err)
	}

	record.Status = "returned"
	record.Fine = 1.5
	if err := repo.ConfirmReturn(ctx, record); err != nil {
		t.Fatalf("ConfirmReturn returned error: %v", err)
	}

	stored, err := repo.GetBorrow(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetBorrow returned error: %v", err)
	}
	if stored.Status != "returned" {
		t.Fatalf("expected returned status, got %q", stored.Status)
	}
	if stored.ReturnRequestedAt != nil {
		t.Fatalf("expected request timestamp cleared, got %v", stored.ReturnRequestedAt)
	}
	if stored.Fine != 1.5 {
		t.Fatalf("expected fine 1.5, got %v", stored.Fine)
	}

	shelf, err := NewBookRepository(pool).GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook returned error: %v", err)
	}
	if shelf.Quantity != 1 || !shelf.Available {
		t.Fatalf("expected copy restored, got %+v", shelf)
	}
}

func TestBorrowRepository_ListBorrows(t *testing.T) {
	ctx := context.Background()

	pool := newTestPool(t)
	reader := seedUser(t, pool, "user-1", "reader@example.com")
	other := seedUser(t, pool, "user-2", "other@example.com")
	repo := NewBorrowRepository(pool)

	for i, owner := range []persistence.User{reader, other, reader} {
		book := seedBook(t, pool, fmt.Sprintf("book-%d", i+1), 1)
		record := newBorrowRecord(owner, book, fmt.Sprintf("rec-%d", i+1))
		record.BorrowedAt = record.BorrowedAt.Add(time.Duration(i) * time.Hour)
		if err := repo.CreateBorrow(ctx, record); err != nil {
			t.Fatalf("CreateBorrow %d returned error: %v", i+1, err)
		}
	}

	t.Run("filters by email newest first", func(t *testing.T) {
		records, err := repo.ListBorrows(ctx, persistence.BorrowFilter{Email: reader.Email})
		if err != nil {
			t.Fatalf("ListBorrows returned error: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected two records, got %d", len(records))
		}
		if records[0].ID != "rec-3" || records[1].ID != "rec-1" {
			t.Fatalf("expected newest first, got %s then %s", records[0].ID, records[1].ID)
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		stored, err := repo.GetBorrow(ctx, "rec-1")
		if err != nil {
			t.Fatalf("GetBorrow returned error: %v", err)
		}
		requested := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
		stored.Status = "return_pending"
		stored.ReturnRequestedAt = &requested
		if err := repo.UpdateBorrow(ctx, stored); err != nil {
			t.Fatalf("UpdateBorrow returned error: %v", err)
		}

		records, err := repo.ListBorrows(ctx, persistence.BorrowFilter{
			Email:    reader.Email,
			Statuses: []string{"return_pending"},
		})
		if err != nil {
			t.Fatalf("ListBorrows returned error: %v", err)
		}
		if len(records) != 1 || records[0].ID != "rec-1" {
			t.Fatalf("expected only the pending record, got %+v", records)
		}

		pending, err := repo.ListPendingReturns(ctx)
		if err != nil {
			t.Fatalf("ListPendingReturns returned error: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != "rec-1" {
			t.Fatalf("expected the pending record in the queue, got %+v", pending)
		}
	})

	t.Run("an empty filter returns everything", func(t *testing.T) {
		records, err := repo.ListBorrows(ctx, persistence.BorrowFilter{})
		if err != nil {
			t.Fatalf("ListBorrows returned error: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected three records, got %d", len(records))
		}
	})
}

func TestBookRepository_RepairAvailability(t *testing.T) {
	ctx := context.Background()

	pool := newTestPool(t)
	seedBook(t, pool, "book-1", 2)
	repo := NewBookRepository(pool)

	// Force the derived flag out of line with the quantity.
	if _, err := pool.DB().ExecContext(ctx, "UPDATE books SET available = 0 WHERE id = ?", "book-1"); err != nil {
		t.Fatalf("failed to corrupt flag: %v", err)
	}

	if err := repo.RepairAvailability(ctx, "book-1", time.Now()); err != nil {
		t.Fatalf("RepairAvailability returned error: %v", err)
	}

	book, err := repo.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook returned error: %v", err)
	}
	if !book.Available {
		t.Fatalf("expected flag repaired, got %+v", book)
	}
}

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

	pool := newTestPool(t)
	repo := NewTokenRepository(pool)

	token := persistence.RevokedToken{
		TokenID:   "token-1",
		ExpiresAt: now.Add(time.Hour),
		RevokedAt: now,
	}
	if err := repo.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken returned error: %v", err)
	}

	revoked, err := repo.IsTokenRevoked(ctx, "token-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked returned error: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token-1 revoked")
	}

	revoked, err = repo.IsTokenRevoked(ctx, "token-2")
	if err != nil {
		t.Fatalf("IsTokenRevoked returned error: %v", err)
	}
	if revoked {
		t.Fatalf("token-2 should not be revoked")
	}

	if err := repo.DeleteExpiredTokens(ctx, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("DeleteExpiredTokens returned error: %v", err)
	}

	revoked, err = repo.IsTokenRevoked(ctx, "token-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected expired revocation pruned")
	}
}
