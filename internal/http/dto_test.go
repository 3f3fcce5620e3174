package http

import (
	"testing"
	"time"

	"github.com/example/librarian/internal/application"
	"github.com/example/librarian/internal/testfixtures"
)

func TestToBorrowRecordDTO(t *testing.T) {
	user := testfixtures.NewUserFixture()
	book := testfixtures.NewBookFixture()

	t.Run("formats timestamps as RFC 3339", func(t *testing.T) {
		record := testfixtures.NewBorrowFixture(user, book)
		dto := toBorrowRecordDTO(record)

		if dto.ID != record.ID || dto.UserID != user.ID || dto.BookID != book.ID {
			t.Fatalf("identifiers not mapped: %+v", dto)
		}
		if _, err := time.Parse(time.RFC3339, dto.BorrowedAt); err != nil {
			t.Fatalf("borrowedAt not RFC 3339: %q", dto.BorrowedAt)
		}
		if _, err := time.Parse(time.RFC3339, dto.ReturnDate); err != nil {
			t.Fatalf("returnDate not RFC 3339: %q", dto.ReturnDate)
		}
		if dto.ReturnRequestedAt != nil {
			t.Fatalf("expected no request timestamp for a fresh borrow")
		}
	})

	t.Run("carries the request timestamp for pending returns", func(t *testing.T) {
		record := testfixtures.NewBorrowFixture(user, book, testfixtures.WithStatus(application.StatusReturnPending))
		dto := toBorrowRecordDTO(record)

		if dto.Status != application.StatusReturnPending {
			t.Fatalf("expected pending status, got %q", dto.Status)
		}
		if dto.ReturnRequestedAt == nil {
			t.Fatalf("expected a request timestamp for a pending return")
		}
		if _, err := time.Parse(time.RFC3339, *dto.ReturnRequestedAt); err != nil {
			t.Fatalf("returnRequestedAt not RFC 3339: %q", *dto.ReturnRequestedAt)
		}
	})
}

func TestToUserDTO(t *testing.T) {
	user := testfixtures.NewUserFixture(testfixtures.AsAdmin())
	dto := toUserDTO(user)

	if dto.ID != user.ID || dto.Email != user.Email || dto.Name != user.Name {
		t.Fatalf("identity fields not mapped: %+v", dto)
	}
	if dto.Role != application.RoleAdmin {
		t.Fatalf("expected admin role, got %q", dto.Role)
	}
	if _, err := time.Parse(time.RFC3339, dto.CreatedAt); err != nil {
		t.Fatalf("createdAt not RFC 3339: %q", dto.CreatedAt)
	}
}
