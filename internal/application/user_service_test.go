package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/librarian/internal/persistence"
)

func TestUserService_Register(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)

	t.Run("validates required attributes", func(t *testing.T) {
		svc := NewUserService(newUserRepoStub(), nil, func() time.Time { return now })

		_, err := svc.Register(context.Background(), RegisterParams{Password: "short"})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s validation error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		svc := NewUserService(newUserRepoStub(), nil, func() time.Time { return now })

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:    "not-an-address",
			Name:     "Reader",
			Password: "long enough",
		})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["email"]; !ok {
			t.Fatalf("expected email validation error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("creates a reader account with a hashed password", func(t *testing.T) {
		repo := newUserRepoStub()
		svc := NewUserService(repo, func() string { return "user-1" }, func() time.Time { return now })

		user, err := svc.Register(context.Background(), RegisterParams{
			Email:    " Reader@Example.com ",
			Name:     "Reader One",
			Password: "long enough",
		})
		if err != nil {
			t.Fatalf("Register returned error: %v", err)
		}

		if user.ID != "user-1" {
			t.Fatalf("expected generated ID, got %q", user.ID)
		}
		if user.Email != "reader@example.com" {
			t.Fatalf("expected normalized email, got %q", user.Email)
		}
		if user.Role != RoleUser {
			t.Fatalf("expected default role, got %q", user.Role)
		}
		if user.PasswordHash != "" {
			t.Fatalf("password hash leaked in register result")
		}
		if repo.created.PasswordHash == "" || repo.created.PasswordHash == "long enough" {
			t.Fatalf("expected a derived hash to be persisted, got %q", repo.created.PasswordHash)
		}
		if err := VerifyPassword(repo.created.PasswordHash, "long enough"); err != nil {
			t.Fatalf("stored hash does not verify: %v", err)
		}
	})

	t.Run("maps duplicate addresses", func(t *testing.T) {
		repo := newUserRepoStub()
		repo.createErr = persistence.ErrDuplicate
		svc := NewUserService(repo, nil, func() time.Time { return now })

		_, err := svc.Register(context.Background(), RegisterParams{
			Email:    "reader@example.com",
			Name:     "Reader",
			Password: "long enough",
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserService_GetUser(t *testing.T) {
	account := User{ID: "user-1", Email: "reader@example.com", PasswordHash: "hash"}
	svc := NewUserService(newUserRepoStub(account), nil, nil)

	t.Run("owners may read their account", func(t *testing.T) {
		user, err := svc.GetUser(context.Background(), Principal{UserID: "user-1"}, "user-1")
		if err != nil {
			t.Fatalf("GetUser returned error: %v", err)
		}
		if user.PasswordHash != "" {
			t.Fatalf("password hash leaked")
		}
	})

	t.Run("rejects reads of other accounts", func(t *testing.T) {
		_, err := svc.GetUser(context.Background(), Principal{UserID: "user-2"}, "user-1")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("administrators may read any account", func(t *testing.T) {
		if _, err := svc.GetUser(context.Background(), Principal{UserID: "admin-1", IsAdmin: true}, "user-1"); err != nil {
			t.Fatalf("GetUser returned error: %v", err)
		}
	})
}

func TestUserService_ListUsers(t *testing.T) {
	svc := NewUserService(newUserRepoStub(User{ID: "user-1", PasswordHash: "hash"}), nil, nil)

	t.Run("requires administrator privileges", func(t *testing.T) {
		_, err := svc.ListUsers(context.Background(), Principal{UserID: "user-1"})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("strips password hashes", func(t *testing.T) {
		users, err := svc.ListUsers(context.Background(), Principal{UserID: "admin-1", IsAdmin: true})
		if err != nil {
			t.Fatalf("ListUsers returned error: %v", err)
		}
		for _, user := range users {
			if user.PasswordHash != "" {
				t.Fatalf("password hash leaked for %s", user.ID)
			}
		}
	})
}

func TestUserService_AdminStatus(t *testing.T) {
	admin := User{ID: "admin-1", Email: "admin@example.com", Role: RoleAdmin}
	reader := User{ID: "user-1", Email: "reader@example.com", Role: RoleUser}
	svc := NewUserService(newUserRepoStub(admin, reader), nil, nil)

	t.Run("defaults to the caller's own email", func(t *testing.T) {
		isAdmin, err := svc.AdminStatus(context.Background(), Principal{UserID: "admin-1", Email: admin.Email}, "")
		if err != nil {
			t.Fatalf("AdminStatus returned error: %v", err)
		}
		if !isAdmin {
			t.Fatalf("expected admin status true")
		}
	})

	t.Run("readers may not probe other addresses", func(t *testing.T) {
		_, err := svc.AdminStatus(context.Background(), Principal{UserID: "user-1", Email: reader.Email}, admin.Email)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("administrators may ask about anyone", func(t *testing.T) {
		isAdmin, err := svc.AdminStatus(context.Background(), Principal{UserID: "admin-1", Email: admin.Email, IsAdmin: true}, reader.Email)
		if err != nil {
			t.Fatalf("AdminStatus returned error: %v", err)
		}
		if isAdmin {
			t.Fatalf("expected admin status false for a reader")
		}
	})
}

func TestUserService_SetRole(t *testing.T) {
	now := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	seed := func() (*UserService, *userRepoStub) {
		repo := newUserRepoStub(User{ID: "user-1", Email: "reader@example.com", Role: RoleUser})
		return NewUserService(repo, nil, func() time.Time { return now }), repo
	}

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc, _ := seed()

		_, err := svc.SetRole(context.Background(), Principal{UserID: "user-1"}, "user-1", RoleAdmin)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("validates the role value", func(t *testing.T) {
		svc, _ := seed()

		_, err := svc.SetRole(context.Background(), admin, "user-1", "superuser")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("promotes an account", func(t *testing.T) {
		svc, repo := seed()

		user, err := svc.SetRole(context.Background(), admin, "user-1", RoleAdmin)
		if err != nil {
			t.Fatalf("SetRole returned error: %v", err)
		}
		if user.Role != RoleAdmin {
			t.Fatalf("expected role %q, got %q", RoleAdmin, user.Role)
		}
		if repo.updated.Role != RoleAdmin {
			t.Fatalf("role change not persisted")
		}
		if !repo.updated.UpdatedAt.Equal(now) {
			t.Fatalf("expected update timestamp %v, got %v", now, repo.updated.UpdatedAt)
		}
	})

	t.Run("reports missing accounts", func(t *testing.T) {
		svc, _ := seed()

		_, err := svc.SetRole(context.Background(), admin, "nope", RoleAdmin)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	t.Run("requires administrator privileges", func(t *testing.T) {
		svc := NewUserService(newUserRepoStub(User{ID: "user-1"}), nil, nil)

		err := svc.DeleteUser(context.Background(), Principal{UserID: "user-1"}, "user-1")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("removes the account", func(t *testing.T) {
		repo := newUserRepoStub(User{ID: "user-1"})
		svc := NewUserService(repo, nil, nil)

		if err := svc.DeleteUser(context.Background(), admin, "user-1"); err != nil {
			t.Fatalf("DeleteUser returned error: %v", err)
		}
		if repo.deleted != "user-1" {
			t.Fatalf("expected user-1 deleted, got %q", repo.deleted)
		}
	})

	t.Run("rejects accounts with borrow history", func(t *testing.T) {
		repo := newUserRepoStub(User{ID: "user-1"})
		repo.deleteErr = persistence.ErrForeignKeyViolation
		svc := NewUserService(repo, nil, nil)

		err := svc.DeleteUser(context.Background(), admin, "user-1")
		var sErr *InvalidStateError
		if !errors.As(err, &sErr) {
			t.Fatalf("expected InvalidStateError, got %v", err)
		}
	})
}
