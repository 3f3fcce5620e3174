package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/librarian/internal/application"
	"github.com/example/librarian/internal/persistence"
	"github.com/example/librarian/internal/testfixtures"
)

// accountStore is a minimal in-memory account repository for wiring real
// services behind the handlers.
type accountStore struct {
	users map[string]application.User
}

func newAccountStore() *accountStore {
	return &accountStore{users: make(map[string]application.User)}
}

func (s *accountStore) CreateUser(ctx context.Context, user application.User) error {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *accountStore) UpdateUser(ctx context.Context, user application.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *accountStore) GetUser(ctx context.Context, id string) (application.User, error) {
	user, ok := s.users[id]
	if !ok {
		return application.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *accountStore) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return application.User{}, persistence.ErrNotFound
}

func (s *accountStore) ListUsers(ctx context.Context) ([]application.User, error) {
	out := make([]application.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *accountStore) DeleteUser(ctx context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

type revocationStore struct {
	revoked map[string]bool
}

func newRevocationStore() *revocationStore {
	return &revocationStore{revoked: make(map[string]bool)}
}

func (s *revocationStore) RevokeToken(ctx context.Context, tokenID string, expiresAt, revokedAt time.Time) error {
	s.revoked[tokenID] = true
	return nil
}

func (s *revocationStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.revoked[tokenID], nil
}

func (s *revocationStore) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	return nil
}

// TestAuthHandler_Lifecycle drives registration, login, verification, and
// logout through real services behind the handler.
func TestAuthHandler_Lifecycle(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	ids := testfixtures.NewIDGenerator("auth")
	store := newAccountStore()
	revocations := newRevocationStore()

	users := application.NewUserService(store, ids.NextFunc(), clock.NowFunc())
	auth := application.NewAuthService(store, revocations, "test-secret", time.Hour, ids.NextFunc(), clock.NowFunc())
	handler := NewAuthHandler(auth, users, nil)

	register := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"email":"reader@example.com","name":"Reader","password":"correct horse"}`))
	rec := httptest.NewRecorder()
	handler.Register(rec, register)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from register, got %d: %s", rec.Code, rec.Body.String())
	}

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"reader@example.com","password":"correct horse"}`))
	rec = httptest.NewRecorder()
	handler.Login(rec, login)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Success bool          `json:"success"`
		Data    loginResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if payload.Data.Token == "" {
		t.Fatalf("expected a token in the login response")
	}
	if payload.Data.User.Email != "reader@example.com" {
		t.Fatalf("unexpected user in login response: %+v", payload.Data.User)
	}

	identity, err := auth.Verify(context.Background(), payload.Data.Token)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout = logout.WithContext(ContextWithIdentity(logout.Context(), identity))
	rec = httptest.NewRecorder()
	handler.Logout(rec, logout)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := auth.Verify(context.Background(), payload.Data.Token); err == nil {
		t.Fatalf("expected verification to fail after logout")
	}

	clock.Advance(2 * time.Hour)
	freshLogin := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"reader@example.com","password":"correct horse"}`))
	rec = httptest.NewRecorder()
	handler.Login(rec, freshLogin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed after the clock moved, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	auth := application.NewAuthService(newAccountStore(), newRevocationStore(), "test-secret", time.Hour, nil, clock.NowFunc())
	handler := NewAuthHandler(auth, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"nope nope"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	payload := decodeEnvelope(t, rec)
	if payload.Success {
		t.Fatalf("expected failure envelope, got %+v", payload)
	}
}

func TestAuthHandler_Logout_RequiresIdentity(t *testing.T) {
	auth := application.NewAuthService(newAccountStore(), newRevocationStore(), "test-secret", time.Hour, nil, nil)
	handler := NewAuthHandler(auth, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
