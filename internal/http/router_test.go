package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRouter(t *testing.T) {
	t.Run("routes borrow lifecycle paths to the record id", func(t *testing.T) {
		stub := &borrowServiceStub{}
		router := NewRouter(RouterConfig{Borrows: NewBorrowHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodPatch, "/borrowed/rec-42/return", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.requestedID != "rec-42" {
			t.Fatalf("expected record id rec-42, got %q", stub.requestedID)
		}
	})

	t.Run("keeps literal segments off the id routes", func(t *testing.T) {
		stub := &borrowServiceStub{}
		router := NewRouter(RouterConfig{Borrows: NewBorrowHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodGet, "/borrowed/pending", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.requestedID != "" {
			t.Fatalf("pending listing must not resolve a record id, got %q", stub.requestedID)
		}
	})

	t.Run("rejects wrong methods with an allow header", func(t *testing.T) {
		stub := &borrowServiceStub{}
		router := NewRouter(RouterConfig{Borrows: NewBorrowHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodPut, "/borrowed", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		allow := rec.Header().Get("Allow")
		if !strings.Contains(allow, http.MethodGet) || !strings.Contains(allow, http.MethodPost) {
			t.Fatalf("expected Allow header with GET and POST, got %q", allow)
		}
	})

	t.Run("rejects unknown actions", func(t *testing.T) {
		stub := &borrowServiceStub{}
		router := NewRouter(RouterConfig{Borrows: NewBorrowHandler(stub, nil)})

		req := httptest.NewRequest(http.MethodPatch, "/borrowed/rec-1/renew", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("serves health without other handlers", func(t *testing.T) {
		router := NewRouter(RouterConfig{Health: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("wraps middleware outermost first", func(t *testing.T) {
		var order []string
		tag := func(name string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewRouter(RouterConfig{
			Health:     func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
			Middleware: []func(http.Handler) http.Handler{tag("outer"), tag("inner")},
		})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
			t.Fatalf("expected outer then inner, got %v", order)
		}
	})
}
