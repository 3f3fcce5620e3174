package http

import (
	"net/http"
	"strings"
)

// RouterConfig collects the handlers and middleware wired into the router.
type RouterConfig struct {
	Auth        *AuthHandler
	Books       *BookHandler
	Borrows     *BorrowHandler
	Users       *UserHandler
	Suggestions *SuggestionHandler
	Health      http.HandlerFunc
	Middleware  []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP routing table and wraps it with the configured
// middleware, outermost first.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Health(w, r)
		})
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Register(w, r)
		})
		mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
	}

	if cfg.Borrows != nil {
		mux.HandleFunc("/borrowed", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Borrows.List(w, r)
			case http.MethodPost:
				cfg.Borrows.Borrow(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/borrowed/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/borrowed/")
			switch rest {
			case "":
				http.NotFound(w, r)
				return
			case "pending":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Borrows.ListPending(w, r)
				return
			case "all":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Borrows.ListAll(w, r)
				return
			}

			id := rest
			action := ""
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				id, action = rest[:idx], rest[idx+1:]
			}
			if id == "" {
				http.NotFound(w, r)
				return
			}

			ctx := ContextWithRecordID(r.Context(), id)
			r = r.WithContext(ctx)

			switch action {
			case "":
				switch r.Method {
				case http.MethodPatch:
					cfg.Borrows.SetStatus(w, r)
				case http.MethodDelete:
					cfg.Borrows.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodPatch, http.MethodDelete)
				}
			case "return":
				if r.Method != http.MethodPatch {
					methodNotAllowed(w, http.MethodPatch)
					return
				}
				cfg.Borrows.RequestReturn(w, r)
			case "return-date":
				if r.Method != http.MethodPatch {
					methodNotAllowed(w, http.MethodPatch)
					return
				}
				cfg.Borrows.UpdateReturnDate(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Books != nil {
		mux.HandleFunc("/books", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Books.List(w, r)
			case http.MethodPost:
				cfg.Books.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/books/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/books/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithBookID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Books.Get(w, r)
			case http.MethodPut:
				cfg.Books.Update(w, r)
			case http.MethodDelete:
				cfg.Books.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Suggestions != nil {
		mux.HandleFunc("/suggestions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Suggestions.List(w, r)
			case http.MethodPost:
				cfg.Suggestions.Submit(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/suggestions/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/suggestions/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithSuggestionID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodPatch:
				cfg.Suggestions.Moderate(w, r)
			case http.MethodDelete:
				cfg.Suggestions.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPatch, http.MethodDelete)
			}
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Users.List(w, r)
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/users/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			if email, ok := strings.CutPrefix(rest, "admin/"); ok {
				if email == "" {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Users.AdminStatus(w, r, email)
				return
			}

			id := rest
			action := ""
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				id, action = rest[:idx], rest[idx+1:]
			}
			if id == "" {
				http.NotFound(w, r)
				return
			}

			ctx := ContextWithUserID(r.Context(), id)
			r = r.WithContext(ctx)

			switch action {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Users.Get(w, r)
				case http.MethodDelete:
					cfg.Users.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodDelete)
				}
			case "role":
				if r.Method != http.MethodPatch {
					methodNotAllowed(w, http.MethodPatch)
					return
				}
				cfg.Users.SetRole(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
