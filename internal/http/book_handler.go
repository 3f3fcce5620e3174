package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/librarian/internal/application"
)

type bookService interface {
	CreateBook(ctx context.Context, principal application.Principal, input application.BookInput) (application.Book, error)
	UpdateBook(ctx context.Context, principal application.Principal, bookID string, input application.BookInput) (application.Book, error)
	GetBook(ctx context.Context, id string) (application.Book, error)
	ListBooks(ctx context.Context, category string) ([]application.Book, error)
	DeleteBook(ctx context.Context, principal application.Principal, id string) error
}

// BookHandler exposes the catalog endpoints.
type BookHandler struct {
	service   bookService
	responder responder
	logger    *slog.Logger
}

// NewBookHandler constructs a book handler.
func NewBookHandler(service bookService, logger *slog.Logger) *BookHandler {
	base := defaultLogger(logger)
	return &BookHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookHandler", operation, attrs...)
}

type bookRequest struct {
	Name          string  `json:"name"`
	AuthorName    string  `json:"authorName"`
	Category      string  `json:"category"`
	Image         string  `json:"image"`
	Rating        float64 `json:"rating"`
	Description   string  `json:"description"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"publishedYear"`
	Quantity      int     `json:"quantity"`
}

func (r bookRequest) toInput() application.BookInput {
	return application.BookInput{
		Name:          r.Name,
		AuthorName:    r.AuthorName,
		Category:      r.Category,
		Image:         r.Image,
		Rating:        r.Rating,
		Description:   r.Description,
		ISBN:          r.ISBN,
		PublishedYear: r.PublishedYear,
		Quantity:      r.Quantity,
	}
}

type bookDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	AuthorName    string  `json:"authorName"`
	Category      string  `json:"category"`
	Image         string  `json:"image,omitempty"`
	Rating        float64 `json:"rating"`
	Description   string  `json:"description,omitempty"`
	ISBN          *string `json:"isbn,omitempty"`
	PublishedYear *int    `json:"publishedYear,omitempty"`
	Quantity      int     `json:"quantity"`
	Available     bool    `json:"available"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toBookDTO(book application.Book) bookDTO {
	return bookDTO{
		ID:            book.ID,
		Name:          book.Name,
		AuthorName:    book.AuthorName,
		Category:      book.Category,
		Image:         book.Image,
		Rating:        book.Rating,
		Description:   book.Description,
		ISBN:          book.ISBN,
		PublishedYear: book.PublishedYear,
		Quantity:      book.Quantity,
		Available:     book.Available,
		CreatedAt:     book.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     book.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Create handles POST /books.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode book request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	book, err := h.service.CreateBook(r.Context(), principal, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "book creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("book_id", book.ID).InfoContext(r.Context(), "book created")
	h.responder.writeSuccess(r.Context(), w, http.StatusCreated, "book created", toBookDTO(book))
}

// Update handles PUT /books/{id}.
func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "book_id", bookID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode book update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "book_id", bookID)

	book, err := h.service.UpdateBook(r.Context(), principal, bookID, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "book update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "book updated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "book updated", toBookDTO(book))
}

// Get handles GET /books/{id}.
func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		h.log(r.Context(), "Get", "book_id", bookID).ErrorContext(r.Context(), "book lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "book found", toBookDTO(book))
}

// List handles GET /books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	books, err := h.service.ListBooks(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "book listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]bookDTO, 0, len(books))
	for _, book := range books {
		dtos = append(dtos, toBookDTO(book))
	}
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "books listed", dtos)
}

// Delete handles DELETE /books/{id}.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookID, ok := BookIDFromContext(r.Context())
	if !ok || strings.TrimSpace(bookID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "book_id", bookID)

	if err := h.service.DeleteBook(r.Context(), principal, bookID); err != nil {
		logger.ErrorContext(r.Context(), "book deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "book deleted")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "book deleted", nil)
}
