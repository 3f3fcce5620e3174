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

type suggestionService interface {
	SubmitSuggestion(ctx context.Context, principal application.Principal, input application.SuggestionInput) (application.BookSuggestion, error)
	ListSuggestions(ctx context.Context, principal application.Principal) ([]application.BookSuggestion, error)
	ModerateSuggestion(ctx context.Context, principal application.Principal, suggestionID, status string) (application.BookSuggestion, error)
	DeleteSuggestion(ctx context.Context, principal application.Principal, suggestionID string) error
}

// SuggestionHandler exposes the reader suggestion endpoints.
type SuggestionHandler struct {
	service   suggestionService
	responder responder
	logger    *slog.Logger
}

// NewSuggestionHandler constructs a suggestion handler.
func NewSuggestionHandler(service suggestionService, logger *slog.Logger) *SuggestionHandler {
	base := defaultLogger(logger)
	return &SuggestionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SuggestionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SuggestionHandler", operation, attrs...)
}

type suggestionRequest struct {
	Name          string  `json:"name"`
	AuthorName    string  `json:"authorName"`
	Category      string  `json:"category"`
	Image         string  `json:"image"`
	Rating        float64 `json:"rating"`
	Description   string  `json:"description"`
	ISBN          *string `json:"isbn"`
	PublishedYear *int    `json:"publishedYear"`
}

type moderationRequest struct {
	Status string `json:"status"`
}

type suggestionDTO struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	AuthorName    string  `json:"authorName"`
	Category      string  `json:"category"`
	Image         string  `json:"image,omitempty"`
	Rating        float64 `json:"rating"`
	Description   string  `json:"description,omitempty"`
	ISBN          *string `json:"isbn,omitempty"`
	PublishedYear *int    `json:"publishedYear,omitempty"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toSuggestionDTO(suggestion application.BookSuggestion) suggestionDTO {
	return suggestionDTO{
		ID:            suggestion.ID,
		UserID:        suggestion.UserID,
		Email:         suggestion.Email,
		Name:          suggestion.Name,
		AuthorName:    suggestion.AuthorName,
		Category:      suggestion.Category,
		Image:         suggestion.Image,
		Rating:        suggestion.Rating,
		Description:   suggestion.Description,
		ISBN:          suggestion.ISBN,
		PublishedYear: suggestion.PublishedYear,
		Status:        suggestion.Status,
		CreatedAt:     suggestion.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     suggestion.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Submit handles POST /suggestions.
func (h *SuggestionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Submit", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode suggestion", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Submit", "principal_id", principal.UserID)

	suggestion, err := h.service.SubmitSuggestion(r.Context(), principal, application.SuggestionInput{
		Name:          req.Name,
		AuthorName:    req.AuthorName,
		Category:      req.Category,
		Image:         req.Image,
		Rating:        req.Rating,
		Description:   req.Description,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "suggestion submission failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("suggestion_id", suggestion.ID).InfoContext(r.Context(), "suggestion submitted")
	h.responder.writeSuccess(r.Context(), w, http.StatusCreated, "suggestion submitted", toSuggestionDTO(suggestion))
}

// List handles GET /suggestions.
func (h *SuggestionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	suggestions, err := h.service.ListSuggestions(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).ErrorContext(r.Context(), "suggestion listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]suggestionDTO, 0, len(suggestions))
	for _, suggestion := range suggestions {
		dtos = append(dtos, toSuggestionDTO(suggestion))
	}
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "suggestions listed", dtos)
}

// Moderate handles PATCH /suggestions/{id}.
func (h *SuggestionHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	suggestionID, ok := SuggestionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(suggestionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSuggestionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Moderate", "principal_id", principal.UserID, "suggestion_id", suggestionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode moderation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Moderate", "principal_id", principal.UserID, "suggestion_id", suggestionID, "status", req.Status)

	suggestion, err := h.service.ModerateSuggestion(r.Context(), principal, suggestionID, req.Status)
	if err != nil {
		logger.ErrorContext(r.Context(), "suggestion moderation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "suggestion moderated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "suggestion updated", toSuggestionDTO(suggestion))
}

// Delete handles DELETE /suggestions/{id}.
func (h *SuggestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	suggestionID, ok := SuggestionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(suggestionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSuggestionID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "suggestion_id", suggestionID)

	if err := h.service.DeleteSuggestion(r.Context(), principal, suggestionID); err != nil {
		logger.ErrorContext(r.Context(), "suggestion deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "suggestion deleted")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "suggestion deleted", nil)
}
