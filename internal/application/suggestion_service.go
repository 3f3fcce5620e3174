package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// SuggestionRepository captures the persistence operations needed by the service.
type SuggestionRepository interface {
	CreateSuggestion(ctx context.Context, suggestion BookSuggestion) error
	UpdateSuggestion(ctx context.Context, suggestion BookSuggestion) error
	GetSuggestion(ctx context.Context, id string) (BookSuggestion, error)
	ListSuggestions(ctx context.Context, email string) ([]BookSuggestion, error)
	DeleteSuggestion(ctx context.Context, id string) error
}

// SuggestionService manages the reader suggestion queue. Approving a
// suggestion copies it into the catalog as a single-copy book.
type SuggestionService struct {
	suggestions SuggestionRepository
	books       BookRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewSuggestionService constructs a suggestion service with the provided dependencies.
func NewSuggestionService(suggestions SuggestionRepository, books BookRepository, idGenerator func() string, now func() time.Time) *SuggestionService {
	return NewSuggestionServiceWithLogger(suggestions, books, idGenerator, now, nil)
}

// NewSuggestionServiceWithLogger constructs a suggestion service with a specified logger.
func NewSuggestionServiceWithLogger(suggestions SuggestionRepository, books BookRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SuggestionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SuggestionService{
		suggestions: suggestions,
		books:       books,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *SuggestionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SuggestionService", operation, attrs...)
}

// SubmitSuggestion records a reader's catalog candidate in the pending state.
func (s *SuggestionService) SubmitSuggestion(ctx context.Context, principal Principal, input SuggestionInput) (suggestion BookSuggestion, err error) {
	if s == nil {
		err = fmt.Errorf("SuggestionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SubmitSuggestion", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit suggestion", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("suggestion_id", suggestion.ID).InfoContext(ctx, "suggestion submitted")
	}()

	vErr := validateSuggestionInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.suggestions == nil {
		err = fmt.Errorf("suggestion repository not configured")
		return
	}

	now := s.now()
	suggestion = BookSuggestion{
		ID:            s.idGenerator(),
		UserID:        principal.UserID,
		Email:         principal.Email,
		Name:          strings.TrimSpace(input.Name),
		AuthorName:    strings.TrimSpace(input.AuthorName),
		Category:      strings.TrimSpace(input.Category),
		Image:         strings.TrimSpace(input.Image),
		Rating:        input.Rating,
		Description:   strings.TrimSpace(input.Description),
		ISBN:          normalizeOptionalString(input.ISBN),
		PublishedYear: input.PublishedYear,
		Status:        SuggestionPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err = s.suggestions.CreateSuggestion(ctx, suggestion); err != nil {
		err = mapSuggestionRepoError(err)
		suggestion = BookSuggestion{}
		return
	}

	return
}

// ListSuggestions returns the queue. Non-admin callers only see their own
// submissions.
func (s *SuggestionService) ListSuggestions(ctx context.Context, principal Principal) ([]BookSuggestion, error) {
	if s == nil {
		return nil, fmt.Errorf("SuggestionService is nil")
	}
	if s.suggestions == nil {
		return nil, fmt.Errorf("suggestion repository not configured")
	}

	email := ""
	if !principal.IsAdmin {
		email = principal.Email
	}

	suggestions, err := s.suggestions.ListSuggestions(ctx, email)
	if err != nil {
		return nil, mapSuggestionRepoError(err)
	}
	return suggestions, nil
}

// ModerateSuggestion approves or rejects a pending suggestion. Approval copies
// the suggestion into the catalog with a single copy on the shelf.
func (s *SuggestionService) ModerateSuggestion(ctx context.Context, principal Principal, suggestionID, status string) (suggestion BookSuggestion, err error) {
	if s == nil {
		err = fmt.Errorf("SuggestionService is nil")
		return
	}
	if s.suggestions == nil {
		err = fmt.Errorf("suggestion repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ModerateSuggestion",
		"principal_id", principal.UserID,
		"suggestion_id", suggestionID,
		"status", status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to moderate suggestion", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "suggestion moderated")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}
	if status != SuggestionApproved && status != SuggestionRejected {
		vErr := &ValidationError{}
		vErr.add("status", "must be approved or rejected")
		err = vErr
		return
	}

	suggestion, err = s.suggestions.GetSuggestion(ctx, suggestionID)
	if err != nil {
		err = mapSuggestionRepoError(err)
		suggestion = BookSuggestion{}
		return
	}

	if suggestion.Status != SuggestionPending {
		err = &InvalidStateError{Reason: "suggestion already moderated"}
		suggestion = BookSuggestion{}
		return
	}

	now := s.now()
	suggestion.Status = status
	suggestion.UpdatedAt = now

	if status == SuggestionApproved && s.books != nil {
		book := Book{
			ID:            s.idGenerator(),
			Name:          suggestion.Name,
			AuthorName:    suggestion.AuthorName,
			Category:      suggestion.Category,
			Image:         suggestion.Image,
			Rating:        suggestion.Rating,
			Description:   suggestion.Description,
			ISBN:          suggestion.ISBN,
			PublishedYear: suggestion.PublishedYear,
			Quantity:      1,
			Available:     true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err = s.books.CreateBook(ctx, book); err != nil {
			err = mapBookRepoError(err)
			suggestion = BookSuggestion{}
			return
		}
	}

	if err = s.suggestions.UpdateSuggestion(ctx, suggestion); err != nil {
		err = mapSuggestionRepoError(err)
		suggestion = BookSuggestion{}
		return
	}

	return
}

// DeleteSuggestion removes a suggestion. Submitters may withdraw their own;
// administrators may remove any.
func (s *SuggestionService) DeleteSuggestion(ctx context.Context, principal Principal, suggestionID string) (err error) {
	if s == nil {
		return fmt.Errorf("SuggestionService is nil")
	}
	if s.suggestions == nil {
		return fmt.Errorf("suggestion repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSuggestion",
		"principal_id", principal.UserID,
		"suggestion_id", suggestionID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete suggestion", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "suggestion deleted")
	}()

	suggestion, err := s.suggestions.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return mapSuggestionRepoError(err)
	}

	if suggestion.UserID != principal.UserID && !principal.IsAdmin {
		return ErrForbidden
	}

	if err = s.suggestions.DeleteSuggestion(ctx, suggestionID); err != nil {
		return mapSuggestionRepoError(err)
	}

	return nil
}

func validateSuggestionInput(input SuggestionInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "is required")
	}
	if strings.TrimSpace(input.AuthorName) == "" {
		vErr.add("authorName", "is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		vErr.add("category", "is required")
	}
	if input.Rating < 0 || input.Rating > 5 {
		vErr.add("rating", "must be between 0 and 5")
	}
	return vErr
}

// mapSuggestionRepoError converts persistence sentinels to application errors.
func mapSuggestionRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	default:
		return err
	}
}
