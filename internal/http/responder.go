package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/librarian/internal/application"
)

var (
	errBadRequestBody       = errors.New("invalid request body")
	errInvalidRecordID      = errors.New("invalid borrow record id")
	errInvalidBookID        = errors.New("invalid book id")
	errInvalidUserID        = errors.New("invalid user id")
	errInvalidSuggestionID  = errors.New("invalid suggestion id")
	errMissingBearerToken   = errors.New("authorization token required")
	errInternalServerFailed = errors.New("internal server error")
)

// envelope is the uniform response shape used by every endpoint, success and
// failure alike.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type responder struct {
	logger *slog.Logger
	now    func() time.Time
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger, now: time.Now}
}

func (r responder) writeSuccess(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	r.writeEnvelope(ctx, w, status, envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: r.timestamp(),
	})
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeEnvelope(ctx, w, status, envelope{
		Success:   false,
		Message:   message,
		Timestamp: r.timestamp(),
	})
}

func (r responder) writeEnvelope(ctx context.Context, w http.ResponseWriter, status int, payload envelope) {
	if w == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleServiceError translates application errors into HTTP statuses:
// validation, conflict, and state errors map to 400, authentication failures
// to 401, authorization failures to 403, missing resources to 404, and
// anything unexpected to a generic 500.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errInternalServerFailed)
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthenticated),
		errors.Is(err, application.ErrTokenExpired),
		errors.Is(err, application.ErrTokenRevoked),
		errors.Is(err, application.ErrInvalidCredentials):
		r.writeError(ctx, w, http.StatusUnauthorized, err)
	case errors.Is(err, application.ErrForbidden):
		r.writeError(ctx, w, http.StatusForbidden, err)
	case errors.Is(err, application.ErrNotFound):
		r.writeError(ctx, w, http.StatusNotFound, err)
	case errors.Is(err, application.ErrDuplicateBorrow),
		errors.Is(err, application.ErrAlreadyExists):
		r.writeError(ctx, w, http.StatusBadRequest, err)
	default:
		var sErr *application.InvalidStateError
		if errors.As(err, &sErr) {
			r.writeError(ctx, w, http.StatusBadRequest, sErr)
			return
		}

		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeEnvelope(ctx, w, http.StatusBadRequest, envelope{
				Success:   false,
				Message:   "validation failed",
				Data:      map[string]any{"fieldErrors": vErr.FieldErrors},
				Timestamp: r.timestamp(),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		r.writeError(ctx, w, http.StatusInternalServerError, errInternalServerFailed)
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func (r responder) timestamp() string {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return now().UTC().Format(time.RFC3339)
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "permission denied"
	case http.StatusNotFound:
		return "resource not found"
	default:
		return "internal server error"
	}
}
