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

type borrowService interface {
	BorrowBook(ctx context.Context, params application.BorrowBookParams) (application.BorrowRecord, error)
	RequestReturn(ctx context.Context, params application.RequestReturnParams) (application.BorrowRecord, error)
	UpdateReturnDate(ctx context.Context, params application.UpdateReturnDateParams) (application.BorrowRecord, error)
	ConfirmOrSetStatus(ctx context.Context, params application.SetStatusParams) (application.BorrowRecord, error)
	DeleteRecord(ctx context.Context, params application.DeleteRecordParams) error
	ListForUser(ctx context.Context, params application.ListBorrowsParams) ([]application.BorrowRecord, error)
	ListPendingReturns(ctx context.Context, principal application.Principal) ([]application.BorrowRecord, error)
	ListAll(ctx context.Context) ([]application.BorrowRecord, error)
}

// BorrowHandler exposes the borrow/return lifecycle endpoints.
type BorrowHandler struct {
	service   borrowService
	responder responder
	logger    *slog.Logger
}

// NewBorrowHandler constructs a borrow handler.
func NewBorrowHandler(service borrowService, logger *slog.Logger) *BorrowHandler {
	base := defaultLogger(logger)
	return &BorrowHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BorrowHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BorrowHandler", operation, attrs...)
}

type borrowRequest struct {
	BookID     string `json:"bookId"`
	BookName   string `json:"bookName"`
	AuthorName string `json:"authorName"`
	Category   string `json:"category"`
	Image      string `json:"image"`
	ReturnDate string `json:"returnDate"`
}

type returnDateRequest struct {
	ReturnDate string `json:"returnDate"`
}

type statusRequest struct {
	Status string   `json:"status"`
	Fine   *float64 `json:"fine"`
}

type borrowRecordDTO struct {
	ID                  string   `json:"id"`
	UserID              string   `json:"userId"`
	BookID              string   `json:"bookId"`
	Email               string   `json:"email"`
	BookName            string   `json:"bookName"`
	AuthorName          string   `json:"authorName"`
	Category            string   `json:"category"`
	Image               string   `json:"image,omitempty"`
	BorrowedAt          string   `json:"borrowedAt"`
	ReturnDate          string   `json:"returnDate"`
	ReturnRequestedAt   *string  `json:"returnRequestedAt,omitempty"`
	ReturnDateEditCount int      `json:"returnDateEditCount"`
	Status              string   `json:"status"`
	Fine                float64  `json:"fine"`
	CreatedAt           string   `json:"createdAt"`
	UpdatedAt           string   `json:"updatedAt"`
}

func toBorrowRecordDTO(record application.BorrowRecord) borrowRecordDTO {
	dto := borrowRecordDTO{
		ID:                  record.ID,
		UserID:              record.UserID,
		BookID:              record.BookID,
		Email:               record.Email,
		BookName:            record.BookName,
		AuthorName:          record.AuthorName,
		Category:            record.Category,
		Image:               record.Image,
		BorrowedAt:          record.BorrowedAt.UTC().Format(time.RFC3339),
		ReturnDate:          record.ReturnDueAt.UTC().Format(time.RFC3339),
		ReturnDateEditCount: record.ReturnDateEditCount,
		Status:              record.Status,
		Fine:                record.Fine,
		CreatedAt:           record.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           record.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if record.ReturnRequestedAt != nil {
		requested := record.ReturnRequestedAt.UTC().Format(time.RFC3339)
		dto.ReturnRequestedAt = &requested
	}
	return dto
}

func toBorrowRecordDTOs(records []application.BorrowRecord) []borrowRecordDTO {
	dtos := make([]borrowRecordDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, toBorrowRecordDTO(record))
	}
	return dtos
}

// Borrow handles POST /borrowed.
func (h *BorrowHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req borrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Borrow", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode borrow request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Borrow", "principal_id", principal.UserID, "book_id", req.BookID)

	returnDue, ok := parseDateField(req.ReturnDate)
	if req.ReturnDate != "" && !ok {
		logger.ErrorContext(r.Context(), "invalid return date", "value", req.ReturnDate)
		vErr := &application.ValidationError{FieldErrors: map[string]string{"returnDate": "must be an RFC 3339 timestamp"}}
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	record, err := h.service.BorrowBook(r.Context(), application.BorrowBookParams{
		Principal: principal,
		Input: application.BorrowInput{
			BookID:      req.BookID,
			BookName:    req.BookName,
			AuthorName:  req.AuthorName,
			Category:    req.Category,
			Image:       req.Image,
			ReturnDueAt: returnDue,
		},
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "borrow failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("record_id", record.ID).InfoContext(r.Context(), "book borrowed")
	h.responder.writeSuccess(r.Context(), w, http.StatusCreated, "book borrowed", toBorrowRecordDTO(record))
}

// RequestReturn handles PATCH /borrowed/{id}/return.
func (h *BorrowHandler) RequestReturn(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recordID, ok := RecordIDFromContext(r.Context())
	if !ok || strings.TrimSpace(recordID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "RequestReturn", "principal_id", principal.UserID, "record_id", recordID)

	record, err := h.service.RequestReturn(r.Context(), application.RequestReturnParams{
		Principal: principal,
		RecordID:  recordID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "return request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "return requested")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "return requested", toBorrowRecordDTO(record))
}

// UpdateReturnDate handles PATCH /borrowed/{id}/return-date.
func (h *BorrowHandler) UpdateReturnDate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recordID, ok := RecordIDFromContext(r.Context())
	if !ok || strings.TrimSpace(recordID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req returnDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateReturnDate", "principal_id", principal.UserID, "record_id", recordID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode return date request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateReturnDate", "principal_id", principal.UserID, "record_id", recordID)

	returnDue, ok := parseDateField(req.ReturnDate)
	if !ok {
		logger.ErrorContext(r.Context(), "invalid return date", "value", req.ReturnDate)
		vErr := &application.ValidationError{FieldErrors: map[string]string{"returnDate": "must be an RFC 3339 timestamp"}}
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	record, err := h.service.UpdateReturnDate(r.Context(), application.UpdateReturnDateParams{
		Principal:   principal,
		RecordID:    recordID,
		ReturnDueAt: returnDue,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "return date update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "return date updated")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "return date updated", toBorrowRecordDTO(record))
}

// SetStatus handles PATCH /borrowed/{id}.
func (h *BorrowHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recordID, ok := RecordIDFromContext(r.Context())
	if !ok || strings.TrimSpace(recordID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetStatus", "principal_id", principal.UserID, "record_id", recordID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode status request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SetStatus", "principal_id", principal.UserID, "record_id", recordID, "status", req.Status)

	record, err := h.service.ConfirmOrSetStatus(r.Context(), application.SetStatusParams{
		Principal: principal,
		RecordID:  recordID,
		Status:    req.Status,
		Fine:      req.Fine,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "status change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "record status set")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "record updated", toBorrowRecordDTO(record))
}

// Delete handles DELETE /borrowed/{id}.
func (h *BorrowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	recordID, ok := RecordIDFromContext(r.Context())
	if !ok || strings.TrimSpace(recordID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRecordID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "record_id", recordID)

	err := h.service.DeleteRecord(r.Context(), application.DeleteRecordParams{
		Principal: principal,
		RecordID:  recordID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "record deletion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "record deleted")
	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "record deleted", nil)
}

// List handles GET /borrowed.
func (h *BorrowHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	query := r.URL.Query()
	var statuses []string
	for _, status := range query["status"] {
		for _, part := range strings.Split(status, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				statuses = append(statuses, part)
			}
		}
	}

	records, err := h.service.ListForUser(r.Context(), application.ListBorrowsParams{
		Principal: principal,
		Email:     query.Get("email"),
		Statuses:  statuses,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "record listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "records listed", toBorrowRecordDTOs(records))
}

// ListPending handles GET /borrowed/pending.
func (h *BorrowHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListPending", "principal_id", principal.UserID)

	records, err := h.service.ListPendingReturns(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "pending listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "pending returns listed", toBorrowRecordDTOs(records))
}

// ListAll handles GET /borrowed/all.
func (h *BorrowHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	records, err := h.service.ListAll(r.Context())
	if err != nil {
		h.log(r.Context(), "ListAll").ErrorContext(r.Context(), "record listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeSuccess(r.Context(), w, http.StatusOK, "records listed", toBorrowRecordDTOs(records))
}

// parseDateField accepts RFC 3339 timestamps and bare dates.
func parseDateField(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts, true
	}
	return time.Time{}, false
}
