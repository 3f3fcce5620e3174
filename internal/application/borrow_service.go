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

// BorrowRepository captures the persistence operations needed by the service.
type BorrowRepository interface {
	// CreateBorrow persists the record and decrements the book's shelf count
	// as a single unit.
	CreateBorrow(ctx context.Context, record BorrowRecord) error
	// ConfirmReturn persists the record and restores one copy to the shelf as
	// a single unit.
	ConfirmReturn(ctx context.Context, record BorrowRecord) error
	UpdateBorrow(ctx context.Context, record BorrowRecord) error
	GetBorrow(ctx context.Context, id string) (BorrowRecord, error)
	ListBorrows(ctx context.Context, email string, statuses []string) ([]BorrowRecord, error)
	ListPendingReturns(ctx context.Context) ([]BorrowRecord, error)
	DeleteBorrow(ctx context.Context, id string) error
}

// CatalogReader exposes the catalog lookups the borrow workflow depends on.
type CatalogReader interface {
	GetBook(ctx context.Context, id string) (Book, error)
	// RepairAvailability forces the derived available flag back in line with
	// the stored quantity.
	RepairAvailability(ctx context.Context, id string, now time.Time) error
}

// BorrowService orchestrates the borrow/return lifecycle and keeps the
// catalog's shelf counts consistent with it.
type BorrowService struct {
	records     BorrowRepository
	catalog     CatalogReader
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBorrowService constructs a borrow service with the provided dependencies.
func NewBorrowService(records BorrowRepository, catalog CatalogReader, idGenerator func() string, now func() time.Time) *BorrowService {
	return NewBorrowServiceWithLogger(records, catalog, idGenerator, now, nil)
}

// NewBorrowServiceWithLogger constructs a borrow service with a specified logger.
func NewBorrowServiceWithLogger(records BorrowRepository, catalog CatalogReader, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BorrowService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BorrowService{
		records:     records,
		catalog:     catalog,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BorrowService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BorrowService", operation, attrs...)
}

// BorrowBook creates a borrow record for the caller and takes one copy off the
// shelf. The record snapshots the book's display fields at borrow time.
func (s *BorrowService) BorrowBook(ctx context.Context, params BorrowBookParams) (record BorrowRecord, err error) {
	if s == nil {
		err = fmt.Errorf("BorrowService is nil")
		return
	}

	logger := s.loggerWith(ctx, "BorrowBook",
		"principal_id", params.Principal.UserID,
		"book_id", params.Input.BookID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to borrow book", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("record_id", record.ID).InfoContext(ctx, "book borrowed")
	}()

	vErr := validateBorrowInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.records == nil || s.catalog == nil {
		err = fmt.Errorf("borrow repositories not configured")
		return
	}

	book, err := s.catalog.GetBook(ctx, params.Input.BookID)
	if err != nil {
		err = mapBorrowRepoError(err)
		return
	}
	book = s.healAvailability(ctx, logger, book)

	if book.Quantity <= 0 {
		err = &InvalidStateError{Reason: "book has no copies available"}
		return
	}

	now := s.now()
	record = BorrowRecord{
		ID:          s.idGenerator(),
		UserID:      params.Principal.UserID,
		BookID:      book.ID,
		Email:       params.Principal.Email,
		BookName:    snapshotField(params.Input.BookName, book.Name),
		AuthorName:  snapshotField(params.Input.AuthorName, book.AuthorName),
		Category:    snapshotField(params.Input.Category, book.Category),
		Image:       snapshotField(params.Input.Image, book.Image),
		BorrowedAt:  now,
		ReturnDueAt: params.Input.ReturnDueAt,
		Status:      StatusBorrowed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err = s.records.CreateBorrow(ctx, record); err != nil {
		err = mapBorrowRepoError(err)
		return
	}

	return
}

// RequestReturn flags an active record as waiting for an administrator to
// confirm the physical return. Shelf counts are untouched until confirmation.
func (s *BorrowService) RequestReturn(ctx context.Context, params RequestReturnParams) (record BorrowRecord, err error) {
	if s == nil {
		err = fmt.Errorf("BorrowService is nil")
		return
	}
	if s.records == nil {
		err = fmt.Errorf("borrow repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "RequestReturn",
		"principal_id", params.Principal.UserID,
		"record_id", params.RecordID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to request return", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "return requested")
	}()

	record, err = s.records.GetBorrow(ctx, params.RecordID)
	if err != nil {
		err = mapBorrowRepoError(err)
		record = BorrowRecord{}
		return
	}

	if record.UserID != params.Principal.UserID {
		err = ErrForbidden
		record = BorrowRecord{}
		return
	}

	switch record.Status {
	case StatusReturnPending:
		err = &InvalidStateError{Reason: "return already requested"}
		record = BorrowRecord{}
		return
	case StatusReturned:
		err = &InvalidStateError{Reason: "record already returned"}
		record = BorrowRecord{}
		return
	}

	now := s.now()
	record.Status = StatusReturnPending
	record.ReturnRequestedAt = &now
	record.UpdatedAt = now

	if err = s.records.UpdateBorrow(ctx, record); err != nil {
		err = mapBorrowRepoError(err)
		record = BorrowRecord{}
		return
	}

	return
}

// UpdateReturnDate moves the planned return date. Each record allows at most
// two edits, and the new date must sit in the month ahead.
func (s *BorrowService) UpdateReturnDate(ctx context.Context, params UpdateReturnDateParams) (record BorrowRecord, err error) {
	if s == nil {
		err = fmt.Errorf("BorrowService is nil")
		return
	}
	if s.records == nil {
		err = fmt.Errorf("borrow repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateReturnDate",
		"principal_id", params.Principal.UserID,
		"record_id", params.RecordID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update return date", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "return date updated")
	}()

	record, err = s.records.GetBorrow(ctx, params.RecordID)
	if err != nil {
		err = mapBorrowRepoError(err)
		record = BorrowRecord{}
		return
	}

	if record.UserID != params.Principal.UserID {
		err = ErrForbidden
		record = BorrowRecord{}
		return
	}
	if record.Status == StatusReturned {
		err = &InvalidStateError{Reason: "record already returned"}
		record = BorrowRecord{}
		return
	}
	if record.ReturnDateEditCount >= 2 {
		err = &InvalidStateError{Reason: "return date edit limit reached"}
		record = BorrowRecord{}
		return
	}

	now := s.now()
	if !params.ReturnDueAt.After(now) {
		vErr := &ValidationError{}
		vErr.add("returnDate", "must be in the future")
		err = vErr
		record = BorrowRecord{}
		return
	}
	if params.ReturnDueAt.After(now.AddDate(0, 1, 0)) {
		vErr := &ValidationError{}
		vErr.add("returnDate", "must be within one month")
		err = vErr
		record = BorrowRecord{}
		return
	}

	record.ReturnDueAt = params.ReturnDueAt
	record.ReturnDateEditCount++
	record.UpdatedAt = now

	if err = s.records.UpdateBorrow(ctx, record); err != nil {
		err = mapBorrowRepoError(err)
		record = BorrowRecord{}
		return
	}

	return
}

// ConfirmOrSetStatus lets an administrator move a record to any status.
// Confirming a pending return restores the copy to the shelf; every other
// transition leaves the catalog untouched.
func (s *BorrowService) ConfirmOrSetStatus(ctx context.Context, params SetStatusParams) (record BorrowRecord, err error) {
	if s == nil {
		err = fmt.Errorf("BorrowService is nil")
		return
	}
	if s.records == nil {
		err = fmt.Errorf("borrow repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ConfirmOrSetStatus",
		"principal_id", params.Principal.UserID,
		"record_id", params.RecordID,
		"status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set record status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "record status set")
	}()

	if !params.Principal.IsAdmin {
		err = ErrForbidden
		return
	}

	if !validStatus(params.Status) {
		vErr := &ValidationError{}
		vErr.add("status", "must be one of borrowed, return_pending, returned")
		err = vErr
		return
	}

	record, err = s.records.GetBorrow(ctx, params.RecordID)
	if err != nil {
		err = mapBorrowRepoError(err)
		record = BorrowRecord{}
		return
	}

	now := s.now()
	previous := record.Status
	record.Status = params.Status
	record.UpdatedAt = now
	if params.Fine != nil {
		record.Fine = *params.Fine
	}

	if params.Status == StatusReturned && previous == StatusReturnPending {
		record.ReturnRequestedAt = nil
		if err = s.records.ConfirmReturn(ctx, record); err != nil {
			err = mapBorrowRepoError(err)
			record = BorrowRecord{}
			return
		}
		return
	}

	// Administrative override. Inventory bookkeeping is only defined for the
	// pending-to-returned transition, so any other jump leaves shelf counts
	// alone and is logged for audit.
	if previous != params.Status && !forwardTransition(previous, params.Status) {
		logger.WarnContext(ctx, "status override skips inventory bookkeeping",
			"previous_status", previous)
	}
	if params.Status == StatusReturnPending && record.ReturnRequestedAt == nil {
		record.ReturnRequestedAt = &now
	}
	if params.Status != StatusReturnPending {
		record.ReturnRequestedAt = nil
	}

	if err = s.records.UpdateBorrow(ctx, record); err != nil {
		err = mapBorrowRepoError(err)
		record = BorrowRecord{}
		return
	}

	return
}

// DeleteRecord removes a borrow record without any inventory side effects.
func (s *BorrowService) DeleteRecord(ctx context.Context, params DeleteRecordParams) (err error) {
	if s == nil {
		return fmt.Errorf("BorrowService is nil")
	}
	if s.records == nil {
		return fmt.Errorf("borrow repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRecord",
		"principal_id", params.Principal.UserID,
		"record_id", params.RecordID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete record", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "record deleted")
	}()

	record, err := s.records.GetBorrow(ctx, params.RecordID)
	if err != nil {
		return mapBorrowRepoError(err)
	}

	if record.UserID != params.Principal.UserID && !params.Principal.IsAdmin {
		return ErrForbidden
	}

	if err = s.records.DeleteBorrow(ctx, params.RecordID); err != nil {
		return mapBorrowRepoError(err)
	}

	return nil
}

// ListForUser returns the caller's records. Without an explicit status filter
// only active records are reported. Administrators may query any email.
func (s *BorrowService) ListForUser(ctx context.Context, params ListBorrowsParams) (records []BorrowRecord, err error) {
	if s == nil {
		return nil, fmt.Errorf("BorrowService is nil")
	}
	if s.records == nil {
		return nil, fmt.Errorf("borrow repository not configured")
	}

	email := strings.TrimSpace(params.Email)
	if email == "" {
		email = params.Principal.Email
	}
	if !strings.EqualFold(email, params.Principal.Email) && !params.Principal.IsAdmin {
		return nil, ErrForbidden
	}

	statuses := params.Statuses
	if len(statuses) == 0 {
		statuses = []string{StatusBorrowed, StatusReturnPending}
	}
	for _, status := range statuses {
		if !validStatus(status) {
			vErr := &ValidationError{}
			vErr.add("status", "must be one of borrowed, return_pending, returned")
			return nil, vErr
		}
	}

	records, err = s.records.ListBorrows(ctx, email, statuses)
	if err != nil {
		return nil, mapBorrowRepoError(err)
	}
	return records, nil
}

// ListPendingReturns returns every record waiting for return confirmation,
// most recent request first. Administrators only.
func (s *BorrowService) ListPendingReturns(ctx context.Context, principal Principal) ([]BorrowRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("BorrowService is nil")
	}
	if s.records == nil {
		return nil, fmt.Errorf("borrow repository not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrForbidden
	}

	records, err := s.records.ListPendingReturns(ctx)
	if err != nil {
		return nil, mapBorrowRepoError(err)
	}
	return records, nil
}

// ListAll returns every borrow record regardless of owner or status.
func (s *BorrowService) ListAll(ctx context.Context) ([]BorrowRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("BorrowService is nil")
	}
	if s.records == nil {
		return nil, fmt.Errorf("borrow repository not configured")
	}

	records, err := s.records.ListBorrows(ctx, "", nil)
	if err != nil {
		return nil, mapBorrowRepoError(err)
	}
	return records, nil
}

// healAvailability repairs the derived available flag when it disagrees with
// the stored quantity. Failures are logged and otherwise ignored; the flag is
// cosmetic and the quantity guard stays authoritative.
func (s *BorrowService) healAvailability(ctx context.Context, logger *slog.Logger, book Book) Book {
	expected := book.Quantity > 0
	if book.Available == expected {
		return book
	}

	logger.WarnContext(ctx, "repairing stale availability flag",
		"book_id", book.ID, "quantity", book.Quantity, "available", book.Available)

	if err := s.catalog.RepairAvailability(ctx, book.ID, s.now()); err != nil {
		logger.ErrorContext(ctx, "failed to repair availability", "error", err)
	}
	book.Available = expected
	return book
}

func validateBorrowInput(input BorrowInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.BookID) == "" {
		vErr.add("bookId", "is required")
	}
	if input.ReturnDueAt.IsZero() {
		vErr.add("returnDate", "is required")
	}
	return vErr
}

func validStatus(status string) bool {
	switch status {
	case StatusBorrowed, StatusReturnPending, StatusReturned:
		return true
	}
	return false
}

// forwardTransition reports whether the change follows the normal lifecycle
// direction: borrowed, then return_pending, then returned.
func forwardTransition(from, to string) bool {
	rank := map[string]int{
		StatusBorrowed:      0,
		StatusReturnPending: 1,
		StatusReturned:      2,
	}
	return rank[to] > rank[from]
}

func snapshotField(supplied, catalog string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied != "" {
		return supplied
	}
	return catalog
}

// mapBorrowRepoError converts persistence sentinels to application errors.
func mapBorrowRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrDuplicateBorrow
	case errors.Is(err, persistence.ErrConstraintViolation):
		return &InvalidStateError{Reason: "book has no copies available"}
	default:
		return err
	}
}
