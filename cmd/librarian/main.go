package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/example/librarian/internal/application"
	"github.com/example/librarian/internal/config"
	httptransport "github.com/example/librarian/internal/http"
	"github.com/example/librarian/internal/persistence"
	"github.com/example/librarian/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A local .env is optional; the process environment always wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	now := time.Now

	userRepo := newUserRepositoryAdapter(sqlite.NewUserRepository(pool))
	bookRepo := newBookRepositoryAdapter(sqlite.NewBookRepository(pool))
	borrowRepo := newBorrowRepositoryAdapter(sqlite.NewBorrowRepository(pool))
	suggestionRepo := newSuggestionRepositoryAdapter(sqlite.NewSuggestionRepository(pool))
	revocations := newTokenRevocationsAdapter(sqlite.NewTokenRepository(pool))

	userService := application.NewUserServiceWithLogger(userRepo, idGenerator, now, logger)
	bookService := application.NewBookServiceWithLogger(bookRepo, idGenerator, now, logger)
	borrowService := application.NewBorrowServiceWithLogger(borrowRepo, bookRepo, idGenerator, now, logger)
	suggestionService := application.NewSuggestionServiceWithLogger(suggestionRepo, bookRepo, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(userRepo, revocations, cfg.JWTSecret, cfg.TokenTTL, idGenerator, now, logger)

	authHandler := httptransport.NewAuthHandler(authService, userService, logger)
	bookHandler := httptransport.NewBookHandler(bookService, logger)
	borrowHandler := httptransport.NewBorrowHandler(borrowService, logger)
	userHandler := httptransport.NewUserHandler(userService, logger)
	suggestionHandler := httptransport.NewSuggestionHandler(suggestionService, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:        authHandler,
		Books:       bookHandler,
		Borrows:     borrowHandler,
		Users:       userHandler,
		Suggestions: suggestionHandler,
		Health:      healthHandler(pool),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.CORS(cfg.AllowedOrigins),
			httptransport.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
			httptransport.RequireAuth(authService, logger, publicRoute),
		},
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() {
		pruneCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := authService.PruneRevokedTokens(pruneCtx); err != nil {
			logger.Error("failed to prune revoked tokens", "error", err)
		}
	}); err != nil {
		logger.Error("failed to schedule token pruning", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("library API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// publicRoute reports whether the request can be served without a token:
// health checks, registration, login, and catalog reads.
func publicRoute(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/auth/register", "/auth/login":
		return true
	}
	if r.Method == http.MethodGet && (r.URL.Path == "/books" || strings.HasPrefix(r.URL.Path, "/books/")) {
		return true
	}
	return false
}

func healthHandler(pool *sqlite.ConnectionPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := `{"success":true,"message":"ok","timestamp":"%s"}`
		if err := pool.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body = `{"success":false,"message":"storage unavailable","timestamp":"%s"}`
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, body, time.Now().UTC().Format(time.RFC3339))
	}
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User) error {
	return a.repo.CreateUser(ctx, toPersistenceUser(user))
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) error {
	return a.repo.UpdateUser(ctx, toPersistenceUser(user))
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

type bookRepositoryAdapter struct {
	repo persistence.BookRepository
}

func newBookRepositoryAdapter(repo persistence.BookRepository) *bookRepositoryAdapter {
	return &bookRepositoryAdapter{repo: repo}
}

func (a *bookRepositoryAdapter) CreateBook(ctx context.Context, book application.Book) error {
	return a.repo.CreateBook(ctx, toPersistenceBook(book))
}

func (a *bookRepositoryAdapter) UpdateBook(ctx context.Context, book application.Book) error {
	return a.repo.UpdateBook(ctx, toPersistenceBook(book))
}

func (a *bookRepositoryAdapter) GetBook(ctx context.Context, id string) (application.Book, error) {
	stored, err := a.repo.GetBook(ctx, id)
	if err != nil {
		return application.Book{}, err
	}
	return toApplicationBook(stored), nil
}

func (a *bookRepositoryAdapter) ListBooks(ctx context.Context, category string) ([]application.Book, error) {
	models, err := a.repo.ListBooks(ctx, category)
	if err != nil {
		return nil, err
	}
	books := make([]application.Book, 0, len(models))
	for _, model := range models {
		books = append(books, toApplicationBook(model))
	}
	return books, nil
}

func (a *bookRepositoryAdapter) DeleteBook(ctx context.Context, id string) error {
	return a.repo.DeleteBook(ctx, id)
}

func (a *bookRepositoryAdapter) RepairAvailability(ctx context.Context, id string, now time.Time) error {
	return a.repo.RepairAvailability(ctx, id, now)
}

type borrowRepositoryAdapter struct {
	repo persistence.BorrowRepository
}

func newBorrowRepositoryAdapter(repo persistence.BorrowRepository) *borrowRepositoryAdapter {
	return &borrowRepositoryAdapter{repo: repo}
}

func (a *borrowRepositoryAdapter) CreateBorrow(ctx context.Context, record application.BorrowRecord) error {
	return a.repo.CreateBorrow(ctx, toPersistenceBorrow(record))
}

func (a *borrowRepositoryAdapter) ConfirmReturn(ctx context.Context, record application.BorrowRecord) error {
	return a.repo.ConfirmReturn(ctx, toPersistenceBorrow(record))
}

func (a *borrowRepositoryAdapter) UpdateBorrow(ctx context.Context, record application.BorrowRecord) error {
	return a.repo.UpdateBorrow(ctx, toPersistenceBorrow(record))
}

func (a *borrowRepositoryAdapter) GetBorrow(ctx context.Context, id string) (application.BorrowRecord, error) {
	stored, err := a.repo.GetBorrow(ctx, id)
	if err != nil {
		return application.BorrowRecord{}, err
	}
	return toApplicationBorrow(stored), nil
}

func (a *borrowRepositoryAdapter) ListBorrows(ctx context.Context, email string, statuses []string) ([]application.BorrowRecord, error) {
	models, err := a.repo.ListBorrows(ctx, persistence.BorrowFilter{Email: email, Statuses: statuses})
	if err != nil {
		return nil, err
	}
	return toApplicationBorrows(models), nil
}

func (a *borrowRepositoryAdapter) ListPendingReturns(ctx context.Context) ([]application.BorrowRecord, error) {
	models, err := a.repo.ListPendingReturns(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationBorrows(models), nil
}

func (a *borrowRepositoryAdapter) DeleteBorrow(ctx context.Context, id string) error {
	return a.repo.DeleteBorrow(ctx, id)
}

type suggestionRepositoryAdapter struct {
	repo persistence.SuggestionRepository
}

func newSuggestionRepositoryAdapter(repo persistence.SuggestionRepository) *suggestionRepositoryAdapter {
	return &suggestionRepositoryAdapter{repo: repo}
}

func (a *suggestionRepositoryAdapter) CreateSuggestion(ctx context.Context, suggestion application.BookSuggestion) error {
	return a.repo.CreateSuggestion(ctx, toPersistenceSuggestion(suggestion))
}

func (a *suggestionRepositoryAdapter) UpdateSuggestion(ctx context.Context, suggestion application.BookSuggestion) error {
	return a.repo.UpdateSuggestion(ctx, toPersistenceSuggestion(suggestion))
}

func (a *suggestionRepositoryAdapter) GetSuggestion(ctx context.Context, id string) (application.BookSuggestion, error) {
	stored, err := a.repo.GetSuggestion(ctx, id)
	if err != nil {
		return application.BookSuggestion{}, err
	}
	return toApplicationSuggestion(stored), nil
}

func (a *suggestionRepositoryAdapter) ListSuggestions(ctx context.Context, email string) ([]application.BookSuggestion, error) {
	models, err := a.repo.ListSuggestions(ctx, email)
	if err != nil {
		return nil, err
	}
	suggestions := make([]application.BookSuggestion, 0, len(models))
	for _, model := range models {
		suggestions = append(suggestions, toApplicationSuggestion(model))
	}
	return suggestions, nil
}

func (a *suggestionRepositoryAdapter) DeleteSuggestion(ctx context.Context, id string) error {
	return a.repo.DeleteSuggestion(ctx, id)
}

type tokenRevocationsAdapter struct {
	repo persistence.TokenRepository
}

func newTokenRevocationsAdapter(repo persistence.TokenRepository) *tokenRevocationsAdapter {
	return &tokenRevocationsAdapter{repo: repo}
}

func (a *tokenRevocationsAdapter) RevokeToken(ctx context.Context, tokenID string, expiresAt, revokedAt time.Time) error {
	return a.repo.RevokeToken(ctx, persistence.RevokedToken{
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
		RevokedAt: revokedAt,
	})
}

func (a *tokenRevocationsAdapter) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return a.repo.IsTokenRevoked(ctx, tokenID)
}

func (a *tokenRevocationsAdapter) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredTokens(ctx, reference)
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationUser(user persistence.User) application.User {
	return application.User{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toPersistenceBook(book application.Book) persistence.Book {
	return persistence.Book{
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
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
}

func toApplicationBook(book persistence.Book) application.Book {
	return application.Book{
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
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
}

func toPersistenceBorrow(record application.BorrowRecord) persistence.BorrowRecord {
	return persistence.BorrowRecord{
		ID:                  record.ID,
		UserID:              record.UserID,
		BookID:              record.BookID,
		Email:               record.Email,
		BookName:            record.BookName,
		AuthorName:          record.AuthorName,
		Category:            record.Category,
		Image:               record.Image,
		BorrowedAt:          record.BorrowedAt,
		ReturnDueAt:         record.ReturnDueAt,
		ReturnRequestedAt:   record.ReturnRequestedAt,
		ReturnDateEditCount: record.ReturnDateEditCount,
		Status:              record.Status,
		Fine:                record.Fine,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func toApplicationBorrow(record persistence.BorrowRecord) application.BorrowRecord {
	return application.BorrowRecord{
		ID:                  record.ID,
		UserID:              record.UserID,
		BookID:              record.BookID,
		Email:               record.Email,
		BookName:            record.BookName,
		AuthorName:          record.AuthorName,
		Category:            record.Category,
		Image:               record.Image,
		BorrowedAt:          record.BorrowedAt,
		ReturnDueAt:         record.ReturnDueAt,
		ReturnRequestedAt:   record.ReturnRequestedAt,
		ReturnDateEditCount: record.ReturnDateEditCount,
		Status:              record.Status,
		Fine:                record.Fine,
		CreatedAt:           record.CreatedAt,
		UpdatedAt:           record.UpdatedAt,
	}
}

func toApplicationBorrows(models []persistence.BorrowRecord) []application.BorrowRecord {
	records := make([]application.BorrowRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationBorrow(model))
	}
	return records
}

func toPersistenceSuggestion(suggestion application.BookSuggestion) persistence.BookSuggestion {
	return persistence.BookSuggestion{
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
		CreatedAt:     suggestion.CreatedAt,
		UpdatedAt:     suggestion.UpdatedAt,
	}
}

func toApplicationSuggestion(suggestion persistence.BookSuggestion) application.BookSuggestion {
	return application.BookSuggestion{
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
		CreatedAt:     suggestion.CreatedAt,
		UpdatedAt:     suggestion.UpdatedAt,
	}
}
